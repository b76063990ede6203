package gate

import (
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/ec2instanceconnect"
	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
)

// TrustGrantTTLSeconds is how long the broker honours an uploaded key. The
// TTL is broker-enforced and not configurable here; it is also the backstop
// against grants leaked by a crash.
const TrustGrantTTLSeconds = 60

// TrustBrokerClient is the slice of the EC2 Instance Connect API this
// package consumes. *ec2instanceconnect.EC2InstanceConnect satisfies it.
type TrustBrokerClient interface {
	SendSSHPublicKey(*ec2instanceconnect.SendSSHPublicKeyInput) (*ec2instanceconnect.SendSSHPublicKeyOutput, error)
}

// TrustGrant records a successful upload of a public key for one
// (instance, OS user) pair. The grant takes effect asynchronously on the
// instance, so the first SSH attempt can race its propagation; see Release
// for the teardown story.
type TrustGrant struct {
	InstanceID       string
	AvailabilityZone string
	OSUser           string
	Fingerprint      string
	RequestID        string
	IssuedAt         time.Time
}

// InstallTrustGrant authorises publicKey for SSH login as osUser on the
// given instance. Only called once key material already exists.
func InstallTrustGrant(broker TrustBrokerClient, instanceID, availabilityZone, osUser string, publicKey []byte) (*TrustGrant, error) {
	input := &ec2instanceconnect.SendSSHPublicKeyInput{
		InstanceId:       aws.String(instanceID),
		AvailabilityZone: aws.String(availabilityZone),
		InstanceOSUser:   aws.String(osUser),
		SSHPublicKey:     aws.String(string(publicKey)),
	}

	resp, err := broker.SendSSHPublicKey(input)
	if err != nil {
		return nil, &TrustInstallError{InstanceID: instanceID, Err: err}
	}
	if !aws.BoolValue(resp.Success) {
		return nil, &TrustInstallError{InstanceID: instanceID, Err: errors.New("broker rejected public key upload")}
	}

	return &TrustGrant{
		InstanceID:       instanceID,
		AvailabilityZone: availabilityZone,
		OSUser:           osUser,
		Fingerprint:      publicKeyFingerprint(publicKey),
		RequestID:        aws.StringValue(resp.RequestId),
		IssuedAt:         time.Now(),
	}, nil
}

// Release tears down the grant on a best-effort basis. The broker exposes no
// revoke call, so expiry of the TTL is what actually ends the trust window.
// Never fails: cleanup must not mask a primary error.
func (g *TrustGrant) Release(logger *log.Logger) {
	remaining := time.Duration(TrustGrantTTLSeconds)*time.Second - time.Since(g.IssuedAt)
	if remaining < 0 {
		remaining = 0
	}
	logger.Debug("trust grant left to expire",
		"instance", g.InstanceID, "user", g.OSUser, "fingerprint", g.Fingerprint, "remaining", remaining)
}
