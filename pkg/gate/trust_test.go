package gate

import (
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/ec2instanceconnect"
	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rejectingTrustBroker struct{}

func (rejectingTrustBroker) SendSSHPublicKey(*ec2instanceconnect.SendSSHPublicKeyInput) (*ec2instanceconnect.SendSSHPublicKeyOutput, error) {
	return &ec2instanceconnect.SendSSHPublicKeyOutput{Success: aws.Bool(false)}, nil
}

func TestInstallTrustGrant(t *testing.T) {
	broker := &fakeTrustBroker{}
	keypair, err := GenerateKeypair(KeyAlgorithmEd25519, 0)
	require.NoError(t, err)

	grant, err := InstallTrustGrant(broker, "i-0123456789abcdef0", "us-east-1a", "ubuntu", keypair.PublicKey)
	require.NoError(t, err)

	assert.Equal(t, "i-0123456789abcdef0", grant.InstanceID)
	assert.Equal(t, "us-east-1a", grant.AvailabilityZone)
	assert.Equal(t, "ubuntu", grant.OSUser)
	assert.Equal(t, "req-1", grant.RequestID)
	assert.WithinDuration(t, time.Now(), grant.IssuedAt, time.Minute)

	// the grant records which key it authorized
	assert.Equal(t, keypair.Fingerprint(), grant.Fingerprint)
	assert.NotEmpty(t, grant.Fingerprint)

	assert.Equal(t, string(keypair.PublicKey), aws.StringValue(broker.input.SSHPublicKey))
}

func TestInstallTrustGrantBrokerError(t *testing.T) {
	broker := &fakeTrustBroker{err: errors.New("instance not eligible")}

	_, err := InstallTrustGrant(broker, "i-0123456789abcdef0", "us-east-1a", "ec2-user", []byte("ssh-rsa AAAA"))
	var tiErr *TrustInstallError
	require.ErrorAs(t, err, &tiErr)
	assert.Equal(t, "i-0123456789abcdef0", tiErr.InstanceID)
}

func TestInstallTrustGrantRejection(t *testing.T) {
	_, err := InstallTrustGrant(rejectingTrustBroker{}, "i-0123456789abcdef0", "us-east-1a", "ec2-user", []byte("ssh-rsa AAAA"))
	var tiErr *TrustInstallError
	assert.ErrorAs(t, err, &tiErr)
}

func TestReleaseNeverPanics(t *testing.T) {
	grant := &TrustGrant{
		InstanceID: "i-0123456789abcdef0",
		OSUser:     "ec2-user",
		IssuedAt:   time.Now().Add(-2 * time.Minute), // already expired
	}
	grant.Release(log.New(io.Discard))
}
