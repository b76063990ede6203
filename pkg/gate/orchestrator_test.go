package gate

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/ec2instanceconnect"
	"github.com/aws/aws-sdk-go/service/ssm"
	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTrustBroker struct {
	input *ec2instanceconnect.SendSSHPublicKeyInput
	err   error
}

func (f *fakeTrustBroker) SendSSHPublicKey(input *ec2instanceconnect.SendSSHPublicKeyInput) (*ec2instanceconnect.SendSSHPublicKeyOutput, error) {
	f.input = input
	if f.err != nil {
		return nil, f.err
	}
	return &ec2instanceconnect.SendSSHPublicKeyOutput{
		RequestId: aws.String("req-1"),
		Success:   aws.Bool(true),
	}, nil
}

type fakeSessionBroker struct {
	input *ssm.StartSessionInput
	err   error
}

func (f *fakeSessionBroker) StartSession(input *ssm.StartSessionInput) (*ssm.StartSessionOutput, error) {
	f.input = input
	if f.err != nil {
		return nil, f.err
	}
	return &ssm.StartSessionOutput{
		SessionId:  aws.String("sess-1"),
		StreamUrl:  aws.String("wss://example"),
		TokenValue: aws.String("tok"),
	}, nil
}

type fakeRunner struct {
	argv       []string
	exit       int
	err        error
	keyAtSpawn func() // observation hook run when the process would start
}

func (f *fakeRunner) Run(argv []string) (int, error) {
	f.argv = argv
	if f.keyAtSpawn != nil {
		f.keyAtSpawn()
	}
	return f.exit, f.err
}

func testOrchestrator(trust *fakeTrustBroker, broker *fakeSessionBroker, runner *fakeRunner) *Orchestrator {
	return &Orchestrator{
		Clients: Clients{
			TrustBroker:     trust,
			SessionBroker:   broker,
			SessionEndpoint: "https://ssm.us-east-1.amazonaws.com",
		},
		Runner: runner,
		Logger: log.New(io.Discard),
	}
}

func testRequest(t *testing.T) SessionRequest {
	return SessionRequest{
		InstanceID:       "i-0123456789abcdef0",
		AvailabilityZone: "us-east-1a",
		OSUser:           "ec2-user",
		Port:             22,
		Region:           "us-east-1",
		Profile:          "default",
		KeyPath:          filepath.Join(t.TempDir(), "i-0123456789abcdef0.us-east-1.default"),
	}
}

func keyFilesExist(path string) bool {
	_, errPriv := os.Stat(path)
	_, errPub := os.Stat(path + ".pub")
	return errPriv == nil && errPub == nil
}

func TestRunSuccess(t *testing.T) {
	req := testRequest(t)
	trust := &fakeTrustBroker{}
	broker := &fakeSessionBroker{}
	runner := &fakeRunner{}
	runner.keyAtSpawn = func() {
		// key material must be live while ssh runs
		assert.True(t, keyFilesExist(req.KeyPath))
	}

	exit, err := testOrchestrator(trust, broker, runner).Run(req)
	require.NoError(t, err)
	assert.Equal(t, 0, exit)

	assert.False(t, keyFilesExist(req.KeyPath))

	require.NotNil(t, trust.input)
	assert.Equal(t, "i-0123456789abcdef0", aws.StringValue(trust.input.InstanceId))
	assert.Equal(t, "us-east-1a", aws.StringValue(trust.input.AvailabilityZone))
	assert.Equal(t, "ec2-user", aws.StringValue(trust.input.InstanceOSUser))
	assert.NotEmpty(t, aws.StringValue(trust.input.SSHPublicKey))

	require.NotNil(t, broker.input)
	assert.Equal(t, SSHSessionDocument, aws.StringValue(broker.input.DocumentName))

	require.NotEmpty(t, runner.argv)
	assert.Equal(t, "ssh", runner.argv[0])
}

func TestRunTrustInstallFailure(t *testing.T) {
	req := testRequest(t)
	trust := &fakeTrustBroker{err: errors.New("not authorized to perform ec2-instance-connect:SendSSHPublicKey")}
	runner := &fakeRunner{}

	_, err := testOrchestrator(trust, &fakeSessionBroker{}, runner).Run(req)
	var tiErr *TrustInstallError
	require.ErrorAs(t, err, &tiErr)

	assert.Nil(t, runner.argv, "ssh must never spawn after a trust rejection")
	assert.False(t, keyFilesExist(req.KeyPath))
}

func TestRunSessionStartFailure(t *testing.T) {
	req := testRequest(t)
	broker := &fakeSessionBroker{err: errors.New("TargetNotConnected")}
	runner := &fakeRunner{}

	_, err := testOrchestrator(&fakeTrustBroker{}, broker, runner).Run(req)
	require.Error(t, err)

	assert.Nil(t, runner.argv)
	assert.False(t, keyFilesExist(req.KeyPath))
}

func TestRunSSHAuthFailureIsAResult(t *testing.T) {
	req := testRequest(t)
	runner := &fakeRunner{exit: 255}

	exit, err := testOrchestrator(&fakeTrustBroker{}, &fakeSessionBroker{}, runner).Run(req)
	require.NoError(t, err)
	assert.Equal(t, 255, exit)
	assert.False(t, keyFilesExist(req.KeyPath))
}

func TestRunLaunchFailureStillUnwinds(t *testing.T) {
	req := testRequest(t)
	runner := &fakeRunner{err: &ProcessLaunchError{Path: "ssh", Err: errors.New("executable file not found in $PATH")}}

	_, err := testOrchestrator(&fakeTrustBroker{}, &fakeSessionBroker{}, runner).Run(req)
	var plErr *ProcessLaunchError
	require.ErrorAs(t, err, &plErr)
	assert.False(t, keyFilesExist(req.KeyPath))
}

func TestRunKeyGenerationFailureMakesNoRemoteCalls(t *testing.T) {
	req := testRequest(t)
	req.KeyAlgorithm = KeyAlgorithmRSA
	req.KeySize = 1024
	trust := &fakeTrustBroker{}
	broker := &fakeSessionBroker{}

	_, err := testOrchestrator(trust, broker, &fakeRunner{}).Run(req)
	var kgErr *KeyGenerationError
	require.ErrorAs(t, err, &kgErr)

	assert.Nil(t, trust.input)
	assert.Nil(t, broker.input)
}

func TestUnwindStackReverseOrderExactlyOnce(t *testing.T) {
	var order []string
	stack := &unwindStack{}
	stack.push(func() { order = append(order, "key") })
	stack.push(func() { order = append(order, "trust") })
	stack.push(func() { order = append(order, "session") })

	stack.unwind()
	assert.Equal(t, []string{"session", "trust", "key"}, order)

	stack.unwind()
	assert.Len(t, order, 3, "releases must run exactly once")
}
