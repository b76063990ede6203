package gate

import (
	"strconv"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/ssm"
)

// SSHSessionDocument is the broker-side document that bridges an SSM channel
// to the instance's SSH daemon.
const SSHSessionDocument = "AWS-StartSSHSession"

// BrokerActionStartSession is the fixed action name the session plugin
// expects as its third positional argument.
const BrokerActionStartSession = "StartSession"

// SessionDescriptor shapes one session-start request. It is pure data: the
// live channel belongs to the session plugin, never to this process. Field
// order matters — the serialized form is handed to the plugin verbatim.
type SessionDescriptor struct {
	Target       string              `json:"Target"`
	DocumentName string              `json:"DocumentName,omitempty"`
	Parameters   map[string][]string `json:"Parameters,omitempty"`
}

// DescribeSSHSession describes an SSH-bridging session to instanceID with
// sshd listening on port. No network call happens here.
func DescribeSSHSession(instanceID string, port int) SessionDescriptor {
	return SessionDescriptor{
		Target:       instanceID,
		DocumentName: SSHSessionDocument,
		Parameters:   map[string][]string{"portNumber": {strconv.Itoa(port)}},
	}
}

// DescribeShellSession describes a plain interactive shell session, using
// the broker's default document.
func DescribeShellSession(instanceID string) SessionDescriptor {
	return SessionDescriptor{Target: instanceID}
}

// SessionBrokerClient is the slice of the SSM API this package consumes.
// *ssm.SSM satisfies it.
type SessionBrokerClient interface {
	StartSession(*ssm.StartSessionInput) (*ssm.StartSessionOutput, error)
}

// StartSessionInput converts the descriptor into the broker's request shape.
func (d SessionDescriptor) StartSessionInput() *ssm.StartSessionInput {
	input := &ssm.StartSessionInput{Target: aws.String(d.Target)}
	if d.DocumentName != "" {
		input.DocumentName = aws.String(d.DocumentName)
	}
	if len(d.Parameters) > 0 {
		params := make(map[string][]*string, len(d.Parameters))
		for name, values := range d.Parameters {
			params[name] = aws.StringSlice(values)
		}
		input.Parameters = params
	}
	return input
}
