package gate

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go/service/ssm"
	"github.com/kballard/go-shellquote"
	"github.com/pkg/errors"
)

const (
	DefaultOSUser     = "ec2-user"
	DefaultSSHPort    = 22
	DefaultPluginPath = "session-manager-plugin"
)

// InvocationOptions carries everything the command builder needs besides the
// session itself. Debug is threaded in explicitly rather than read from any
// process-wide state.
type InvocationOptions struct {
	User         string
	Port         int
	IdentityPath string
	AgentMode    bool
	Debug        bool
	Region       string
	Profile      string
	Endpoint     string
	PluginPath   string
	Command      []string
}

// PluginArgs is the session plugin's positional argv, minus the executable
// itself. Order and serialization are fixed by the plugin: start-response
// JSON, region, action, profile, descriptor JSON, endpoint.
func PluginArgs(startResp *ssm.StartSessionOutput, descriptor SessionDescriptor, region, profile, endpoint string) ([]string, error) {
	respJSON, err := json.Marshal(startResp)
	if err != nil {
		return nil, errors.Wrap(err, "encoding session-start response")
	}
	descJSON, err := json.Marshal(descriptor)
	if err != nil {
		return nil, errors.Wrap(err, "encoding session descriptor")
	}

	return []string{
		string(respJSON),
		region,
		BrokerActionStartSession,
		profile,
		string(descJSON),
		endpoint,
	}, nil
}

// BuildSSHInvocation assembles the local ssh client argv. The ProxyCommand
// is joined from individually shell-quoted tokens so instance ids, profile
// names and the JSON payloads survive the one level of shell re-parsing the
// ssh client applies to it.
func BuildSSHInvocation(opts InvocationOptions, descriptor SessionDescriptor, startResp *ssm.StartSessionOutput) ([]string, error) {
	cmd := []string{
		"ssh",
		"-l", opts.User,
		"-p", strconv.Itoa(opts.Port),
		"-F", "/dev/null",
	}

	if opts.Debug {
		cmd = append(cmd, "-vv")
	} else {
		cmd = append(cmd, "-q")
	}

	pluginPath := opts.PluginPath
	if pluginPath == "" {
		pluginPath = DefaultPluginPath
	}
	pluginArgs, err := PluginArgs(startResp, descriptor, opts.Region, opts.Profile, opts.Endpoint)
	if err != nil {
		return nil, err
	}
	proxyCommand := shellquote.Join(append([]string{pluginPath}, pluginArgs...)...)

	identitiesOnly := "yes"
	if opts.AgentMode {
		// exclusivity would hide the agent-resident key from ssh
		identitiesOnly = "no"
	}

	sshOptions := []string{
		fmt.Sprintf("IdentitiesOnly=%s", identitiesOnly),
		fmt.Sprintf("IdentityFile=%s", opts.IdentityPath),
		"UserKnownHostsFile=/dev/null",
		"StrictHostKeyChecking=no",
		fmt.Sprintf("ProxyCommand=%s", proxyCommand),
	}
	for _, option := range sshOptions {
		cmd = append(cmd, "-o", option)
	}

	cmd = append(cmd, descriptor.Target)

	if len(opts.Command) > 0 {
		cmd = append(cmd, "--")
		cmd = append(cmd, opts.Command...)
	}

	return cmd, nil
}
