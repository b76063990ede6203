package gate

import (
	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
)

// unwindStack is the guaranteed-release list for nested scoped resources.
// Releases run in reverse acquisition order, each exactly once, on every
// exit path of the owning scope.
type unwindStack struct {
	releases []func()
}

func (s *unwindStack) push(release func()) {
	s.releases = append(s.releases, release)
}

func (s *unwindStack) unwind() {
	for i := len(s.releases) - 1; i >= 0; i-- {
		s.releases[i]()
	}
	s.releases = nil
}

// Clients are the external collaborators, injected so tests can fake the
// brokers. SessionEndpoint is the broker URL the plugin reconnects to.
type Clients struct {
	TrustBroker     TrustBrokerClient
	SessionBroker   SessionBrokerClient
	SessionEndpoint string
}

// SessionRequest is one fully resolved SSH session attempt: the instance is
// already an id + availability zone, clients are already authenticated.
type SessionRequest struct {
	InstanceID       string
	AvailabilityZone string
	OSUser           string
	Port             int
	Region           string
	Profile          string

	KeyAlgorithm KeyAlgorithm
	KeySize      int
	KeyPath      string
	AgentMode    bool

	Debug      bool
	PluginPath string
	Command    []string
}

type Orchestrator struct {
	Clients Clients
	Runner  ProcessRunner
	Logger  *log.Logger
}

func (o *Orchestrator) runner() ProcessRunner {
	if o.Runner == nil {
		return ExecRunner{}
	}
	return o.Runner
}

func (o *Orchestrator) logger() *log.Logger {
	if o.Logger == nil {
		return log.Default()
	}
	return o.Logger
}

// Run opens the session: key material, trust grant, broker channel, then the
// local ssh client attached to the operator's terminal. The ssh exit code is
// the result; orchestration failures abort and unwind whatever was already
// acquired, in reverse order, before the error reaches the caller.
func (o *Orchestrator) Run(req SessionRequest) (int, error) {
	if req.KeyAlgorithm == "" {
		req.KeyAlgorithm = DefaultKeyAlgorithm
	}
	if req.KeySize == 0 {
		req.KeySize = DefaultKeySize
	}
	if req.OSUser == "" {
		req.OSUser = DefaultOSUser
	}
	if req.Port == 0 {
		req.Port = DefaultSSHPort
	}
	if req.KeyPath == "" {
		req.KeyPath = KeyPath(GateDir(), req.InstanceID, req.Region, req.Profile)
	}

	unwind := &unwindStack{}
	defer unwind.unwind()

	key, err := NewKey(req.KeyAlgorithm, req.KeySize, req.KeyPath, req.AgentMode)
	if err != nil {
		return 0, err
	}
	unwind.push(func() {
		if err := key.Dispose(); err != nil {
			o.logger().Error("disposing session key", "error", err)
		}
	})

	grant, err := InstallTrustGrant(o.Clients.TrustBroker, req.InstanceID, req.AvailabilityZone, req.OSUser, key.PublicKey())
	if err != nil {
		return 0, err
	}
	unwind.push(func() { grant.Release(o.logger()) })

	descriptor := DescribeSSHSession(req.InstanceID, req.Port)
	startResp, err := o.Clients.SessionBroker.StartSession(descriptor.StartSessionInput())
	if err != nil {
		return 0, errors.Wrap(err, "starting broker session")
	}

	argv, err := BuildSSHInvocation(InvocationOptions{
		User:         req.OSUser,
		Port:         req.Port,
		IdentityPath: req.KeyPath,
		AgentMode:    req.AgentMode,
		Debug:        req.Debug,
		Region:       req.Region,
		Profile:      req.Profile,
		Endpoint:     o.Clients.SessionEndpoint,
		PluginPath:   req.PluginPath,
		Command:      req.Command,
	}, descriptor, startResp)
	if err != nil {
		return 0, err
	}

	o.logger().Info("opening SSH session",
		"instance", req.InstanceID, "region", req.Region, "profile", req.Profile,
		"user", req.OSUser, "fingerprint", key.Keypair.Fingerprint())

	// A racing first attempt can be rejected before the grant propagates to
	// the instance; ssh then exits 255 like any auth failure. That exit code
	// is surfaced as-is rather than retried.
	return o.runner().Run(argv)
}
