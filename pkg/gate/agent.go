package gate

import (
	"net"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

// agentKey is the agent-resident placement of a session key. The agent entry
// carries the same lifetime as the trust grant so a crashed session leaves
// nothing durable behind on this side either.
type agentKey struct {
	conn net.Conn
	ag   agent.ExtendedAgent
	pub  ssh.PublicKey
}

func addToAgent(keypair *Keypair, comment string) (*agentKey, error) {
	sock := os.Getenv("SSH_AUTH_SOCK")
	if sock == "" {
		return nil, errors.New("agent mode requires a running ssh-agent (SSH_AUTH_SOCK is unset)")
	}

	conn, err := net.Dial("unix", sock)
	if err != nil {
		return nil, errors.Wrap(err, "connecting to ssh-agent")
	}

	ag := agent.NewClient(conn)
	err = ag.Add(agent.AddedKey{
		PrivateKey:   keypair.raw,
		Comment:      comment,
		LifetimeSecs: TrustGrantTTLSeconds,
	})
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "adding key to ssh-agent")
	}

	pub, _, _, _, err := ssh.ParseAuthorizedKey(keypair.PublicKey)
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "parsing own public key")
	}

	return &agentKey{conn: conn, ag: ag, pub: pub}, nil
}

func (a *agentKey) remove() error {
	defer a.conn.Close()
	if err := a.ag.Remove(a.pub); err != nil {
		return errors.Wrap(err, "removing key from ssh-agent")
	}
	return nil
}
