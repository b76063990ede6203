package gate

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"golang.org/x/crypto/ssh"
)

type KeyAlgorithm string

const (
	KeyAlgorithmRSA     KeyAlgorithm = "rsa"
	KeyAlgorithmEd25519 KeyAlgorithm = "ed25519"
)

const (
	DefaultKeyAlgorithm = KeyAlgorithmRSA
	DefaultKeySize      = 2048
)

// Keypair holds one freshly generated keypair. The private half only ever
// exists here, at the derived key path, or in the operator's ssh-agent.
type Keypair struct {
	Algorithm  KeyAlgorithm
	PrivatePEM []byte
	PublicKey  []byte

	// raw crypto key, kept for agent placement
	raw interface{}
}

func (kp *Keypair) Fingerprint() string {
	return publicKeyFingerprint(kp.PublicKey)
}

func publicKeyFingerprint(authorizedKey []byte) string {
	pub, _, _, _, err := ssh.ParseAuthorizedKey(authorizedKey)
	if err != nil {
		return ""
	}
	return ssh.FingerprintSHA256(pub)
}

func GenerateKeypair(algorithm KeyAlgorithm, bits int) (*Keypair, error) {
	switch algorithm {
	case KeyAlgorithmRSA:
		return generateRsaKeypair(bits)
	case KeyAlgorithmEd25519:
		return generateEd25519Keypair()
	default:
		return nil, &KeyGenerationError{Err: errors.Errorf("unsupported key algorithm %q", algorithm)}
	}
}

func generateRsaKeypair(bits int) (*Keypair, error) {
	if bits != 2048 && bits != 4096 {
		return nil, &KeyGenerationError{Err: errors.Errorf("unsupported rsa key size %d", bits)}
	}

	privateKey, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, &KeyGenerationError{Err: errors.Wrap(err, "generating privkey")}
	}

	privateKeyPem := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(privateKey),
	})

	pub, err := ssh.NewPublicKey(&privateKey.PublicKey)
	if err != nil {
		return nil, &KeyGenerationError{Err: errors.Wrap(err, "deriving pubkey from privkey")}
	}

	return &Keypair{
		Algorithm:  KeyAlgorithmRSA,
		PrivatePEM: privateKeyPem,
		PublicKey:  ssh.MarshalAuthorizedKey(pub),
		raw:        privateKey,
	}, nil
}

func generateEd25519Keypair() (*Keypair, error) {
	pubKey, privateKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, &KeyGenerationError{Err: errors.Wrap(err, "generating privkey")}
	}

	der, err := x509.MarshalPKCS8PrivateKey(privateKey)
	if err != nil {
		return nil, &KeyGenerationError{Err: errors.Wrap(err, "encoding privkey")}
	}
	privateKeyPem := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})

	pub, err := ssh.NewPublicKey(pubKey)
	if err != nil {
		return nil, &KeyGenerationError{Err: errors.Wrap(err, "deriving pubkey from privkey")}
	}

	return &Keypair{
		Algorithm:  KeyAlgorithmEd25519,
		PrivatePEM: privateKeyPem,
		PublicKey:  ssh.MarshalAuthorizedKey(pub),
		raw:        privateKey,
	}, nil
}

// Key is the scoped handle to one session's key material. Dispose must be
// called on every exit path of the owning scope and is idempotent.
type Key struct {
	Keypair *Keypair
	Path    string

	agent    *agentKey
	disposed bool
}

// NewKey generates a keypair and places it. In disk mode the private key is
// written with owner-only permissions before the public half exists anywhere;
// in agent mode nothing touches the filesystem and the key lives in the
// operator's ssh-agent with a lifetime matching the trust grant TTL.
func NewKey(algorithm KeyAlgorithm, bits int, path string, agentMode bool) (*Key, error) {
	keypair, err := GenerateKeypair(algorithm, bits)
	if err != nil {
		return nil, err
	}

	key := &Key{Keypair: keypair, Path: path}

	if agentMode {
		ak, err := addToAgent(keypair, path)
		if err != nil {
			return nil, &KeyGenerationError{Err: err}
		}
		key.agent = ak
		return key, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, &KeyGenerationError{Err: errors.Wrap(err, "creating key directory")}
	}
	if err := os.WriteFile(path, keypair.PrivatePEM, 0600); err != nil {
		return nil, &KeyGenerationError{Err: errors.Wrap(err, "writing private key")}
	}
	if err := os.WriteFile(path+".pub", keypair.PublicKey, 0644); err != nil {
		os.Remove(path)
		return nil, &KeyGenerationError{Err: errors.Wrap(err, "writing public key")}
	}

	return key, nil
}

func (k *Key) PublicKey() []byte {
	return k.Keypair.PublicKey
}

// Dispose removes the key material. Safe to call more than once; an
// already-removed key is not an error.
func (k *Key) Dispose() error {
	if k.disposed {
		return nil
	}
	k.disposed = true

	if k.agent != nil {
		return k.agent.remove()
	}

	if err := os.Remove(k.Path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "removing private key")
	}
	if err := os.Remove(k.Path + ".pub"); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "removing public key")
	}
	return nil
}

// KeyPath derives the on-disk location for a session's key. The name is a
// pure function of (instance, region, profile) so overlapping sessions to
// the same target share a path while different targets never collide.
func KeyPath(gateDir, instanceID, region, profile string) string {
	return filepath.Join(gateDir, fmt.Sprintf("%s.%s.%s", instanceID, region, profile))
}

func GateDir() string {
	home, _ := homedir.Dir()
	gateDir := filepath.Join(home, ".aws-gate")
	os.MkdirAll(gateDir, 0700)
	return gateDir
}
