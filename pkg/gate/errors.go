package gate

import (
	"fmt"
	"strings"
)

// KeyGenerationError covers local keypair failures: unsupported
// algorithm/size combinations, crypto failures and unwritable key paths.
// It always precedes any remote call.
type KeyGenerationError struct {
	Err error
}

func (e *KeyGenerationError) Error() string {
	return fmt.Sprintf("generating ephemeral key: %s", e.Err)
}

func (e *KeyGenerationError) Unwrap() error { return e.Err }

// TrustInstallError wraps a trust-broker rejection of a public key upload.
// No partial trust is assumed on failure.
type TrustInstallError struct {
	InstanceID string
	Err        error
}

func (e *TrustInstallError) Error() string {
	return fmt.Sprintf("installing trust grant on %s: %s", e.InstanceID, e.Err)
}

func (e *TrustInstallError) Unwrap() error { return e.Err }

// InstanceResolutionError means no (or no unambiguous) instance matched the
// operator-supplied identifier. It is a precondition failure and surfaces
// unchanged.
type InstanceResolutionError struct {
	Identifier string
	// Matches holds the candidate instance ids when the identifier was
	// ambiguous rather than absent.
	Matches []string
}

func (e *InstanceResolutionError) Error() string {
	if len(e.Matches) > 1 {
		return fmt.Sprintf("identifier %s is ambiguous, matches: %s", e.Identifier, strings.Join(e.Matches, ", "))
	}
	return fmt.Sprintf("no instance could be found for: %s", e.Identifier)
}

// ProcessLaunchError means the local ssh client (or the session plugin)
// could not be started at all, as opposed to starting and exiting non-zero.
type ProcessLaunchError struct {
	Path string
	Err  error
}

func (e *ProcessLaunchError) Error() string {
	return fmt.Sprintf("launching %s: %s", e.Path, e.Err)
}

func (e *ProcessLaunchError) Unwrap() error { return e.Err }
