package contracts

import (
	"errors"
	"fmt"
	"strings"
)

// The closed set of terminal failure kinds for a single install call.
// Match with errors.Is. None are retried internally; retry policy
// belongs to the caller.
var (
	ErrInsecureTransport    = errors.New("insecure transport")
	ErrNetworkFailure       = errors.New("network failure")
	ErrDownloadTooLarge     = errors.New("download too large")
	ErrCorruptArchive       = errors.New("corrupt archive")
	ErrPathTraversal        = errors.New("path traversal")
	ErrUnsafeEntryName      = errors.New("unsafe entry name")
	ErrUnsafeTarget         = errors.New("unsafe target")
	ErrAlreadyInstalled     = errors.New("already installed")
	ErrMissingRequiredPaths = errors.New("missing required paths")
	ErrInstallationFailed   = errors.New("installation failed")
	ErrCancelled            = errors.New("cancelled")
)

// IsSecurityRejection reports whether err belongs to the class of
// failures that must never be downgraded, suppressed, or retried.
func IsSecurityRejection(err error) bool {
	return errors.Is(err, ErrPathTraversal) ||
		errors.Is(err, ErrUnsafeEntryName) ||
		errors.Is(err, ErrUnsafeTarget) ||
		errors.Is(err, ErrInsecureTransport)
}

// MissingPathsError carries the complete set of required paths absent
// from the staged subtree, so the caller can present one actionable
// diagnostic instead of forcing iterative fix-and-retry.
type MissingPathsError struct {
	Missing []string
}

func (this *MissingPathsError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMissingRequiredPaths, strings.Join(this.Missing, ", "))
}

func (this *MissingPathsError) Unwrap() error {
	return ErrMissingRequiredPaths
}

// CommitError reports a commit-phase failure and whether the backup
// was restored to the target location.
type CommitError struct {
	RolledBack bool
	Cause      error
}

func (this *CommitError) Error() string {
	if this.RolledBack {
		return fmt.Sprintf("%s: %s (previous installation restored)", ErrInstallationFailed, this.Cause)
	}
	return fmt.Sprintf("%s: %s (previous installation NOT restored)", ErrInstallationFailed, this.Cause)
}

func (this *CommitError) Unwrap() error {
	return ErrInstallationFailed
}
