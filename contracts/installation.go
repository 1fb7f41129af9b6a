package contracts

import (
	"context"
	"fmt"
	"path"
)

// SourceLocator identifies a hosted repository archive export.
type SourceLocator struct {
	Owner      string
	Repository string
	Ref        string
}

func (this SourceLocator) Validate() error {
	if this.Owner == "" {
		return fmt.Errorf("source owner is required")
	}
	if this.Repository == "" {
		return fmt.Errorf("source repository is required")
	}
	if this.Ref == "" {
		return fmt.Errorf("source ref is required")
	}
	return nil
}

func (this SourceLocator) ArchivePath() string {
	return path.Join("/", this.Owner, this.Repository, "zip", this.Ref)
}

func (this SourceLocator) Title() string {
	return fmt.Sprintf("[%s/%s @ %s]", this.Owner, this.Repository, this.Ref)
}

// InstallRequest is immutable once submitted to the orchestrator.
type InstallRequest struct {
	TargetDirectory  string
	Source           SourceLocator
	OverwriteAllowed bool
}

type InstallResult struct {
	InstalledPath string
	Err           error
}

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseFetching
	PhaseExtracting
	PhaseValidating
	PhaseCommitting
	PhaseSucceeded
	PhaseFailed
	PhaseRolledBack
)

func (this Phase) String() string {
	switch this {
	case PhaseIdle:
		return "idle"
	case PhaseFetching:
		return "fetching"
	case PhaseExtracting:
		return "extracting"
	case PhaseValidating:
		return "validating"
	case PhaseCommitting:
		return "committing"
	case PhaseSucceeded:
		return "succeeded"
	case PhaseFailed:
		return "failed"
	case PhaseRolledBack:
		return "rolled back"
	default:
		return "unknown"
	}
}

// UnknownTotal marks a transfer whose total size was not declared.
const UnknownTotal int64 = -1

// InstallationState is owned exclusively by one in-flight install call.
type InstallationState struct {
	Phase           Phase
	BytesDownloaded int64
	BytesTotal      int64
	BackupPath      string
	Err             error
}

// ProgressFunc receives phase transitions and per-chunk download counts.
// For a given phase, BytesDownloaded values are strictly increasing, and
// no call ever follows delivery of the terminal result.
type ProgressFunc func(phase Phase, bytesDownloaded, bytesTotal int64)

// TransferProgress is invoked by a fetcher after each chunk.
type TransferProgress func(bytesDownloaded, bytesTotal int64)

type ArchiveFetcher interface {
	// Fetch streams the archive identified by locator into the
	// destination file and returns the MD5 digest of the bytes written.
	// Partial destination files are removed before any error returns.
	Fetch(ctx context.Context, locator SourceLocator, destination string, onProgress TransferProgress) (digest []byte, err error)
}

type ArchiveExtractor interface {
	// ExtractSubtree unpacks the entries of archivePath that fall under
	// subtreeMarker (after the export prefix is stripped) into stagingDir.
	ExtractSubtree(ctx context.Context, archivePath, subtreeMarker, stagingDir string) error
}

type StructureValidator interface {
	Validate(stagedSubtreeRoot string, requiredRelativePaths []string) ValidationReport
}

type ValidationReport struct {
	OK           bool
	MissingPaths []string
}

type Environment interface {
	LookupEnv(key string) (value string, set bool)
	LookupDefault(key, fallback string) string
}
