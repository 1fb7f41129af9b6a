package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/smartystreets/logging"

	"bitbucket.org/smartystreets/emplace/contracts"
)

// InstallOrchestrator sequences fetch, extract, validate, and commit.
// It is the only component that mutates the final target directory, and
// it only does so after validation passes on a fully staged copy.
type InstallOrchestrator struct {
	logger    *logging.Logger
	guard     *PathGuard
	fetcher   contracts.ArchiveFetcher
	extractor contracts.ArchiveExtractor
	validator contracts.StructureValidator
	marker    string
	required  []string
	locks     *targetLocks
	rename    func(oldPath, newPath string) error
}

func NewInstallOrchestrator(
	guard *PathGuard,
	fetcher contracts.ArchiveFetcher,
	extractor contracts.ArchiveExtractor,
	validator contracts.StructureValidator,
	subtreeMarker string,
	requiredRelativePaths []string,
) *InstallOrchestrator {
	return &InstallOrchestrator{
		guard:     guard,
		fetcher:   fetcher,
		extractor: extractor,
		validator: validator,
		marker:    subtreeMarker,
		required:  requiredRelativePaths,
		locks:     newTargetLocks(),
		rename:    os.Rename,
	}
}

// InstallAsync runs Install off the calling goroutine and delivers the
// terminal result on the returned channel. Progress callbacks are never
// delivered after the result.
func (this *InstallOrchestrator) InstallAsync(ctx context.Context, request contracts.InstallRequest, onProgress contracts.ProgressFunc) <-chan contracts.InstallResult {
	results := make(chan contracts.InstallResult, 1)
	go func() {
		installed, err := this.Install(ctx, request, onProgress)
		results <- contracts.InstallResult{InstalledPath: installed, Err: err}
		close(results)
	}()
	return results
}

func (this *InstallOrchestrator) Install(ctx context.Context, request contracts.InstallRequest, onProgress contracts.ProgressFunc) (string, error) {
	if onProgress == nil {
		onProgress = func(contracts.Phase, int64, int64) {}
	}
	target := filepath.Clean(request.TargetDirectory)
	lock := this.locks.obtain(target)
	lock.Lock()
	defer lock.Unlock()

	state := &contracts.InstallationState{Phase: contracts.PhaseIdle, BytesTotal: contracts.UnknownTotal}

	if err := this.guard.SafeTarget(target); err != nil {
		return "", this.fail(state, err)
	}
	finalPath := filepath.Join(target, this.marker)
	if pathExists(finalPath) && !request.OverwriteAllowed {
		return "", this.fail(state, fmt.Errorf("%w: %q already exists", contracts.ErrAlreadyInstalled, finalPath))
	}
	if err := cancelled(ctx); err != nil {
		return "", this.fail(state, err)
	}

	staging, err := this.allocateStaging(target)
	if err != nil {
		return "", this.fail(state, err)
	}
	defer this.discard(staging)

	stagedSubtree, err := this.stageAndValidate(ctx, state, request, staging, onProgress)
	if err != nil {
		return "", this.fail(state, err)
	}

	this.advance(state, contracts.PhaseCommitting, onProgress)
	if err := this.commit(state, stagedSubtree, target, finalPath); err != nil {
		state.Err = err
		return "", err
	}

	this.advance(state, contracts.PhaseSucceeded, onProgress)
	return finalPath, nil
}

// stageAndValidate runs the three working phases that only ever touch
// the staging area.
func (this *InstallOrchestrator) stageAndValidate(
	ctx context.Context,
	state *contracts.InstallationState,
	request contracts.InstallRequest,
	staging string,
	onProgress contracts.ProgressFunc,
) (string, error) {
	this.advance(state, contracts.PhaseFetching, onProgress)
	archivePath := filepath.Join(staging, "archive.zip")
	digest, err := this.fetcher.Fetch(ctx, request.Source, archivePath, func(downloaded, total int64) {
		state.BytesDownloaded, state.BytesTotal = downloaded, total
		onProgress(contracts.PhaseFetching, downloaded, total)
	})
	if err != nil {
		return "", err
	}
	this.logger.Printf("downloaded archive %s (md5 %x)", request.Source.Title(), digest)

	if err := cancelled(ctx); err != nil {
		return "", err
	}
	this.advance(state, contracts.PhaseExtracting, onProgress)
	contentDir := filepath.Join(staging, "content")
	if err := os.Mkdir(contentDir, 0755); err != nil {
		return "", fmt.Errorf("could not prepare extraction directory: %w", err)
	}
	if err := this.extractor.ExtractSubtree(ctx, archivePath, this.marker, contentDir); err != nil {
		return "", err
	}

	if err := cancelled(ctx); err != nil {
		return "", err
	}
	this.advance(state, contracts.PhaseValidating, onProgress)
	stagedSubtree := filepath.Join(contentDir, this.marker)
	report := this.validator.Validate(stagedSubtree, this.required)
	if !report.OK {
		return "", &contracts.MissingPathsError{Missing: report.MissingPaths}
	}
	return stagedSubtree, nil
}

// commit replaces (or creates) the target subtree with the validated
// staged content. A prior installation is first moved aside to a backup
// sibling (same parent, so the move is cheap and atomic); if the final
// move then fails, the backup is restored.
func (this *InstallOrchestrator) commit(state *contracts.InstallationState, stagedSubtree, target, finalPath string) error {
	if pathExists(finalPath) {
		backup := finalPath + ".backup-" + uuid.NewString()
		if err := this.rename(finalPath, backup); err != nil {
			// Nothing has moved; the original installation is intact.
			state.Phase = contracts.PhaseFailed
			return &contracts.CommitError{RolledBack: true, Cause: err}
		}
		state.BackupPath = backup
	}

	if err := os.MkdirAll(target, 0755); err != nil {
		return this.rollback(state, finalPath, err)
	}
	if err := this.rename(stagedSubtree, finalPath); err != nil {
		return this.rollback(state, finalPath, err)
	}

	if state.BackupPath != "" {
		if err := os.RemoveAll(state.BackupPath); err != nil {
			this.logger.Printf("[WARN] could not remove backup %q: %s", state.BackupPath, err)
		}
	}
	return nil
}

func (this *InstallOrchestrator) rollback(state *contracts.InstallationState, finalPath string, cause error) error {
	state.Phase = contracts.PhaseFailed
	if state.BackupPath == "" {
		_ = os.RemoveAll(finalPath)
		return &contracts.CommitError{RolledBack: false, Cause: cause}
	}
	if err := os.RemoveAll(finalPath); err != nil {
		this.logger.Printf("[WARN] could not clear partial install at %q: %s", finalPath, err)
	}
	if err := this.rename(state.BackupPath, finalPath); err != nil {
		this.logger.Printf("[WARN] could not restore backup %q: %s", state.BackupPath, err)
		return &contracts.CommitError{RolledBack: false, Cause: cause}
	}
	state.Phase = contracts.PhaseRolledBack
	return &contracts.CommitError{RolledBack: true, Cause: cause}
}

// allocateStaging creates a unique, per-invocation staging directory on
// the same filesystem as the target, so the commit move stays cheap.
func (this *InstallOrchestrator) allocateStaging(target string) (string, error) {
	ancestor, _, err := nearestExistingAncestor(target)
	if err != nil {
		return "", fmt.Errorf("could not allocate staging area: %w", err)
	}
	staging := filepath.Join(ancestor, ".emplace-stage-"+uuid.NewString())
	if err := os.Mkdir(staging, 0700); err != nil {
		return "", fmt.Errorf("could not allocate staging area: %w", err)
	}
	return staging, nil
}

func (this *InstallOrchestrator) discard(staging string) {
	if err := os.RemoveAll(staging); err != nil {
		this.logger.Printf("[WARN] could not remove staging area %q: %s", staging, err)
	}
}

func (this *InstallOrchestrator) advance(state *contracts.InstallationState, phase contracts.Phase, onProgress contracts.ProgressFunc) {
	state.Phase = phase
	onProgress(phase, state.BytesDownloaded, state.BytesTotal)
}

func (this *InstallOrchestrator) fail(state *contracts.InstallationState, err error) error {
	state.Phase = contracts.PhaseFailed
	state.Err = err
	return err
}

func cancelled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %s", contracts.ErrCancelled, err)
	}
	return nil
}

func pathExists(path string) bool {
	_, err := os.Lstat(path)
	return !errors.Is(err, os.ErrNotExist)
}
