package shell

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/smartystreets/logging"

	"bitbucket.org/smartystreets/emplace/contracts"
)

// EntryGuard validates one raw archive-entry path against the staging
// directory and returns the normalized absolute path to write to.
type EntryGuard func(stagingDir, rawEntry string) (string, error)

// ZipSubtreeExtractor unpacks the subtree of a repository archive
// export identified by a marker directory. Exports carry a single
// top-level prefix directory, which is stripped before matching.
// Every matching entry must pass the guard before anything is written;
// one rejected entry fails the whole extraction.
type ZipSubtreeExtractor struct {
	logger *logging.Logger
	guard  EntryGuard
}

func NewZipSubtreeExtractor(guard EntryGuard) *ZipSubtreeExtractor {
	return &ZipSubtreeExtractor{guard: guard}
}

func (this *ZipSubtreeExtractor) ExtractSubtree(ctx context.Context, archivePath, subtreeMarker, stagingDir string) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("%w: %s", contracts.ErrCorruptArchive, err)
	}
	defer func() { _ = reader.Close() }()

	for _, entry := range reader.File {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %s", contracts.ErrCancelled, err)
		}
		relative, matched := matchSubtree(entry.Name, subtreeMarker)
		if !matched {
			continue
		}
		normalized, err := this.guard(stagingDir, relative)
		if err != nil {
			return err
		}
		if err := this.extractEntry(entry, normalized); err != nil {
			return err
		}
	}
	return nil
}

// matchSubtree strips the export prefix (the first path segment) and
// reports whether the remainder falls under the subtree marker. Entries
// outside the subtree are skipped, never errors.
func matchSubtree(rawEntry, subtreeMarker string) (relative string, matched bool) {
	normalized := strings.ReplaceAll(rawEntry, `\`, "/")
	_, remainder, found := strings.Cut(normalized, "/")
	if !found || remainder == "" {
		return "", false // the export prefix directory itself
	}
	trimmed := strings.TrimSuffix(remainder, "/")
	if trimmed == subtreeMarker || strings.HasPrefix(trimmed, subtreeMarker+"/") {
		return remainder, true
	}
	return "", false
}

func (this *ZipSubtreeExtractor) extractEntry(entry *zip.File, normalized string) error {
	if isDirectoryEntry(entry) {
		if err := os.MkdirAll(normalized, 0755); err != nil {
			return fmt.Errorf("could not create directory: %w", err)
		}
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(normalized), 0755); err != nil {
		return fmt.Errorf("could not create parent directory: %w", err)
	}

	source, err := entry.Open()
	if err != nil {
		return fmt.Errorf("%w: %s", contracts.ErrCorruptArchive, err)
	}
	defer func() { _ = source.Close() }()

	destination, err := os.OpenFile(normalized, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("could not create file: %w", err)
	}
	if _, err := io.Copy(destination, source); err != nil {
		_ = destination.Close()
		return fmt.Errorf("%w: %s", contracts.ErrCorruptArchive, err)
	}
	if err := destination.Close(); err != nil {
		return fmt.Errorf("could not finalize file: %w", err)
	}

	this.preservePermissions(entry, normalized)
	return nil
}

// preservePermissions is best-effort; failure is logged, never fatal.
func (this *ZipSubtreeExtractor) preservePermissions(entry *zip.File, normalized string) {
	mode := entry.Mode().Perm()
	if mode == 0 {
		return
	}
	if err := os.Chmod(normalized, mode); err != nil {
		this.logger.Printf("[WARN] could not preserve permissions on %q: %s", normalized, err)
	}
}

func isDirectoryEntry(entry *zip.File) bool {
	return entry.FileInfo().IsDir() ||
		strings.HasSuffix(entry.Name, "/") ||
		strings.HasSuffix(entry.Name, `\`)
}
