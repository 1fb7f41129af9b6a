package core

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"bitbucket.org/smartystreets/emplace/contracts"
)

// PathGuard decides whether filesystem locations are safe to write to.
// Its methods perform read-only queries only; ambiguity is resolved by
// rejecting rather than by best-effort normalization.
type PathGuard struct {
	denylist []DeniedPath
}

func NewPathGuard() *PathGuard {
	return &PathGuard{denylist: SystemDenylist(runtime.GOOS)}
}

func NewPathGuardWithDenylist(denylist []DeniedPath) *PathGuard {
	return &PathGuard{denylist: denylist}
}

// SafeTarget rejects targets that are relative, that resolve (after
// following symbolic links) into a denylisted system directory, or whose
// nearest existing ancestor the process cannot write to.
func (this *PathGuard) SafeTarget(target string) error {
	if !filepath.IsAbs(target) {
		return fmt.Errorf("%w: %q is not an absolute path", contracts.ErrUnsafeTarget, target)
	}

	ancestor, remainder, err := nearestExistingAncestor(filepath.Clean(target))
	if err != nil {
		return fmt.Errorf("%w: %q: %s", contracts.ErrUnsafeTarget, target, err)
	}
	resolvedAncestor, err := filepath.EvalSymlinks(ancestor)
	if err != nil {
		return fmt.Errorf("%w: %q: %s", contracts.ErrUnsafeTarget, target, err)
	}
	resolved := filepath.Join(resolvedAncestor, remainder)

	for _, denied := range this.denylist {
		if denied.Matches(resolved) {
			return fmt.Errorf("%w: %q resolves into system directory %q",
				contracts.ErrUnsafeTarget, target, denied.Prefix)
		}
	}

	info, err := os.Stat(resolvedAncestor)
	if err != nil {
		return fmt.Errorf("%w: %q: %s", contracts.ErrUnsafeTarget, target, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: ancestor %q of %q is not a directory",
			contracts.ErrUnsafeTarget, resolvedAncestor, target)
	}
	if err := writable(resolvedAncestor); err != nil {
		return fmt.Errorf("%w: no write access to %q: %s",
			contracts.ErrUnsafeTarget, resolvedAncestor, err)
	}
	return nil
}

// Matches reports whether candidate equals or lies beneath the denied
// prefix. The candidate must already be absolute and cleaned.
func (this DeniedPath) Matches(candidate string) bool {
	normalized := filepath.ToSlash(candidate)
	if this.AnyDrive {
		normalized = stripDriveLetter(normalized)
	}
	prefix := this.Prefix
	if this.FoldCase {
		normalized = strings.ToLower(normalized)
		prefix = strings.ToLower(prefix)
	}
	if normalized == prefix {
		return true
	}
	return strings.HasPrefix(normalized, prefix+"/")
}

func stripDriveLetter(slashed string) string {
	if len(slashed) >= 2 && slashed[1] == ':' && isDriveLetter(slashed[0]) {
		return slashed[2:]
	}
	return slashed
}

func isDriveLetter(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

func nearestExistingAncestor(cleaned string) (ancestor, remainder string, err error) {
	ancestor = cleaned
	for {
		_, statErr := os.Lstat(ancestor)
		if statErr == nil {
			return ancestor, remainder, nil
		}
		if !os.IsNotExist(statErr) {
			return "", "", statErr
		}
		parent := filepath.Dir(ancestor)
		if parent == ancestor {
			return "", "", fmt.Errorf("no existing ancestor for %q", cleaned)
		}
		remainder = filepath.Join(filepath.Base(ancestor), remainder)
		ancestor = parent
	}
}

// SafeEntryPath normalizes a raw archive-entry path against the staging
// directory and rejects anything that is absolute, contains bytes or
// characters disallowed on a supported platform, or escapes the staging
// directory after `.`/`..` resolution. Both `/` and `\` are treated as
// separators regardless of host platform, because archives may be
// crafted anywhere. The returned path is absolute, inside stagingDir.
func SafeEntryPath(stagingDir, rawEntry string) (string, error) {
	if rawEntry == "" {
		return "", fmt.Errorf("%w: empty entry name", contracts.ErrUnsafeEntryName)
	}
	if strings.ContainsRune(rawEntry, 0) {
		return "", fmt.Errorf("%w: entry contains NUL byte", contracts.ErrUnsafeEntryName)
	}

	normalized := strings.ReplaceAll(rawEntry, `\`, "/")
	if strings.HasPrefix(normalized, "/") || hasDrivePrefix(normalized) {
		return "", fmt.Errorf("%w: absolute entry %q", contracts.ErrUnsafeEntryName, rawEntry)
	}

	var depth int
	var segments []string
	for _, segment := range strings.Split(normalized, "/") {
		switch segment {
		case "", ".":
			continue
		case "..":
			depth--
			if depth < 0 {
				return "", fmt.Errorf("%w: entry %q escapes the staging directory",
					contracts.ErrPathTraversal, rawEntry)
			}
			segments = segments[:len(segments)-1]
		default:
			if err := checkSegment(segment); err != nil {
				return "", fmt.Errorf("%w: entry %q: %s", contracts.ErrUnsafeEntryName, rawEntry, err)
			}
			depth++
			segments = append(segments, segment)
		}
	}
	if len(segments) == 0 {
		return "", fmt.Errorf("%w: entry %q resolves to the staging directory itself",
			contracts.ErrPathTraversal, rawEntry)
	}

	joined := filepath.Join(stagingDir, filepath.Join(segments...))
	relative, err := filepath.Rel(stagingDir, joined)
	if err != nil || relative == ".." || strings.HasPrefix(relative, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: entry %q escapes the staging directory",
			contracts.ErrPathTraversal, rawEntry)
	}
	return joined, nil
}

func hasDrivePrefix(normalized string) bool {
	return len(normalized) >= 2 && normalized[1] == ':' && isDriveLetter(normalized[0])
}

func checkSegment(segment string) error {
	for _, c := range segment {
		if c < 0x20 || strings.ContainsRune(`<>:"|?*`, c) {
			return fmt.Errorf("disallowed character %q", c)
		}
	}
	if strings.HasSuffix(segment, ".") || strings.HasSuffix(segment, " ") {
		return fmt.Errorf("segment %q has trailing dot or space", segment)
	}
	return nil
}
