package shell

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/smartystreets/assertions/should"
	"github.com/smartystreets/gunit"
	"github.com/smartystreets/logging"

	"bitbucket.org/smartystreets/emplace/contracts"
	"bitbucket.org/smartystreets/emplace/core"
)

func TestZipSubtreeExtractorFixture(t *testing.T) {
	gunit.Run(new(ZipSubtreeExtractorFixture), t)
}

type ZipSubtreeExtractorFixture struct {
	*gunit.Fixture
	extractor *ZipSubtreeExtractor
	sandbox   string
	staging   string
}

func (this *ZipSubtreeExtractorFixture) Setup() {
	this.extractor = NewZipSubtreeExtractor(core.SafeEntryPath)
	this.extractor.logger = logging.Capture()
	sandbox, err := os.MkdirTemp("", "extractor-*")
	this.So(err, should.BeNil)
	this.sandbox = sandbox
	this.staging = filepath.Join(sandbox, "staging")
	this.So(os.Mkdir(this.staging, 0755), should.BeNil)
}

func (this *ZipSubtreeExtractorFixture) Teardown() {
	_ = os.RemoveAll(this.sandbox)
}

func (this *ZipSubtreeExtractorFixture) TestExtractsOnlyTheMarkedSubtree() {
	archive := this.buildArchive(map[string]string{
		"templates-main/":                       "",
		"templates-main/README.md":              "readme",
		"templates-main/src/main.go":            "package main",
		"templates-main/.claude/":               "",
		"templates-main/.claude/settings.json":  "{}",
		"templates-main/.claude/commands/":      "",
		"templates-main/.claude/commands/go.md": "# go",
	})

	err := this.extractor.ExtractSubtree(context.Background(), archive, ".claude", this.staging)

	this.So(err, should.BeNil)
	this.So(this.readStaged(".claude/settings.json"), should.Equal, "{}")
	this.So(this.readStaged(".claude/commands/go.md"), should.Equal, "# go")
	this.So(this.stagedExists("README.md"), should.BeFalse)
	this.So(this.stagedExists("src"), should.BeFalse)
	this.So(this.stagedExists("templates-main"), should.BeFalse)
}

func (this *ZipSubtreeExtractorFixture) TestTraversalEntryFailsTheWholeExtraction() {
	archive := this.buildArchive(map[string]string{
		"templates-main/.claude/settings.json":    "{}",
		"templates-main/.claude/../../etc/passwd": "intruder",
	})

	err := this.extractor.ExtractSubtree(context.Background(), archive, ".claude", this.staging)

	this.So(errors.Is(err, contracts.ErrPathTraversal), should.BeTrue)
	this.So(this.findFileNamed("passwd"), should.BeEmpty)
}

func (this *ZipSubtreeExtractorFixture) TestUnsafeEntryNameFailsTheWholeExtraction() {
	archive := this.buildArchive(map[string]string{
		"templates-main/.claude/na|me": "bad",
	})

	err := this.extractor.ExtractSubtree(context.Background(), archive, ".claude", this.staging)

	this.So(errors.Is(err, contracts.ErrUnsafeEntryName), should.BeTrue)
	this.So(this.stagedExists(".claude"), should.BeFalse)
}

func (this *ZipSubtreeExtractorFixture) TestBackslashSeparatedEntriesExtracted() {
	archive := this.buildArchive(map[string]string{
		`templates-main\.claude\settings.json`: "{}",
	})

	err := this.extractor.ExtractSubtree(context.Background(), archive, ".claude", this.staging)

	this.So(err, should.BeNil)
	this.So(this.readStaged(".claude/settings.json"), should.Equal, "{}")
}

func (this *ZipSubtreeExtractorFixture) TestDirectoryEntriesCreatedEvenWhenEmpty() {
	archive := this.buildArchive(map[string]string{
		"templates-main/.claude/":              "",
		"templates-main/.claude/agents/":       "",
		"templates-main/.claude/settings.json": "{}",
	})

	err := this.extractor.ExtractSubtree(context.Background(), archive, ".claude", this.staging)

	this.So(err, should.BeNil)
	info, statErr := os.Stat(filepath.Join(this.staging, ".claude", "agents"))
	this.So(statErr, should.BeNil)
	this.So(info.IsDir(), should.BeTrue)
}

func (this *ZipSubtreeExtractorFixture) TestExecutablePermissionBitsPreserved() {
	archive := this.buildArchiveWithModes(map[string]archiveEntry{
		"templates-main/.claude/hooks/format.sh": {content: "#!/bin/sh", mode: 0755},
	})

	err := this.extractor.ExtractSubtree(context.Background(), archive, ".claude", this.staging)

	this.So(err, should.BeNil)
	info, statErr := os.Stat(filepath.Join(this.staging, ".claude", "hooks", "format.sh"))
	this.So(statErr, should.BeNil)
	this.So(info.Mode().Perm()&0100 != 0, should.BeTrue)
}

func (this *ZipSubtreeExtractorFixture) TestCorruptArchiveReported() {
	corrupt := filepath.Join(this.sandbox, "corrupt.zip")
	this.So(os.WriteFile(corrupt, []byte("this is not a zip archive"), 0644), should.BeNil)

	err := this.extractor.ExtractSubtree(context.Background(), corrupt, ".claude", this.staging)

	this.So(errors.Is(err, contracts.ErrCorruptArchive), should.BeTrue)
}

func (this *ZipSubtreeExtractorFixture) TestCancelledContext() {
	archive := this.buildArchive(map[string]string{
		"templates-main/.claude/settings.json": "{}",
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := this.extractor.ExtractSubtree(ctx, archive, ".claude", this.staging)

	this.So(errors.Is(err, contracts.ErrCancelled), should.BeTrue)
}

///////////////////////////////////////////////////////////////////////////////

type archiveEntry struct {
	content string
	mode    fs.FileMode
}

func (this *ZipSubtreeExtractorFixture) buildArchive(entries map[string]string) string {
	withModes := make(map[string]archiveEntry, len(entries))
	for name, content := range entries {
		withModes[name] = archiveEntry{content: content}
	}
	return this.buildArchiveWithModes(withModes)
}

func (this *ZipSubtreeExtractorFixture) buildArchiveWithModes(entries map[string]archiveEntry) string {
	path := filepath.Join(this.sandbox, "archive.zip")
	file, err := os.Create(path)
	this.So(err, should.BeNil)
	writer := zip.NewWriter(file)
	for name, entry := range entries {
		header := &zip.FileHeader{Name: name, Method: zip.Deflate}
		if entry.mode != 0 {
			header.SetMode(entry.mode)
		}
		target, createErr := writer.CreateHeader(header)
		this.So(createErr, should.BeNil)
		_, writeErr := target.Write([]byte(entry.content))
		this.So(writeErr, should.BeNil)
	}
	this.So(writer.Close(), should.BeNil)
	this.So(file.Close(), should.BeNil)
	return path
}

func (this *ZipSubtreeExtractorFixture) readStaged(relative string) string {
	raw, err := os.ReadFile(filepath.Join(this.staging, filepath.FromSlash(relative)))
	this.So(err, should.BeNil)
	return string(raw)
}

func (this *ZipSubtreeExtractorFixture) stagedExists(relative string) bool {
	_, err := os.Stat(filepath.Join(this.staging, filepath.FromSlash(relative)))
	return err == nil
}

func (this *ZipSubtreeExtractorFixture) findFileNamed(name string) (found []string) {
	_ = filepath.Walk(this.sandbox, func(path string, info os.FileInfo, err error) error {
		if err == nil && info.Name() == name {
			found = append(found, path)
		}
		return nil
	})
	return found
}
