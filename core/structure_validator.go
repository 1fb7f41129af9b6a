package core

import (
	"os"
	"path/filepath"
	"sort"

	"bitbucket.org/smartystreets/emplace/contracts"
)

// DefaultRequiredPaths is the structural skeleton every installed
// template must provide, relative to the staged subtree root.
var DefaultRequiredPaths = []string{
	"settings.json",
	"commands",
	"agents",
}

// FileStructureValidator confirms that a fixed set of relative paths
// exists under a staged subtree. Existence only, never content.
type FileStructureValidator struct{}

func NewFileStructureValidator() *FileStructureValidator {
	return &FileStructureValidator{}
}

// Validate collects every missing required path rather than failing
// fast, so one report is enough to act on.
func (this *FileStructureValidator) Validate(stagedSubtreeRoot string, requiredRelativePaths []string) contracts.ValidationReport {
	var missing []string
	for _, required := range requiredRelativePaths {
		fullPath := filepath.Join(stagedSubtreeRoot, filepath.FromSlash(required))
		if _, err := os.Stat(fullPath); err != nil {
			missing = append(missing, required)
		}
	}
	sort.Strings(missing)
	return contracts.ValidationReport{OK: len(missing) == 0, MissingPaths: missing}
}
