package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"

	"bitbucket.org/smartystreets/emplace/contracts"
	"bitbucket.org/smartystreets/emplace/core"
	"bitbucket.org/smartystreets/emplace/shell"
)

type Config struct {
	Target        string
	Source        contracts.SourceLocator
	Overwrite     bool
	MaxRetry      int
	MaxSizeMB     int64
	Timeout       time.Duration
	Address       string
	ProfilePath   string
	SubtreeMarker string
	RequiredPaths []string
	Denylist      []core.DeniedPath
}

func parseConfig(name string, args []string) (config Config, err error) {
	var environment contracts.Environment = shell.NewEnvironment()

	flags := flag.NewFlagSet(name, flag.ContinueOnError)
	flags.StringVar(&config.Target,
		"target",
		"",
		"Absolute path of the directory to install into. "+
			"Defaults to the last successfully used target, then the working directory.",
	)
	flags.StringVar(&config.Source.Owner,
		"owner",
		environment.LookupDefault("EMPLACE_OWNER", ""),
		"Owner of the source repository.",
	)
	flags.StringVar(&config.Source.Repository,
		"repo",
		environment.LookupDefault("EMPLACE_REPO", ""),
		"Name of the source repository.",
	)
	flags.StringVar(&config.Source.Ref,
		"ref",
		environment.LookupDefault("EMPLACE_REF", "main"),
		"Branch, tag, or commit of the source repository archive export.",
	)
	flags.BoolVar(&config.Overwrite,
		"overwrite",
		false,
		"When set, replace an existing installation (the prior content is backed up until the install succeeds).",
	)
	flags.IntVar(&config.MaxRetry,
		"max-retry",
		5,
		"How many times to retry failed downloads. Only network failures are ever retried.",
	)
	flags.Int64Var(&config.MaxSizeMB,
		"max-size",
		64,
		"Largest archive download accepted, in megabytes.",
	)
	flags.DurationVar(&config.Timeout,
		"timeout",
		5*time.Minute,
		"Cumulative time allowed for the archive download.",
	)
	flags.StringVar(&config.Address,
		"address",
		environment.LookupDefault("EMPLACE_ADDRESS", shell.DefaultArchiveAddress),
		"Base address of the archive export endpoint. Must be https.",
	)
	flags.StringVar(&config.ProfilePath,
		"profile",
		environment.LookupDefault("EMPLACE_PROFILE", ""),
		"Path to an optional yaml install profile (subtree marker, required paths, extra denied paths).",
	)
	flags.Usage = func() {
		output := flags.Output()
		_, _ = fmt.Fprintf(output, "Usage of %s:\n", name)
		flags.PrintDefaults()
		_, _ = fmt.Fprintln(output, `
exit code 0: success
exit code 1: general failure (see stderr for details)
exit code 2: target already contains an installation (use -overwrite)`)
	}

	err = flags.Parse(args)
	if err != nil {
		return Config{}, err
	}

	config.applyDefaults()
	err = config.applyProfile()
	if err != nil {
		return Config{}, err
	}
	return config, config.validate()
}

func (this *Config) applyDefaults() {
	this.SubtreeMarker = ".claude"
	this.RequiredPaths = core.DefaultRequiredPaths
	this.Denylist = core.SystemDenylist(runtime.GOOS)
	if this.Target == "" {
		this.Target = loadPreferences().LastTargetDirectory
	}
	if this.Target == "" {
		this.Target, _ = os.Getwd()
	}
}

// installProfile is the optional yaml sidecar describing what a
// complete installation looks like.
type installProfile struct {
	Subtree       string   `yaml:"subtree"`
	RequiredPaths []string `yaml:"required_paths"`
	Denylist      []struct {
		Prefix   string `yaml:"prefix"`
		FoldCase bool   `yaml:"fold_case"`
		AnyDrive bool   `yaml:"any_drive"`
	} `yaml:"denylist"`
}

func (this *Config) applyProfile() error {
	if this.ProfilePath == "" {
		return nil
	}
	raw, err := os.ReadFile(this.ProfilePath)
	if err != nil {
		return fmt.Errorf("could not read install profile: %w", err)
	}
	var profile installProfile
	if err := yaml.Unmarshal(raw, &profile); err != nil {
		return fmt.Errorf("could not parse install profile: %w", err)
	}
	if profile.Subtree != "" {
		this.SubtreeMarker = profile.Subtree
	}
	if len(profile.RequiredPaths) > 0 {
		this.RequiredPaths = profile.RequiredPaths
	}
	for _, denied := range profile.Denylist {
		this.Denylist = append(this.Denylist, core.DeniedPath{
			Prefix:   denied.Prefix,
			FoldCase: denied.FoldCase,
			AnyDrive: denied.AnyDrive,
		})
	}
	return nil
}

func (this *Config) validate() error {
	if err := this.Source.Validate(); err != nil {
		return err
	}
	if this.Target == "" {
		return errors.New("target directory is required")
	}
	if this.MaxRetry < 0 {
		return errors.New("max-retry must not be negative")
	}
	if this.MaxSizeMB <= 0 {
		return errors.New("max-size must be positive")
	}
	return nil
}
