package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"

	"bitbucket.org/smartystreets/emplace/contracts"
	"bitbucket.org/smartystreets/emplace/core"
	"bitbucket.org/smartystreets/emplace/shell"
)

type InstallApp struct {
	config       Config
	orchestrator *core.InstallOrchestrator
	progress     *progressPrinter
}

func NewInstallApp(config Config) *InstallApp {
	fetcher := shell.NewHTTPArchiveFetcher(
		NewHTTPClient(), config.Address, config.MaxSizeMB*1024*1024, config.Timeout)
	orchestrator := core.NewInstallOrchestrator(
		core.NewPathGuardWithDenylist(config.Denylist),
		core.NewRetryFetcher(fetcher, config.MaxRetry),
		shell.NewZipSubtreeExtractor(core.SafeEntryPath),
		core.NewFileStructureValidator(),
		config.SubtreeMarker,
		config.RequiredPaths,
	)
	return &InstallApp{
		config:       config,
		orchestrator: orchestrator,
		progress:     newProgressPrinter(os.Stdout),
	}
}

func (this *InstallApp) Run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	request := contracts.InstallRequest{
		TargetDirectory:  this.config.Target,
		Source:           this.config.Source,
		OverwriteAllowed: this.config.Overwrite,
	}

	result := <-this.orchestrator.InstallAsync(ctx, request, this.progress.Report)
	this.progress.Finish()

	if errors.Is(result.Err, contracts.ErrAlreadyInstalled) {
		log.Printf("[WARN] %s", result.Err)
		return 2
	}
	if result.Err != nil {
		log.Printf("[WARN] install of %s failed: %s", this.config.Source.Title(), result.Err)
		return 1
	}

	log.Printf("installed %s at %q", this.config.Source.Title(), result.InstalledPath)
	this.savePreferences()
	return 0
}

func (this *InstallApp) savePreferences() {
	err := savePreferences(preferences{LastTargetDirectory: this.config.Target})
	if err != nil {
		log.Printf("[WARN] could not persist preferences: %s", err)
	}
}
