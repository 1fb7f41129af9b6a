package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/smartystreets/clock"
	"github.com/smartystreets/logging"

	"bitbucket.org/smartystreets/emplace/contracts"
)

// RetryFetcher re-attempts failed downloads on behalf of a caller that
// opts in. Only network failures are retried; security rejections, size
// violations, and cancellation always pass straight through. The
// orchestrator itself never retries. A retried attempt restarts the
// download from zero, so progress reports below the previous attempt's
// high-water mark are suppressed to keep the counts increasing.
type RetryFetcher struct {
	sleeper  *clock.Sleeper
	logger   *logging.Logger
	inner    contracts.ArchiveFetcher
	maxRetry int
}

func NewRetryFetcher(inner contracts.ArchiveFetcher, maxRetry int) *RetryFetcher {
	return &RetryFetcher{inner: inner, maxRetry: maxRetry}
}

func (this *RetryFetcher) Fetch(ctx context.Context, locator contracts.SourceLocator, destination string, onProgress contracts.TransferProgress) (digest []byte, err error) {
	onProgress = monotonic(onProgress)
	for x := 0; x <= this.maxRetry; x++ {
		digest, err = this.inner.Fetch(ctx, locator, destination, onProgress)
		if err == nil {
			return digest, nil
		}
		if !errors.Is(err, contracts.ErrNetworkFailure) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %s", contracts.ErrCancelled, ctx.Err())
		}
		if x < this.maxRetry {
			this.logger.Println("[WARN] download failed, retry imminent.")
			this.sleeper.Sleep(time.Second * 3)
		}
	}
	return nil, err
}

func monotonic(inner contracts.TransferProgress) contracts.TransferProgress {
	if inner == nil {
		return nil
	}
	var highWater int64 = -1
	return func(bytesDownloaded, bytesTotal int64) {
		if bytesDownloaded <= highWater {
			return
		}
		highWater = bytesDownloaded
		inner(bytesDownloaded, bytesTotal)
	}
}
