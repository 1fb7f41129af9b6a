package shell

import (
	"context"
	"crypto/md5"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"bitbucket.org/smartystreets/emplace/contracts"
	"bitbucket.org/smartystreets/emplace/core"
)

const DefaultArchiveAddress = "https://codeload.github.com"

const fetchChunkSize = 32 * 1024

// HTTPArchiveFetcher streams a repository archive export over HTTPS
// into a local file. The size cap is enforced against the running byte
// total during streaming; the declared content length is only a hint
// forwarded to the progress callback. Certificate verification is
// whatever the injected client does by default; it is never disabled
// here.
type HTTPArchiveFetcher struct {
	client  *http.Client
	address string
	maxSize int64
	timeout time.Duration
}

func NewHTTPArchiveFetcher(client *http.Client, address string, maxSize int64, timeout time.Duration) *HTTPArchiveFetcher {
	return &HTTPArchiveFetcher{client: client, address: address, maxSize: maxSize, timeout: timeout}
}

func (this *HTTPArchiveFetcher) Fetch(ctx context.Context, locator contracts.SourceLocator, destination string, onProgress contracts.TransferProgress) ([]byte, error) {
	if onProgress == nil {
		onProgress = func(int64, int64) {}
	}
	resolved, err := this.resolve(locator)
	if err != nil {
		return nil, err
	}
	parent := ctx
	if this.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, this.timeout)
		defer cancel()
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, resolved.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", contracts.ErrNetworkFailure, err)
	}
	response, err := this.client.Do(request)
	if err != nil {
		if ctx.Err() != nil {
			return nil, interrupted(parent, err)
		}
		return nil, fmt.Errorf("%w: %s", contracts.ErrNetworkFailure, err)
	}
	defer func() { _ = response.Body.Close() }()
	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: non 200 status code: %s", contracts.ErrNetworkFailure, response.Status)
	}

	return this.stream(parent, ctx, response, destination, onProgress)
}

// resolve turns the locator into a single HTTPS URL. Plaintext base
// addresses are rejected before any connection is attempted.
func (this *HTTPArchiveFetcher) resolve(locator contracts.SourceLocator) (*url.URL, error) {
	if err := locator.Validate(); err != nil {
		return nil, err
	}
	address := this.address
	if address == "" {
		address = DefaultArchiveAddress
	}
	resolved, err := url.Parse(address)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", contracts.ErrNetworkFailure, err)
	}
	if resolved.Scheme != "https" {
		return nil, fmt.Errorf("%w: refusing %q scheme for %s",
			contracts.ErrInsecureTransport, resolved.Scheme, locator.Title())
	}
	resolved.Path = locator.ArchivePath()
	return resolved, nil
}

// interrupted distinguishes caller cancellation from expiry of the
// fetcher's own deadline; only the former counts as cancellation, a
// timed-out download is a network failure like any other.
func interrupted(parent context.Context, cause error) error {
	if parent.Err() != nil {
		return fmt.Errorf("%w: %s", contracts.ErrCancelled, cause)
	}
	return fmt.Errorf("%w: download timed out: %s", contracts.ErrNetworkFailure, cause)
}

func (this *HTTPArchiveFetcher) stream(parent, ctx context.Context, response *http.Response, destination string, onProgress contracts.TransferProgress) ([]byte, error) {
	file, err := os.Create(destination)
	if err != nil {
		return nil, fmt.Errorf("could not create destination file: %w", err)
	}

	hasher := md5.New()
	source := core.NewDigestReader(response.Body, hasher)
	buffer := make([]byte, fetchChunkSize)
	var written int64

	for {
		if ctx.Err() != nil {
			return nil, this.abort(file, interrupted(parent, ctx.Err()))
		}
		count, readErr := source.Read(buffer)
		if count > 0 {
			written += int64(count)
			if written > this.maxSize {
				return nil, this.abort(file, fmt.Errorf("%w: exceeded %d bytes",
					contracts.ErrDownloadTooLarge, this.maxSize))
			}
			if _, writeErr := file.Write(buffer[:count]); writeErr != nil {
				return nil, this.abort(file, fmt.Errorf("could not write archive: %w", writeErr))
			}
			onProgress(written, response.ContentLength)
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			if ctx.Err() != nil {
				return nil, this.abort(file, interrupted(parent, readErr))
			}
			return nil, this.abort(file, fmt.Errorf("%w: %s", contracts.ErrNetworkFailure, readErr))
		}
	}

	if err := file.Close(); err != nil {
		_ = os.Remove(destination)
		return nil, fmt.Errorf("could not finalize archive file: %w", err)
	}
	return hasher.Sum(nil), nil
}

// abort removes the partial download before surfacing the error.
func (this *HTTPArchiveFetcher) abort(file *os.File, err error) error {
	name := file.Name()
	_ = file.Close()
	_ = os.Remove(name)
	return err
}
