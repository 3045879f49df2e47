// Package fetch downloads images referenced by a snapshot.
package fetch

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/go-logr/logr"
)

// maxAssetSize bounds a single download. Platform images are far below this.
const maxAssetSize = 32 << 20

// Fetcher retrieves binary assets. A failed fetch yields nil, never an error.
type Fetcher struct {
	client *http.Client
	log    logr.Logger
}

// New returns a Fetcher using the given timeout per request.
func New(timeout time.Duration, log logr.Logger) *Fetcher {
	return &Fetcher{
		client: &http.Client{Timeout: timeout},
		log:    log.WithName("fetch"),
	}
}

// Fetch GETs the URL and returns the body, or nil on any transport error or
// non-200 status.
func (f *Fetcher) Fetch(ctx context.Context, url string) []byte {
	if url == "" {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		f.log.V(1).Info("invalid asset url", "url", url, "error", err.Error())
		return nil
	}
	resp, err := f.client.Do(req)
	if err != nil {
		f.log.V(1).Info("asset download failed", "url", url, "error", err.Error())
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		f.log.V(1).Info("asset not available", "url", url, "status", resp.Status)
		return nil
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAssetSize))
	if err != nil {
		f.log.V(1).Info("asset download interrupted", "url", url, "error", err.Error())
		return nil
	}
	if len(data) == 0 {
		f.log.V(1).Info("asset is empty", "url", url)
		return nil
	}
	return data
}
