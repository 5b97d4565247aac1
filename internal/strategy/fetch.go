package strategy

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/truckfixgo/offline-agent/internal/storage"
)

// hopByHopHeaders are dropped when snapshotting a response; they describe the
// connection the response arrived on, not the response itself.
var hopByHopHeaders = map[string]bool{
	"Connection":          true,
	"Keep-Alive":          true,
	"Proxy-Connection":    true,
	"Transfer-Encoding":   true,
	"Upgrade":             true,
	"Te":                  true,
	"Trailer":             true,
	"Proxy-Authenticate":  true,
	"Proxy-Authorization": true,
}

// Fetcher performs upstream calls and snapshots their responses so they can
// be stored and replayed byte-for-byte. The client timeout is the agent's
// only cancellation mechanism for upstream traffic.
type Fetcher struct {
	client *http.Client
}

// NewFetcher returns a Fetcher whose upstream calls are bounded by timeout
// and traced via otelhttp.
func NewFetcher(timeout time.Duration) *Fetcher {
	return &Fetcher{
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Do issues the request and returns a snapshot of the response. A non-2xx
// status is not an error; only transport failures are.
func (f *Fetcher) Do(ctx context.Context, method, targetURL string, header http.Header, body []byte) (*storage.StoredResponse, error) {
	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, targetURL, reader)
	if err != nil {
		return nil, fmt.Errorf("building upstream request: %w", err)
	}
	for k, vals := range header {
		if hopByHopHeaders[http.CanonicalHeaderKey(k)] {
			continue
		}
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s %s: %w", method, targetURL, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading upstream body for %s: %w", targetURL, err)
	}

	headers := make(map[string][]string, len(resp.Header))
	for k, vals := range resp.Header {
		if hopByHopHeaders[http.CanonicalHeaderKey(k)] {
			continue
		}
		headers[k] = append([]string(nil), vals...)
	}

	return &storage.StoredResponse{
		Status:   resp.StatusCode,
		Headers:  headers,
		Body:     respBody,
		StoredAt: time.Now().UTC(),
	}, nil
}

// Delivered reports whether a replayed request was accepted upstream: any
// 2xx or 3xx status counts as confirmed delivery.
func Delivered(status int) bool {
	return status >= 200 && status < 400
}
