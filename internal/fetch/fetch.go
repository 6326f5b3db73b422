package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	fetchTimeout = 30 * time.Second
	// maxBodySize caps how much of a feed we are willing to read.
	maxBodySize = 10 << 20

	userAgent = "feedkeep/1.0 (+feed reader)"
)

// Status classifies the outcome of one conditional GET.
type Status int

const (
	StatusSuccess Status = iota
	StatusNotModified
	StatusAuthRequired
	StatusFailure
)

type Request struct {
	URL          string
	ETag         string
	LastModified string
	AuthHeader   string
}

type Result struct {
	Status       Status
	Body         []byte
	ETag         string
	LastModified string
	Err          error
}

// Fetcher performs one conditional GET per feed.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) Result
}

// HTTPFetcher fetches over HTTP with cache validators and per-host
// politeness: at most two requests per second to the same host.
type HTTPFetcher struct {
	client *http.Client

	mu    sync.Mutex
	hosts map[string]*rate.Limiter
}

// New builds an HTTPFetcher. A nil client gets a default with the standard
// fetch timeout; tests inject their own.
func New(client *http.Client) *HTTPFetcher {
	if client == nil {
		client = &http.Client{Timeout: fetchTimeout}
	}
	return &HTTPFetcher{
		client: client,
		hosts:  make(map[string]*rate.Limiter),
	}
}

func (f *HTTPFetcher) limiterFor(host string) *rate.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	limiter, ok := f.hosts[host]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(500*time.Millisecond), 1)
		f.hosts[host] = limiter
	}
	return limiter
}

func failure(err error) Result {
	return Result{Status: StatusFailure, Err: err}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, fetchReq Request) Result {
	if host := extractHost(fetchReq.URL); host != "" {
		if err := f.limiterFor(host).Wait(ctx); err != nil {
			return failure(err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchReq.URL, nil)
	if err != nil {
		return failure(err)
	}
	req.Header.Set("User-Agent", userAgent)

	if fetchReq.ETag != "" {
		req.Header.Set("If-None-Match", fetchReq.ETag)
	}
	if fetchReq.LastModified != "" {
		req.Header.Set("If-Modified-Since", fetchReq.LastModified)
	}
	if fetchReq.AuthHeader != "" {
		req.Header.Set("Authorization", fetchReq.AuthHeader)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return failure(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		return Result{Status: StatusNotModified}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return Result{Status: StatusAuthRequired, Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
	case resp.StatusCode >= http.StatusBadRequest:
		return failure(fmt.Errorf("HTTP %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
	if err != nil {
		return failure(err)
	}
	if len(body) > maxBodySize {
		return failure(fmt.Errorf("response exceeds %d bytes", maxBodySize))
	}

	return Result{
		Status:       StatusSuccess,
		Body:         body,
		ETag:         strings.TrimSpace(resp.Header.Get("ETag")),
		LastModified: strings.TrimSpace(resp.Header.Get("Last-Modified")),
	}
}

func extractHost(raw string) string {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	return parsed.Hostname()
}
