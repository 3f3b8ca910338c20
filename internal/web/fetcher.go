package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
)

const (
	RequestTimeout  = 8 * time.Second
	MaxResponseSize = 2 << 20 // 2MB
)

// StatusError is returned for any non-2xx upstream response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string { return fmt.Sprintf("upstream status %d", e.Code) }

type Options struct {
	// Timeout bounds each request. Default is RequestTimeout.
	Timeout time.Duration
	// UserAgent pins the user agent and takes precedence over UserAgents.
	UserAgent string
	// UserAgents is the rotation pool. Empty uses DefaultUserAgents.
	UserAgents []string
	// Parallelism caps concurrent requests per host. Default is 8.
	Parallelism int
	// MaxBodySize caps the response body. Default is MaxResponseSize.
	MaxBodySize int
}

// Fetcher performs JSON GETs through a colly collector. Each call runs on a
// clone of the base collector so concurrent fetches never share callbacks;
// the HTTP backend and its limits are shared.
type Fetcher struct {
	base   *colly.Collector
	agents *agentPool
}

func NewFetcher(opts Options) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = RequestTimeout
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = 8
	}
	if opts.MaxBodySize <= 0 {
		opts.MaxBodySize = MaxResponseSize
	}
	c := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.Async(false),
		colly.MaxBodySize(opts.MaxBodySize),
		colly.ParseHTTPErrorResponse(),
	)
	_ = c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: opts.Parallelism,
	})
	c.SetRequestTimeout(opts.Timeout)
	agents := newAgentPool(opts.UserAgents, 0.2)
	if opts.UserAgent != "" {
		agents = newAgentPool([]string{opts.UserAgent}, 0)
	}
	return &Fetcher{base: c, agents: agents}
}

// Get fetches rawURL and returns the body of a 2xx response. header entries
// override the defaults.
func (f *Fetcher) Get(ctx context.Context, rawURL string, header http.Header) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return nil, errors.New("url must start with http:// or https://")
	}

	c := f.base.Clone()
	c.Context = ctx

	var body []byte
	status := 0
	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = append([]byte(nil), r.Body...)
	})

	hdr := http.Header{}
	hdr.Set("User-Agent", f.agents.pick())
	hdr.Set("Accept", "application/json, text/plain;q=0.8, */*;q=0.5")
	hdr.Set("Accept-Language", "en-US,en;q=0.9")
	for k, vs := range header {
		hdr[http.CanonicalHeaderKey(k)] = append([]string(nil), vs...)
	}

	if err := c.Request(http.MethodGet, rawURL, nil, nil, hdr); err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if status < 200 || status >= 300 {
		return nil, &StatusError{Code: status}
	}
	return body, nil
}
