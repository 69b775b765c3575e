// Copyright 2026 The imagerelay authors.
// SPDX-License-Identifier: Apache-2.0

// Package imagerelay provides an image transformation proxy. For typical use
// of creating and using a Proxy, see cmd/imagerelay/main.go.
package imagerelay // import "github.com/imagerelay/imagerelay"

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/fcjr/aia-transport-go"
	"github.com/gorilla/mux"
	"github.com/gregjones/httpcache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/imagerelay/imagerelay/cache"
)

const (
	// DefaultTTL is how long cached images live when no backend is given.
	DefaultTTL = time.Hour

	// DefaultMaxSize is the largest remote image, in bytes, that will be
	// fetched.
	DefaultMaxSize = 10 << 20

	// DefaultTimeout bounds a single remote fetch.
	DefaultTimeout = 30 * time.Second
)

// cacheControl is sent with every transformed image. Transformed images for a
// given URL and option set never change.
const cacheControl = "public, max-age=3600, immutable"

// Proxy serves image requests.
//
// Note that a Proxy should not be run behind a http.ServeMux, since the
// ServeMux aggressively cleans URLs and removes the double slash in the
// embedded request URL. Use Handler, or a router with path cleaning disabled.
type Proxy struct {
	Client *http.Client // client used to fetch remote URLs

	// Pipeline holds the available transformations. If nil,
	// DefaultPipeline is used.
	Pipeline Pipeline

	// Origins caches remote images, keyed by their canonical URL.
	Origins *cache.Tier[[]byte]

	// Results caches transformed images, keyed by canonical URL and
	// options.
	Results *cache.Tier[*Result]

	// MaxSize is the largest remote image, in bytes, that will be fetched.
	// If zero, DefaultMaxSize is used.
	MaxSize int64

	// Timeout bounds each remote fetch. If zero, DefaultTimeout is used.
	Timeout time.Duration

	// ContentTypes specifies a list of content types to allow. An empty
	// list means all image types are allowed.
	ContentTypes []string

	// The User-Agent used by imagerelay when requesting origin images.
	UserAgent string

	// Limiter, if set, limits the rate of remote fetches.
	Limiter *rate.Limiter

	// The Logger used by the imagerelay.
	Logger *log.Logger

	// Verbose logs cache outcomes and every remote fetch.
	Verbose bool
}

// NewProxy constructs a new proxy. The provided http RoundTripper will be
// used to fetch remote URLs. If nil is provided, a transport that fetches
// missing intermediate certificates is used.
//
// Remote images are cached in origins and transformed images in results. A
// nil backend caches in memory for DefaultTTL.
func NewProxy(transport http.RoundTripper, origins cache.Backend[[]byte], results cache.Backend[*Result]) *Proxy {
	if transport == nil {
		if t, err := aia.NewTransport(); err == nil {
			transport = t
		} else {
			transport = http.DefaultTransport
		}
	}
	if origins == nil {
		origins = cache.NewMemory[[]byte](0, DefaultTTL)
	}
	if results == nil {
		results = cache.NewMemory[*Result](0, DefaultTTL)
	}

	return &Proxy{
		Client:   &http.Client{Transport: transport},
		Pipeline: DefaultPipeline,
		Origins:  cache.NewTier("origin", origins),
		Results:  cache.NewTier("result", results),
	}
}

// Handler returns an http.Handler serving the usage page at "/", metrics at
// "/metrics" and images at every other path.
func (p *Proxy) Handler() http.Handler {
	r := mux.NewRouter().SkipClean(true).UseEncodedPath()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Path("/").Methods(http.MethodGet, http.MethodHead).HandlerFunc(serveUsage)
	r.Path("/metrics").Methods(http.MethodGet).Handler(promhttp.Handler())
	r.Path("/favicon.ico").Handler(r.NotFoundHandler)
	r.PathPrefix("/").Methods(http.MethodGet, http.MethodHead).Handler(p)
	return r
}

// ServeHTTP handles image requests.
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpRequestsResponseTime)
	defer timer.ObserveDuration()

	rawURL, query, err := requestTarget(r)
	if err != nil {
		p.serveError(w, err)
		return
	}

	req, res, outcome, err := p.process(r.Context(), rawURL, query)
	if err != nil {
		p.serveError(w, err)
		return
	}
	if p.Verbose {
		p.logf("request: %v (%s)", req, outcome)
	}

	h := w.Header()
	if outcome == cache.Hit {
		h.Set(httpcache.XFromCache, "1")
	}
	h.Set("Content-Type", res.ContentType())
	h.Set("Content-Length", strconv.Itoa(len(res.Body)))
	h.Set("Content-Disposition", fmt.Sprintf(`inline; filename="%s.%s"`, filename(req.URL), res.Format))
	h.Set("Cache-Control", cacheControl)
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		w.Write(res.Body)
	}
}

// Process transforms the remote image at rawURL according to the options in
// query. The returned Request describes the canonical form of what was
// processed.
func (p *Proxy) Process(ctx context.Context, rawURL string, query url.Values) (*Request, *Result, error) {
	req, res, _, err := p.process(ctx, rawURL, query)
	return req, res, err
}

func (p *Proxy) process(ctx context.Context, rawURL string, query url.Values) (*Request, *Result, cache.Outcome, error) {
	req, err := ParseRequest(rawURL, query)
	if err != nil {
		return nil, nil, 0, err
	}

	if len(req.Provided) == 0 {
		return req, nil, 0, newError(ErrNoOptions, nil, "No options provided")
	}
	stages := p.pipeline().Applicable(req.Options)
	if len(stages) == 0 {
		return req, nil, 0, newError(ErrNoApplicableOptions, nil, "No processors found for the given options")
	}

	res, outcome, err := p.Results.GetOrLoad(ctx, req.ResultKey(), func(ctx context.Context) (*Result, error) {
		b, err := p.origin(ctx, req)
		if err != nil {
			return nil, err
		}

		start := time.Now()
		res, err := stages.Run(b, req.Options)
		if err != nil {
			return nil, err
		}
		p.logf("transformed %v: %s to %s %s in %v", req, formatBytes(int64(len(b))), formatBytes(int64(len(res.Body))), res.Format, time.Since(start).Round(time.Millisecond))
		return res, nil
	})
	countLookup(p.Results.Name, outcome, err)
	if err != nil {
		return req, nil, outcome, err
	}
	if outcome == cache.Hit {
		requestServedFromCacheCount.Inc()
	}
	return req, res, outcome, nil
}

// origin returns the bytes of the remote image for req, from cache if
// possible.
func (p *Proxy) origin(ctx context.Context, req *Request) ([]byte, error) {
	b, outcome, err := p.Origins.GetOrLoad(ctx, req.OriginKey(), func(ctx context.Context) ([]byte, error) {
		return p.fetch(ctx, req.URL)
	})
	countLookup(p.Origins.Name, outcome, err)
	if err != nil {
		return nil, err
	}
	if p.Verbose {
		p.logf("origin %v (%s)", req.URL, outcome)
	}
	return b, nil
}

// countLookup records a tier lookup. Failed loads and abandoned waits are
// counted as "error".
func countLookup(tier string, outcome cache.Outcome, err error) {
	label := outcome.String()
	if err != nil {
		label = "error"
	}
	cacheLookups.WithLabelValues(tier, label).Inc()
}

func (p *Proxy) pipeline() Pipeline {
	if p.Pipeline == nil {
		return DefaultPipeline
	}
	return p.Pipeline
}

func (p *Proxy) maxSize() int64 {
	if p.MaxSize > 0 {
		return p.MaxSize
	}
	return DefaultMaxSize
}

func (p *Proxy) timeout() time.Duration {
	if p.Timeout > 0 {
		return p.Timeout
	}
	return DefaultTimeout
}

func (p *Proxy) logf(format string, v ...interface{}) {
	if p.Logger != nil {
		p.Logger.Printf(format, v...)
	} else {
		log.Printf(format, v...)
	}
}

// filename returns the name of the file at u without its extension, or
// "image" if u has none. Only printable ASCII other than quotes and
// backslashes is kept, so the name can be sent as a quoted header value.
func filename(u *url.URL) string {
	name := path.Base(u.Path)
	if i := strings.Index(name, "."); i >= 0 {
		name = name[:i]
	}
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r > 0x7e || r == '"' || r == '\\' {
			return -1
		}
		return r
	}, name)
	if name == "" || name == "/" {
		return "image"
	}
	return name
}

// errorResponse is the JSON body of every error response.
type errorResponse struct {
	StatusCode int         `json:"statusCode"`
	Message    interface{} `json:"message"` // string, or []string for invalid options
	Timestamp  string      `json:"timestamp"`
}

// serveError writes err as a JSON error response.
func (p *Proxy) serveError(w http.ResponseWriter, err error) {
	code := KindOf(err).StatusCode()
	if code >= http.StatusInternalServerError {
		p.logf("error: %v", err)
	} else if p.Verbose {
		p.logf("rejected request: %v", err)
	}

	var msg interface{} = "Internal server error"
	var ve *ValidationError
	var e *Error
	switch {
	case errors.As(err, &ve):
		msg = ve.Messages()
	case errors.As(err, &e) && e.Kind != ErrInternal:
		msg = e.Message
	}
	writeError(w, code, msg)
}

func writeError(w http.ResponseWriter, code int, msg interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(errorResponse{
		StatusCode: code,
		Message:    msg,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	})
}
