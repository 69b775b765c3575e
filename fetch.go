// Copyright 2026 The imagerelay authors.
// SPDX-License-Identifier: Apache-2.0

package imagerelay

import (
	"context"
	"fmt"
	"io"
	"math"
	"mime"
	"net/http"
	"net/url"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
)

// fetch retrieves the remote image at u.
func (p *Proxy) fetch(ctx context.Context, u *url.URL) (b []byte, err error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout())
	defer cancel()

	if p.Limiter != nil {
		if err := p.Limiter.Wait(ctx); err != nil {
			return nil, newError(ErrFetch, err, "Failed to fetch image")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, newError(ErrInternal, err, "Failed to create request")
	}
	if p.UserAgent != "" {
		req.Header.Set("User-Agent", p.UserAgent)
	}

	if p.Verbose {
		p.logf("fetching remote URL: %v", u)
	}
	remoteImageFetches.Inc()
	defer func() {
		if err != nil {
			remoteImageFetchErrors.Inc()
		}
	}()

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, newError(ErrFetch, err, "Failed to fetch image")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newError(ErrFetch, nil, "Failed to fetch image: remote URL returned status %s", resp.Status)
	}

	if p.allowedContentType(resp.Header.Get("Content-Type")) == "" {
		return nil, newError(ErrFetch, nil, "Invalid image: content type %q not allowed", resp.Header.Get("Content-Type"))
	}

	limit := p.maxSize()
	if resp.ContentLength > limit {
		return nil, tooLarge(resp.ContentLength, limit)
	}

	b, err = io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, newError(ErrInternal, err, "Failed to read image")
	}
	if int64(len(b)) > limit {
		return nil, tooLarge(-1, limit)
	}

	if mt := mimetype.Detect(b); p.allowedContentType(mt.String()) == "" {
		return nil, newError(ErrFetch, nil, "Invalid image: content detected as %s", mt.String())
	}

	p.logf("fetched %v (%s)", u, formatBytes(int64(len(b))))
	return b, nil
}

func tooLarge(size, limit int64) *Error {
	if size < 0 {
		return newError(ErrTooLarge, nil, "Image exceeds the maximum size of %s", formatBytes(limit))
	}
	return newError(ErrTooLarge, nil, "Image of %s exceeds the maximum size of %s", formatBytes(size), formatBytes(limit))
}

// allowedContentType returns the media type of contentType if it is allowed
// by p.ContentTypes, or the empty string otherwise.
func (p *Proxy) allowedContentType(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}

	patterns := p.ContentTypes
	if len(patterns) == 0 {
		patterns = []string{"image/*"}
	}
	if contentTypeMatches(patterns, mediaType) {
		return mediaType
	}
	return ""
}

// contentTypeMatches returns whether contentType matches one of the allowed
// patterns.
func contentTypeMatches(patterns []string, contentType string) bool {
	for _, pattern := range patterns {
		if ok, err := filepath.Match(pattern, contentType); ok && err == nil {
			return true
		}
	}
	return false
}

var byteUnits = []string{"B", "KB", "MB", "GB", "TB"}

// formatBytes formats n as a human readable size, such as "1.50 KB".
func formatBytes(n int64) string {
	if n <= 0 {
		return "0 B"
	}
	i := min(int(math.Floor(math.Log(float64(n))/math.Log(1024))), len(byteUnits)-1)
	return fmt.Sprintf("%.2f %s", float64(n)/math.Pow(1024, float64(i)), byteUnits[i])
}
