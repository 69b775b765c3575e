// Copyright 2026 The imagerelay authors.
// SPDX-License-Identifier: Apache-2.0

package imagerelay

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// URLError reports a malformed URL error.
type URLError struct {
	Message string
	URL     string
}

func (e URLError) Error() string {
	return fmt.Sprintf("malformed URL %q: %s", e.URL, e.Message)
}

// ValidURL reports whether s is an absolute http or https URL with a host.
// Relative and scheme-less URLs are never resolved against a default host.
func ValidURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.Hostname() != ""
}

// Request is an image request: a source image and the transformations to
// apply to it.
type Request struct {
	URL     *url.URL // canonical URL of the image to proxy
	Options Options  // Image transformation to perform

	// Provided lists the option parameters present in the query, sorted.
	// Options can be empty even when parameters were given, as with
	// rounded=0.
	Provided []string
}

func (r Request) String() string {
	return r.URL.String() + "#" + r.Options.String()
}

// OriginKey is the cache key of the untransformed source image.
func (r Request) OriginKey() string {
	return r.URL.String()
}

// ResultKey is the cache key of the transformed image.
func (r Request) ResultKey() string {
	return r.OriginKey() + "#" + r.Options.String()
}

// ParseRequest builds a Request from a raw source URL and the proxy's query
// parameters. Options are parsed before the URL is checked, so a request
// with both bad options and a bad URL reports a *ValidationError.
func ParseRequest(rawURL string, query url.Values) (*Request, error) {
	opt, err := ParseOptions(query)
	if err != nil {
		return nil, err
	}

	if !ValidURL(rawURL) {
		return nil, newError(ErrInvalidURL, URLError{"must be an absolute http or https URL", rawURL}, "Invalid URL")
	}

	u, err := canonicalURL(rawURL)
	if err != nil {
		return nil, newError(ErrInvalidURL, URLError{err.Error(), rawURL}, "Invalid URL")
	}
	return &Request{URL: u, Options: opt, Provided: providedOptions(query)}, nil
}

func providedOptions(q url.Values) []string {
	var keys []string
	for _, k := range optionKeys {
		if _, ok := q[k]; ok {
			keys = append(keys, k)
		}
	}
	return keys
}

// NewRequest parses an http.Request into an image request.
//
// The remote URL is the request path with its leading slash removed and
// percent-escapes decoded. Query parameters of the request that are not
// proxy options become part of the remote URL.
func NewRequest(r *http.Request) (*Request, error) {
	rawURL, query, err := requestTarget(r)
	if err != nil {
		return nil, err
	}
	return ParseRequest(rawURL, query)
}

// requestTarget splits r into the raw remote URL and the query parameters.
func requestTarget(r *http.Request) (string, url.Values, error) {
	path := strings.TrimPrefix(r.URL.EscapedPath(), "/")
	rawURL, err := url.PathUnescape(path)
	if err != nil {
		return "", nil, newError(ErrInvalidURL, URLError{fmt.Sprintf("unable to unescape remote URL: %v", err), path}, "Invalid URL")
	}

	// query string is always part of the remote URL
	if r.URL.RawQuery != "" {
		sep := "?"
		if strings.Contains(rawURL, "?") {
			sep = "&"
		}
		rawURL += sep + r.URL.RawQuery
	}
	return rawURL, r.URL.Query(), nil
}

// canonicalURL returns the canonical form of the absolute URL s: lower case
// scheme and host, no fragment, and a sorted query without any proxy option
// parameters.
func canonicalURL(s string) (*url.URL, error) {
	u, err := url.Parse(s)
	if err != nil {
		return nil, err
	}

	c := &url.URL{
		Scheme:  strings.ToLower(u.Scheme),
		User:    u.User,
		Host:    strings.ToLower(u.Host),
		Path:    u.Path,
		RawPath: u.RawPath,
	}
	if c.Path == "" {
		c.Path = "/"
	}

	q := u.Query()
	for _, k := range optionKeys {
		q.Del(k)
	}
	c.RawQuery = q.Encode()
	return c, nil
}
