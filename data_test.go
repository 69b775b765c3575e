// Copyright 2026 The imagerelay authors.
// SPDX-License-Identifier: Apache-2.0

package imagerelay

import (
	"errors"
	"net/http"
	"net/url"
	"reflect"
	"testing"
)

func TestValidURL(t *testing.T) {
	tests := []struct {
		url   string
		valid bool
	}{
		{"http://example.com/cat.png", true},
		{"https://example.com/cat.png", true},
		{"HTTPS://EXAMPLE.COM/cat.png", true},
		{"https://example.com", true},
		{"https://example.com:8443/a/b.png?v=1", true},
		{"http://127.0.0.1/x.jpg", true},

		{"", false},
		{"example.com/cat.png", false},
		{"//example.com/cat.png", false},
		{"/cat.png", false},
		{"cat.png", false},
		{"ftp://example.com/cat.png", false},
		{"file:///etc/passwd", false},
		{"data:image/png;base64,AAAA", false},
		{"javascript:alert(1)", false},
		{"http:example.com", false},
		{"http://", false},
		{"http:///cat.png", false},
		{"http://:80/cat.png", false},
		{"http://exa mple.com/", false},
		{"http://[::1", false},
		{"%zz", false},
	}

	for _, tt := range tests {
		if got := ValidURL(tt.url); got != tt.valid {
			t.Errorf("ValidURL(%q) returned %v, want %v", tt.url, got, tt.valid)
		}
	}
}

func TestNewRequest(t *testing.T) {
	tests := []struct {
		URL         string  // input URL to parse as an imagerelay request
		RemoteURL   string  // expected URL of remote image parsed from input
		Options     Options // expected options parsed from input
		ExpectError bool    // whether an error is expected from NewRequest
	}{
		// invalid URLs
		{"http://localhost/", "", emptyOptions, true},
		{"http://localhost/1/", "", emptyOptions, true},
		{"http://localhost//example.com/foo", "", emptyOptions, true},
		{"http://localhost/example.com/foo", "", emptyOptions, true},
		{"http://localhost/ftp://example.com/foo", "", emptyOptions, true},

		// invalid options
		{"http://localhost/http://example.com/foo?width=0", "", emptyOptions, true},
		{"http://localhost/http://example.com/foo?format=gif", "", emptyOptions, true},

		// valid URLs
		{
			"http://localhost/http://example.com/foo",
			"http://example.com/foo", emptyOptions, false,
		},
		{
			"http://localhost/https%3A%2F%2Fexample.com%2Fcat.png?width=100&format=webp",
			"https://example.com/cat.png", Options{Width: 100, Format: "webp"}, false,
		},
		{
			"http://localhost/http://example.com/foo?size=10",
			"http://example.com/foo", Options{Width: 10, Height: 10}, false,
		},
		{
			"http://localhost/HTTP://Example.COM/Foo.png?width=1",
			"http://example.com/Foo.png", Options{Width: 1}, false,
		},
		{
			"http://localhost/http://example.com",
			"http://example.com/", emptyOptions, false,
		},
		// query string of the remote URL is kept, without proxy options
		{
			"http://localhost/http://example.com/foo?b=2&a=1&width=10",
			"http://example.com/foo?a=1&b=2", Options{Width: 10}, false,
		},
		{
			"http://localhost/http:%2F%2Fexample.com%2Ffoo%3Fv%3D1?quality=90",
			"http://example.com/foo?v=1", Options{Quality: 90}, false,
		},
		{
			"http://localhost/http:%2F%2Fexample.com%2Ffoo%3Fwidth%3D5%26v%3D1?quality=90",
			"http://example.com/foo?v=1", Options{Quality: 90}, false,
		},
		// fragment is dropped
		{
			"http://localhost/http:%2F%2Fexample.com%2Ffoo%23bar?width=1",
			"http://example.com/foo", Options{Width: 1}, false,
		},
		// escaped characters in the remote path are preserved
		{
			"http://localhost/http://example.com/foo%2520bar.png?width=1",
			"http://example.com/foo%20bar.png", Options{Width: 1}, false,
		},
	}

	for _, tt := range tests {
		req, err := http.NewRequest("GET", tt.URL, nil)
		if err != nil {
			t.Errorf("http.NewRequest(%q) returned error: %v", tt.URL, err)
			continue
		}

		r, err := NewRequest(req)
		if tt.ExpectError {
			if err == nil {
				t.Errorf("NewRequest(%v) did not return expected error", req)
			}
			continue
		} else if err != nil {
			t.Errorf("NewRequest(%v) return unexpected error: %v", req, err)
			continue
		}

		if got, want := r.URL.String(), tt.RemoteURL; got != want {
			t.Errorf("NewRequest(%q) request URL = %v, want %v", tt.URL, got, want)
		}
		if got, want := r.Options, tt.Options; got != want {
			t.Errorf("NewRequest(%q) request options = %v, want %v", tt.URL, got, want)
		}
	}
}

func TestParseRequest_ErrorKinds(t *testing.T) {
	tests := []struct {
		rawURL string
		query  string
		kind   Kind
	}{
		{"not a url", "width=10", ErrInvalidURL},
		{"ftp://example.com/a.png", "width=10", ErrInvalidURL},
		// options are checked before the URL
		{"not a url", "width=0", ErrValidation},
	}
	for i, tt := range tests {
		q, _ := url.ParseQuery(tt.query)
		_, err := ParseRequest(tt.rawURL, q)
		if got := KindOf(err); got != tt.kind {
			t.Errorf("%d. ParseRequest(%q, %q) returned error kind %v, want %v", i, tt.rawURL, tt.query, got, tt.kind)
		}
		var ue URLError
		if tt.kind == ErrInvalidURL && !errors.As(err, &ue) {
			t.Errorf("%d. ParseRequest(%q, %q) returned %v, want a URLError", i, tt.rawURL, tt.query, err)
		}
	}
}

func TestRequest_Keys(t *testing.T) {
	parse := func(rawURL, query string) *Request {
		t.Helper()
		q, _ := url.ParseQuery(query)
		r, err := ParseRequest(rawURL, q)
		if err != nil {
			t.Fatalf("ParseRequest(%q, %q) returned error: %v", rawURL, query, err)
		}
		return r
	}

	a := parse("https://example.com/cat.png", "width=100&format=webp&quality=50")
	b := parse("https://EXAMPLE.com/cat.png#frag", "quality=50&format=webp&width=100")
	if a.ResultKey() != b.ResultKey() {
		t.Errorf("equivalent requests have result keys %q and %q", a.ResultKey(), b.ResultKey())
	}

	c := parse("https://example.com/cat.png", "size=100")
	d := parse("https://example.com/cat.png", "width=100&height=100")
	if c.ResultKey() != d.ResultKey() {
		t.Errorf("size and equal width and height have result keys %q and %q", c.ResultKey(), d.ResultKey())
	}

	e := parse("https://example.com/cat.png", "width=100&format=png")
	if a.ResultKey() == e.ResultKey() {
		t.Errorf("requests for different formats share result key %q", a.ResultKey())
	}
	if a.OriginKey() != e.OriginKey() {
		t.Errorf("requests for the same image have origin keys %q and %q", a.OriginKey(), e.OriginKey())
	}

	f := parse("https://example.com/cat.png?v=2&u=1", "width=1")
	g := parse("https://example.com/cat.png?u=1&v=2", "width=1")
	if f.OriginKey() != g.OriginKey() {
		t.Errorf("reordered remote queries have origin keys %q and %q", f.OriginKey(), g.OriginKey())
	}

	if got, want := a.ResultKey(), "https://example.com/cat.png#100x0,q50,webp"; got != want {
		t.Errorf("ResultKey returned %q, want %q", got, want)
	}
}

func TestParseRequest_Provided(t *testing.T) {
	tests := []struct {
		query    string
		provided []string
	}{
		{"", nil},
		{"unknown=1", nil},
		{"rounded=0", []string{"rounded"}},
		{"optimize=false", []string{"optimize"}},
		{"width=10&size=5&format=png", []string{"format", "size", "width"}},
	}
	for _, tt := range tests {
		q, _ := url.ParseQuery(tt.query)
		r, err := ParseRequest("http://example.com/a.png", q)
		if err != nil {
			t.Errorf("ParseRequest(%q) returned error: %v", tt.query, err)
			continue
		}
		if !reflect.DeepEqual(r.Provided, tt.provided) {
			t.Errorf("ParseRequest(%q) provided options %v, want %v", tt.query, r.Provided, tt.provided)
		}
	}
}
