// Copyright 2026 The imagerelay authors.
// SPDX-License-Identifier: Apache-2.0

package imagerelay

import (
	"bytes"
	"fmt"
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// Option query parameter names.
const (
	optWidth    = "width"
	optHeight   = "height"
	optSize     = "size"
	optQuality  = "quality"
	optFormat   = "format"
	optRounded  = "rounded"
	optOptimize = "optimize"
)

// optionKeys lists every query parameter consumed by the proxy.
var optionKeys = []string{optFormat, optHeight, optOptimize, optQuality, optRounded, optSize, optWidth}

// Supported output formats.
var outputFormats = []string{"jpeg", "png", "webp"}

// Options specifies transformations that can be performed on a
// requested image.
type Options struct {
	Width  int // requested width, in pixels
	Height int // requested height, in pixels

	// Quality of the encoded output, 1 to 100. Zero means the default.
	Quality int

	// Format of the encoded output. Empty means the source format.
	Format string

	// Rounded is the corner radius as a percentage of half the shorter side.
	Rounded int

	// Optimize re-encodes the image, as webp unless Format is set.
	Optimize bool
}

var emptyOptions = Options{}

// String returns a canonical serialization of o. Two option sets that
// describe the same transformation always serialize identically.
func (o Options) String() string {
	var opts []string
	if o.Format != "" {
		opts = append(opts, o.Format)
	}
	if o.Optimize {
		opts = append(opts, "opt")
	}
	if o.Quality != 0 {
		opts = append(opts, fmt.Sprintf("q%d", o.Quality))
	}
	if o.Rounded != 0 {
		opts = append(opts, fmt.Sprintf("r%d", o.Rounded))
	}
	sort.Strings(opts)

	buf := new(bytes.Buffer)
	fmt.Fprintf(buf, "%dx%d", o.Width, o.Height)
	for _, opt := range opts {
		buf.WriteString(",")
		buf.WriteString(opt)
	}
	return buf.String()
}

// ParseOptions builds Options from raw query parameters.
//
// Each value is first coerced: "true" and "false" (in any case) become
// booleans, anything else that parses as a finite number becomes a number,
// and everything else stays a string. The coerced values are then checked
// against each option's type and bounds. If any option is invalid, the
// returned error is a *ValidationError listing all of them.
//
// Only the first value of a repeated parameter is used and unknown
// parameters are ignored. A size parameter sets both width and height.
func ParseOptions(q url.Values) (Options, error) {
	var in optionValues
	var fields []FieldError

	number := func(key string) *float64 {
		v, present := coerce(q, key)
		if !present {
			return nil
		}
		f, ok := v.(float64)
		if !ok {
			fields = append(fields, FieldError{Field: key, Message: fmt.Sprintf("must be a number, got %q", q.Get(key))})
			return nil
		}
		return &f
	}
	in.Width = number(optWidth)
	in.Height = number(optHeight)
	in.Size = number(optSize)
	in.Quality = number(optQuality)
	in.Rounded = number(optRounded)

	if _, present := coerce(q, optFormat); present {
		s := q.Get(optFormat)
		in.Format = &s
	}
	if v, present := coerce(q, optOptimize); present {
		if b, ok := v.(bool); ok {
			in.Optimize = &b
		} else {
			fields = append(fields, FieldError{Field: optOptimize, Message: fmt.Sprintf("must be a boolean, got %q", q.Get(optOptimize))})
		}
	}

	fields = append(fields, validateOptions(in)...)
	if len(fields) > 0 {
		sort.SliceStable(fields, func(i, j int) bool { return fields[i].Field < fields[j].Field })
		return emptyOptions, &ValidationError{Fields: fields}
	}
	return in.options(), nil
}

// coerce returns the typed value of the first query value for key: a bool,
// a float64, or the raw string.
func coerce(q url.Values, key string) (interface{}, bool) {
	vs, ok := q[key]
	if !ok || len(vs) == 0 {
		return nil, false
	}
	s := vs[0]
	switch strings.ToLower(s) {
	case "true":
		return true, true
	case "false":
		return false, true
	}
	if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return f, true
	}
	return s, true
}
