// Copyright 2026 The imagerelay authors.
// SPDX-License-Identifier: Apache-2.0

package imagerelay

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies an Error.
type Kind int

const (
	ErrInternal Kind = iota
	ErrValidation
	ErrInvalidURL
	ErrNoApplicableOptions
	ErrNoOptions
	ErrFetch
	ErrTooLarge
	ErrProcessing
)

var kindNames = map[Kind]string{
	ErrInternal:            "internal error",
	ErrValidation:          "validation error",
	ErrInvalidURL:          "invalid URL",
	ErrNoApplicableOptions: "no applicable options",
	ErrNoOptions:           "no options provided",
	ErrFetch:               "fetch error",
	ErrTooLarge:            "too large",
	ErrProcessing:          "processing error",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// StatusCode returns the HTTP status code reported to clients for errors of
// kind k.
func (k Kind) StatusCode() int {
	switch k {
	case ErrValidation, ErrInvalidURL, ErrNoApplicableOptions, ErrNoOptions, ErrFetch:
		return http.StatusBadRequest
	case ErrTooLarge:
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusInternalServerError
}

// Error is the error type returned by every stage of request processing.
type Error struct {
	Kind    Kind
	Message string // human readable message, safe to show to clients
	Err     error  // underlying error, if any
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func newError(k Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: k, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the Kind of err. Errors that are not an *Error (or a
// *ValidationError) anywhere in their chain are ErrInternal.
func KindOf(err error) Kind {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ErrValidation
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrInternal
}

// FieldError describes a single invalid option.
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) String() string {
	return e.Field + ": " + e.Message
}

// ValidationError reports every invalid option of a request.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	return "invalid options: " + strings.Join(e.Messages(), "; ")
}

// Messages returns one message per invalid field.
func (e *ValidationError) Messages() []string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.String()
	}
	return msgs
}
