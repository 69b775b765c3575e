// Copyright 2026 The imagerelay authors.
// SPDX-License-Identifier: Apache-2.0

package imagerelay

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// optionValues holds coerced option parameters. A nil field was not given.
type optionValues struct {
	Width    *float64 `query:"width" validate:"omitnil,integer,min=1,max=10000"`
	Height   *float64 `query:"height" validate:"omitnil,integer,min=1,max=10000"`
	Size     *float64 `query:"size" validate:"omitnil,integer,min=1,max=10000"`
	Quality  *float64 `query:"quality" validate:"omitnil,integer,min=1,max=100"`
	Rounded  *float64 `query:"rounded" validate:"omitnil,integer,min=0,max=100"`
	Format   *string  `query:"format" validate:"omitnil,oneof=jpeg png webp"`
	Optimize *bool    `query:"optimize"`
}

// options converts valid values to Options. Size wins over width and height.
func (v optionValues) options() Options {
	var opt Options
	if v.Width != nil {
		opt.Width = int(*v.Width)
	}
	if v.Height != nil {
		opt.Height = int(*v.Height)
	}
	if v.Size != nil {
		opt.Width = int(*v.Size)
		opt.Height = int(*v.Size)
	}
	if v.Quality != nil {
		opt.Quality = int(*v.Quality)
	}
	if v.Rounded != nil {
		opt.Rounded = int(*v.Rounded)
	}
	if v.Format != nil {
		opt.Format = *v.Format
	}
	if v.Optimize != nil {
		opt.Optimize = *v.Optimize
	}
	return opt
}

var optionValidator = newOptionValidator()

func newOptionValidator() *validator.Validate {
	validate := validator.New()

	// report fields by their query parameter name
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return fld.Tag.Get("query")
	})

	validate.RegisterValidation("integer", func(fl validator.FieldLevel) bool {
		f := fl.Field()
		switch f.Kind() {
		case reflect.Float32, reflect.Float64:
			return f.Float() == math.Trunc(f.Float())
		}
		return true
	})
	return validate
}

// validateOptions returns one FieldError per invalid field of v.
func validateOptions(v optionValues) []FieldError {
	err := optionValidator.Struct(v)
	if err == nil {
		return nil
	}
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return []FieldError{{Field: "options", Message: err.Error()}}
	}

	fields := make([]FieldError, 0, len(errs))
	for _, fe := range errs {
		fields = append(fields, FieldError{Field: fe.Field(), Message: validationMessage(fe)})
	}
	return fields
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "integer":
		return fmt.Sprintf("must be an integer, got %v", fe.Value())
	case "min":
		return fmt.Sprintf("must be at least %s, got %v", fe.Param(), fe.Value())
	case "max":
		return fmt.Sprintf("must be at most %s, got %v", fe.Param(), fe.Value())
	case "oneof":
		return fmt.Sprintf("must be one of %s, got %q", strings.Join(outputFormats, ", "), fe.Value())
	}
	return fmt.Sprintf("failed %s validation", fe.Tag())
}
