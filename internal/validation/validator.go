// Adlink - Ad Platform Connection Lifecycle Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlink

package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/tomtom215/adlink/internal/models"
)

// CodeInvalidRequest is the API error code for a request that fails validation.
const CodeInvalidRequest = "invalid_request"

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// FieldError is a single field that failed validation.
type FieldError struct {
	field   string
	tag     string
	param   string
	message string
}

// Field returns the JSON name of the failing field.
func (e *FieldError) Field() string { return e.field }

// Tag returns the validation tag that failed.
func (e *FieldError) Tag() string { return e.tag }

// Param returns the tag parameter, e.g. "128" for "max=128".
func (e *FieldError) Param() string { return e.param }

func (e *FieldError) Error() string { return e.message }

// RequestError collects every field error of one request.
type RequestError struct {
	errors []FieldError
}

// Errors returns the field errors.
func (re *RequestError) Errors() []FieldError {
	return re.errors
}

func (re *RequestError) Error() string {
	if len(re.errors) == 0 {
		return "validation failed"
	}
	messages := make([]string, 0, len(re.errors))
	for _, err := range re.errors {
		messages = append(messages, err.Error())
	}
	return strings.Join(messages, "; ")
}

// Code returns the API error code.
func (re *RequestError) Code() string {
	return CodeInvalidRequest
}

// GetValidator returns the shared validator instance.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		// Report JSON names so messages match what the client sent.
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return fld.Name
			}
			return name
		})

		// "platform" accepts the canonical platform keys.
		if err := validate.RegisterValidation("platform", func(fl validator.FieldLevel) bool {
			_, err := models.ParsePlatform(fl.Field().String())
			return err == nil
		}); err != nil {
			panic(fmt.Sprintf("register platform validator: %v", err))
		}
	})
	return validate
}

// ValidateStruct validates s. It returns nil or a *RequestError.
func ValidateStruct(s interface{}) *RequestError {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return &RequestError{errors: []FieldError{{
			field:   "unknown",
			tag:     "unknown",
			message: err.Error(),
		}}}
	}

	fieldErrors := make([]FieldError, len(validationErrs))
	for i, fe := range validationErrs {
		fieldErrors[i] = FieldError{
			field:   fe.Field(),
			tag:     fe.Tag(),
			param:   fe.Param(),
			message: translateError(fe),
		}
	}
	return &RequestError{errors: fieldErrors}
}

var errorMessageTemplates = map[string]string{
	"required":   "%s is required",
	"uuid":       "%s must be a valid UUID",
	"uuid4":      "%s must be a valid UUID",
	"platform":   "%s must be one of: google_ads, meta_ads, tiktok_ads",
	"printascii": "%s must contain printable ASCII only",
}

var errorMessageWithParam = map[string]string{
	"oneof": "%s must be one of: %s",
	"min":   "%s must be at least %s characters",
	"max":   "%s must be at most %s characters",
}

func translateError(fe validator.FieldError) string {
	field := fe.Field()
	if template, ok := errorMessageTemplates[fe.Tag()]; ok {
		return fmt.Sprintf(template, field)
	}
	if template, ok := errorMessageWithParam[fe.Tag()]; ok {
		return fmt.Sprintf(template, field, fe.Param())
	}
	return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
}
