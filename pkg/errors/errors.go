// Package errors holds the errors returned when a catalog, settings file,
// state file or exported configuration cannot be read.
package errors

import (
	"fmt"
	"strconv"
)

// Location points into a document. Line is zero when the decoder could not
// report one.
type Location struct {
	Path string
	Line int
}

func (l Location) String() string {
	if l.Line > 0 {
		return l.Path + ":" + strconv.Itoa(l.Line)
	}
	return l.Path
}

// ParseError is returned when a document is unreadable or not well formed.
type ParseError struct {
	Location
	Message string
	Err     error
}

// NewParseError wraps err with the document location it came from.
func NewParseError(path string, line int, err error) error {
	parseErr := &ParseError{Location: Location{Path: path, Line: line}, Err: err}
	if err != nil {
		parseErr.Message = err.Error()
	}
	return parseErr
}

func (e *ParseError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("parse error: %s: %s", e.Location, e.Message)
}

func (e *ParseError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ValidationError is returned when a well formed document breaks a rule.
// Field is a dotted path such as "applications[2].sha256" or
// "download.max_attempts".
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

// NewValidationError reports message against field. err is optional.
func NewValidationError(field, message string, err error) error {
	return &ValidationError{Field: field, Message: message, Err: err}
}

func (e *ValidationError) Error() string {
	switch {
	case e == nil:
		return ""
	case e.Field == "":
		return "validation error: " + e.Message
	default:
		return "validation error: " + e.Field + ": " + e.Message
	}
}

func (e *ValidationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
