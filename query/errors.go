package query

import (
	"errors"
	"fmt"
)

var ErrInvalidSortDir = errors.New("Invalid sort_dir")

type InvalidSortKeyError struct {
	Field string
}

func (e *InvalidSortKeyError) Error() string {
	return fmt.Sprintf("Invalid sort_field [%s]", e.Field)
}

type InvalidFilterError struct {
	Field string
	Value string
}

func (e *InvalidFilterError) Error() string {
	return fmt.Sprintf("Invalid value [%s] for filter %s", e.Value, e.Field)
}

// InvalidParameterError reports a malformed limit or marker.
type InvalidParameterError struct {
	Name   string
	Value  string
	Reason string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("Invalid %s [%s]: %s", e.Name, e.Value, e.Reason)
}

// IsClientError reports whether err was caused by request input and should
// be answered with 400 rather than 500.
func IsClientError(err error) bool {
	var (
		sortErr   *InvalidSortKeyError
		filterErr *InvalidFilterError
		paramErr  *InvalidParameterError
	)
	return errors.Is(err, ErrInvalidSortDir) ||
		errors.As(err, &sortErr) ||
		errors.As(err, &filterErr) ||
		errors.As(err, &paramErr)
}
