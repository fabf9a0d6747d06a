package errors

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is matching of the feature pipeline error kinds
var (
	ErrConfiguration = errors.New("configuration error")
	ErrLookup        = errors.New("lookup error")
	ErrDataOrdering  = errors.New("data ordering error")
)

// ConfigurationError reports invalid generator or pipeline parameters
type ConfigurationError struct {
	Field   string
	Message string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("configuration error: %s", e.Message)
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Message)
}

// Is matches ErrConfiguration
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// NewConfigurationError creates a configuration error for a field
func NewConfigurationError(field, format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// LookupError reports a missing join target during enrichment
type LookupError struct {
	Table string
	Key   string
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("lookup error: no %s row for cc_num %s", e.Table, e.Key)
}

// Is matches ErrLookup
func (e *LookupError) Is(target error) bool {
	return target == ErrLookup
}

// NewLookupError creates a lookup error
func NewLookupError(table, key string) *LookupError {
	return &LookupError{Table: table, Key: key}
}

// DataOrderingError reports input that violates an ordering precondition
type DataOrderingError struct {
	Key     string
	Index   int
	Message string
}

func (e *DataOrderingError) Error() string {
	return fmt.Sprintf("data ordering error: cc_num %s at position %d: %s", e.Key, e.Index, e.Message)
}

// Is matches ErrDataOrdering
func (e *DataOrderingError) Is(target error) bool {
	return target == ErrDataOrdering
}

// NewDataOrderingError creates an ordering error
func NewDataOrderingError(key string, index int, format string, args ...interface{}) *DataOrderingError {
	return &DataOrderingError{Key: key, Index: index, Message: fmt.Sprintf(format, args...)}
}

// IsDomainError reports whether err is one of the deterministic feature pipeline errors
func IsDomainError(err error) bool {
	return errors.Is(err, ErrConfiguration) || errors.Is(err, ErrLookup) || errors.Is(err, ErrDataOrdering)
}
