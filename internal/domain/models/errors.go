package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrFeedDown            = errors.New("feed down")
	ErrDataQuality         = errors.New("data quality")
	ErrInsufficientHistory = errors.New("insufficient history")
	ErrConfiguration       = errors.New("configuration")
)

// FeedError reports a disconnect, timeout or exhausted retry on one stream.
type FeedError struct {
	Stream StreamKey
	Op     string // connect, read, stale, fetch, down
	Err    error
}

func NewFeedError(stream StreamKey, op string, err error) *FeedError {
	return &FeedError{Stream: stream, Op: op, Err: err}
}

func (e *FeedError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("feed %s: %s", e.Stream, e.Op)
	}
	return fmt.Sprintf("feed %s: %s: %v", e.Stream, e.Op, e.Err)
}

func (e *FeedError) Unwrap() error { return e.Err }

func (e *FeedError) Is(target error) bool { return target == ErrFeedDown && e.Op == "down" }

// DataQualityError marks a candle that was excluded or corrected.
type DataQualityError struct {
	Stream   StreamKey
	OpenTime time.Time
	Flags    []AnomalyFlag
}

func (e *DataQualityError) Error() string {
	kinds := make([]string, 0, len(e.Flags))
	for _, f := range e.Flags {
		kinds = append(kinds, string(f.Kind)+"/"+string(f.Severity))
	}
	return fmt.Sprintf("data quality %s at %s: %s", e.Stream, e.OpenTime.UTC().Format(time.RFC3339), strings.Join(kinds, ","))
}

func (e *DataQualityError) Is(target error) bool { return target == ErrDataQuality }

// InsufficientHistoryError is returned while an indicator or the regime
// classifier lacks the samples it needs.
type InsufficientHistoryError struct {
	Indicator string
	Required  int
	Actual    int
}

func NewInsufficientHistoryError(indicator string, required, actual int) *InsufficientHistoryError {
	return &InsufficientHistoryError{Indicator: indicator, Required: required, Actual: actual}
}

func (e *InsufficientHistoryError) Error() string {
	return fmt.Sprintf("insufficient history for %s: need %d, have %d", e.Indicator, e.Required, e.Actual)
}

func (e *InsufficientHistoryError) Is(target error) bool { return target == ErrInsufficientHistory }

// IsInsufficientHistory checks the error chain for an InsufficientHistoryError.
func IsInsufficientHistory(err error) bool {
	var ih *InsufficientHistoryError
	return errors.As(err, &ih)
}

// ConfigurationError is fatal at startup and never raised at runtime.
type ConfigurationError struct {
	Field  string
	Reason string
}

func NewConfigurationError(field, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }
