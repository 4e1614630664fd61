package client

import (
	"errors"
	"fmt"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")

	// ErrMissingLabel is returned when a referenced payload carries neither
	// a "title" nor a "name" field.
	ErrMissingLabel = errors.New("referenced payload has no label")

	// ErrMalformedPayload is returned when a payload lacks a required field.
	ErrMalformedPayload = errors.New("malformed payload")
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 responses.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents connection failures and timeouts.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassPayload represents a 2xx response whose body is not valid JSON.
	ErrorClassPayload ErrorClass = "payload"
)

// NetworkError is returned for any non-2xx response or connection failure
// at any fetch stage.
type NetworkError struct {
	URL        string
	StatusCode int
	ErrorClass ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *NetworkError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s error fetching %s (status %d): %s: %v",
			e.ErrorClass, e.URL, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("%s error fetching %s (status %d): %s",
		e.ErrorClass, e.URL, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *NetworkError) Unwrap() error {
	return e.Err
}

// IsNetworkError reports whether err is or wraps a *NetworkError.
func IsNetworkError(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}

// classOf extracts the error class carried by err, if any.
func classOf(err error) ErrorClass {
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return netErr.ErrorClass
	}
	return ""
}

// shouldRetry determines if an error should be retried based on its classification.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassServer, ErrorClassRateLimit, ErrorClassNetwork:
		return true
	default:
		// 4xx and undecodable payloads do not improve on a second try
		return false
	}
}
