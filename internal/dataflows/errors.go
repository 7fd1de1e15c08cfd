package dataflows

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a vendor failure for the router's fallover policy.
type ErrorKind string

const (
	// KindAuth means credentials are missing or invalid. Never retried
	// against the same vendor; the router fails over immediately.
	KindAuth ErrorKind = "auth"
	// KindRateLimit means the vendor throttled the request. Retried with
	// backoff up to the configured bound, then failed over.
	KindRateLimit ErrorKind = "rate_limit"
	// KindAPI is any other upstream failure. Immediate fallover.
	KindAPI ErrorKind = "api"
	// KindMalformed marks data the payload builder could not normalize.
	// It is captured into Meta.Error, never propagated as an error value.
	KindMalformed ErrorKind = "malformed"
)

// VendorError is the structured error every adapter returns for expected
// failure conditions. Message must never contain credentials.
type VendorError struct {
	Vendor  string
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *VendorError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Vendor, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Vendor, e.Message)
}

func (e *VendorError) Unwrap() error {
	return e.Err
}

// NewAuthError reports missing or rejected credentials for a vendor.
func NewAuthError(vendor, message string) *VendorError {
	return &VendorError{Vendor: vendor, Kind: KindAuth, Message: message}
}

// NewRateLimitError reports vendor throttling.
func NewRateLimitError(vendor, message string) *VendorError {
	return &VendorError{Vendor: vendor, Kind: KindRateLimit, Message: message}
}

// NewAPIError wraps a generic upstream failure.
func NewAPIError(vendor, message string, err error) *VendorError {
	return &VendorError{Vendor: vendor, Kind: KindAPI, Message: message, Err: err}
}

// KindOf extracts the classification of err, or KindAPI when err is not a
// *VendorError.
func KindOf(err error) ErrorKind {
	var ve *VendorError
	if errors.As(err, &ve) {
		return ve.Kind
	}
	return KindAPI
}

// Retryable reports whether the same vendor may be retried for err.
func Retryable(err error) bool {
	return KindOf(err) == KindRateLimit
}
