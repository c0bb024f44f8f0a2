package asuslink

import (
	"errors"
	"fmt"
	"time"

	"github.com/muurk/asuslink/internal/transport"
)

// ErrorKind categorises failures surfaced by the client.
type ErrorKind int

const (
	// KindConnectivity indicates a transport-level failure: host
	// unreachable, connection refused or reset, DNS failure.
	KindConnectivity ErrorKind = iota
	// KindCertificate indicates a TLS trust failure under strict
	// certificate verification.
	KindCertificate
	// KindAuthentication indicates rejected credentials or exhausted
	// login retries.
	KindAuthentication
	// KindUnsupportedData indicates a data category unknown to the
	// client or wholly unsupported by the device firmware.
	KindUnsupportedData
	// KindDataRetrieval indicates that every endpoint backing a data
	// category failed.
	KindDataRetrieval
	// KindTimeout indicates a deadline exceeded on a device operation.
	KindTimeout
	// KindCommand indicates the device rejected or failed a control
	// action.
	KindCommand
)

// String returns a human-readable name for the error kind
func (k ErrorKind) String() string {
	switch k {
	case KindConnectivity:
		return "Connectivity Error"
	case KindCertificate:
		return "Certificate Error"
	case KindAuthentication:
		return "Authentication Error"
	case KindUnsupportedData:
		return "Unsupported Data"
	case KindDataRetrieval:
		return "Data Retrieval Error"
	case KindTimeout:
		return "Timeout"
	case KindCommand:
		return "Command Error"
	default:
		return fmt.Sprintf("ErrorKind(%d)", k)
	}
}

// Error is the error type returned by all client operations.
type Error struct {
	Kind    ErrorKind // Category of error
	Message string    // Human-readable error message
	Err     error     // Underlying error (if any)

	// Retryable marks transient failures that read paths may retry.
	Retryable bool

	// LockTime is the device-reported remaining login lock when the
	// firmware has blocked authentication after too many attempts.
	LockTime time.Duration
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error for error chain inspection
func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// classifyTransportError maps the transport's sentinel failures onto the
// public taxonomy. Connectivity and timeout failures are retryable on
// read paths; certificate failures are not.
func classifyTransportError(err error) *Error {
	switch {
	case errors.Is(err, transport.ErrTimeout):
		return &Error{Kind: KindTimeout, Message: "device did not respond in time", Err: err, Retryable: true}
	case errors.Is(err, transport.ErrCertificate):
		return &Error{Kind: KindCertificate, Message: "TLS certificate verification failed", Err: err}
	default:
		return &Error{Kind: KindConnectivity, Message: "device communication failed", Err: err, Retryable: true}
	}
}

// kindOf extracts the kind from a client error, reporting false for
// foreign errors.
func kindOf(err error) (ErrorKind, bool) {
	var clientErr *Error
	if errors.As(err, &clientErr) {
		return clientErr.Kind, true
	}
	return 0, false
}

// IsConnectivityError reports whether err is a transport-level failure.
func IsConnectivityError(err error) bool {
	kind, ok := kindOf(err)
	return ok && kind == KindConnectivity
}

// IsCertificateError reports whether err is a TLS trust failure.
func IsCertificateError(err error) bool {
	kind, ok := kindOf(err)
	return ok && kind == KindCertificate
}

// IsAuthenticationError reports whether err is a credential rejection or
// login retry exhaustion.
func IsAuthenticationError(err error) bool {
	kind, ok := kindOf(err)
	return ok && kind == KindAuthentication
}

// IsUnsupportedDataError reports whether err marks an unknown or wholly
// unsupported data category.
func IsUnsupportedDataError(err error) bool {
	kind, ok := kindOf(err)
	return ok && kind == KindUnsupportedData
}

// IsDataRetrievalError reports whether err marks total endpoint failure
// for a category.
func IsDataRetrievalError(err error) bool {
	kind, ok := kindOf(err)
	return ok && kind == KindDataRetrieval
}

// IsTimeoutError reports whether err is a deadline failure.
func IsTimeoutError(err error) bool {
	kind, ok := kindOf(err)
	return ok && kind == KindTimeout
}

// IsCommandError reports whether err is a device-rejected control action.
func IsCommandError(err error) bool {
	kind, ok := kindOf(err)
	return ok && kind == KindCommand
}

// isRetryable reports whether a read path may retry after err.
func isRetryable(err error) bool {
	var clientErr *Error
	if errors.As(err, &clientErr) {
		return clientErr.Retryable
	}
	return false
}
