package connector

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/smithy-go"

	"github.com/parapet-sh/parapet/internal/models"
)

// FailureClass categorizes why a source call failed. AUTH_DENIED and
// NOT_ENABLED are terminal for the source within one assessment; TIMEOUT and
// THROTTLED are retried a bounded number of times first.
type FailureClass string

// Failure classes.
const (
	FailureAuthDenied FailureClass = "AUTH_DENIED"
	FailureTimeout    FailureClass = "TIMEOUT"
	FailureThrottled  FailureClass = "THROTTLED"
	FailureNotEnabled FailureClass = "NOT_ENABLED"
	FailureUnknown    FailureClass = "UNKNOWN"
)

// Retryable reports whether calls failing with this class may be retried.
func (c FailureClass) Retryable() bool {
	return c == FailureTimeout || c == FailureThrottled
}

// ConnectorError is a classified failure from one source call. It never
// propagates past the connector boundary; connectors fold it into a
// SourceHealth value instead.
type ConnectorError struct {
	Err    error
	Source models.Source
	Class  FailureClass
}

// Error implements the error interface.
func (e *ConnectorError) Error() string {
	return fmt.Sprintf("%s source %s: %v", e.Source, e.Class, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConnectorError) Unwrap() error {
	return e.Err
}

// NotEnabledError builds a terminal NOT_ENABLED failure for sources that
// report their own disabled state (no GuardDuty detector, no analyzers).
func NotEnabledError(source models.Source, reason string) *ConnectorError {
	return &ConnectorError{Source: source, Class: FailureNotEnabled, Err: errors.New(reason)}
}

// Classify wraps an error from an AWS call into a ConnectorError, mapping
// service error codes onto failure classes.
func Classify(source models.Source, err error) *ConnectorError {
	var cerr *ConnectorError
	if errors.As(err, &cerr) {
		return cerr
	}

	class := FailureUnknown

	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		class = FailureTimeout
	default:
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			class = classifyCode(apiErr.ErrorCode())
		}
	}

	return &ConnectorError{Source: source, Class: class, Err: err}
}

func classifyCode(code string) FailureClass {
	switch code {
	case "AccessDeniedException", "AccessDenied", "UnauthorizedOperation",
		"UnrecognizedClientException", "InvalidClientTokenId", "ExpiredToken":
		return FailureAuthDenied
	case "ThrottlingException", "Throttling", "TooManyRequestsException",
		"RequestLimitExceeded", "LimitExceededException":
		return FailureThrottled
	case "RequestTimeout", "RequestTimeoutException":
		return FailureTimeout
	case "InvalidAccessException", "ResourceNotFoundException", "SubscriptionRequiredException":
		// Security Hub and Inspector signal "not enabled in this account or
		// region" through these codes.
		return FailureNotEnabled
	}
	if strings.Contains(code, "Throttl") {
		return FailureThrottled
	}
	return FailureUnknown
}

// healthFromFailure converts a classified failure into the SourceHealth entry
// reported for the invocation.
func healthFromFailure(cerr *ConnectorError, latency time.Duration) models.SourceHealth {
	health := models.SourceHealth{
		Source:    cerr.Source,
		Latency:   latency,
		LastError: string(cerr.Class) + ": " + cerr.Err.Error(),
	}

	switch cerr.Class {
	case FailureNotEnabled:
		health.State = models.SourceNotEnabled
	case FailureTimeout, FailureThrottled:
		// Retries exhausted: the source is reachable but did not answer in
		// time, so coverage is degraded rather than absent.
		health.State = models.SourceDegraded
	default:
		health.State = models.SourceUnavailable
	}
	return health
}
