package ai

import (
	"context"
	"errors"
	"fmt"
	"net"

	openai "github.com/sashabaranov/go-openai"
)

// ErrEmptyCompletion is returned when the upstream answered without any content.
var ErrEmptyCompletion = errors.New("ai: empty completion")

// ErrorKind classifies an upstream failure for the user-visible message.
type ErrorKind int

const (
	KindOther ErrorKind = iota
	// KindTimeout covers timeouts and connection-level failures (refused, reset, DNS).
	KindTimeout
	// KindHTTP means the upstream answered with a non-2xx status.
	KindHTTP
)

func (k ErrorKind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindHTTP:
		return "http"
	default:
		return "other"
	}
}

// UpstreamError is a classified upstream failure.
type UpstreamError struct {
	Kind   ErrorKind
	Status int // HTTP status, only for KindHTTP
	Err    error
}

func (e *UpstreamError) Error() string {
	if e.Kind == KindHTTP {
		return fmt.Sprintf("upstream http %d: %v", e.Status, e.Err)
	}
	return fmt.Sprintf("upstream %s: %v", e.Kind, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Classify maps any error returned by an Upstream onto an UpstreamError.
// nil stays nil.
func Classify(err error) *UpstreamError {
	if err == nil {
		return nil
	}

	var upErr *UpstreamError
	if errors.As(err, &upErr) {
		return upErr
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return &UpstreamError{Kind: KindHTTP, Status: apiErr.HTTPStatusCode, Err: err}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return &UpstreamError{Kind: KindHTTP, Status: reqErr.HTTPStatusCode, Err: err}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &UpstreamError{Kind: KindTimeout, Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &UpstreamError{Kind: KindTimeout, Err: err}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return &UpstreamError{Kind: KindTimeout, Err: err}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &UpstreamError{Kind: KindTimeout, Err: err}
	}

	return &UpstreamError{Kind: KindOther, Err: err}
}
