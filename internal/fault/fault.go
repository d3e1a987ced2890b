// Package fault defines the tagged error taxonomy shared by the stock pipeline.
//
// Every fallible pipeline step returns a *Error carrying one Kind so callers
// (retry loop, scheduler, command handlers) can branch on what went wrong
// instead of matching strings.
package fault

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindTimeout
	KindNetwork
	KindUpstreamUnavailable
	KindHTTPStatus
	KindParse
	KindSinkUnavailable
	KindUnexpected
)

func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindNetwork:
		return "network"
	case KindUpstreamUnavailable:
		return "upstream_unavailable"
	case KindHTTPStatus:
		return "http_status"
	case KindParse:
		return "parse"
	case KindSinkUnavailable:
		return "sink_unavailable"
	case KindUnexpected:
		return "unexpected"
	default:
		return "unknown"
	}
}

// Error is a pipeline failure tagged with a Kind.
// Status is only set for KindHTTPStatus (and 520 for KindUpstreamUnavailable).
type Error struct {
	Kind   Kind
	Status int
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch e.Kind {
	case KindTimeout:
		return "request timeout"
	case KindNetwork:
		return "network error: " + e.detail()
	case KindUpstreamUnavailable:
		return fmt.Sprintf("upstream unavailable (HTTP %d)", e.Status)
	case KindHTTPStatus:
		return fmt.Sprintf("HTTP error %d", e.Status)
	case KindParse:
		return "parse error: " + e.detail()
	case KindSinkUnavailable:
		if d := e.detail(); d != "" {
			return "output chat unavailable: " + d
		}
		return "output chat unavailable"
	case KindUnexpected:
		return "unexpected error: " + e.detail()
	default:
		return e.detail()
	}
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) detail() string {
	if e.Detail != "" {
		return e.Detail
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return ""
}

func Timeout(err error) *Error { return &Error{Kind: KindTimeout, Err: err} }

func Network(err error) *Error { return &Error{Kind: KindNetwork, Err: err} }

func UpstreamUnavailable(status int) *Error {
	return &Error{Kind: KindUpstreamUnavailable, Status: status}
}

func HTTPStatus(status int) *Error { return &Error{Kind: KindHTTPStatus, Status: status} }

func Parse(detail string, err error) *Error {
	return &Error{Kind: KindParse, Detail: detail, Err: err}
}

func SinkUnavailable(detail string) *Error {
	return &Error{Kind: KindSinkUnavailable, Detail: detail}
}

func Unexpected(err error) *Error { return &Error{Kind: KindUnexpected, Err: err} }

// KindOf returns the Kind of the first *Error in err's chain,
// or KindUnknown when there is none.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) && fe != nil {
		return fe.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, k Kind) bool { return err != nil && KindOf(err) == k }
