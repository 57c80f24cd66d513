package dispatch

import (
	"errors"
	"fmt"
)

// Kind classifies an Error the way the JSON-RPC 2.0 spec classifies
// errors: a small fixed set of standard kinds plus an open-ended
// server-defined (UserError) range.
type Kind int

const (
	// KindParse means the transport could not decode the request body as
	// JSON at all.
	KindParse Kind = iota
	// KindInvalidRequest means the body was valid JSON but not a valid
	// JSON-RPC envelope.
	KindInvalidRequest
	// KindMethodNotFound means no handler exists for the resolved method
	// name.
	KindMethodNotFound
	// KindInvalidParams means the method exists but its params failed to
	// decode, validate, or satisfy Flat's disjoint-key invariant.
	KindInvalidParams
	// KindInternal means the handler tree itself failed in a way the
	// caller cannot act on (a bug, a downstream dependency failure).
	KindInternal
	// KindUser is the open range for application-defined errors a leaf
	// handler returns on purpose.
	KindUser
	// KindTransport means the failure happened in the transport layer
	// (a remote call-out, a socket read) rather than inside dispatch.
	KindTransport
)

func (k Kind) String() string {
	switch k {
	case KindParse:
		return "parse_error"
	case KindInvalidRequest:
		return "invalid_request"
	case KindMethodNotFound:
		return "method_not_found"
	case KindInvalidParams:
		return "invalid_params"
	case KindInternal:
		return "internal_error"
	case KindUser:
		return "user_error"
	case KindTransport:
		return "transport_error"
	default:
		return "unknown_error"
	}
}

// RPCCode returns the JSON-RPC 2.0 error code for standard kinds. UserError
// carries its own code (see Error.Code) and KindTransport has no wire
// representation of its own, so it reports the internal-error code
// -32603, the same as KindInternal.
func (k Kind) RPCCode() int {
	switch k {
	case KindParse:
		return -32700
	case KindInvalidRequest:
		return -32600
	case KindMethodNotFound:
		return -32601
	case KindInvalidParams:
		return -32602
	case KindInternal, KindTransport:
		return -32603
	default:
		return -32000
	}
}

// Error is the error type every layer of this toolkit returns: leaf
// handlers, the router, the CLI driver, the remote call-out helpers.
type Error struct {
	Kind    Kind
	Message string
	Data    Value
	Code    int // overrides Kind.RPCCode() when nonzero; used by UserError
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// RPCCode returns the JSON-RPC wire code for this error.
func (e *Error) RPCCode() int {
	if e.Code != 0 {
		return e.Code
	}
	return e.Kind.RPCCode()
}

func newError(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Message: kind.String(), cause: cause}
}

// ParseError wraps a JSON decode failure at the transport boundary.
func ParseError(cause error) *Error { return newError(KindParse, cause) }

// InvalidRequest wraps a malformed JSON-RPC envelope.
func InvalidRequest(cause error) *Error { return newError(KindInvalidRequest, cause) }

// MethodNotFound reports that no handler resolved for method.
func MethodNotFound(method string) *Error {
	return &Error{Kind: KindMethodNotFound, Message: fmt.Sprintf("method not found: %s", method)}
}

// InvalidParams wraps a params decode, validation, or Flat collision
// failure.
func InvalidParams(cause error) *Error { return newError(KindInvalidParams, cause) }

// Internal wraps a failure internal to the handler tree.
func Internal(cause error) *Error { return newError(KindInternal, cause) }

// UserErrorf constructs an application-defined error with its own wire
// code and optional structured data.
func UserErrorf(code int, data Value, format string, args ...any) *Error {
	return &Error{Kind: KindUser, Message: fmt.Sprintf(format, args...), Code: code, Data: data}
}

// TransportError wraps a failure from a remote call-out or socket
// transport.
func TransportError(cause error) *Error { return newError(KindTransport, cause) }

// AsError recovers a *Error from err via errors.As, the sanctioned way to
// classify a handler's returned error for wire encoding.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// ToError classifies any error into a *Error, defaulting to Internal when
// the error carries no Kind of its own. Used at the server boundary so
// every response has a well-formed JSON-RPC error.
func ToError(err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := AsError(err); ok {
		return e
	}
	return Internal(err)
}
