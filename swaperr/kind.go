// Package swaperr defines the error kinds every subsystem classifies its
// failures into, as sentinel values combined with errors.Is rather than a
// type hierarchy. Session and market code branches on kind, not on a
// concrete error type.
package swaperr

import "errors"

// Kind is one of the six semantic error families a session or daemon
// component reports. It is attached to an error with Wrap and tested with
// Is, or with errors.Is against the Err* sentinels below.
type Kind int

const (
	// Transport covers a dropped connection, a handshake failure, or a
	// read/write timeout talking to a counterparty.
	Transport Kind = iota
	// Protocol covers an unexpected message for the session's current
	// phase, a malformed encoding, or a version mismatch.
	Protocol
	// Validation covers a bad signature, wrong contract script, amount
	// mismatch, insufficient timelock, or bad bond.
	Validation
	// Node covers the chain backend being unavailable, a broadcast
	// rejection, or a reorg past the confirmation threshold.
	Node
	// Resource covers insufficient UTXOs or a locked wallet.
	Resource
	// Fatal covers an adversarial contract-tx broadcast during a live
	// swap; it always triggers the recovery path.
	Fatal
)

func (k Kind) String() string {
	switch k {
	case Transport:
		return "transport"
	case Protocol:
		return "protocol"
	case Validation:
		return "validation"
	case Node:
		return "node"
	case Resource:
		return "resource"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// kindError wraps an underlying cause with its Kind, so that both
// errors.Is(err, swaperr.ErrValidation) and errors.Unwrap(err) work.
type kindError struct {
	kind  Kind
	cause error
}

func (e *kindError) Error() string { return e.kind.String() + ": " + e.cause.Error() }
func (e *kindError) Unwrap() error { return e.cause }
func (e *kindError) Is(target error) bool {
	k, ok := target.(sentinel)
	return ok && k.kind == e.kind
}

// sentinel is the comparable value behind each exported Err* variable
// below, matched against by kindError.Is.
type sentinel struct{ kind Kind }

func (s sentinel) Error() string { return s.kind.String() }

var (
	ErrTransport  error = sentinel{Transport}
	ErrProtocol   error = sentinel{Protocol}
	ErrValidation error = sentinel{Validation}
	ErrNode       error = sentinel{Node}
	ErrResource   error = sentinel{Resource}
	ErrFatal      error = sentinel{Fatal}
)

// Wrap annotates cause with kind so that Is(Wrap(k, err), k) holds, as does
// errors.Is against the Err* sentinel of kind k, without discarding the
// original error for logging or errors.As.
func Wrap(kind Kind, cause error) error {
	if cause == nil {
		return nil
	}
	return &kindError{kind: kind, cause: cause}
}

// Is reports whether err carries the given kind, following wrapped chains.
func Is(err error, kind Kind) bool {
	return errors.Is(err, sentinel{kind})
}

// KindOf returns the Kind carried by err, and false if neither err nor
// anything in its chain was produced by Wrap.
func KindOf(err error) (Kind, bool) {
	var ke *kindError
	for err != nil {
		if k, ok := err.(*kindError); ok {
			ke = k
			break
		}
		err = errors.Unwrap(err)
	}
	if ke == nil {
		return 0, false
	}
	return ke.kind, true
}
