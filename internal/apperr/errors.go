// Package apperr defines the error taxonomy shared across the generator.
// Components return kind-carrying errors and leave the exit decision to the
// CLI layer.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind int

const (
	// KindUnknown is the zero value for errors outside the taxonomy.
	KindUnknown Kind = iota
	// KindConfigInvalid marks feed/site configuration that fails validation.
	KindConfigInvalid
	// KindFeedIdentityConflict marks a configured feed id that differs from
	// the stored one while entries already exist.
	KindFeedIdentityConflict
	// KindStoreIO marks any failure opening, reading, or writing the store.
	KindStoreIO
	// KindConversionFailure marks a converter non-zero exit or bad output.
	KindConversionFailure
	// KindConversionTimeout marks a converter call that exceeded its deadline.
	KindConversionTimeout
	// KindDuplicatePath marks an insert for an already-stored document path.
	KindDuplicatePath
	// KindParseFailure marks unreadable or malformed source documents.
	KindParseFailure
)

func (k Kind) String() string {
	switch k {
	case KindConfigInvalid:
		return "config invalid"
	case KindFeedIdentityConflict:
		return "feed identity conflict"
	case KindStoreIO:
		return "store io"
	case KindConversionFailure:
		return "conversion failure"
	case KindConversionTimeout:
		return "conversion timeout"
	case KindDuplicatePath:
		return "duplicate path"
	case KindParseFailure:
		return "parse failure"
	default:
		return "unknown"
	}
}

// E is an error carrying a taxonomy kind and an optional wrapped cause.
type E struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *E) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	case e.Msg != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return e.Kind.String()
	}
}

func (e *E) Unwrap() error { return e.Err }

// Is lets errors.Is match taxonomy errors by kind.
func (e *E) Is(target error) bool {
	var t *E
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// New builds a taxonomy error with a formatted message.
func New(kind Kind, format string, args ...any) *E {
	return &E{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and context message to an underlying error.
func Wrap(kind Kind, err error, format string, args ...any) *E {
	return &E{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the taxonomy kind from err, or KindUnknown.
func KindOf(err error) Kind {
	var e *E
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
