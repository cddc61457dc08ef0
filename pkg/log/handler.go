package log

import (
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	vigperrors "github.com/YuminosukeSato/vigp/pkg/errors"
)

const (
	ErrAttrKey        = "error"
	StacktraceAttrKey = "stacktrace"
)

// addError attaches err, its error code and, when it carries one, the
// cockroachdb/errors stack trace to the event.
func addError(ev *zerolog.Event, err error) {
	ev.AnErr(ErrAttrKey, err)
	if code := vigperrors.CodeOf(err); code != "" {
		ev.Str(ErrorCodeKey, code)
	}
	if m, ok := unwrapMarshaler(err); ok {
		ev.Object("detail", m)
	}
	if st := extractStacktrace(err); st != "" {
		ev.Str(StacktraceAttrKey, st)
	}
}

// unwrapMarshaler finds the first error in the chain that knows how to
// describe itself to zerolog (the typed errors of pkg/errors do).
func unwrapMarshaler(err error) (zerolog.LogObjectMarshaler, bool) {
	for e := err; e != nil; e = errors.UnwrapOnce(e) {
		if m, ok := e.(zerolog.LogObjectMarshaler); ok {
			return m, true
		}
	}
	return nil, false
}

func extractStacktrace(err error) string {
	safeDetails := errors.GetSafeDetails(err).SafeDetails
	if len(safeDetails) > 0 {
		return safeDetails[0]
	}
	return ""
}
