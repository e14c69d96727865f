package media

import (
	"errors"
	"fmt"
)

// Kind classifies a resolution failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidArgument
	KindNoMatchingExtractor
	KindAmbiguousExtractor
	KindFetchFailed
	KindManifestParse
	KindExtractionFailed
)

func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid argument"
	case KindNoMatchingExtractor:
		return "no matching extractor"
	case KindAmbiguousExtractor:
		return "ambiguous extractor"
	case KindFetchFailed:
		return "fetch failed"
	case KindManifestParse:
		return "manifest parse error"
	case KindExtractionFailed:
		return "extraction failed"
	default:
		return "unknown error"
	}
}

// Error is a categorized resolution failure.
type Error struct {
	Kind   Kind
	Format string // manifest format, set for KindManifestParse
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Format != "" {
		msg += " (" + e.Format + ")"
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so the Err* sentinels below
// work with errors.Is regardless of detail.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrInvalidArgument     = &Error{Kind: KindInvalidArgument}
	ErrNoMatchingExtractor = &Error{Kind: KindNoMatchingExtractor}
	ErrAmbiguousExtractor  = &Error{Kind: KindAmbiguousExtractor}
	ErrFetchFailed         = &Error{Kind: KindFetchFailed}
	ErrManifestParse       = &Error{Kind: KindManifestParse}
	ErrExtractionFailed    = &Error{Kind: KindExtractionFailed}
)

// Errorf returns a new *Error of the given kind.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// WrapError categorizes err under kind.
func WrapError(kind Kind, err error, detail string) *Error {
	return &Error{Kind: kind, Detail: detail, Err: err}
}

// NewManifestError reports a structurally invalid manifest.
func NewManifestError(format, detail string) *Error {
	return &Error{Kind: KindManifestParse, Format: format, Detail: detail}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
