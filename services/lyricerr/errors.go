package lyricerr

import "errors"

// Kind classifies why a lyrics conversion failed
type Kind int

const (
	MalformedMarkup    Kind = iota + 1 // input is not well-formed XML
	MalformedTimestamp                 // begin value matches no accepted layout
	StructureError                     // required element, attribute or text missing
	UnsupportedFeature                 // syllable-level spans under line-lyric output
	ValidationError                    // lyric document rejected a line or metadata entry
)

func (k Kind) String() string {
	switch k {
	case MalformedMarkup:
		return "malformed markup"
	case MalformedTimestamp:
		return "malformed timestamp"
	case StructureError:
		return "structure error"
	case UnsupportedFeature:
		return "unsupported feature"
	case ValidationError:
		return "validation error"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by the conversion packages.
// Detail carries the offending text or the missing piece of structure.
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports a match on Kind alone, so the sentinels below work with errors.Is
// regardless of Detail.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is
var (
	ErrMalformedMarkup    = &Error{Kind: MalformedMarkup}
	ErrMalformedTimestamp = &Error{Kind: MalformedTimestamp}
	ErrStructure          = &Error{Kind: StructureError}
	ErrUnsupportedFeature = &Error{Kind: UnsupportedFeature}
	ErrValidation         = &Error{Kind: ValidationError}
)

// New creates an Error of the given kind
func New(kind Kind, detail string, err error) *Error {
	return &Error{Kind: kind, Detail: detail, Err: err}
}

func Markup(err error) *Error {
	return New(MalformedMarkup, "", err)
}

func Timestamp(text string) *Error {
	return New(MalformedTimestamp, text, nil)
}

func Structure(detail string) *Error {
	return New(StructureError, detail, nil)
}

func Unsupported(feature string) *Error {
	return New(UnsupportedFeature, feature, nil)
}

func Validation(detail string) *Error {
	return New(ValidationError, detail, nil)
}

// KindOf returns the Kind of the first *Error in err's chain
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
