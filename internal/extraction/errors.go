package extraction

import "fmt"

// Kind classifies extraction failures so callers can map them to user-facing
// responses without string matching.
type Kind string

const (
	KindCorrupt         Kind = "corrupt"
	KindEncoding        Kind = "encoding"
	KindUnsupportedType Kind = "unsupported_type"
	KindTooLarge        Kind = "too_large"
)

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extraction: %s: %v", e.Msg, e.Err)
	}
	return fmt.Sprintf("extraction: %s", e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}
