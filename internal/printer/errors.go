package printer

import (
	"errors"

	"menuca.ca/restotool/internal/bitmap"
	"menuca.ca/restotool/internal/escpos"
	"menuca.ca/restotool/internal/link"
)

// ErrorKind is the category of a failed printer operation as reported to
// the page
type ErrorKind string

const (
	KindNone              ErrorKind = ""
	KindInvalidParameter  ErrorKind = "invalid_parameter"
	KindEncodingError     ErrorKind = "encoding_error"
	KindInvalidDimensions ErrorKind = "invalid_dimensions"
	KindLinkUnavailable   ErrorKind = "link_unavailable"
	KindIOFailure         ErrorKind = "io_failure"
	KindInternal          ErrorKind = "internal"
)

// Classify maps err onto the error taxonomy
func Classify(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, escpos.ErrInvalidParameter):
		return KindInvalidParameter
	case errors.Is(err, ErrEncoding):
		return KindEncodingError
	case errors.Is(err, bitmap.ErrInvalidDimensions):
		return KindInvalidDimensions
	case errors.Is(err, link.ErrLinkUnavailable):
		return KindLinkUnavailable
	case errors.Is(err, link.ErrIOFailure):
		return KindIOFailure
	default:
		return KindInternal
	}
}
