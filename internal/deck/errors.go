package deck

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrFormat reports an archive or collection payload of the wrong shape.
	ErrFormat = errors.New("format error")
	// ErrArchive reports a failure reading or writing the container itself.
	ErrArchive = errors.New("archive error")
	// ErrPayloadTooLarge reports that a configured size ceiling was exceeded.
	ErrPayloadTooLarge = errors.New("payload too large")
	// ErrInvalidState reports a builder call out of sequence.
	ErrInvalidState = errors.New("invalid state")
)

// PartialImportWarning describes one note that decode skipped.
type PartialImportWarning struct {
	Index  int    `json:"index"`
	NoteID int64  `json:"note_id"`
	Reason string `json:"reason"`
}

func (w PartialImportWarning) Error() string {
	return fmt.Sprintf("note %d (id %d) skipped: %s", w.Index, w.NoteID, w.Reason)
}

const (
	KindFormat          = "format"
	KindArchive         = "archive"
	KindPayloadTooLarge = "payload_too_large"
	KindInvalidState    = "invalid_state"
	KindCanceled        = "canceled"
	KindInternal        = "internal"
)

// ErrorKind maps err to a stable reason string for callers and transports.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPayloadTooLarge):
		return KindPayloadTooLarge
	case errors.Is(err, ErrFormat):
		return KindFormat
	case errors.Is(err, ErrArchive):
		return KindArchive
	case errors.Is(err, ErrInvalidState):
		return KindInvalidState
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	}
	return KindInternal
}

func formatErr(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrFormat, fmt.Sprintf(format, args...))
}

func wrapFormat(msg string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrFormat, msg, err)
}

func wrapArchive(msg string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrArchive, msg, err)
}

func tooLarge(what string, limit int64) error {
	return fmt.Errorf("%w: %s exceeds %d bytes", ErrPayloadTooLarge, what, limit)
}
