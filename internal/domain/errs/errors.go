// Package errs holds the failure kinds a voice turn can end with. Each kind is a
// sentinel; concrete failures are *StageError values that match their sentinel
// with errors.Is and unwrap to the underlying cause.
package errs

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidUpload = errors.New("invalid upload")
	ErrTranscription = errors.New("transcription failed")
	ErrCompletion    = errors.New("completion failed")
	ErrSynthesis     = errors.New("synthesis failed")
	ErrStorageRead   = errors.New("conversation read failed")
	ErrStorageWrite  = errors.New("conversation write failed")
)

type StageError struct {
	Kind error
	Err  error
}

func (e *StageError) Error() string {
	if e.Err == nil {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func (e *StageError) Is(target error) bool {
	return target == e.Kind
}

func Wrap(kind, err error) error {
	return &StageError{Kind: kind, Err: err}
}

func Wrapf(kind error, format string, args ...any) error {
	return &StageError{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the sentinel carried by err, or nil if err is not a stage failure.
func KindOf(err error) error {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr.Kind
	}
	return nil
}
