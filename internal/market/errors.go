package market

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrCapacityExceeded = errors.New("capacity exceeded")
	ErrNoDataAvailable  = errors.New("no data available")
	ErrRunning          = errors.New("playback is running")
	ErrAlreadyRunning   = errors.New("playback already running")
	ErrAlreadySelected  = errors.New("symbol already selected")
	ErrNotSelected      = errors.New("symbol not selected")
	ErrNoSymbols        = errors.New("no symbols selected")
)

// GenerationError reports that the series for one symbol could not be
// obtained. Siblings are unaffected.
type GenerationError struct {
	Symbol Symbol
	Err    error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generate %s: %v", e.Symbol, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }
