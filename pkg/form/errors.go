package form

import (
	"errors"
	"fmt"
)

var (
	// ErrMisuse is wrapped by every programming misuse error. Misuse is
	// logged and returned, never panicked.
	ErrMisuse = errors.New("form: misuse")

	ErrInvalidPath      = fmt.Errorf("%w: invalid path", ErrMisuse)
	ErrNotRegistered    = fmt.Errorf("%w: field is not registered", ErrMisuse)
	ErrReleased         = fmt.Errorf("%w: field handle was released", ErrMisuse)
	ErrNotList          = fmt.Errorf("%w: value is not a list", ErrMisuse)
	ErrIndexOutOfRange  = fmt.Errorf("%w: list index out of range", ErrMisuse)
	ErrClosed           = fmt.Errorf("%w: form is closed", ErrMisuse)
	errNilBatchFunction = fmt.Errorf("%w: batch function is nil", ErrMisuse)
)
