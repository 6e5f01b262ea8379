package marshal

import (
	"errors"
	"fmt"

	"github.com/docmapper/mongoadapter/pkg/constants"
)

// Error reports a value that could not be converted between its language form
// and its document form.
type Error struct {
	// Model is the name of the model being marshalled.
	Model string
	// Field is the dotted document path of the offending value.
	Field string
	Err   error
}

func (e *Error) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%v: %s: %v", constants.ErrMarshal, e.Model, e.Err)
	}
	return fmt.Sprintf("%v: %s.%s: %v", constants.ErrMarshal, e.Model, e.Field, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, constants.ErrMarshal) match every marshal error.
func (e *Error) Is(target error) bool {
	return target == constants.ErrMarshal
}

func wrap(model, field string, err error) error {
	var me *Error
	if errors.As(err, &me) {
		if me.Field == "" {
			return &Error{Model: model, Field: field, Err: me.Err}
		}
		return &Error{Model: model, Field: field + "." + me.Field, Err: me.Err}
	}
	return &Error{Model: model, Field: field, Err: err}
}
