package mongoadapter

import (
	"fmt"

	"github.com/docmapper/mongoadapter/pkg/constants"
)

// StoreError reports a store round trip that failed after the connection was established.
// It matches constants.ErrStoreUnavailable.
type StoreError struct {
	Op         string
	Collection string
	Err        error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%v: %s %s: %v", constants.ErrStoreUnavailable, e.Op, e.Collection, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func (e *StoreError) Is(target error) bool {
	return target == constants.ErrStoreUnavailable
}
