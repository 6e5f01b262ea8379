package constants

import "errors"

// Translation errors. These are local to the request and not retryable:
// the caller has to fix the query or the resource.
var (
	ErrUnsupportedOperator  = errors.New("unsupported operator")
	ErrInvalidIdentifier    = errors.New("invalid identifier")
	ErrUnknownDiscriminator = errors.New("unknown discriminator")
	ErrInvalidValue         = errors.New("invalid value for property type")
	ErrMarshal              = errors.New("marshal error")
)

// Schema errors are reported when a registry is built, never at marshal time.
var (
	ErrSchema          = errors.New("invalid schema")
	ErrUnknownModel    = errors.New("unknown model")
	ErrUnknownRelation = errors.New("unknown relation")
	ErrMissingKey      = errors.New("resource has no key value")
)

// Store errors
var (
	ErrConnection       = errors.New("connection error")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrNoDatabase       = errors.New("database name is not set")
	ErrNotConnected     = errors.New("connection is not established")
)
