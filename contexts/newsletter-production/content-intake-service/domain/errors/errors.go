package errors

import "errors"

var (
	ErrDuplicatePost  = errors.New("post already stored")
	ErrMissingExternalID = errors.New("feed item has no usable identifier")
)
