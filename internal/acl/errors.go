package acl

import "errors"

var (
	ErrAlreadyExists     = errors.New("acl already exists")
	ErrNotFound          = errors.New("acl not found")
	ErrConverterNotFound = errors.New("no identifier codec registered")
	ErrNullIdentifier    = errors.New("identifier codec returned an empty value")
	ErrNotSerializable   = errors.New("identifier is not serializable")
	ErrMalformedEntry    = errors.New("malformed acl entry")
	ErrStorageIO         = errors.New("acl storage error")
	ErrSidUnloaded       = errors.New("sid was not loaded")
	ErrInvalidIndex      = errors.New("invalid entry index")
)
