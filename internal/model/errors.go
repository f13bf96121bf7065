package model

import "errors"

var (
	// ErrInvalidArgument marks caller mistakes: bad threshold, missing or unsupported upload.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrUninitialized marks a detector that is not loaded or not available.
	ErrUninitialized = errors.New("detector not initialized")
	// ErrDataIntegrity marks detector output that breaks the catalog contract.
	ErrDataIntegrity = errors.New("detection data integrity violation")
)
