package sync

import "errors"

var (
	// ErrCredentialInvalid indicates a token refresh was impossible or
	// rejected. Terminal for the account's sync pass.
	ErrCredentialInvalid = errors.New("credential invalid or refresh failed")

	// ErrRecordMalformed indicates a raw record is missing its provider id.
	// The record is skipped; the batch continues.
	ErrRecordMalformed = errors.New("record missing external id")
)
