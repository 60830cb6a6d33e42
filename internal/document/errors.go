package document

import "errors"

var (
	ErrNotFound          = errors.New("document not found")
	ErrAlreadyProcessing = errors.New("document is already being processed")
	ErrFileTooLarge      = errors.New("file too large")
	ErrNoBlob            = errors.New("document file not available for processing")
	ErrValidation        = errors.New("invalid request")
	ErrUnknownVersion    = errors.New("version not found")
)
