package errors

import "github.com/pkg/errors"

var (
	// session errors
	ErrNotConnected     = errors.New("mailbox session is not connected")
	ErrAlreadyConnected = errors.New("mailbox session is already connected")
	ErrNoFolderSelected = errors.New("no folder selected")

	// message errors
	ErrMessageNotFound = errors.New("message not found")

	// forwarder errors
	ErrMissingCredentials = errors.New("smtp username and password must be provided together")

	// transcription errors
	ErrTranscriptionFailed = errors.New("transcription failed")
)
