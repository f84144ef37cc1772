package interfaces

import "context"

// Transcriber converts voicemail audio into text. A single blocking call
// per file; fails with a generic error on unsupported formats or internal
// failures.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
}
