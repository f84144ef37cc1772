package utils

import (
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const messageIDAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// GenerateMessageID creates a unique RFC 5322 message identifier for a
// forwarded message. The microsecond timestamp keeps identifiers sortable;
// the random suffix keeps them unique within a microsecond.
func GenerateMessageID(domain string) string {
	id, err := gonanoid.Generate(messageIDAlphabet, 12)
	if err != nil {
		panic(err)
	}
	return fmt.Sprintf("<%d.%s@%s>", time.Now().UnixMicro(), id, domain)
}
