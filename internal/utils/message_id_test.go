package utils

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateMessageID(t *testing.T) {
	id := GenerateMessageID("office.example")

	assert.Regexp(t, regexp.MustCompile(`^<\d+\.[a-z0-9]{12}@office\.example>$`), id)
	assert.NotEqual(t, id, GenerateMessageID("office.example"))
}
