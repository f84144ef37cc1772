package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidEmailSyntax(t *testing.T) {
	assert.True(t, ValidEmailSyntax("user@example.com"))
	assert.True(t, ValidEmailSyntax("first.last+tag@sub.example.co"))
	assert.False(t, ValidEmailSyntax("no-at-sign"))
	assert.False(t, ValidEmailSyntax("user@no-tld"))
	assert.False(t, ValidEmailSyntax(""))
}

func TestMaskEmail(t *testing.T) {
	assert.Equal(t, "vo*******@ex*****.com", MaskEmail("voicemail@example.com"))
	assert.Equal(t, "ab@ex*****.com", MaskEmail("ab@example.com"))
	assert.Equal(t, "not-an-email", MaskEmail("not-an-email"))
	assert.Equal(t, "", MaskEmail(""))
}

func TestMaskEmail_Deterministic(t *testing.T) {
	assert.Equal(t, MaskEmail("voicemail@example.com"), MaskEmail("voicemail@example.com"))
}

func TestExtractDomainFromEmail(t *testing.T) {
	assert.Equal(t, "example.com", ExtractDomainFromEmail("user@Example.Com"))
	assert.Equal(t, "example.com", ExtractDomainFromEmail("Some Name <user@example.com>"))
	assert.Equal(t, "", ExtractDomainFromEmail("no-at-sign"))
	assert.Equal(t, "", ExtractDomainFromEmail(""))
}
