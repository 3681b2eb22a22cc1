package session_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	session "github.com/birbieup/go-session"
)

func TestNormalizeIdentifier(t *testing.T) {
	tests := []struct {
		name       string
		identifier string
		expected   string
	}{
		{"bare username", "JohnDoe", "JohnDoe@example.com"},
		{"whitespace replaced", "John Doe", "John_Doe@example.com"},
		{"already addressable", "JohnDoe@example.com", "JohnDoe@example.com"},
		{"surrounding space trimmed", "  JohnDoe  ", "JohnDoe@example.com"},
		{"tab and newline replaced", "John\tDoe\nJr", "John_Doe_Jr@example.com"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, session.NormalizeIdentifier(tc.identifier, "example.com", '_'))
		})
	}
}

func TestNormalizeIdentifierIsIdempotent(t *testing.T) {
	inputs := []string{"JohnDoe", "John Doe", "JohnDoe@example.com", "a b c"}

	for _, input := range inputs {
		once := session.NormalizeIdentifier(input, "example.com", '_')
		twice := session.NormalizeIdentifier(once, "example.com", '_')
		assert.Equal(t, once, twice, "input %q", input)
	}
}

func TestNormalizeIdentifierWithoutSuffix(t *testing.T) {
	assert.Equal(t, "John_Doe", session.NormalizeIdentifier("John Doe", "", '_'))
}

func TestDeriveIdentifier(t *testing.T) {
	assert.Equal(t, "John_Doe@example.com", session.DeriveIdentifier("John Doe", "example.com", '_'))
	assert.Equal(t, "John-Doe@example.com", session.DeriveIdentifier("John Doe", "example.com", '-'))
}
