package main

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncateShortStringUnchanged(t *testing.T) {
	assert.Equal(t, "Semen Portland", truncate("Semen Portland", 40))
}

func TestTruncateMultibyteStaysValidUTF8(t *testing.T) {
	name := strings.Repeat("é", 30)
	got := truncate(name, 10)

	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, 10, utf8.RuneCountInString(got))
	assert.True(t, strings.HasSuffix(got, "…"))
}

func TestTruncateCountsRunesNotBytes(t *testing.T) {
	// 8 runes but 11 bytes; byte-based length checks would truncate this.
	name := "Bétonéé8"
	assert.Equal(t, name, truncate(name, 8))
}
