package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize_PlainTextUnchanged(t *testing.T) {
	for _, in := range []string{
		"Don't skip leg day",
		"a < b & c",
		`say "hi" > shout`,
		"&lt;literal entity&gt;",
		"줄 바꿈\r\n두 번째 줄",
		strings.Repeat("'", 100),
		"",
	} {
		assert.Equal(t, in, Sanitize(in), in)
	}
}

func TestSanitize_StripsTags(t *testing.T) {
	assert.Equal(t, "hello", Sanitize("<script>alert(1)</script>hello"))
	assert.Equal(t, "bold & plain", Sanitize("<b>bold</b> &amp; plain"))
	assert.Equal(t, "Don't click", Sanitize(`<a href="javascript:x()">Don't click</a>`))
	assert.Empty(t, Sanitize("<img src=x onerror=alert(1)>"))
}
