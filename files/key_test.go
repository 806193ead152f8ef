package files

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/padraicbc/library/apperr"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"book.pdf", "book.pdf"},
		{"My cool movie.mov", "My_cool_movie.mov"},
		{"../../../etc/passwd", "etc_passwd"},
		{`..\..\windows\win.ini`, "windows_win.ini"},
		{"i contain cool ümläuts.txt", "i_contain_cool_umlauts.txt"},
		{"My Book (2020).PDF", "My_Book_2020.PDF"},
		{"  spaced\tout  .pdf ", "spaced_out_.pdf"},
		{".hidden.pdf", "hidden.pdf"},
		{"CON.pdf", "_CON.pdf"},
		{"nul", "_nul"},
		{"/abs/path/to/book.pdf", "abs_path_to_book.pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			k, err := Sanitize(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, k.String())
			assert.NotContains(t, k.String(), "/")
			assert.NotContains(t, k.String(), `\`)
		})
	}
}

func TestSanitize_Empty(t *testing.T) {
	for _, in := range []string{"", "...", "../..", "日本語", "___"} {
		_, err := Sanitize(in)
		var ve *apperr.ValidationError
		assert.ErrorAs(t, err, &ve, "input %q", in)
	}
}

func TestSanitize_Truncates(t *testing.T) {
	k, err := Sanitize(strings.Repeat("a", 500) + ".pdf")
	require.NoError(t, err)
	assert.Len(t, k.String(), maxKeyLen)
	assert.Equal(t, "pdf", k.Ext())
}

func TestParseKey(t *testing.T) {
	k, err := ParseKey("book.pdf")
	require.NoError(t, err)
	assert.Equal(t, "book.pdf", k.String())

	for _, in := range []string{"../../secret", "a/b.pdf", "..", "with space.pdf", "", "/etc/passwd"} {
		_, err := ParseKey(in)
		var ve *apperr.ValidationError
		assert.ErrorAs(t, err, &ve, "input %q", in)
	}
}

func TestKey_ExtAndSuffix(t *testing.T) {
	k, err := Sanitize("Book.PDF")
	require.NoError(t, err)
	assert.Equal(t, "pdf", k.Ext())
	assert.Equal(t, "Book_1a2b3c4d.PDF", k.WithSuffix("1a2b3c4d").String())

	k, err = Sanitize("README")
	require.NoError(t, err)
	assert.Equal(t, "", k.Ext())
	assert.Equal(t, "README_x", k.WithSuffix("x").String())

	long, err := Sanitize(strings.Repeat("b", 300) + ".pdf")
	require.NoError(t, err)
	assert.Len(t, long.WithSuffix("12345678").String(), maxKeyLen)
}

func TestWithSuffix_StaysParseable(t *testing.T) {
	for _, name := range []string{
		"book.pdf",
		strings.Repeat("b", 300) + ".pdf",
		"x." + strings.Repeat("y", 300),
		"ab." + strings.Repeat("y", 189),
		"ab." + strings.Repeat("y", 190),
	} {
		k, err := Sanitize(name)
		require.NoError(t, err, name)

		suffixed := k.WithSuffix("deadbeef")
		assert.LessOrEqual(t, len(suffixed.String()), maxKeyLen, name)
		assert.Contains(t, suffixed.String(), "_deadbeef", name)
		_, err = ParseKey(suffixed.String())
		assert.NoError(t, err, name)
	}
}

func TestContentType(t *testing.T) {
	k, _ := Sanitize("book.pdf")
	assert.Equal(t, "application/pdf", ContentType(k))

	k, _ = Sanitize("blob.zzz")
	assert.Equal(t, "application/octet-stream", ContentType(k))
}
