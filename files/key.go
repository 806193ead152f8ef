// Package files stores uploaded artifacts under sanitized keys.
//
// A Key can only be obtained through Sanitize or ParseKey, so every name that
// reaches a backend is a single path element made of [A-Za-z0-9_.-].
package files

import (
	"path"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/padraicbc/library/apperr"
)

const maxKeyLen = 200

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// Names that Windows treats as devices regardless of extension.
var reservedNames = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true, "COM5": true,
	"COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true, "LPT5": true,
	"LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

// Key is a validated storage key.
type Key struct {
	name string
}

func (k Key) String() string { return k.name }

// Ext returns the lower-cased extension without the dot, or "".
func (k Key) Ext() string {
	return strings.ToLower(strings.TrimPrefix(path.Ext(k.name), "."))
}

// WithSuffix returns the key with "_suffix" inserted before the extension.
// The stem is shortened to keep the key within maxKeyLen; an extension too
// long to leave room for a stem is treated as part of the stem, as in Sanitize.
func (k Key) WithSuffix(suffix string) Key {
	ext := path.Ext(k.name)
	if len(ext)+len(suffix)+2 > maxKeyLen {
		ext = ""
	}
	stem := strings.TrimSuffix(k.name, ext)
	if room := maxKeyLen - len(ext) - len(suffix) - 1; room > 0 && len(stem) > room {
		stem = stem[:room]
	}
	return Key{name: stem + "_" + suffix + ext}
}

// Sanitize turns a user-supplied filename into a Key. Non-ASCII letters are
// decomposed to their ASCII base, directory separators and whitespace become
// underscores, other unsafe characters are dropped, and leading or trailing
// dots and underscores are trimmed.
func Sanitize(filename string) (Key, error) {
	s := norm.NFKD.String(filename)
	s = strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return -1
		}
		return r
	}, s)
	s = strings.NewReplacer("/", " ", `\`, " ").Replace(s)
	s = strings.Join(strings.Fields(s), "_")
	s = unsafeChars.ReplaceAllString(s, "")
	s = strings.Trim(s, "._")

	if s == "" {
		return Key{}, apperr.Invalid("filename", "has no usable characters")
	}

	stem := s
	if i := strings.IndexByte(s, '.'); i >= 0 {
		stem = s[:i]
	}
	if reservedNames[strings.ToUpper(stem)] {
		s = "_" + s
	}

	if len(s) > maxKeyLen {
		ext := path.Ext(s)
		if len(ext) >= maxKeyLen {
			ext = ""
		}
		s = s[:maxKeyLen-len(ext)] + ext
	}
	return Key{name: s}, nil
}

// ParseKey accepts a name only if it is already in sanitized form. It is the
// entry point for caller-supplied names on reads.
func ParseKey(name string) (Key, error) {
	k, err := Sanitize(name)
	if err != nil {
		return Key{}, err
	}
	if k.name != name {
		return Key{}, apperr.Invalid("filename", "is not a valid storage key")
	}
	return k, nil
}
