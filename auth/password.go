package auth

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/crypto/scrypt"
)

var errUnknownHash = errors.New("unknown password hash format")

// Passwords hashes new secrets with bcrypt and verifies both bcrypt hashes and
// the werkzeug pbkdf2/scrypt hashes found in imported user tables.
type Passwords struct {
	cost int
}

// NewPasswords returns a Passwords hashing at the given bcrypt cost.
func NewPasswords(cost int) *Passwords {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &Passwords{cost: cost}
}

// Hash returns a salted bcrypt hash of plain.
func (p *Passwords) Hash(plain string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(plain), p.cost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// Verify reports whether plain matches stored. Comparison is constant-time
// for every supported format.
func (p *Passwords) Verify(stored, plain string) (bool, error) {
	if strings.HasPrefix(stored, "$2") {
		err := bcrypt.CompareHashAndPassword([]byte(stored), []byte(plain))
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		return err == nil, err
	}
	return verifyWerkzeug(stored, plain)
}

// verifyWerkzeug handles "method$salt$hexdigest" where method is
// "pbkdf2:<hash>[:<iterations>]" or "scrypt[:<n>:<r>:<p>]".
func verifyWerkzeug(stored, plain string) (bool, error) {
	method, rest, ok := strings.Cut(stored, "$")
	if !ok {
		return false, errUnknownHash
	}
	salt, digestHex, ok := strings.Cut(rest, "$")
	if !ok {
		return false, errUnknownHash
	}
	want, err := hex.DecodeString(digestHex)
	if err != nil {
		return false, fmt.Errorf("%w: %v", errUnknownHash, err)
	}

	parts := strings.Split(method, ":")
	var got []byte
	switch parts[0] {
	case "pbkdf2":
		got, err = werkzeugPBKDF2(parts[1:], salt, plain)
	case "scrypt":
		got, err = werkzeugScrypt(parts[1:], salt, plain)
	default:
		return false, errUnknownHash
	}
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}

func werkzeugPBKDF2(args []string, salt, plain string) ([]byte, error) {
	name, iterations := "sha256", 600000
	if len(args) > 0 {
		name = args[0]
	}
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("%w: bad iteration count", errUnknownHash)
		}
		iterations = n
	}

	var (
		h    func() hash.Hash
		size int
	)
	switch name {
	case "sha1":
		h, size = sha1.New, sha1.Size
	case "sha256":
		h, size = sha256.New, sha256.Size
	case "sha512":
		h, size = sha512.New, sha512.Size
	default:
		return nil, fmt.Errorf("%w: pbkdf2 hash %q", errUnknownHash, name)
	}
	return pbkdf2.Key([]byte(plain), []byte(salt), iterations, size, h), nil
}

func werkzeugScrypt(args []string, salt, plain string) ([]byte, error) {
	n, r, p := 32768, 8, 1
	if len(args) == 3 {
		var err error
		if n, err = strconv.Atoi(args[0]); err != nil {
			return nil, fmt.Errorf("%w: bad scrypt n", errUnknownHash)
		}
		if r, err = strconv.Atoi(args[1]); err != nil {
			return nil, fmt.Errorf("%w: bad scrypt r", errUnknownHash)
		}
		if p, err = strconv.Atoi(args[2]); err != nil {
			return nil, fmt.Errorf("%w: bad scrypt p", errUnknownHash)
		}
	} else if len(args) != 0 {
		return nil, fmt.Errorf("%w: scrypt parameters", errUnknownHash)
	}
	key, err := scrypt.Key([]byte(plain), []byte(salt), n, r, p, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errUnknownHash, err)
	}
	return key, nil
}
