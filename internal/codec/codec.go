// Package codec converts 128-bit account identifiers between canonical uuid
// text and compact fixed-length strings over a configurable alphabet.
package codec

import (
	"errors"
	"fmt"
	"math/big"
	"math/bits"
	"unicode"

	"github.com/google/uuid"
)

// DefaultAlphabet is the 64-symbol URL-safe alphabet used for compact account
// identifiers. It yields 22-character identifiers.
const DefaultAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz-_"

const idBits = 128

var (
	// ErrConfiguration reports an alphabet that cannot back a codec.
	ErrConfiguration = errors.New("invalid identifier alphabet")

	// ErrFormat reports a malformed canonical or compact identifier.
	ErrFormat = errors.New("malformed identifier")
)

var maxID = new(big.Int).Lsh(big.NewInt(1), idBits)

// Codec converts 128-bit identifiers to and from a fixed-length string over a
// power-of-two alphabet.
type Codec struct {
	symbols []rune
	index   map[rune]int
	shift   uint
	length  int
}

// New builds a codec for the given alphabet. The alphabet must hold 2^n
// distinct printable runes with n > 4.
func New(alphabet string) (*Codec, error) {
	symbols := []rune(alphabet)
	size := len(symbols)
	if size == 0 || size&(size-1) != 0 {
		return nil, fmt.Errorf("%w: size %d is not a power of two", ErrConfiguration, size)
	}
	shift := uint(bits.TrailingZeros(uint(size)))
	if shift <= 4 {
		return nil, fmt.Errorf("%w: need more than 16 symbols, got %d", ErrConfiguration, size)
	}

	index := make(map[rune]int, size)
	for i, r := range symbols {
		if !unicode.IsPrint(r) || unicode.IsSpace(r) {
			return nil, fmt.Errorf("%w: symbol %q at %d is not printable", ErrConfiguration, r, i)
		}
		if _, dup := index[r]; dup {
			return nil, fmt.Errorf("%w: duplicate symbol %q", ErrConfiguration, r)
		}
		index[r] = i
	}

	return &Codec{
		symbols: symbols,
		index:   index,
		shift:   shift,
		length:  (idBits + int(shift) - 1) / int(shift),
	}, nil
}

// MustNew is New for alphabets known to be valid at compile time.
func MustNew(alphabet string) *Codec {
	c, err := New(alphabet)
	if err != nil {
		panic(err)
	}
	return c
}

// Length is the fixed rune length of every compact identifier.
func (c *Codec) Length() int { return c.length }

// Alphabet returns the alphabet the codec was built with.
func (c *Codec) Alphabet() string { return string(c.symbols) }

// Encode renders id in compact form.
func (c *Codec) Encode(id uuid.UUID) string {
	n := new(big.Int).SetBytes(id[:])
	base := big.NewInt(int64(len(c.symbols)))
	digit := new(big.Int)

	out := make([]rune, c.length)
	for i := c.length - 1; i >= 0; i-- {
		n.DivMod(n, base, digit)
		out[i] = c.symbols[digit.Int64()]
	}
	return string(out)
}

// EncodeString parses a canonical identifier and renders it in compact form.
func (c *Codec) EncodeString(canonical string) (string, error) {
	id, err := uuid.Parse(canonical)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFormat, err)
	}
	return c.Encode(id), nil
}

// Decode parses a compact identifier.
func (c *Codec) Decode(s string) (uuid.UUID, error) {
	runes := []rune(s)
	if len(runes) != c.length {
		return uuid.Nil, fmt.Errorf("%w: length %d, want %d", ErrFormat, len(runes), c.length)
	}

	n := new(big.Int)
	for pos, r := range runes {
		v, ok := c.index[r]
		if !ok {
			return uuid.Nil, fmt.Errorf("%w: symbol %q at %d not in alphabet", ErrFormat, r, pos)
		}
		n.Lsh(n, c.shift)
		n.Or(n, big.NewInt(int64(v)))
	}
	if n.Cmp(maxID) >= 0 {
		return uuid.Nil, fmt.Errorf("%w: value exceeds 128 bits", ErrFormat)
	}

	var id uuid.UUID
	n.FillBytes(id[:])
	return id, nil
}

// DecodeString parses a compact identifier and renders its canonical form.
func (c *Codec) DecodeString(s string) (string, error) {
	id, err := c.Decode(s)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Mint draws a fresh random identifier and returns both of its forms.
func (c *Codec) Mint() (uuid.UUID, string) {
	id := uuid.New()
	return id, c.Encode(id)
}
