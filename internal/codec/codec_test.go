package codec

import (
	"crypto/rand"
	"errors"
	mrand "math/rand"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func wideAlphabet() string {
	symbols := []rune("0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz")
	for r := rune(0x4E00); len(symbols) < 2048; r++ {
		symbols = append(symbols, r)
	}
	return string(symbols)
}

func TestNewRejectsBadAlphabets(t *testing.T) {
	cases := map[string]string{
		"empty":          "",
		"not power of 2": "0123456789ABCDEFGHIJKLMNOPQRSTU",
		"too small":      "0123456789ABCDEF",
		"duplicate":      strings.Repeat("a", 32),
		"non printable":  "0123456789ABCDEFGHIJKLMNOPQRSTU\x01",
		"space":          "0123456789ABCDEFGHIJKLMNOPQRSTU ",
	}
	for name, alphabet := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := New(alphabet); !errors.Is(err, ErrConfiguration) {
				t.Fatalf("expected configuration error, got %v", err)
			}
		})
	}
}

func TestLengthFollowsAlphabetSize(t *testing.T) {
	cases := []struct {
		size int
		want int
	}{
		{32, 26},
		{64, 22},
		{128, 19},
		{2048, 12},
	}
	wide := []rune(wideAlphabet())
	for _, tc := range cases {
		c, err := New(string(wide[:tc.size]))
		if err != nil {
			t.Fatalf("new(%d): %v", tc.size, err)
		}
		if c.Length() != tc.want {
			t.Fatalf("size %d: expected length %d, got %d", tc.size, tc.want, c.Length())
		}
	}
}

func TestRoundTripRandomIdentifiers(t *testing.T) {
	c := MustNew(DefaultAlphabet)
	for i := 0; i < 2000; i++ {
		var id uuid.UUID
		if _, err := rand.Read(id[:]); err != nil {
			t.Fatalf("rand: %v", err)
		}
		enc := c.Encode(id)
		if len([]rune(enc)) != c.Length() {
			t.Fatalf("expected length %d, got %d (%q)", c.Length(), len(enc), enc)
		}
		dec, err := c.Decode(enc)
		if err != nil {
			t.Fatalf("decode %q: %v", enc, err)
		}
		if dec != id {
			t.Fatalf("round trip mismatch: %s != %s", dec, id)
		}
	}
}

func TestEncodeOfDecodeIsIdentity(t *testing.T) {
	c := MustNew(DefaultAlphabet)
	rng := mrand.New(mrand.NewSource(7))
	symbols := []rune(DefaultAlphabet)
	for i := 0; i < 500; i++ {
		s := make([]rune, c.Length())
		// the leading symbol carries only the top two bits
		s[0] = symbols[rng.Intn(4)]
		for j := 1; j < len(s); j++ {
			s[j] = symbols[rng.Intn(len(symbols))]
		}
		id, err := c.Decode(string(s))
		if err != nil {
			t.Fatalf("decode %q: %v", string(s), err)
		}
		if got := c.Encode(id); got != string(s) {
			t.Fatalf("expected %q, got %q", string(s), got)
		}
	}
}

func TestAllZeroIdentifier(t *testing.T) {
	c := MustNew(DefaultAlphabet)
	enc, err := c.EncodeString("00000000-0000-0000-0000-000000000000")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if enc != strings.Repeat("0", 22) {
		t.Fatalf("expected 22 leading symbols, got %q", enc)
	}
	canonical, err := c.DecodeString(enc)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if canonical != "00000000-0000-0000-0000-000000000000" {
		t.Fatalf("unexpected canonical form %s", canonical)
	}
}

func TestCompactScenarioIdentifier(t *testing.T) {
	c, err := New(wideAlphabet())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	id, err := c.Decode("Nf3x9QaB2yZ7")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := c.Encode(id); got != "Nf3x9QaB2yZ7" {
		t.Fatalf("expected round trip, got %q", got)
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	c := MustNew(DefaultAlphabet)
	cases := map[string]string{
		"short":    "abc",
		"long":     strings.Repeat("0", 23),
		"foreign":  strings.Repeat("0", 21) + "*",
		"overflow": "4" + strings.Repeat("0", 21),
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := c.Decode(in); !errors.Is(err, ErrFormat) {
				t.Fatalf("expected format error, got %v", err)
			}
		})
	}
	if _, err := c.EncodeString("not-a-uuid"); !errors.Is(err, ErrFormat) {
		t.Fatalf("expected format error for canonical input, got %v", err)
	}
}
