//go:build go1.18

package domain

import (
	"testing"
	"unicode/utf8"
)

// FuzzParseIdentity tests that parsing never panics on arbitrary input and
// that every accepted identity round-trips through its canonical form.
func FuzzParseIdentity(f *testing.F) {
	f.Add("")
	f.Add("account-hash-9f1c2d3e4f5a6b7c8d9e0f1a2b3c4d5e6f7a8b9c0d1e2f3a4b5c6d7e8f9a0b1c")
	f.Add("hash-0102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f20")
	f.Add("hash-")
	f.Add("user_mode:account:00")
	f.Add("'; DROP TABLE vault_kv;--")
	f.Add(string([]byte{0x00, 0x01, 0x02}))

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParseIdentity(input)
		if err != nil {
			return
		}

		if id.IsZero() || !id.Kind().IsValid() {
			t.Fatalf("accepted identity without a valid kind: %q", input)
		}

		roundTrip, err := ParseIdentity(id.String())
		if err != nil {
			t.Fatalf("canonical form failed to parse: %v", err)
		}
		if roundTrip != id {
			t.Fatal("round-trip changed identity")
		}

		if !utf8.ValidString(input) {
			t.Error("non-UTF8 input was accepted")
		}
	})
}
