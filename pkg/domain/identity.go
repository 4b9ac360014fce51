package domain

import (
	"bytes"
	"encoding/hex"
	"strings"

	dErrors "shieldvault/pkg/domain-errors"
)

// IdentityKind distinguishes the two principal types that can call the vault
// or be targeted by an action.
type IdentityKind uint8

const (
	KindAccount  IdentityKind = 1
	KindContract IdentityKind = 2
)

// HashLength is the byte length of every identity hash.
const HashLength = 32

const (
	accountPrefix  = "account-hash-"
	contractPrefix = "hash-"
)

// String returns the storage tag of the kind. Tags never contain ':' so they
// are safe as a composite key segment.
func (k IdentityKind) String() string {
	switch k {
	case KindAccount:
		return "account"
	case KindContract:
		return "contract"
	default:
		return "unknown"
	}
}

// IsValid reports whether k is one of the supported kinds.
func (k IdentityKind) IsValid() bool {
	return k == KindAccount || k == KindContract
}

// Identity is an opaque principal reference: an account or a contract,
// addressed by a 32-byte hash. Identities are comparable with == and totally
// ordered by Compare (kind first, then hash bytes).
//
// Invariant: a non-zero Identity always has a valid kind. Construct through
// ParseIdentity, NewAccount or NewContract.
type Identity struct {
	kind IdentityKind
	hash [HashLength]byte
}

// NewAccount builds an account identity from its hash.
func NewAccount(hash [HashLength]byte) Identity {
	return Identity{kind: KindAccount, hash: hash}
}

// NewContract builds a contract identity from its hash.
func NewContract(hash [HashLength]byte) Identity {
	return Identity{kind: KindContract, hash: hash}
}

// ParseIdentity parses the canonical text forms "account-hash-<64 hex>" and
// "hash-<64 hex>". Hex digits may be upper or lower case; String always
// renders lower case.
func ParseIdentity(s string) (Identity, error) {
	if s == "" {
		return Identity{}, dErrors.New(dErrors.CodeInvalidInput, "identity is required")
	}
	if len(s) > len(accountPrefix)+2*HashLength {
		return Identity{}, dErrors.New(dErrors.CodeInvalidInput, "identity is too long")
	}

	var kind IdentityKind
	var encoded string
	switch {
	case strings.HasPrefix(s, accountPrefix):
		kind, encoded = KindAccount, s[len(accountPrefix):]
	case strings.HasPrefix(s, contractPrefix):
		kind, encoded = KindContract, s[len(contractPrefix):]
	default:
		return Identity{}, dErrors.New(dErrors.CodeInvalidInput, "identity must start with 'account-hash-' or 'hash-'")
	}

	if len(encoded) != 2*HashLength {
		return Identity{}, dErrors.New(dErrors.CodeInvalidInput, "identity hash must be 64 hex characters")
	}
	var hash [HashLength]byte
	if _, err := hex.Decode(hash[:], []byte(encoded)); err != nil {
		return Identity{}, dErrors.New(dErrors.CodeInvalidInput, "identity hash must be hex encoded")
	}
	return Identity{kind: kind, hash: hash}, nil
}

// MustParseIdentity is ParseIdentity for constants and tests.
func MustParseIdentity(s string) Identity {
	id, err := ParseIdentity(s)
	if err != nil {
		panic(err)
	}
	return id
}

// Kind returns the identity kind; zero for the zero Identity.
func (i Identity) Kind() IdentityKind {
	return i.kind
}

// Hash returns a copy of the identity hash.
func (i Identity) Hash() [HashLength]byte {
	return i.hash
}

// IsZero reports whether i is the zero value.
func (i Identity) IsZero() bool {
	return i.kind == 0
}

// HexHash returns the lower-case hex encoding of the hash.
func (i Identity) HexHash() string {
	return hex.EncodeToString(i.hash[:])
}

func (i Identity) String() string {
	switch i.kind {
	case KindAccount:
		return accountPrefix + i.HexHash()
	case KindContract:
		return contractPrefix + i.HexHash()
	default:
		return ""
	}
}

// Compare orders identities by kind, then hash bytes. It returns -1, 0 or +1.
func (i Identity) Compare(other Identity) int {
	switch {
	case i.kind < other.kind:
		return -1
	case i.kind > other.kind:
		return 1
	}
	return bytes.Compare(i.hash[:], other.hash[:])
}

func (i Identity) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

func (i *Identity) UnmarshalText(text []byte) error {
	parsed, err := ParseIdentity(string(text))
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}
