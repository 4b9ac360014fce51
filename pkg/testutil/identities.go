package testutil

import (
	"crypto/sha256"

	"shieldvault/pkg/domain"
)

// Account derives a deterministic account identity from a label, so tests can
// name principals ("admin", "alice") instead of spelling out hashes.
func Account(label string) domain.Identity {
	return domain.NewAccount(sha256.Sum256([]byte("account:" + label)))
}

// Contract derives a deterministic contract identity from a label.
func Contract(label string) domain.Identity {
	return domain.NewContract(sha256.Sum256([]byte("contract:" + label)))
}
