package models

import (
	"strings"

	"shieldvault/pkg/domain"
)

// Namespace groups persisted keys.
type Namespace string

const (
	NamespaceAdmin           Namespace = "admin"
	NamespaceSafeLimit       Namespace = "max_tx_amount_safe"
	NamespaceBalancedLimit   Namespace = "max_tx_amount_balanced"
	NamespaceAllowedContract Namespace = "allowed_contracts"
	NamespaceUserMode        Namespace = "user_mode"
)

// Key addresses one persisted value. Singleton values have an empty Subject;
// per-identity values carry the identity as Subject.
type Key struct {
	Namespace Namespace
	Subject   domain.Identity
}

var (
	KeyAdmin            = Key{Namespace: NamespaceAdmin}
	KeySafeLimit        = Key{Namespace: NamespaceSafeLimit}
	KeyBalancedLimit    = Key{Namespace: NamespaceBalancedLimit}
	KeyAllowedContracts = Key{Namespace: NamespaceAllowedContract}
)

// UserModeKey returns the key holding the safety mode of id.
func UserModeKey(id domain.Identity) Key {
	return Key{Namespace: NamespaceUserMode, Subject: id}
}

// String renders the storage form. Per-identity keys tag the identity kind
// so an account and a contract with the same hash never share a key:
// "user_mode:account:<hex>", "user_mode:contract:<hex>".
func (k Key) String() string {
	if k.Subject.IsZero() {
		return SanitizeKeySegment(string(k.Namespace))
	}
	return SanitizeKeySegment(string(k.Namespace)) + ":" +
		k.Subject.Kind().String() + ":" +
		k.Subject.HexHash()
}

// SanitizeKeySegment escapes delimiter characters in key segments so a
// segment can never be read as two.
func SanitizeKeySegment(s string) string {
	return strings.ReplaceAll(s, ":", "_")
}
