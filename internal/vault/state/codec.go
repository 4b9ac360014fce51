package state

import (
	"fmt"
	"math/big"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"shieldvault/internal/vault/models"
	"shieldvault/pkg/domain"
)

// Values are stored as protobuf well-known types so every backend holds the
// same bytes. Modes are a single raw byte.

func encodeIdentity(id domain.Identity) ([]byte, error) {
	return proto.Marshal(wrapperspb.String(id.String()))
}

func decodeIdentity(b []byte) (domain.Identity, error) {
	var v wrapperspb.StringValue
	if err := proto.Unmarshal(b, &v); err != nil {
		return domain.Identity{}, fmt.Errorf("decode identity: %w", err)
	}
	id, err := domain.ParseIdentity(v.GetValue())
	if err != nil {
		return domain.Identity{}, fmt.Errorf("decode identity: %w", err)
	}
	return id, nil
}

// encodeAmount stores the big-endian magnitude. Negative values never reach
// here; limits are validated first.
func encodeAmount(v *big.Int) ([]byte, error) {
	if v == nil || v.Sign() < 0 {
		return nil, fmt.Errorf("encode amount: value must be non-negative")
	}
	return proto.Marshal(wrapperspb.Bytes(v.Bytes()))
}

func decodeAmount(b []byte) (*big.Int, error) {
	var v wrapperspb.BytesValue
	if err := proto.Unmarshal(b, &v); err != nil {
		return nil, fmt.Errorf("decode amount: %w", err)
	}
	if len(v.GetValue())*8 > models.MaxAmountBits {
		return nil, fmt.Errorf("decode amount: value exceeds %d bits", models.MaxAmountBits)
	}
	return new(big.Int).SetBytes(v.GetValue()), nil
}

// encodeAllowlist stores the members in identity order so equal sets encode
// to equal bytes.
func encodeAllowlist(s models.AllowedSet) ([]byte, error) {
	sorted := s.Sorted()
	values := make([]*structpb.Value, 0, len(sorted))
	for _, id := range sorted {
		values = append(values, structpb.NewStringValue(id.String()))
	}
	return proto.Marshal(&structpb.ListValue{Values: values})
}

func decodeAllowlist(b []byte) (models.AllowedSet, error) {
	var list structpb.ListValue
	if err := proto.Unmarshal(b, &list); err != nil {
		return nil, fmt.Errorf("decode allowlist: %w", err)
	}
	out := make(models.AllowedSet, len(list.GetValues()))
	for i, v := range list.GetValues() {
		sv, ok := v.GetKind().(*structpb.Value_StringValue)
		if !ok {
			return nil, fmt.Errorf("decode allowlist: entry %d is not a string", i)
		}
		id, err := domain.ParseIdentity(sv.StringValue)
		if err != nil {
			return nil, fmt.Errorf("decode allowlist: entry %d: %w", i, err)
		}
		out[id] = struct{}{}
	}
	return out, nil
}

func encodeMode(m models.SafetyMode) []byte {
	return []byte{byte(m)}
}

func decodeMode(b []byte) (models.SafetyMode, error) {
	if len(b) != 1 {
		return 0, fmt.Errorf("decode mode: want 1 byte, got %d", len(b))
	}
	return models.SafetyMode(b[0]), nil
}
