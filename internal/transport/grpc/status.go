package grpctransport

import (
	"bytes"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	dErrors "shieldvault/pkg/domain-errors"
)

// toStruct converts a JSON-tagged value into a protobuf Struct.
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

// amountFields must arrive as string values. Struct numbers are float64 and
// silently round above 2^53.
var amountFields = []string{"amount", "safe", "balanced"}

// fromStruct decodes s into dst by its JSON tags. Unknown fields are rejected.
func fromStruct(s *structpb.Struct, dst any) error {
	if s == nil {
		s = &structpb.Struct{}
	}
	for _, name := range amountFields {
		v, ok := s.GetFields()[name]
		if !ok {
			continue
		}
		if _, isString := v.GetKind().(*structpb.Value_StringValue); !isString {
			return dErrors.New(dErrors.CodeValidation, name+" must be a decimal string")
		}
	}
	raw, err := json.Marshal(s.AsMap())
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid request message")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid request message")
	}
	return nil
}

// codeFor maps a domain error code onto a gRPC status code.
func codeFor(code dErrors.Code) codes.Code {
	switch code {
	case dErrors.CodeUnauthorized, dErrors.CodeForbidden:
		return codes.PermissionDenied
	case dErrors.CodeContractNotAllowed, dErrors.CodeAmountExceedsLimit:
		return codes.FailedPrecondition
	case dErrors.CodeInvalidMode, dErrors.CodeValidation, dErrors.CodeBadRequest, dErrors.CodeInvalidInput:
		return codes.InvalidArgument
	case dErrors.CodeConflict:
		return codes.Aborted
	case dErrors.CodeNotFound:
		return codes.NotFound
	case dErrors.CodeTimeout:
		return codes.DeadlineExceeded
	case dErrors.CodeUnavailable:
		return codes.Unavailable
	default:
		return codes.Internal
	}
}

// toStatus converts a domain error into a gRPC status. The domain code and
// numeric vault code travel as a Struct detail so clients can rebuild the
// error exactly.
func toStatus(err error) error {
	code := dErrors.CodeOf(err)
	msg := dErrors.Message(err)
	if code == dErrors.CodeInternal {
		msg = "internal error"
	}

	detail := map[string]any{"error": string(code)}
	if n, ok := dErrors.VaultCode(code); ok {
		detail["vault_code"] = float64(n)
	}

	st := status.New(codeFor(code), msg)
	if d, derr := structpb.NewStruct(detail); derr == nil {
		if withDetail, werr := st.WithDetails(d); werr == nil {
			st = withDetail
		}
	}
	return st.Err()
}

// fromStatus rebuilds the domain error carried by a gRPC error.
func fromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return dErrors.Wrap(err, dErrors.CodeInternal, "internal error")
	}

	for _, d := range st.Details() {
		s, ok := d.(*structpb.Struct)
		if !ok {
			continue
		}
		if code, ok := s.GetFields()["error"]; ok && code.GetStringValue() != "" {
			return dErrors.New(dErrors.Code(code.GetStringValue()), st.Message())
		}
	}

	switch st.Code() {
	case codes.Unauthenticated:
		return dErrors.New(dErrors.CodeUnauthorized, st.Message())
	case codes.PermissionDenied:
		return dErrors.New(dErrors.CodeForbidden, st.Message())
	case codes.InvalidArgument:
		return dErrors.New(dErrors.CodeBadRequest, st.Message())
	case codes.NotFound:
		return dErrors.New(dErrors.CodeNotFound, st.Message())
	case codes.DeadlineExceeded, codes.Canceled:
		return dErrors.Wrap(err, dErrors.CodeTimeout, "vault server timeout")
	case codes.Unavailable:
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "vault server unavailable")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, st.Message())
	}
}

func unauthenticated(format string, args ...any) error {
	return status.Error(codes.Unauthenticated, fmt.Sprintf(format, args...))
}
