package domain

import (
	"slices"

	dErrors "shieldvault/pkg/domain-errors"
)

// APIVersion names a released version of the vault's network API. Routes and
// bearer tokens both carry one.
type APIVersion string

const APIVersionV1 APIVersion = "v1"

// apiVersions lists released versions, oldest first.
var apiVersions = []APIVersion{APIVersionV1}

// ParseAPIVersion accepts released versions only.
func ParseAPIVersion(s string) (APIVersion, error) {
	v := APIVersion(s)
	if !slices.Contains(apiVersions, v) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown api version "+s)
	}
	return v, nil
}

// DefaultVersion is stamped on newly minted tokens.
func DefaultVersion() APIVersion {
	return apiVersions[len(apiVersions)-1]
}

func (v APIVersion) String() string {
	return string(v)
}

func (v APIVersion) IsNil() bool {
	return v == ""
}

// Accepts reports whether a route serving v honours a token issued for
// token. Older tokens work on newer routes, never the reverse, and unknown
// versions are refused on both sides.
func (v APIVersion) Accepts(token APIVersion) bool {
	route := slices.Index(apiVersions, v)
	issued := slices.Index(apiVersions, token)
	return route >= 0 && issued >= 0 && issued <= route
}
