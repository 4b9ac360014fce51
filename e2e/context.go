package e2e

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TestContext drives a running shieldvault server over HTTP. Identities are
// named by label in feature files and bound to random hashes once per run,
// so a suite can be replayed against the same server.
type TestContext struct {
	BaseURL       string
	OperatorToken string
	SigningKey    []byte
	Issuer        string
	Audience      string

	client     *http.Client
	identities map[string]string

	lastStatus int
	lastBody   []byte
}

// NewTestContext reads the target server from SHIELDVAULT_E2E_* variables.
func NewTestContext() *TestContext {
	return &TestContext{
		BaseURL:       envOr("SHIELDVAULT_E2E_URL", "http://localhost:8080"),
		OperatorToken: os.Getenv("SHIELDVAULT_E2E_OPERATOR_TOKEN"),
		SigningKey:    []byte(envOr("SHIELDVAULT_E2E_SIGNING_KEY", "dev-secret-key-change-in-production")),
		Issuer:        envOr("SHIELDVAULT_E2E_ISSUER", "shieldvault"),
		Audience:      envOr("SHIELDVAULT_E2E_AUDIENCE", "shieldvault"),
		client:        &http.Client{Timeout: 10 * time.Second},
		identities:    make(map[string]string),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Account returns the account identity bound to label.
func (tc *TestContext) Account(label string) string {
	return tc.identity("account-hash-", label)
}

// Contract returns the contract identity bound to label.
func (tc *TestContext) Contract(label string) string {
	return tc.identity("hash-", label)
}

func (tc *TestContext) identity(prefix, label string) string {
	key := prefix + label
	if id, ok := tc.identities[key]; ok {
		return id
	}
	var b [32]byte
	_, _ = rand.Read(b[:])
	id := prefix + hex.EncodeToString(b[:])
	tc.identities[key] = id
	return id
}

// Token signs an access token whose subject is identity.
func (tc *TestContext) Token(identity string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":     identity,
		"iss":     tc.Issuer,
		"aud":     []string{tc.Audience},
		"iat":     now.Unix(),
		"exp":     now.Add(5 * time.Minute).Unix(),
		"api_ver": "v1",
	})
	return token.SignedString(tc.SigningKey)
}

// Do sends a request as identity (unauthenticated when empty) and records
// the response.
func (tc *TestContext) Do(method, path, identity string, body any, headers map[string]string) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, tc.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if identity != "" {
		token, err := tc.Token(identity)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := tc.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	tc.lastStatus = resp.StatusCode
	tc.lastBody, err = io.ReadAll(resp.Body)
	return err
}

func (tc *TestContext) Operator() string {
	return tc.OperatorToken
}

func (tc *TestContext) LastStatus() int {
	return tc.lastStatus
}

// GetResponseField returns a top-level field of the last JSON response.
func (tc *TestContext) GetResponseField(field string) (any, error) {
	var body map[string]any
	if err := json.Unmarshal(tc.lastBody, &body); err != nil {
		return nil, fmt.Errorf("response is not a JSON object: %w: %s", err, tc.lastBody)
	}
	v, ok := body[field]
	if !ok {
		return nil, fmt.Errorf("response has no field %q: %s", field, tc.lastBody)
	}
	return v, nil
}

func (tc *TestContext) LastBody() []byte {
	return tc.lastBody
}
