package e2e

import (
	"os"
	"testing"

	"github.com/cucumber/godog"
)

// TestFeatures runs the feature files against the server named by
// SHIELDVAULT_E2E_URL. The server must start with an uninitialized vault.
func TestFeatures(t *testing.T) {
	if os.Getenv("SHIELDVAULT_E2E_URL") == "" {
		t.Skip("SHIELDVAULT_E2E_URL is not set")
	}

	tc := NewTestContext()
	suite := godog.TestSuite{
		ScenarioInitializer: func(ctx *godog.ScenarioContext) {
			RegisterSteps(ctx, tc)
		},
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			Strict:   true,
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("feature tests failed")
	}
}
