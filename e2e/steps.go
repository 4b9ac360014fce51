package e2e

import (
	"github.com/cucumber/godog"

	"shieldvault/e2e/steps/common"
	"shieldvault/e2e/steps/vault"
)

// RegisterSteps wires the HTTP plumbing steps and the vault policy steps onto
// one scenario.
func RegisterSteps(sc *godog.ScenarioContext, tc *TestContext) {
	common.RegisterSteps(sc, tc)
	vault.RegisterSteps(sc, tc)
}
