package vault

import (
	"context"
	"fmt"
	"net/http"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	Do(method, path, identity string, body any, headers map[string]string) error
	LastStatus() int
	GetResponseField(field string) (any, error)
	Account(label string) string
	Contract(label string) string
	Operator() string
}

// RegisterSteps registers vault operation steps
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &vaultSteps{tc: tc}

	ctx.Step(`^account "([^"]*)" initializes the vault$`, steps.initialize)
	ctx.Step(`^account "([^"]*)" executes an action on contract "([^"]*)" for (\d+)$`, steps.executeAction)
	ctx.Step(`^account "([^"]*)" checks an action on contract "([^"]*)" for (\d+)$`, steps.checkAction)
	ctx.Step(`^account "([^"]*)" allowlists contract "([^"]*)"$`, steps.allowlist)
	ctx.Step(`^account "([^"]*)" removes contract "([^"]*)" from the allowlist$`, steps.unlist)
	ctx.Step(`^account "([^"]*)" sets mode (\d+)$`, steps.setMode)
	ctx.Step(`^account "([^"]*)" sets the safe limit to (\d+)$`, steps.setSafeLimit)

	ctx.Step(`^the admin should be account "([^"]*)"$`, steps.adminShouldBe)
	ctx.Step(`^the mode of account "([^"]*)" should be (\d+)$`, steps.modeShouldBe)
	ctx.Step(`^contract "([^"]*)" should be allowlisted$`, steps.shouldBeAllowlisted)
	ctx.Step(`^contract "([^"]*)" should not be allowlisted$`, steps.shouldNotBeAllowlisted)
	ctx.Step(`^the limits should be (\d+) and (\d+)$`, steps.limitsShouldBe)
	ctx.Step(`^the allowlist should be empty$`, steps.allowlistShouldBeEmpty)
}

type vaultSteps struct {
	tc TestContext
}

func (s *vaultSteps) initialize(ctx context.Context, who string) error {
	return s.tc.Do(http.MethodPost, "/v1/vault/initialize", s.tc.Account(who), nil,
		map[string]string{"X-Operator-Token": s.tc.Operator()})
}

func (s *vaultSteps) executeAction(ctx context.Context, who, target string, amount int) error {
	return s.tc.Do(http.MethodPost, "/v1/vault/actions", s.tc.Account(who), map[string]any{
		"target": s.tc.Contract(target),
		"amount": fmt.Sprint(amount),
	}, nil)
}

func (s *vaultSteps) checkAction(ctx context.Context, who, target string, amount int) error {
	return s.tc.Do(http.MethodPost, "/v1/vault/actions/check", s.tc.Account(who), map[string]any{
		"target": s.tc.Contract(target),
		"amount": fmt.Sprint(amount),
	}, nil)
}

func (s *vaultSteps) allowlist(ctx context.Context, who, target string) error {
	return s.tc.Do(http.MethodPost, "/v1/vault/allowlist", s.tc.Account(who),
		map[string]any{"target": s.tc.Contract(target)}, nil)
}

func (s *vaultSteps) unlist(ctx context.Context, who, target string) error {
	return s.tc.Do(http.MethodDelete, "/v1/vault/allowlist/"+s.tc.Contract(target), s.tc.Account(who), nil, nil)
}

func (s *vaultSteps) setMode(ctx context.Context, who string, mode int) error {
	return s.tc.Do(http.MethodPut, "/v1/vault/mode", s.tc.Account(who), map[string]any{"mode": mode}, nil)
}

func (s *vaultSteps) setSafeLimit(ctx context.Context, who string, limit int) error {
	return s.tc.Do(http.MethodPatch, "/v1/vault/limits", s.tc.Account(who),
		map[string]any{"safe": fmt.Sprint(limit)}, nil)
}

// query runs a read as a throwaway observer so assertions never depend on
// the caller of the previous step.
func (s *vaultSteps) query(path string) error {
	if err := s.tc.Do(http.MethodGet, path, s.tc.Account("observer"), nil, nil); err != nil {
		return err
	}
	if status := s.tc.LastStatus(); status != http.StatusOK {
		return fmt.Errorf("GET %s returned %d", path, status)
	}
	return nil
}

func (s *vaultSteps) field(path, field string) (string, error) {
	if err := s.query(path); err != nil {
		return "", err
	}
	v, err := s.tc.GetResponseField(field)
	if err != nil {
		return "", err
	}
	return fmt.Sprint(v), nil
}

func (s *vaultSteps) adminShouldBe(ctx context.Context, who string) error {
	got, err := s.field("/v1/vault/admin", "admin")
	if err != nil {
		return err
	}
	if want := s.tc.Account(who); got != want {
		return fmt.Errorf("expected admin %s, got %s", want, got)
	}
	return nil
}

func (s *vaultSteps) modeShouldBe(ctx context.Context, who string, mode int) error {
	got, err := s.field("/v1/vault/mode/"+s.tc.Account(who), "mode")
	if err != nil {
		return err
	}
	if got != fmt.Sprint(mode) {
		return fmt.Errorf("expected mode %d, got %s", mode, got)
	}
	return nil
}

func (s *vaultSteps) allowed(target string) (string, error) {
	return s.field("/v1/vault/allowlist/"+s.tc.Contract(target), "allowed")
}

func (s *vaultSteps) shouldBeAllowlisted(ctx context.Context, target string) error {
	got, err := s.allowed(target)
	if err != nil {
		return err
	}
	if got != "true" {
		return fmt.Errorf("expected contract %q to be allowlisted", target)
	}
	return nil
}

func (s *vaultSteps) shouldNotBeAllowlisted(ctx context.Context, target string) error {
	got, err := s.allowed(target)
	if err != nil {
		return err
	}
	if got != "false" {
		return fmt.Errorf("expected contract %q not to be allowlisted", target)
	}
	return nil
}

func (s *vaultSteps) limitsShouldBe(ctx context.Context, safe, balanced int) error {
	gotSafe, err := s.field("/v1/vault/limits", "safe")
	if err != nil {
		return err
	}
	gotBalanced, err := s.tc.GetResponseField("balanced")
	if err != nil {
		return err
	}
	if gotSafe != fmt.Sprint(safe) || fmt.Sprint(gotBalanced) != fmt.Sprint(balanced) {
		return fmt.Errorf("expected limits %d/%d, got %s/%v", safe, balanced, gotSafe, gotBalanced)
	}
	return nil
}

func (s *vaultSteps) allowlistShouldBeEmpty(ctx context.Context) error {
	if err := s.query("/v1/vault/allowlist"); err != nil {
		return err
	}
	v, err := s.tc.GetResponseField("contracts")
	if err != nil {
		return err
	}
	if list, ok := v.([]any); !ok || len(list) != 0 {
		return fmt.Errorf("expected an empty allowlist, got %v", v)
	}
	return nil
}
