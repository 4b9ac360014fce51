package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jwttoken "shieldvault/internal/jwt_token"
	grpctransport "shieldvault/internal/transport/grpc"
	"shieldvault/internal/vault/models"
	"shieldvault/internal/vault/service"
	"shieldvault/internal/vault/store/memory"
	dErrors "shieldvault/pkg/domain-errors"
	"shieldvault/pkg/testutil"
)

const testSigningKey = "cli-test-signing-key"

// run executes the command tree with args and returns what it printed.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return strings.TrimSpace(out.String()), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := run(t, args...)
	require.NoError(t, err, "shieldvault %s", strings.Join(args, " "))
	return out
}

func useSQLiteStore(t *testing.T) {
	t.Helper()
	t.Setenv("SHIELDVAULT_STORE_DRIVER", "sqlite")
	t.Setenv("SHIELDVAULT_STORE_DSN", "file:"+filepath.Join(t.TempDir(), "vault.db"))
	t.Setenv("SHIELDVAULT_LOG_LEVEL", "error")
}

func TestLocalLifecycle(t *testing.T) {
	useSQLiteStore(t)

	admin := testutil.Account("admin").String()
	user := testutil.Account("user").String()
	dex := testutil.Contract("dex").String()
	unlisted := testutil.Contract("unlisted").String()

	testutil.Given(t, "an initialized vault", func(t *testing.T) {
		mustRun(t, "--caller", admin, "init")
		assert.Equal(t, admin, mustRun(t, "admin"))
		assert.Equal(t, "safe 1000\nbalanced 10000", mustRun(t, "limits", "get"))

		_, err := run(t, "--caller", admin, "init")
		assert.Equal(t, dErrors.CodeConflict, dErrors.CodeOf(err))
	})

	testutil.When(t, "a safe caller targets a contract outside the allowlist", func(t *testing.T) {
		_, err := run(t, "--caller", user, "exec", dex, "500")
		require.Error(t, err)
		assert.Equal(t, 12, exitCode(err))
	})

	testutil.Then(t, "allowlisting it lets amounts up to the safe limit through", func(t *testing.T) {
		mustRun(t, "--caller", admin, "allowlist", "add", dex)
		assert.Equal(t, "true", mustRun(t, "allowlist", "has", dex))
		assert.Equal(t, dex, mustRun(t, "allowlist", "list"))

		assert.Equal(t, "allow (mode 0 safe)", mustRun(t, "--caller", user, "exec", dex, "500"))

		_, err := run(t, "--caller", user, "exec", dex, "1500")
		assert.Equal(t, 13, exitCode(err))
	})

	testutil.Then(t, "balanced mode warns on unlisted targets", func(t *testing.T) {
		mustRun(t, "--caller", user, "mode", "set", "balanced")
		assert.Equal(t, "1 balanced", mustRun(t, "mode", "get", user))

		out := mustRun(t, "--caller", user, "check", unlisted, "5000", "-o", "json")
		var resp models.DecisionResponse
		require.NoError(t, json.Unmarshal([]byte(out), &resp))
		assert.Equal(t, models.OutcomeAllow, resp.Outcome)
		assert.Len(t, resp.Warnings, 1)
	})

	testutil.Then(t, "an invalid mode is rejected and the stored mode kept", func(t *testing.T) {
		_, err := run(t, "--caller", user, "mode", "set", "3")
		assert.Equal(t, 14, exitCode(err))
		assert.Equal(t, "1 balanced", mustRun(t, "mode", "get", user))
	})

	testutil.Then(t, "only the admin manages the allowlist and limits", func(t *testing.T) {
		_, err := run(t, "--caller", user, "allowlist", "remove", dex)
		assert.Equal(t, 11, exitCode(err))

		_, err = run(t, "--caller", user, "limits", "set", "--safe", "1")
		assert.Equal(t, 11, exitCode(err))

		_, err = run(t, "--caller", user, "limits", "set", "--safe=-5")
		assert.Equal(t, 11, exitCode(err), "the admin gate answers before the limit is parsed")

		_, err = run(t, "--caller", user, "allowlist", "add", "not-an-identity")
		assert.Equal(t, 11, exitCode(err), "the admin gate answers before the target is parsed")

		_, err = run(t, "--caller", admin, "limits", "set", "--safe=-5")
		assert.Equal(t, dErrors.CodeValidation, dErrors.CodeOf(err))

		mustRun(t, "--caller", admin, "limits", "set", "--balanced", "20000")
		assert.Equal(t, "safe 1000\nbalanced 20000", mustRun(t, "limits", "get"))

		mustRun(t, "--caller", admin, "allowlist", "remove", dex)
		assert.Equal(t, "false", mustRun(t, "allowlist", "has", dex))
	})
}

func TestCheckReportsDenialWithoutFailing(t *testing.T) {
	useSQLiteStore(t)

	out := mustRun(t, "--caller", testutil.Account("user").String(), "check", testutil.Contract("dex").String(), "1")
	assert.True(t, strings.HasPrefix(out, "deny: contract_not_allowed (vault code 2)"), out)
}

func TestMutatingCommandsRequireCaller(t *testing.T) {
	useSQLiteStore(t)

	_, err := run(t, "mode", "set", "1")
	assert.ErrorIs(t, err, errCallerRequired)

	_, err = run(t, "exec", testutil.Contract("dex").String(), "1")
	assert.ErrorIs(t, err, errCallerRequired)
}

func TestLocalCommandsRefuseMemoryStore(t *testing.T) {
	t.Setenv("SHIELDVAULT_STORE_DRIVER", "memory")
	t.Setenv("SHIELDVAULT_LOG_LEVEL", "error")
	admin := testutil.Account("admin").String()

	_, err := run(t, "--caller", admin, "init")
	assert.ErrorIs(t, err, errEphemeralStore)

	_, err = run(t, "limits", "get")
	assert.ErrorIs(t, err, errEphemeralStore)

	_, err = run(t, "--caller", admin, "audit", "list")
	assert.ErrorIs(t, err, errEphemeralStore)
}

func TestArgumentValidation(t *testing.T) {
	useSQLiteStore(t)
	caller := testutil.Account("user").String()

	_, err := run(t, "--caller", caller, "exec", "not-an-identity", "1")
	assert.Equal(t, dErrors.CodeInvalidInput, dErrors.CodeOf(err))

	_, err = run(t, "--caller", caller, "exec", "--", testutil.Contract("dex").String(), "-5")
	assert.Equal(t, dErrors.CodeValidation, dErrors.CodeOf(err))

	_, err = run(t, "--caller", caller, "mode", "set", "reckless")
	assert.Equal(t, dErrors.CodeInvalidMode, dErrors.CodeOf(err))

	_, err = run(t, "--caller", caller, "-o", "yaml", "limits", "get")
	assert.ErrorContains(t, err, "unknown output format")
}

func TestRemoteLifecycle(t *testing.T) {
	t.Setenv("SHIELDVAULT_JWT_SIGNING_KEY", testSigningKey)
	t.Setenv("SHIELDVAULT_LOG_LEVEL", "error")

	logger := slog.New(slog.DiscardHandler)
	svc, err := service.New(memory.New(), service.WithLogger(logger))
	require.NoError(t, err)
	jwt := jwttoken.NewJWTService(testSigningKey, "shieldvault", "shieldvault")
	srv := grpctransport.New(svc, jwttoken.NewJWTServiceAdapter(jwt), logger, "op-token")

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.GracefulStop)
	addr := lis.Addr().String()

	admin := testutil.Account("admin").String()
	user := testutil.Account("user").String()
	dex := testutil.Contract("dex").String()

	_, err = run(t, "--remote", addr, "--caller", admin, "init")
	assert.Equal(t, dErrors.CodeUnauthorized, dErrors.CodeOf(err), "operator token is required")

	mustRun(t, "--remote", addr, "--caller", admin, "--operator-token", "op-token", "init")
	assert.Equal(t, admin, mustRun(t, "--remote", addr, "--caller", user, "admin"))

	mustRun(t, "--remote", addr, "--caller", admin, "allowlist", "add", dex)
	assert.Equal(t, "allow (mode 0 safe)", mustRun(t, "--remote", addr, "--caller", user, "exec", dex, "1000"))

	_, err = run(t, "--remote", addr, "--caller", user, "exec", dex, "1001")
	assert.Equal(t, 13, exitCode(err))

	token := mustRun(t, "--caller", user, "token")
	assert.Equal(t, "0 safe", mustRun(t, "--remote", addr, "--token", token, "mode", "get", user))
}

func TestVersion(t *testing.T) {
	out := mustRun(t, "version")
	var info map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, "shieldvault", info["name"])
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 11, exitCode(dErrors.New(dErrors.CodeUnauthorized, "x")))
	assert.Equal(t, 14, exitCode(dErrors.New(dErrors.CodeInvalidMode, "x")))
	assert.Equal(t, 1, exitCode(dErrors.New(dErrors.CodeConflict, "x")))
	assert.Equal(t, 1, exitCode(errCallerRequired))
}
