package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"shieldvault/internal/vault/handler/mocks"
	"shieldvault/internal/vault/models"
	"shieldvault/pkg/domain"
	dErrors "shieldvault/pkg/domain-errors"
	"shieldvault/pkg/platform/middleware/admin"
	"shieldvault/pkg/requestcontext"
	"shieldvault/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

const (
	testOperatorToken = "operator-secret"
	headerTestCaller  = "X-Test-Caller"
)

type VaultHandlerSuite struct {
	suite.Suite
	vault  *mocks.MockService
	router chi.Router
	caller domain.Identity
	dex    domain.Identity
}

func TestVaultHandlerSuite(t *testing.T) {
	suite.Run(t, new(VaultHandlerSuite))
}

func (s *VaultHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.vault = mocks.NewMockService(ctrl)
	s.router = newTestRouter(New(s.vault, slog.New(slog.NewTextHandler(io.Discard, nil)), testOperatorToken))
	s.caller = testutil.Account("caller")
	s.dex = testutil.Contract("dex")
}

// newTestRouter stands in for the auth middleware: the caller is taken from
// a test header.
func newTestRouter(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if raw := r.Header.Get(headerTestCaller); raw != "" {
				ctx = requestcontext.WithCaller(ctx, domain.MustParseIdentity(raw))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	h.Register(r)
	return r
}

func (s *VaultHandlerSuite) do(req *http.Request) *httptest.ResponseRecorder {
	req.Header.Set(headerTestCaller, s.caller.String())
	return testutil.DoRequest(s.router, req)
}

func (s *VaultHandlerSuite) expectAdmin(op models.AdminOperation) {
	s.vault.EXPECT().AuthorizeAdmin(gomock.Any(), s.caller, op).Return(nil)
}

func (s *VaultHandlerSuite) rejectAdmin(op models.AdminOperation) {
	s.vault.EXPECT().AuthorizeAdmin(gomock.Any(), s.caller, op).
		Return(dErrors.New(dErrors.CodeUnauthorized, "caller is not the admin"))
}

// =============================================================================
// Initialize
// =============================================================================

func (s *VaultHandlerSuite) TestInitialize() {
	s.Run("requires operator token", func() {
		rr := s.do(testutil.NewRequest(s.T(), http.MethodPost, "/vault/initialize"))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusUnauthorized, "unauthorized")
	})

	s.Run("caller becomes admin", func() {
		s.vault.EXPECT().Initialize(gomock.Any(), s.caller).Return(nil)

		req := testutil.NewRequest(s.T(), http.MethodPost, "/vault/initialize")
		req.Header.Set(admin.HeaderOperatorToken, testOperatorToken)
		rr := s.do(req)

		testutil.AssertStatus(s.T(), rr, http.StatusCreated)
		resp := testutil.UnmarshalResponse[models.AdminResponse](s.T(), rr)
		s.Equal(s.caller.String(), resp.Admin)
	})

	s.Run("second initialize conflicts", func() {
		s.vault.EXPECT().Initialize(gomock.Any(), s.caller).
			Return(dErrors.New(dErrors.CodeConflict, "vault is already initialized"))

		req := testutil.NewRequest(s.T(), http.MethodPost, "/vault/initialize")
		req.Header.Set(admin.HeaderOperatorToken, testOperatorToken)
		rr := s.do(req)

		testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, "conflict")
	})
}

// =============================================================================
// Mode
// =============================================================================

func (s *VaultHandlerSuite) TestSetMode() {
	s.Run("sets caller mode", func() {
		s.vault.EXPECT().SetMode(gomock.Any(), s.caller, models.ModeBalanced).Return(nil)

		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPut, "/vault/mode", map[string]any{"mode": 1}))

		testutil.AssertStatusOK(s.T(), rr)
		resp := testutil.UnmarshalResponse[models.ModeResponse](s.T(), rr)
		s.Equal(uint8(1), resp.Mode)
		s.Equal("balanced", resp.Name)
		s.Equal(s.caller.String(), resp.Identity)
	})

	s.Run("out-of-range mode carries vault code 4", func() {
		s.vault.EXPECT().SetMode(gomock.Any(), s.caller, models.SafetyMode(7)).
			Return(dErrors.New(dErrors.CodeInvalidMode, "unknown safety mode 7"))

		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPut, "/vault/mode", map[string]any{"mode": 7}))

		testutil.AssertVaultError(s.T(), rr, http.StatusBadRequest, "invalid_mode", 4)
	})

	s.Run("missing mode is rejected before the service", func() {
		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPut, "/vault/mode", map[string]any{}))
		testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
	})

	s.Run("unknown fields are rejected", func() {
		rr := s.do(testutil.NewRequestWithBody(s.T(), http.MethodPut, "/vault/mode", `{"mode":1,"who":"me"}`))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "bad_request")
	})
}

func (s *VaultHandlerSuite) TestGetMode() {
	s.Run("reads mode of path identity", func() {
		other := testutil.Account("other")
		s.vault.EXPECT().GetMode(gomock.Any(), other).Return(models.ModeDegenerate, nil)

		rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/vault/mode/"+other.String()))

		testutil.AssertStatusOK(s.T(), rr)
		resp := testutil.UnmarshalResponse[models.ModeResponse](s.T(), rr)
		s.Equal("degenerate", resp.Name)
	})

	s.Run("malformed identity", func() {
		rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/vault/mode/not-an-identity"))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "invalid_input")
	})
}

// =============================================================================
// Actions
// =============================================================================

func (s *VaultHandlerSuite) TestExecuteAction() {
	body := map[string]any{"target": s.dex.String(), "amount": "500"}
	want := actionMatcher{models.ActionRequest{Caller: s.caller, Target: s.dex, Amount: big.NewInt(500)}}

	s.Run("allowed action returns decision", func() {
		s.vault.EXPECT().ExecuteAction(gomock.Any(), want).
			Return(ptr(models.Allow(models.ModeSafe)), nil)

		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/vault/actions", body))

		testutil.AssertStatusOK(s.T(), rr)
		resp := testutil.UnmarshalResponse[models.DecisionResponse](s.T(), rr)
		s.Equal(models.OutcomeAllow, resp.Outcome)
		s.Empty(resp.Error)
	})

	s.Run("denied action maps to 422 with vault code", func() {
		s.vault.EXPECT().ExecuteAction(gomock.Any(), want).
			Return(nil, models.Deny(models.ModeSafe, models.KindContractNotAllowed, "target is not allowlisted").Err())

		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/vault/actions", body))

		testutil.AssertVaultError(s.T(), rr, http.StatusUnprocessableEntity, "contract_not_allowed", 2)
	})

	s.Run("amount as JSON number", func() {
		s.vault.EXPECT().ExecuteAction(gomock.Any(), want).
			Return(ptr(models.Allow(models.ModeSafe)), nil)

		rr := s.do(testutil.NewRequestWithBody(s.T(), http.MethodPost, "/vault/actions",
			`{"target":"`+s.dex.String()+`","amount":500}`))
		testutil.AssertStatusOK(s.T(), rr)
	})

	s.Run("negative amount never reaches the service", func() {
		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/vault/actions",
			map[string]any{"target": s.dex.String(), "amount": "-1"}))
		testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
	})

	s.Run("internal errors hide their message", func() {
		s.vault.EXPECT().ExecuteAction(gomock.Any(), want).
			Return(nil, dErrors.Wrap(errors.New("disk on fire"), dErrors.CodeInternal, "vault store failure"))

		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/vault/actions", body))

		testutil.AssertStatus(s.T(), rr, http.StatusInternalServerError)
		resp := testutil.UnmarshalErrorResponse(s.T(), rr)
		s.Equal("internal_error", resp["error"])
		s.NotContains(resp, "error_description")
	})
}

func (s *VaultHandlerSuite) TestCheckAction() {
	denied := models.Deny(models.ModeSafe, models.KindAmountExceedsLimit, "amount exceeds safe limit")
	s.vault.EXPECT().CheckAction(gomock.Any(), gomock.Any()).Return(&denied, nil)

	rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/vault/actions/check",
		map[string]any{"target": s.dex.String(), "amount": "5000"}))

	testutil.AssertStatusOK(s.T(), rr)
	resp := testutil.UnmarshalResponse[models.DecisionResponse](s.T(), rr)
	s.Equal(models.OutcomeDeny, resp.Outcome)
	s.Equal("amount_exceeds_limit", resp.Error)
	s.Equal(uint16(3), resp.VaultCode)
}

// =============================================================================
// Allowlist and limits
// =============================================================================

func (s *VaultHandlerSuite) TestAllowlist() {
	s.Run("add", func() {
		s.expectAdmin(models.OpAddAllowedContract)
		s.vault.EXPECT().AddAllowedContract(gomock.Any(), s.caller, s.dex).Return(nil)

		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/vault/allowlist",
			map[string]any{"target": s.dex.String()}))

		testutil.AssertStatusOK(s.T(), rr)
		testutil.AssertJSONContains(s.T(), rr, "allowed", true)
	})

	s.Run("add by non-admin", func() {
		s.rejectAdmin(models.OpAddAllowedContract)

		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/vault/allowlist",
			map[string]any{"target": s.dex.String()}))

		testutil.AssertVaultError(s.T(), rr, http.StatusUnauthorized, "unauthorized", 1)
	})

	s.Run("non-admin with a malformed target still sees unauthorized", func() {
		s.rejectAdmin(models.OpAddAllowedContract)

		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/vault/allowlist",
			map[string]any{"target": "not-an-identity"}))

		testutil.AssertVaultError(s.T(), rr, http.StatusUnauthorized, "unauthorized", 1)
	})

	s.Run("non-admin removing a malformed path identity sees unauthorized", func() {
		s.rejectAdmin(models.OpRemoveAllowedContract)

		rr := s.do(testutil.NewRequest(s.T(), http.MethodDelete, "/vault/allowlist/not-an-identity"))

		testutil.AssertVaultError(s.T(), rr, http.StatusUnauthorized, "unauthorized", 1)
	})

	s.Run("admin with a malformed target gets a validation error", func() {
		s.expectAdmin(models.OpAddAllowedContract)

		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/vault/allowlist",
			map[string]any{"target": ""}))

		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")
	})

	s.Run("remove", func() {
		s.expectAdmin(models.OpRemoveAllowedContract)
		s.vault.EXPECT().RemoveAllowedContract(gomock.Any(), s.caller, s.dex).Return(nil)

		rr := s.do(testutil.NewRequest(s.T(), http.MethodDelete, "/vault/allowlist/"+s.dex.String()))

		testutil.AssertStatusOK(s.T(), rr)
		testutil.AssertJSONContains(s.T(), rr, "allowed", false)
	})

	s.Run("has", func() {
		s.vault.EXPECT().IsAllowed(gomock.Any(), s.dex).Return(true, nil)

		rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/vault/allowlist/"+s.dex.String()))

		testutil.AssertStatusOK(s.T(), rr)
		testutil.AssertJSONContains(s.T(), rr, "allowed", true)
	})

	s.Run("list", func() {
		s.vault.EXPECT().ListAllowedContracts(gomock.Any()).Return([]domain.Identity{s.dex}, nil)

		rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/vault/allowlist"))

		testutil.AssertStatusOK(s.T(), rr)
		resp := testutil.UnmarshalResponse[models.AllowlistResponse](s.T(), rr)
		s.Equal([]string{s.dex.String()}, resp.Contracts)
	})
}

func (s *VaultHandlerSuite) TestLimits() {
	s.Run("get", func() {
		s.vault.EXPECT().Limits(gomock.Any()).Return(models.DefaultLimits(), nil)

		rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/vault/limits"))

		testutil.AssertStatusOK(s.T(), rr)
		resp := testutil.UnmarshalResponse[models.LimitsResponse](s.T(), rr)
		s.Equal("1000", resp.Safe)
		s.Equal("10000", resp.Balanced)
	})

	s.Run("partial update", func() {
		s.expectAdmin(models.OpUpdateLimits)
		s.vault.EXPECT().UpdateLimits(gomock.Any(), s.caller, gomock.Any()).
			DoAndReturn(func(_ context.Context, _ domain.Identity, u models.LimitsUpdate) error {
				require.NotNil(s.T(), u.Safe)
				s.Equal("2500", u.Safe.String())
				s.Nil(u.Balanced)
				return nil
			})
		s.vault.EXPECT().Limits(gomock.Any()).Return(models.Limits{Safe: big.NewInt(2500), Balanced: big.NewInt(10000)}, nil)

		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPatch, "/vault/limits", map[string]any{"safe": "2500"}))

		testutil.AssertStatusOK(s.T(), rr)
		testutil.AssertJSONContains(s.T(), rr, "safe", "2500")
	})

	s.Run("non-admin with a negative limit sees unauthorized", func() {
		s.rejectAdmin(models.OpUpdateLimits)

		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPatch, "/vault/limits", map[string]any{"safe": "-5"}))

		testutil.AssertVaultError(s.T(), rr, http.StatusUnauthorized, "unauthorized", 1)
	})

	s.Run("admin with a negative limit gets a validation error", func() {
		s.expectAdmin(models.OpUpdateLimits)

		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPatch, "/vault/limits", map[string]any{"safe": "-5"}))

		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")
	})
}

func TestHandler_MissingCallerIsInternalError(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := New(mocks.NewMockService(ctrl), slog.New(slog.DiscardHandler), testOperatorToken)
	r := chi.NewRouter()
	h.Register(r)

	rr := testutil.DoRequest(r, testutil.NewJSONRequest(t, http.MethodPut, "/vault/mode", map[string]any{"mode": 0}))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

// actionMatcher compares amounts by value.
type actionMatcher struct {
	want models.ActionRequest
}

func (m actionMatcher) Matches(x any) bool {
	got, ok := x.(models.ActionRequest)
	return ok &&
		got.Caller == m.want.Caller &&
		got.Target == m.want.Target &&
		got.Amount != nil && got.Amount.Cmp(m.want.Amount) == 0
}

func (m actionMatcher) String() string {
	return fmt.Sprintf("action %s -> %s amount %s", m.want.Caller, m.want.Target, m.want.Amount)
}

func ptr[T any](v T) *T {
	return &v
}
