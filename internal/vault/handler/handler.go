package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"shieldvault/internal/vault/models"
	"shieldvault/pkg/domain"
	dErrors "shieldvault/pkg/domain-errors"
	"shieldvault/pkg/platform/httputil"
	"shieldvault/pkg/platform/middleware/admin"
	request "shieldvault/pkg/platform/middleware/request"
	"shieldvault/pkg/requestcontext"
)

// Service defines the vault operations served over HTTP.
type Service interface {
	Initialize(ctx context.Context, caller domain.Identity) error
	Admin(ctx context.Context) (domain.Identity, error)
	SetMode(ctx context.Context, caller domain.Identity, mode models.SafetyMode) error
	GetMode(ctx context.Context, id domain.Identity) (models.SafetyMode, error)
	ExecuteAction(ctx context.Context, req models.ActionRequest) (*models.Decision, error)
	CheckAction(ctx context.Context, req models.ActionRequest) (*models.Decision, error)
	AddAllowedContract(ctx context.Context, caller, target domain.Identity) error
	RemoveAllowedContract(ctx context.Context, caller, target domain.Identity) error
	IsAllowed(ctx context.Context, target domain.Identity) (bool, error)
	ListAllowedContracts(ctx context.Context) ([]domain.Identity, error)
	Limits(ctx context.Context) (models.Limits, error)
	UpdateLimits(ctx context.Context, caller domain.Identity, update models.LimitsUpdate) error
	AuthorizeAdmin(ctx context.Context, caller domain.Identity, op models.AdminOperation) error
}

// Handler serves the /vault endpoints. Routes expect the caller identity in
// the request context, set by the auth middleware.
type Handler struct {
	logger        *slog.Logger
	vault         Service
	operatorToken string
}

func New(vault Service, logger *slog.Logger, operatorToken string) *Handler {
	return &Handler{
		logger:        logger,
		vault:         vault,
		operatorToken: operatorToken,
	}
}

// Register registers the vault routes on an authenticated router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/vault", func(r chi.Router) {
		r.With(admin.RequireOperatorToken(h.operatorToken, h.logger)).
			Post("/initialize", h.handleInitialize)
		r.Get("/admin", h.handleGetAdmin)

		r.Put("/mode", h.handleSetMode)
		r.Get("/mode/{identity}", h.handleGetMode)

		r.Post("/actions", h.handleExecuteAction)
		r.Post("/actions/check", h.handleCheckAction)

		r.Get("/allowlist", h.handleListAllowlist)
		r.Post("/allowlist", h.handleAddAllowed)
		r.Get("/allowlist/{identity}", h.handleIsAllowed)
		r.Delete("/allowlist/{identity}", h.handleRemoveAllowed)

		r.Get("/limits", h.handleGetLimits)
		r.Patch("/limits", h.handleUpdateLimits)
	})
}

func (h *Handler) handleInitialize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	if err := h.vault.Initialize(ctx, caller); err != nil {
		h.fail(ctx, w, "failed to initialize vault", err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, &models.AdminResponse{Admin: caller.String()})
}

func (h *Handler) handleGetAdmin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := h.vault.Admin(ctx)
	if err != nil {
		h.fail(ctx, w, "failed to read admin", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &models.AdminResponse{Admin: id.String()})
}

func (h *Handler) handleSetMode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[models.SetModeRequest](w, r, h.logger, ctx, request.GetRequestID(ctx))
	if !ok {
		return
	}

	mode := req.SafetyMode()
	if err := h.vault.SetMode(ctx, caller, mode); err != nil {
		h.fail(ctx, w, "failed to set mode", err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, models.NewModeResponse(caller, mode))
}

func (h *Handler) handleGetMode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.pathIdentity(w, r)
	if !ok {
		return
	}

	mode, err := h.vault.GetMode(ctx, id)
	if err != nil {
		h.fail(ctx, w, "failed to read mode", err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, models.NewModeResponse(id, mode))
}

func (h *Handler) handleExecuteAction(w http.ResponseWriter, r *http.Request) {
	h.handleAction(w, r, h.vault.ExecuteAction)
}

func (h *Handler) handleCheckAction(w http.ResponseWriter, r *http.Request) {
	h.handleAction(w, r, h.vault.CheckAction)
}

func (h *Handler) handleAction(w http.ResponseWriter, r *http.Request, run func(context.Context, models.ActionRequest) (*models.Decision, error)) {
	ctx := r.Context()
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[models.ExecuteActionRequest](w, r, h.logger, ctx, request.GetRequestID(ctx))
	if !ok {
		return
	}

	decision, err := run(ctx, req.ActionRequest(caller))
	if err != nil {
		h.fail(ctx, w, "action rejected", err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, models.NewDecisionResponse(decision))
}

func (h *Handler) handleListAllowlist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ids, err := h.vault.ListAllowedContracts(ctx)
	if err != nil {
		h.fail(ctx, w, "failed to list allowlist", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.NewAllowlistResponse(ids))
}

func (h *Handler) handleAddAllowed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.adminCaller(w, r, models.OpAddAllowedContract)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[models.AllowlistRequest](w, r, h.logger, ctx, request.GetRequestID(ctx))
	if !ok {
		return
	}

	target := req.Identity()
	if err := h.vault.AddAllowedContract(ctx, caller, target); err != nil {
		h.fail(ctx, w, "failed to add allowed contract", err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, &models.AllowedResponse{Target: target.String(), Allowed: true})
}

func (h *Handler) handleIsAllowed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	target, ok := h.pathIdentity(w, r)
	if !ok {
		return
	}

	allowed, err := h.vault.IsAllowed(ctx, target)
	if err != nil {
		h.fail(ctx, w, "failed to read allowlist", err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, &models.AllowedResponse{Target: target.String(), Allowed: allowed})
}

func (h *Handler) handleRemoveAllowed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.adminCaller(w, r, models.OpRemoveAllowedContract)
	if !ok {
		return
	}
	target, ok := h.pathIdentity(w, r)
	if !ok {
		return
	}

	if err := h.vault.RemoveAllowedContract(ctx, caller, target); err != nil {
		h.fail(ctx, w, "failed to remove allowed contract", err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, &models.AllowedResponse{Target: target.String(), Allowed: false})
}

func (h *Handler) handleGetLimits(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limits, err := h.vault.Limits(ctx)
	if err != nil {
		h.fail(ctx, w, "failed to read limits", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.NewLimitsResponse(limits))
}

func (h *Handler) handleUpdateLimits(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.adminCaller(w, r, models.OpUpdateLimits)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[models.UpdateLimitsRequest](w, r, h.logger, ctx, request.GetRequestID(ctx))
	if !ok {
		return
	}

	if err := h.vault.UpdateLimits(ctx, caller, req.Update()); err != nil {
		h.fail(ctx, w, "failed to update limits", err)
		return
	}

	limits, err := h.vault.Limits(ctx)
	if err != nil {
		h.fail(ctx, w, "failed to read limits", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.NewLimitsResponse(limits))
}

// caller reads the authenticated identity. A missing caller means the auth
// middleware was not mounted.
func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (domain.Identity, bool) {
	ctx := r.Context()
	caller, ok := requestcontext.Caller(ctx)
	if !ok {
		h.logger.ErrorContext(ctx, "caller missing from context despite auth middleware",
			"request_id", request.GetRequestID(ctx),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return domain.Identity{}, false
	}
	return caller, true
}

// adminCaller is caller plus the admin gate of op. It runs before the body
// or path is parsed.
func (h *Handler) adminCaller(w http.ResponseWriter, r *http.Request, op models.AdminOperation) (domain.Identity, bool) {
	caller, ok := h.caller(w, r)
	if !ok {
		return domain.Identity{}, false
	}
	if err := h.vault.AuthorizeAdmin(r.Context(), caller, op); err != nil {
		h.fail(r.Context(), w, "admin call rejected", err)
		return domain.Identity{}, false
	}
	return caller, true
}

func (h *Handler) pathIdentity(w http.ResponseWriter, r *http.Request) (domain.Identity, bool) {
	id, err := domain.ParseIdentity(chi.URLParam(r, "identity"))
	if err != nil {
		httputil.WriteError(w, err)
		return domain.Identity{}, false
	}
	return id, true
}

// fail logs err at a level matching its code and writes the error response.
func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	attrs := []any{
		"request_id", request.GetRequestID(ctx),
		"error", err,
	}
	if httputil.StatusFor(dErrors.CodeOf(err)) >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, msg, attrs...)
	} else {
		h.logger.WarnContext(ctx, msg, attrs...)
	}
	httputil.WriteError(w, err)
}
