package cli

import (
	"context"
	"errors"
	"math/big"
	"strings"

	jwttoken "shieldvault/internal/jwt_token"
	"shieldvault/internal/platform/config"
	grpctransport "shieldvault/internal/transport/grpc"
	"shieldvault/internal/vault/models"
	"shieldvault/pkg/domain"
)

// vaultBackend is the vault as seen by one caller. It is satisfied by the
// gRPC client and by localBackend.
type vaultBackend interface {
	Initialize(ctx context.Context) error
	Admin(ctx context.Context) (domain.Identity, error)
	SetMode(ctx context.Context, mode models.SafetyMode) error
	GetMode(ctx context.Context, id domain.Identity) (models.SafetyMode, error)
	ExecuteAction(ctx context.Context, target domain.Identity, amount *big.Int) (*models.Decision, error)
	CheckAction(ctx context.Context, target domain.Identity, amount *big.Int) (*models.Decision, error)
	AddAllowedContract(ctx context.Context, target domain.Identity) error
	RemoveAllowedContract(ctx context.Context, target domain.Identity) error
	IsAllowed(ctx context.Context, target domain.Identity) (bool, error)
	ListAllowedContracts(ctx context.Context) ([]domain.Identity, error)
	Limits(ctx context.Context) (models.Limits, error)
	UpdateLimits(ctx context.Context, update models.LimitsUpdate) error
	AuthorizeAdmin(ctx context.Context, op models.AdminOperation) error
	Close() error
}

// localBackend runs operations in-process against the configured store.
type localBackend struct {
	app    *app
	caller domain.Identity
}

func (b *localBackend) Initialize(ctx context.Context) error {
	return b.app.vault.Initialize(ctx, b.caller)
}

func (b *localBackend) Admin(ctx context.Context) (domain.Identity, error) {
	return b.app.vault.Admin(ctx)
}

func (b *localBackend) SetMode(ctx context.Context, mode models.SafetyMode) error {
	return b.app.vault.SetMode(ctx, b.caller, mode)
}

func (b *localBackend) GetMode(ctx context.Context, id domain.Identity) (models.SafetyMode, error) {
	return b.app.vault.GetMode(ctx, id)
}

func (b *localBackend) ExecuteAction(ctx context.Context, target domain.Identity, amount *big.Int) (*models.Decision, error) {
	return b.app.vault.ExecuteAction(ctx, models.ActionRequest{Caller: b.caller, Target: target, Amount: amount})
}

func (b *localBackend) CheckAction(ctx context.Context, target domain.Identity, amount *big.Int) (*models.Decision, error) {
	return b.app.vault.CheckAction(ctx, models.ActionRequest{Caller: b.caller, Target: target, Amount: amount})
}

func (b *localBackend) AddAllowedContract(ctx context.Context, target domain.Identity) error {
	return b.app.vault.AddAllowedContract(ctx, b.caller, target)
}

func (b *localBackend) RemoveAllowedContract(ctx context.Context, target domain.Identity) error {
	return b.app.vault.RemoveAllowedContract(ctx, b.caller, target)
}

func (b *localBackend) IsAllowed(ctx context.Context, target domain.Identity) (bool, error) {
	return b.app.vault.IsAllowed(ctx, target)
}

func (b *localBackend) ListAllowedContracts(ctx context.Context) ([]domain.Identity, error) {
	return b.app.vault.ListAllowedContracts(ctx)
}

func (b *localBackend) Limits(ctx context.Context) (models.Limits, error) {
	return b.app.vault.Limits(ctx)
}

func (b *localBackend) UpdateLimits(ctx context.Context, update models.LimitsUpdate) error {
	return b.app.vault.UpdateLimits(ctx, b.caller, update)
}

func (b *localBackend) AuthorizeAdmin(ctx context.Context, op models.AdminOperation) error {
	return b.app.vault.AuthorizeAdmin(ctx, b.caller, op)
}

func (b *localBackend) Close() error {
	return b.app.Close()
}

var errCallerRequired = errors.New("--caller is required")

// errEphemeralStore rejects local client commands on the memory driver,
// whose state would vanish when the command exits.
var errEphemeralStore = errors.New("the memory store driver does not persist between commands; " +
	"use --remote or set store.driver to sqlite, postgres, pgx or redis")

func requirePersistentStore(cfg *config.Config) error {
	if cfg.Store.Driver == config.DriverMemory {
		return errEphemeralStore
	}
	return nil
}

// openBackend connects to --remote when set, otherwise opens the configured
// store in-process. Read-only commands pass needCaller=false.
func openBackend(ctx context.Context, opts *rootOptions, needCaller bool) (vaultBackend, error) {
	cfg, log, sync, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	defer func() { _ = sync() }()

	var caller domain.Identity
	if opts.caller != "" {
		caller, err = domain.ParseIdentity(strings.TrimSpace(opts.caller))
		if err != nil {
			return nil, err
		}
	}

	if opts.remote != "" {
		return dialRemote(cfg, opts, caller)
	}

	if needCaller && caller.IsZero() {
		return nil, errCallerRequired
	}
	if err := requirePersistentStore(cfg); err != nil {
		return nil, err
	}
	a, err := newApp(ctx, cfg, log, appOptions{})
	if err != nil {
		return nil, err
	}
	return &localBackend{app: a, caller: caller}, nil
}

// dialRemote authenticates as caller. Without --token a token is minted with
// the configured signing key, which only works against a server sharing it.
func dialRemote(cfg *config.Config, opts *rootOptions, caller domain.Identity) (vaultBackend, error) {
	token := opts.token
	if token == "" {
		if caller.IsZero() {
			return nil, errors.New("--remote needs --token or --caller")
		}
		minted, err := mintToken(cfg, caller)
		if err != nil {
			return nil, err
		}
		token = minted
	}

	clientOpts := []grpctransport.ClientOption{grpctransport.WithToken(token)}
	operatorToken := opts.operatorToken
	if operatorToken == "" {
		operatorToken = cfg.Server.OperatorToken
	}
	if operatorToken != "" {
		clientOpts = append(clientOpts, grpctransport.WithOperatorToken(operatorToken))
	}
	client, err := grpctransport.Dial(opts.remote, clientOpts...)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func mintToken(cfg *config.Config, caller domain.Identity) (string, error) {
	jwt := jwttoken.NewJWTService(cfg.Server.JWTSigningKey, cfg.Server.JWTIssuer, cfg.Server.JWTAudience)
	return jwt.GenerateAccessToken(caller, cfg.Server.TokenTTL)
}

// openLocalApp opens the configured store without a caller binding, for
// commands that read the audit trail.
func openLocalApp(ctx context.Context, opts *rootOptions) (*app, error) {
	cfg, log, sync, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	defer func() { _ = sync() }()
	if err := requirePersistentStore(cfg); err != nil {
		return nil, err
	}
	return newApp(ctx, cfg, log, appOptions{})
}

var _ vaultBackend = (*localBackend)(nil)
var _ vaultBackend = (*grpctransport.Client)(nil)
