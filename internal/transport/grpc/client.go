package grpctransport

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"

	"shieldvault/internal/vault/models"
	"shieldvault/pkg/domain"
	dErrors "shieldvault/pkg/domain-errors"
	"shieldvault/pkg/requestcontext"
)

const defaultClientTimeout = 5 * time.Second

// Client is a remote vault. The caller of every call is the subject of the
// client's bearer token.
type Client struct {
	conn          *grpc.ClientConn
	token         string
	operatorToken string
	timeout       time.Duration
}

type ClientOption func(*Client)

func WithToken(token string) ClientOption {
	return func(c *Client) {
		c.token = token
	}
}

func WithOperatorToken(token string) ClientOption {
	return func(c *Client) {
		c.operatorToken = token
	}
}

func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

// Dial creates a client for the server at addr.
func Dial(addr string, opts ...ClientOption) (*Client, error) {
	// TODO: use TLS credentials once the server terminates TLS itself.
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to vault server: %w", err)
	}

	c := &Client{conn: conn, timeout: defaultClientTimeout}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) Initialize(ctx context.Context) error {
	return c.invoke(ctx, "Initialize", struct{}{}, nil)
}

func (c *Client) Admin(ctx context.Context) (domain.Identity, error) {
	var resp models.AdminResponse
	if err := c.invoke(ctx, "GetAdmin", struct{}{}, &resp); err != nil {
		return domain.Identity{}, err
	}
	return domain.ParseIdentity(resp.Admin)
}

func (c *Client) SetMode(ctx context.Context, mode models.SafetyMode) error {
	return c.invoke(ctx, "SetMode", map[string]any{"mode": int64(mode)}, nil)
}

func (c *Client) GetMode(ctx context.Context, id domain.Identity) (models.SafetyMode, error) {
	var resp models.ModeResponse
	if err := c.invoke(ctx, "GetMode", modeQuery{Identity: id.String()}, &resp); err != nil {
		return 0, err
	}
	return models.SafetyMode(resp.Mode), nil
}

func (c *Client) ExecuteAction(ctx context.Context, target domain.Identity, amount *big.Int) (*models.Decision, error) {
	return c.action(ctx, "ExecuteAction", target, amount)
}

func (c *Client) CheckAction(ctx context.Context, target domain.Identity, amount *big.Int) (*models.Decision, error) {
	return c.action(ctx, "CheckAction", target, amount)
}

func (c *Client) action(ctx context.Context, method string, target domain.Identity, amount *big.Int) (*models.Decision, error) {
	if amount == nil {
		return nil, dErrors.New(dErrors.CodeValidation, "amount is required")
	}
	var resp models.DecisionResponse
	err := c.invoke(ctx, method, map[string]any{
		"target": target.String(),
		"amount": amount.String(),
	}, &resp)
	if err != nil {
		return nil, err
	}
	return decisionFrom(&resp), nil
}

func (c *Client) AddAllowedContract(ctx context.Context, target domain.Identity) error {
	return c.invoke(ctx, "AddAllowedContract", models.AllowlistRequest{Target: target.String()}, nil)
}

func (c *Client) RemoveAllowedContract(ctx context.Context, target domain.Identity) error {
	return c.invoke(ctx, "RemoveAllowedContract", models.AllowlistRequest{Target: target.String()}, nil)
}

func (c *Client) IsAllowed(ctx context.Context, target domain.Identity) (bool, error) {
	var resp models.AllowedResponse
	if err := c.invoke(ctx, "IsAllowed", models.AllowlistRequest{Target: target.String()}, &resp); err != nil {
		return false, err
	}
	return resp.Allowed, nil
}

func (c *Client) ListAllowedContracts(ctx context.Context) ([]domain.Identity, error) {
	var resp models.AllowlistResponse
	if err := c.invoke(ctx, "ListAllowedContracts", struct{}{}, &resp); err != nil {
		return nil, err
	}
	ids := make([]domain.Identity, 0, len(resp.Contracts))
	for _, raw := range resp.Contracts {
		id, err := domain.ParseIdentity(raw)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (c *Client) Limits(ctx context.Context) (models.Limits, error) {
	var resp models.LimitsResponse
	if err := c.invoke(ctx, "GetLimits", struct{}{}, &resp); err != nil {
		return models.Limits{}, err
	}
	return limitsFrom(&resp)
}

func (c *Client) UpdateLimits(ctx context.Context, update models.LimitsUpdate) error {
	req := map[string]any{}
	if update.Safe != nil {
		req["safe"] = update.Safe.String()
	}
	if update.Balanced != nil {
		req["balanced"] = update.Balanced.String()
	}
	return c.invoke(ctx, "UpdateLimits", req, nil)
}

// AuthorizeAdmin asks the server whether the caller may run op.
func (c *Client) AuthorizeAdmin(ctx context.Context, op models.AdminOperation) error {
	return c.invoke(ctx, "AuthorizeAdmin", map[string]any{"operation": string(op)}, nil)
}

func (c *Client) invoke(ctx context.Context, method string, in, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	ctx = c.addMetadata(ctx)

	req, err := toStruct(in)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "failed to encode request")
	}
	resp := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, "/"+ServiceName+"/"+method, req, resp); err != nil {
		return fromStatus(err)
	}
	if out == nil {
		return nil
	}

	raw, err := json.Marshal(resp.AsMap())
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to decode response")
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to decode response")
	}
	return nil
}

func (c *Client) addMetadata(ctx context.Context) context.Context {
	pairs := []string{}
	if c.token != "" {
		pairs = append(pairs, MetadataAuthorization, "Bearer "+c.token)
	}
	if c.operatorToken != "" {
		pairs = append(pairs, MetadataOperatorToken, c.operatorToken)
	}
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		pairs = append(pairs, MetadataRequestID, requestID)
	}
	return metadata.AppendToOutgoingContext(ctx, pairs...)
}

func decisionFrom(resp *models.DecisionResponse) *models.Decision {
	return &models.Decision{
		Outcome:  resp.Outcome,
		Kind:     models.ErrorKind(resp.VaultCode),
		Mode:     models.SafetyMode(resp.Mode),
		Reason:   resp.Reason,
		Warnings: resp.Warnings,
	}
}

func limitsFrom(resp *models.LimitsResponse) (models.Limits, error) {
	safe, err := models.ParseAmount("safe", resp.Safe)
	if err != nil {
		return models.Limits{}, err
	}
	balanced, err := models.ParseAmount("balanced", resp.Balanced)
	if err != nil {
		return models.Limits{}, err
	}
	return models.Limits{Safe: safe, Balanced: balanced}, nil
}
