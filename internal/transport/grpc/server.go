// Package grpctransport serves the vault over gRPC as shieldvault.v1.Vault.
// Messages are google.protobuf.Struct values shaped like the HTTP JSON
// bodies, so both transports share one request and response vocabulary.
package grpctransport

import (
	"context"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"shieldvault/internal/vault/models"
	"shieldvault/pkg/domain"
	dErrors "shieldvault/pkg/domain-errors"
	"shieldvault/pkg/platform/httputil"
	"shieldvault/pkg/platform/middleware/admin"
	"shieldvault/pkg/platform/middleware/auth"
	"shieldvault/pkg/requestcontext"
)

const ServiceName = "shieldvault.v1.Vault"

// Metadata keys.
const (
	MetadataAuthorization = "authorization"
	MetadataOperatorToken = "x-operator-token"
	MetadataRequestID     = "x-request-id"
)

// Service defines the vault operations served over gRPC.
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

// VaultServer is the handler type of ServiceDesc.
type VaultServer interface {
	Initialize(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetAdmin(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetMode(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetMode(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ExecuteAction(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CheckAction(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AddAllowedContract(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RemoveAllowedContract(context.Context, *structpb.Struct) (*structpb.Struct, error)
	IsAllowed(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListAllowedContracts(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateLimits(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetLimits(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AuthorizeAdmin(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type method func(VaultServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(name string, call method) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(VaultServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: "/" + ServiceName + "/" + name,
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(VaultServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ServiceDesc describes shieldvault.v1.Vault for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*VaultServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Initialize", VaultServer.Initialize),
		unary("GetAdmin", VaultServer.GetAdmin),
		unary("SetMode", VaultServer.SetMode),
		unary("GetMode", VaultServer.GetMode),
		unary("ExecuteAction", VaultServer.ExecuteAction),
		unary("CheckAction", VaultServer.CheckAction),
		unary("AddAllowedContract", VaultServer.AddAllowedContract),
		unary("RemoveAllowedContract", VaultServer.RemoveAllowedContract),
		unary("IsAllowed", VaultServer.IsAllowed),
		unary("ListAllowedContracts", VaultServer.ListAllowedContracts),
		unary("UpdateLimits", VaultServer.UpdateLimits),
		unary("GetLimits", VaultServer.GetLimits),
		unary("AuthorizeAdmin", VaultServer.AuthorizeAdmin),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "shieldvault/v1/vault.proto",
}

// Server implements VaultServer on top of the vault service.
type Server struct {
	vault         Service
	validator     auth.JWTValidator
	logger        *slog.Logger
	operatorToken string

	grpcServer *grpc.Server
	health     *health.Server
}

// New creates a gRPC server with the vault and the standard health service
// registered.
func New(vault Service, validator auth.JWTValidator, logger *slog.Logger, operatorToken string) *Server {
	s := &Server{
		vault:         vault,
		validator:     validator,
		logger:        logger,
		operatorToken: operatorToken,
		health:        health.NewServer(),
	}
	s.grpcServer = grpc.NewServer(grpc.ChainUnaryInterceptor(
		s.recoverInterceptor,
		s.requestInterceptor,
		s.authInterceptor,
	))
	s.grpcServer.RegisterService(&ServiceDesc, s)
	healthpb.RegisterHealthServer(s.grpcServer, s.health)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	return s
}

// Serve accepts connections on lis. Blocks until stopped.
func (s *Server) Serve(lis net.Listener) error {
	return s.grpcServer.Serve(lis)
}

// GracefulStop marks the service not serving and drains in-flight calls.
func (s *Server) GracefulStop() {
	s.health.Shutdown()
	s.grpcServer.GracefulStop()
}

// =============================================================================
// Interceptors
// =============================================================================

func (s *Server) recoverInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.ErrorContext(ctx, "panic in grpc handler",
				"method", info.FullMethod,
				"panic", r,
			)
			err = status.Error(codes.Internal, "internal error")
		}
	}()
	return handler(ctx, req)
}

// requestInterceptor assigns the request ID and client metadata, then logs
// the call outcome.
func (s *Server) requestInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	md, _ := metadata.FromIncomingContext(ctx)

	requestID := first(md, MetadataRequestID)
	if _, err := uuid.Parse(requestID); err != nil {
		requestID = uuid.NewString()
	}
	_ = grpc.SetHeader(ctx, metadata.Pairs(MetadataRequestID, requestID))

	clientIP := ""
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		clientIP = p.Addr.String()
		if host, _, err := net.SplitHostPort(clientIP); err == nil {
			clientIP = host
		}
	}
	ctx = requestcontext.WithRequestID(ctx, requestID)
	ctx = requestcontext.WithTime(ctx, start)
	ctx = requestcontext.WithClientMetadata(ctx, clientIP, first(md, "user-agent"))
	ctx = requestcontext.WithTime(ctx, start)

	resp, err := handler(ctx, req)
	s.logger.DebugContext(ctx, "grpc request",
		"request_id", requestID,
		"method", info.FullMethod,
		"code", status.Code(err).String(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return resp, err
}

// authInterceptor resolves the caller from the bearer token. Health checks
// are unauthenticated.
func (s *Server) authInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if strings.HasPrefix(info.FullMethod, "/grpc.health.v1.Health/") {
		return handler(ctx, req)
	}

	md, _ := metadata.FromIncomingContext(ctx)
	p, err := auth.Authenticate(s.validator, first(md, MetadataAuthorization))
	if err != nil {
		s.logger.WarnContext(ctx, "request rejected: "+err.Error(),
			"request_id", requestcontext.RequestID(ctx),
			"method", info.FullMethod,
			"cause", auth.LogCause(err),
		)
		return nil, unauthenticated("%s", err)
	}

	if !p.APIVersion.IsNil() && !domain.APIVersionV1.Accepts(p.APIVersion) {
		return nil, status.Error(codes.PermissionDenied, "token api version "+p.APIVersion.String()+" not served here")
	}

	return handler(requestcontext.WithCaller(ctx, p.Caller), req)
}

func first(md metadata.MD, key string) string {
	if vals := md.Get(key); len(vals) > 0 {
		return vals[0]
	}
	return ""
}

// =============================================================================
// Methods
// =============================================================================

func (s *Server) Initialize(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	token := first(md, MetadataOperatorToken)
	if !admin.TokenMatches(s.operatorToken, token) {
		s.logger.WarnContext(ctx, "operator token mismatch",
			"request_id", requestcontext.RequestID(ctx),
		)
		return nil, unauthenticated("operator token required")
	}

	caller, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.vault.Initialize(ctx, caller); err != nil {
		return s.fail(ctx, "failed to initialize vault", err)
	}
	return respond(&models.AdminResponse{Admin: caller.String()})
}

func (s *Server) GetAdmin(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	id, err := s.vault.Admin(ctx)
	if err != nil {
		return s.fail(ctx, "failed to read admin", err)
	}
	return respond(&models.AdminResponse{Admin: id.String()})
}

func (s *Server) SetMode(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	caller, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	req, err := decode[models.SetModeRequest](in)
	if err != nil {
		return s.fail(ctx, "invalid request", err)
	}
	mode := req.SafetyMode()
	if err := s.vault.SetMode(ctx, caller, mode); err != nil {
		return s.fail(ctx, "failed to set mode", err)
	}
	return respond(models.NewModeResponse(caller, mode))
}

type modeQuery struct {
	Identity string `json:"identity"`
}

func (s *Server) GetMode(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := decode[modeQuery](in)
	if err != nil {
		return s.fail(ctx, "invalid request", err)
	}
	id, err := domain.ParseIdentity(strings.TrimSpace(req.Identity))
	if err != nil {
		return s.fail(ctx, "invalid request", err)
	}
	mode, err := s.vault.GetMode(ctx, id)
	if err != nil {
		return s.fail(ctx, "failed to read mode", err)
	}
	return respond(models.NewModeResponse(id, mode))
}

func (s *Server) ExecuteAction(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.action(ctx, in, s.vault.ExecuteAction)
}

func (s *Server) CheckAction(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.action(ctx, in, s.vault.CheckAction)
}

func (s *Server) action(ctx context.Context, in *structpb.Struct, run func(context.Context, models.ActionRequest) (*models.Decision, error)) (*structpb.Struct, error) {
	caller, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	req, err := decode[models.ExecuteActionRequest](in)
	if err != nil {
		return s.fail(ctx, "invalid request", err)
	}
	decision, err := run(ctx, req.ActionRequest(caller))
	if err != nil {
		return s.fail(ctx, "action rejected", err)
	}
	return respond(models.NewDecisionResponse(decision))
}

func (s *Server) AddAllowedContract(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	caller, err := s.adminCaller(ctx, models.OpAddAllowedContract)
	if err != nil {
		return nil, err
	}
	req, err := decode[models.AllowlistRequest](in)
	if err != nil {
		return s.fail(ctx, "invalid request", err)
	}
	if err := s.vault.AddAllowedContract(ctx, caller, req.Identity()); err != nil {
		return s.fail(ctx, "failed to add allowed contract", err)
	}
	return respond(&models.AllowedResponse{Target: req.Identity().String(), Allowed: true})
}

func (s *Server) RemoveAllowedContract(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	caller, err := s.adminCaller(ctx, models.OpRemoveAllowedContract)
	if err != nil {
		return nil, err
	}
	req, err := decode[models.AllowlistRequest](in)
	if err != nil {
		return s.fail(ctx, "invalid request", err)
	}
	if err := s.vault.RemoveAllowedContract(ctx, caller, req.Identity()); err != nil {
		return s.fail(ctx, "failed to remove allowed contract", err)
	}
	return respond(&models.AllowedResponse{Target: req.Identity().String(), Allowed: false})
}

func (s *Server) IsAllowed(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := decode[models.AllowlistRequest](in)
	if err != nil {
		return s.fail(ctx, "invalid request", err)
	}
	allowed, err := s.vault.IsAllowed(ctx, req.Identity())
	if err != nil {
		return s.fail(ctx, "failed to read allowlist", err)
	}
	return respond(&models.AllowedResponse{Target: req.Identity().String(), Allowed: allowed})
}

func (s *Server) ListAllowedContracts(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	ids, err := s.vault.ListAllowedContracts(ctx)
	if err != nil {
		return s.fail(ctx, "failed to list allowlist", err)
	}
	return respond(models.NewAllowlistResponse(ids))
}

func (s *Server) UpdateLimits(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	caller, err := s.adminCaller(ctx, models.OpUpdateLimits)
	if err != nil {
		return nil, err
	}
	req, err := decode[models.UpdateLimitsRequest](in)
	if err != nil {
		return s.fail(ctx, "invalid request", err)
	}
	if err := s.vault.UpdateLimits(ctx, caller, req.Update()); err != nil {
		return s.fail(ctx, "failed to update limits", err)
	}
	return s.GetLimits(ctx, nil)
}

type adminQuery struct {
	Operation string `json:"operation"`
}

// AuthorizeAdmin reports whether the caller may run the named admin-only
// operation, so clients can check before they parse their own input.
func (s *Server) AuthorizeAdmin(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	caller, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	req, err := decode[adminQuery](in)
	if err != nil {
		return s.fail(ctx, "invalid request", err)
	}
	op, err := models.ParseAdminOperation(req.Operation)
	if err != nil {
		return s.fail(ctx, "invalid request", err)
	}
	if err := s.vault.AuthorizeAdmin(ctx, caller, op); err != nil {
		return s.fail(ctx, "admin call rejected", err)
	}
	return respond(&models.AdminResponse{Admin: caller.String()})
}

func (s *Server) GetLimits(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	limits, err := s.vault.Limits(ctx)
	if err != nil {
		return s.fail(ctx, "failed to read limits", err)
	}
	return respond(models.NewLimitsResponse(limits))
}

// =============================================================================
// Helpers
// =============================================================================

func callerFrom(ctx context.Context) (domain.Identity, error) {
	caller, ok := requestcontext.Caller(ctx)
	if !ok {
		return domain.Identity{}, unauthenticated("caller is not authenticated")
	}
	return caller, nil
}

// adminCaller resolves the caller and runs the admin gate of op before the
// request body is decoded.
func (s *Server) adminCaller(ctx context.Context, op models.AdminOperation) (domain.Identity, error) {
	caller, err := callerFrom(ctx)
	if err != nil {
		return domain.Identity{}, err
	}
	if err := s.vault.AuthorizeAdmin(ctx, caller, op); err != nil {
		_, err = s.fail(ctx, "admin call rejected", err)
		return domain.Identity{}, err
	}
	return caller, nil
}

// decode reads in into a fresh T, then normalizes and validates it when T
// supports it.
func decode[T any](in *structpb.Struct) (*T, error) {
	req := new(T)
	if err := fromStruct(in, req); err != nil {
		return nil, err
	}
	if n, ok := any(req).(httputil.Normalizable); ok {
		n.Normalize()
	}
	if v, ok := any(req).(httputil.Validatable); ok {
		if err := v.Validate(); err != nil {
			return nil, err
		}
	}
	return req, nil
}

func respond(v any) (*structpb.Struct, error) {
	out, err := toStruct(v)
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to encode response")
	}
	return out, nil
}

func (s *Server) fail(ctx context.Context, msg string, err error) (*structpb.Struct, error) {
	attrs := []any{
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	}
	if codeFor(dErrors.CodeOf(err)) == codes.Internal {
		s.logger.ErrorContext(ctx, msg, attrs...)
	} else {
		s.logger.WarnContext(ctx, msg, attrs...)
	}
	return nil, toStatus(err)
}
