package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	jwttoken "shieldvault/internal/jwt_token"
	"shieldvault/internal/platform/httpserver"
	"shieldvault/internal/platform/metrics"
	grpctransport "shieldvault/internal/transport/grpc"
	httptransport "shieldvault/internal/transport/http"
	vaulthandler "shieldvault/internal/vault/handler"
	vaultmetrics "shieldvault/internal/vault/metrics"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and gRPC vault servers",
		Long: "Serves the vault over HTTP (/v1/vault) and gRPC until SIGINT or\n" +
			"SIGTERM, then drains in-flight requests and buffered audit events.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts)
		},
	}
}

func runServe(ctx context.Context, opts *rootOptions) error {
	cfg, log, sync, err := loadConfig(opts)
	if err != nil {
		return err
	}
	defer func() { _ = sync() }()

	m := metrics.New(version)
	a, err := newApp(ctx, cfg, log, appOptions{
		metrics: vaultmetrics.New(m.Registry),
		async:   true,
	})
	if err != nil {
		return err
	}
	defer a.Close()

	if cfg.Server.OperatorToken == "" {
		log.Warn("operator token not set; initialization over the network is disabled")
	}

	jwt := jwttoken.NewJWTService(cfg.Server.JWTSigningKey, cfg.Server.JWTIssuer, cfg.Server.JWTAudience)
	validator := jwttoken.NewJWTServiceAdapter(jwt)

	router := httptransport.NewRouter(httptransport.Deps{
		Logger:    log,
		Validator: validator,
		Metrics:   m,
		Vault:     vaulthandler.New(a.vault, log, cfg.Server.OperatorToken),
		Ready:     a.ping,
	})
	httpSrv := httpserver.New(cfg.Server.HTTPAddr, router, httptransport.RequestTimeout)
	grpcSrv := grpctransport.New(a.vault, validator, log, cfg.Server.OperatorToken)

	var lis net.Listener
	if cfg.Server.GRPCAddr != "" {
		lis, err = net.Listen("tcp", cfg.Server.GRPCAddr)
		if err != nil {
			return fmt.Errorf("listen %s: %w", cfg.Server.GRPCAddr, err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Server.HTTPAddr != "" {
		g.Go(func() error {
			log.Info("http server listening", "addr", cfg.Server.HTTPAddr)
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
	}

	if lis != nil {
		g.Go(func() error {
			log.Info("grpc server listening", "addr", lis.Addr().String())
			if err := grpcSrv.Serve(lis); err != nil {
				return fmt.Errorf("grpc server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		grpcSrv.GracefulStop()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})

	return g.Wait()
}
