package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-admissions-auth/internal/config"
	"github.com/jrsteele09/go-admissions-auth/internal/logging"
	"github.com/jrsteele09/go-admissions-auth/server"
	"github.com/jrsteele09/go-admissions-auth/server/authflowrepo"
	"github.com/jrsteele09/go-admissions-auth/server/loginsession"
	"github.com/jrsteele09/go-admissions-auth/storage/postgres"
	"github.com/jrsteele09/go-admissions-auth/storage/sqlite"
	"github.com/jrsteele09/go-admissions-auth/token"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Error running server")
	}
	log.Info().Msg("Server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	logging.Setup(c.GetLogLevel(), c.GetEnv())
	displayAppname(c.GetAppName())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, closeStore, err := openStore(ctx, c)
	if err != nil {
		return err
	}
	defer closeStore()
	deps.LoginSessions = loginsession.NewInMemoryLoginSessionRepo()
	deps.AuthFlows = authflowrepo.NewInMemoryRepo()

	options, err := authOptions(ctx, c)
	if err != nil {
		return err
	}
	srv, err := server.New(c, deps, options...)
	if err != nil {
		return fmt.Errorf("server.New: %w", err)
	}
	defer srv.Close()
	go srv.PurgeLoginSessions(ctx, time.Minute)

	httpServer := &http.Server{
		Addr:              c.GetPort(),
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- listenAndServe(httpServer)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}
	return shutdown(httpServer)
}

// openStore connects the configured database and runs its migrations.
func openStore(ctx context.Context, c config.Config) (server.Deps, func(), error) {
	switch driver := c.GetDatabaseDriver(); driver {
	case config.DriverPostgres:
		pool, err := postgres.NewPool(ctx, c.GetDatabaseURL())
		if err != nil {
			return server.Deps{}, nil, fmt.Errorf("postgres.NewPool: %w", err)
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return server.Deps{}, nil, fmt.Errorf("postgres.Migrate: %w", err)
		}
		auditStore := postgres.NewAuditStore(pool)
		log.Info().Str("driver", driver).Msg("Database ready")
		return server.Deps{
			Profiles:    postgres.NewProfileRepo(pool),
			Agents:      postgres.NewAgentRepo(pool),
			AuditSink:   auditStore,
			AuditReader: auditStore,
		}, pool.Close, nil

	case config.DriverSQLite:
		db, err := sqlite.Open(c.GetSQLitePath())
		if err != nil {
			return server.Deps{}, nil, fmt.Errorf("sqlite.Open: %w", err)
		}
		auditStore := sqlite.NewAuditStore(db)
		log.Info().Str("driver", driver).Str("path", c.GetSQLitePath()).Msg("Database ready")
		return server.Deps{
			Profiles:    sqlite.NewProfileRepo(db),
			Agents:      sqlite.NewAgentRepo(db),
			AuditSink:   auditStore,
			AuditReader: auditStore,
		}, func() { _ = db.Close() }, nil

	default:
		return server.Deps{}, nil, fmt.Errorf("unsupported DATABASE_DRIVER %q", driver)
	}
}

// authOptions enables bearer tokens and the sign-in flow when they are configured.
func authOptions(ctx context.Context, c config.Config) ([]server.Option, error) {
	var options []server.Option

	if secret := c.GetJWTSecret(); secret != "" {
		verifier, err := token.NewVerifier(secret, c.GetJWTIssuer(), c.GetJWTAudience())
		if err != nil {
			return nil, fmt.Errorf("token.NewVerifier: %w", err)
		}
		options = append(options, server.WithTokenVerifier(verifier))
	} else {
		log.Warn().Msg("JWT_SECRET not set, bearer tokens are rejected")
	}

	if issuer := c.GetOIDCIssuer(); issuer != "" {
		oidcConfig, err := server.NewOidcConfig(ctx, issuer, c.GetOIDCClientID(), c.GetOIDCClientSecret(), c.GetBaseURL())
		if err != nil {
			return nil, err
		}
		options = append(options, server.WithOIDC(oidcConfig))
	} else {
		log.Warn().Msg("OIDC_ISSUER not set, browser sign-in is disabled")
	}

	return options, nil
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("Server listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
