// Package server wires configuration, storage, the authentication service
// and the gRPC and metrics servers into one runnable application.
package server

import (
	"context"
	"io"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/metrics"
	"github.com/dmitrijs2005/gophauth/internal/server/password"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"github.com/samber/oops"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	gs "github.com/dmitrijs2005/gophauth/internal/server/grpc"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	repos   *repomanager.Manager
	grpc    *gs.GRPCServer
	metrics *metrics.Server
}

// NewApp validates c, opens the configured store and builds both servers.
// Logs are written as JSON to out.
func NewApp(ctx context.Context, c *config.Config, out io.Writer) (*App, error) {
	logger, err := logging.NewJSONLogger(out, c.LogLevel)
	if err != nil {
		return nil, oops.Code("APP_LOGGER").Wrap(err)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	issuer, err := auth.NewIssuer(c.SecretKey, c.AccessTokenValidityDuration, c.TokenIssuer)
	if err != nil {
		return nil, err
	}

	policy, err := newPolicy(c)
	if err != nil {
		return nil, err
	}

	repos, err := repomanager.New(ctx, c)
	if err != nil {
		return nil, oops.Code("APP_STORAGE").With("backend", c.StorageBackend).Wrap(err)
	}

	directory := services.NewDirectory(repos.Users(), logger)
	svc, err := services.NewAuthService(directory, policy, issuer, logger, c)
	if err != nil {
		_ = repos.Close()
		return nil, err
	}

	ms := metrics.NewServer(c.MetricsAddr, logger, repos.Ping)
	svc.WithRecorder(ms.Metrics())

	logger.Info(ctx, "app initialized",
		"storage", repos.Backend(),
		"hasher", c.PasswordHasher,
		"lockout_threshold", c.LockoutThreshold,
	)

	return &App{
		config:  c,
		logger:  logger,
		repos:   repos,
		grpc:    gs.NewGRPCServer(c.EndpointAddrGRPC, logger, svc, issuer, c.OperationTimeout),
		metrics: ms,
	}, nil
}

// newPolicy hashes with the configured algorithm and keeps the other one
// as a verifier so digests written before a switch still compare.
func newPolicy(c *config.Config) (*password.Policy, error) {
	primary, err := password.NewHasher(c.PasswordHasher, c.PasswordCost)
	if err != nil {
		return nil, err
	}

	if _, ok := primary.(*password.Argon2idHasher); !ok {
		return password.NewPolicy(primary, password.NewArgon2idHasher())
	}
	// Verification reads the cost from the digest, so an out-of-range
	// configured cost only affects the unused hashing side.
	bcryptHasher, err := password.NewBcryptHasher(c.PasswordCost)
	if err != nil {
		bcryptHasher, err = password.NewBcryptHasher(bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
	}
	return password.NewPolicy(primary, bcryptHasher)
}

// Run serves until ctx is cancelled or SIGINT/SIGTERM/SIGQUIT arrives.
// The first server error stops the other server.
func (app *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	app.logger.Info(ctx, "Starting app...")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return app.grpc.Run(ctx) })
	g.Go(func() error { return app.metrics.Run(ctx) })

	err := g.Wait()
	if cerr := app.repos.Close(); cerr != nil {
		app.logger.Error(ctx, "closing storage", logging.ErrorAttrs(cerr)...)
	}
	if err != nil {
		app.logger.Error(ctx, "server stopped", logging.ErrorAttrs(err)...)
		return err
	}

	app.logger.Info(ctx, "App stopped")
	return nil
}
