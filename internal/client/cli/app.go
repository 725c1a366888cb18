package cli

import (
	"context"
	"errors"

	authv1 "github.com/dmitrijs2005/gophauth/internal/api/authv1"
	"github.com/dmitrijs2005/gophauth/internal/client/client"
	"github.com/dmitrijs2005/gophauth/internal/client/config"
	"github.com/spf13/cobra"
)

var ErrPasswordMismatch = errors.New("passwords do not match")

// Client is the server API the commands use.
type Client interface {
	Ping(ctx context.Context) error
	Register(ctx context.Context, username, email, password string) (*authv1.RegisterResponse, error)
	Login(ctx context.Context, username, password string) (*authv1.LoginResponse, error)
	ChangePassword(ctx context.Context, current, next string) (*authv1.ChangePasswordResponse, error)
	WhoAmI(ctx context.Context) (*authv1.User, error)
	Strength(ctx context.Context, password string) (authv1.Strength, error)
	SetToken(token string)
	Close() error
}

// App carries the configuration shared by all commands.
type App struct {
	cfg        *config.Config
	configFile string
	dial       func(endpoint string) (Client, error)
}

func NewApp() *App {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	return &App{
		cfg: cfg,
		dial: func(endpoint string) (Client, error) {
			return client.NewGRPCClient(endpoint)
		},
	}
}

// applyConfigFile overlays the JSON config, leaving flags set on the
// command line untouched.
func (a *App) applyConfigFile(cmd *cobra.Command) error {
	if a.configFile == "" {
		return nil
	}
	return a.cfg.ApplyJSON(a.configFile, func(key string) bool {
		return cmd.Flags().Changed(key)
	})
}

// withClient dials the server and runs fn under the configured timeout.
// When authenticated is set, the saved token is attached first.
func (a *App) withClient(cmd *cobra.Command, authenticated bool, fn func(ctx context.Context, c Client) error) error {
	var token string
	if authenticated {
		t, err := client.LoadToken(a.cfg.TokenFile)
		if err != nil {
			return err
		}
		token = t
	}

	c, err := a.dial(a.cfg.ServerEndpointAddr)
	if err != nil {
		return err
	}
	defer c.Close()

	if token != "" {
		c.SetToken(token)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if a.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.Timeout)
		defer cancel()
	}
	return fn(ctx, c)
}
