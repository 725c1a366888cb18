package cli

import (
	"github.com/dmitrijs2005/gophauth/internal/client/config"
	"github.com/spf13/cobra"
)

// NewRootCmd creates the authctl command tree bound to app.
func NewRootCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "authctl",
		Short:         "authctl - gophauth command-line client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return app.applyConfigFile(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&app.configFile, "config", "c", "", "JSON config file path")
	flags.StringVarP(&app.cfg.ServerEndpointAddr, config.KeyServer, "a", app.cfg.ServerEndpointAddr, "server address")
	flags.DurationVar(&app.cfg.Timeout, config.KeyTimeout, app.cfg.Timeout, "per-request timeout")
	flags.StringVar(&app.cfg.TokenFile, config.KeyTokenFile, app.cfg.TokenFile, "access token file")

	cmd.AddCommand(
		newRegisterCmd(app),
		newLoginCmd(app),
		newLogoutCmd(app),
		newWhoAmICmd(app),
		newPasswdCmd(app),
		newStrengthCmd(app),
		newPingCmd(app),
	)
	return cmd
}
