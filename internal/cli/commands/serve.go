package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"twin/internal/logger"
	"twin/internal/server"
)

// ServeCommand creates the command that runs the HTTP API
func ServeCommand(ws WorkspaceLoader, version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the environment API over HTTP",
		Long: `Serve the environment API for the current repository. The server binds to
[server] host and port from the configuration unless --host or --port is
given, and stops gracefully on interrupt.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := ws.Get(cmd.Context())
			if err != nil {
				return err
			}

			cfg := server.ConfigFromSettings(w.Config.Settings)
			if cmd.Flags().Changed("host") {
				cfg.Host, _ = cmd.Flags().GetString("host")
			}
			if cmd.Flags().Changed("port") {
				cfg.Port, _ = cmd.Flags().GetInt("port")
			}

			var history server.History
			if w.Journal != nil {
				history = w.Journal
			}

			srv := server.New(cfg, w.Envs, history, w.DB)
			srv.SetVersion(version)

			logger.WithFields(logger.Fields{
				"addr":    srv.Addr(),
				"project": w.Envs.ProjectRoot(),
				"journal": history != nil,
			}).Info("Starting twin server")
			fmt.Fprintf(cmd.OutOrStdout(), "Serving %s on http://%s\n", w.Envs.ProjectRoot(), srv.Addr())
			return srv.Start(cmd.Context())
		},
	}
	cmd.Flags().String("host", "", "Address to bind (overrides [server] host)")
	cmd.Flags().IntP("port", "p", 0, "Port to listen on (overrides [server] port)")
	return cmd
}
