package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/kebunops/opsreport/internal/server"
	"github.com/kebunops/opsreport/internal/util"
)

const envServerKey = "OPSREPORT_SERVER_KEY"

var serveFlags struct {
	Addr   string
	APIKey string
	CORS   string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve report views over HTTP for dashboards",
	Long: `Starts an HTTP gateway that answers with the same shaped views the
report commands print, as JSON:

  GET /health
  GET /api/v1/locations?select=GH%201,GH%202
  GET /api/v1/reports/{hpt,production,productivity}?locations=&start=&end=&pest=&variant=

An absent locations parameter selects every location, hidden included; an
empty one selects none. Fetch failures are reported in the view's alerts with status
200. Invalid dates answer 400.

With --api-key (or ` + envServerKey + `) every /api route requires the key in
the X-API-KEY header.`,
	Example: `  opsreport serve --addr :8080
  opsreport serve --api-key s3cret --cors https://dash.example.com`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		if !globalFlags.Debug {
			gin.SetMode(gin.ReleaseMode)
		}
		key := serveFlags.APIKey
		if key == "" {
			key = os.Getenv(envServerKey)
		}

		srv := server.New(deps.Service, server.Options{
			APIKey:       key,
			AllowOrigins: util.SplitList(serveFlags.CORS),
			Version:      Version,
		})

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return srv.Run(ctx, serveFlags.Addr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	f := serveCmd.Flags()
	f.StringVar(&serveFlags.Addr, "addr", ":8080", "listen address")
	f.StringVar(&serveFlags.APIKey, "api-key", "", "require this key in X-API-KEY (default: env "+envServerKey+")")
	f.StringVar(&serveFlags.CORS, "cors", "", "comma-separated allowed origins (default: any)")
}
