package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/walteh/docpatch/cmd/docpatch/opts"
	"github.com/walteh/docpatch/pkg/server"
	"golang.org/x/sync/errgroup"
)

// NewServeCmd creates the serve command
func NewServeCmd(rootOpts *opts.RootOpts) *cobra.Command {
	var (
		host string
		port int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve patch sessions over HTTP",
		Long: `Serve exposes the apply and preview operations under /api/v1 and a
health check at /health. It runs until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			session, err := rootOpts.OpenSession(ctx)
			if err != nil {
				return err
			}
			defer session.Close(ctx)

			cfg := rootOpts.Config.Server
			if cmd.Flags().Changed("host") || cfg.Host == "" {
				cfg.Host = host
			}
			if cmd.Flags().Changed("port") || cfg.Port == 0 {
				cfg.Port = port
			}

			srv, err := server.NewServer(ctx, session.Operator, cfg)
			if err != nil {
				return err
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(srv.Start)
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})

			err = g.Wait()
			zerolog.Ctx(ctx).Info().Msg("server stopped")
			return err
		},
	}

	cmd.Flags().StringVar(&host, "host", "localhost", "address to listen on")
	cmd.Flags().IntVar(&port, "port", 8080, "port to listen on")

	return cmd
}
