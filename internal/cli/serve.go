package cli

import (
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/me/gofib/internal/server"
	"github.com/me/gofib/internal/trace"
	"github.com/me/gofib/pkg/fiber"
)

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve scheduler status and run history over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}

			st, err := openTrace(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			var store trace.Store
			if st != nil {
				defer st.Close()
				store = st
			}

			sched, err := fiber.New(cfg, logger)
			if err != nil {
				return err
			}
			defer sched.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			srv := server.New(sched, store, logger)
			if err := srv.ListenAndServe(ctx, cfg.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			logger.Info("shutdown complete")
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides config)")
	return cmd
}
