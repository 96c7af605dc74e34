package cmd

import (
	"context"
	"errors"
	"net/http"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/abhisek/codequiz/internal/stream"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve quiz generation over HTTP (JSON and NDJSON streaming)",
	RunE: func(cmd *cobra.Command, args []string) error {
		noQuality, _ := cmd.Flags().GetBool("no-quality")
		a, err := newApp(cmd, noQuality)
		if err != nil {
			return err
		}
		defer a.Close()

		addr := a.cfg.Server.Addr
		if cmd.Flags().Changed("addr") {
			addr, _ = cmd.Flags().GetString("addr")
		}
		srv := stream.NewServer(a.orch, stream.Config{
			Address:      addr,
			Settings:     a.cfg.Settings(),
			MaxQuestions: a.cfg.Server.MaxQuestions,
			Gatherer:     a.registry,
			Logger:       a.logger,
		})

		g, ctx := errgroup.WithContext(cmd.Context())
		g.Go(func() error {
			if err := srv.Start(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			a.logger.Info("shutting down http server")
			return srv.Shutdown(context.WithoutCancel(ctx))
		})
		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().String("addr", ":8080", "Listen address (overrides server.addr)")
	serveCmd.Flags().Bool("no-quality", false, "Skip the quality gate")
}
