package commands

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pawdcast/pawdcast/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serve the pipeline over HTTP.

Endpoints:
  POST /api/analyze            multipart audio, skit, timestamps -> JSON split
  POST /api/render             multipart mode, skit|article, audio, template1,
                               template2, closing, job -> video/mp4
  GET  /api/jobs/{id}/events   websocket progress for a render
  GET  /healthz`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := loadApp(ctx, cmd, map[string]string{"server.addr": "addr"})
		if err != nil {
			return err
		}
		if err := a.ffmpeg.Check(ctx); err != nil {
			return err
		}
		srv := server.New(a.pipeline, server.Options{
			MaxUploadMB: a.cfg.Server.MaxUploadMB,
			WorkDir:     a.cfg.Paths.Work,
		}, a.log)
		err = srv.ListenAndServe(ctx, a.cfg.Server.Addr)
		if errors.Is(err, http.ErrServerClosed) || errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	serveCmd.Flags().String("addr", ":8080", "listen address")
}
