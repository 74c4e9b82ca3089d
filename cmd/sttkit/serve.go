package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kbukum/sttkit/logger"
	"github.com/kbukum/sttkit/resilience"
	"github.com/kbukum/sttkit/server"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the transcription API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				if err := applyAddr(&cfg.Server, addr); err != nil {
					return err
				}
			}
			return runServe(cmd, cfg)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address host:port, overriding server.host and server.port")
	return cmd
}

func applyAddr(cfg *server.Config, addr string) error {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid --addr %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("invalid --addr port %q: %w", portStr, err)
	}
	cfg.Host, cfg.Port = host, port
	return cfg.Validate()
}

func runServe(cmd *cobra.Command, cfg *AppConfig) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.Get("serve")

	reg, err := newRegistry(ctx, cfg.Transcription)
	if err != nil {
		return err
	}
	defer reg.Close(context.WithoutCancel(ctx))

	executor, metrics, err := newExecutor(cfg.Transcription, reg)
	if err != nil {
		return err
	}

	opts := []server.HandlerOption{
		server.WithPlanDefaults(cfg.Transcription.DefaultPlan),
		server.WithServiceInfo(cfg.Name, cfg.Version),
		server.WithHandlerLogger(logger.Get("server")),
	}
	if cfg.Server.MaxConcurrentJobs > 0 {
		opts = append(opts, server.WithBulkhead(resilience.NewBulkhead(resilience.BulkheadConfig{
			Name:          "transcriptions",
			MaxConcurrent: cfg.Server.MaxConcurrentJobs,
			MaxWait:       cfg.Server.MaxQueueWait,
			OnReject: func(name string, err error) {
				log.Warn("transcription rejected", logger.Fields("bulkhead", name, logger.FieldError, err.Error()))
			},
		})))
	}

	srv := server.New(cfg.Server, logger.GetGlobalLogger(), metrics)
	server.NewHandler(reg, executor, opts...).Register(srv.Engine())

	if err := srv.Start(ctx); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderRoutes(srv.Routes()))
	log.Info("serving", logger.Fields("addr", srv.Addr(), "providers", reg.Names()))

	<-ctx.Done()
	return srv.Stop(context.WithoutCancel(ctx))
}

func renderRoutes(routes []server.Route) string {
	rows := make([][]string, 0, len(routes))
	for _, r := range routes {
		kind := "api"
		if r.System {
			kind = "system"
		}
		rows = append(rows, []string{r.Method, r.Path, r.Handler, kind})
	}
	return renderTable([]string{"Method", "Path", "Handler", "Kind"}, rows, nil)
}
