package main

import (
	"context"
	"strings"
	"sync"

	"github.com/kbukum/sttkit/logger"
	"github.com/kbukum/sttkit/observability"
	"github.com/kbukum/sttkit/transcription"
	"github.com/kbukum/sttkit/transcription/command"
	"github.com/kbukum/sttkit/transcription/openai"
	"github.com/kbukum/sttkit/transcription/transcriptiontest"
	"github.com/kbukum/sttkit/transcription/whisper"
)

type commandContext struct {
	configFlag  *string
	envFileFlag *string

	configOnce sync.Once
	config     *AppConfig
	configErr  error

	shutdown observability.ShutdownFunc
}

func newCommandContext(configFlag, envFileFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag, envFileFlag: envFileFlag}
}

func (c *commandContext) ensureConfig() (*AppConfig, error) {
	c.configOnce.Do(func() {
		c.config, c.configErr = loadAppConfig(strings.TrimSpace(*c.configFlag), strings.TrimSpace(*c.envFileFlag))
	})
	return c.config, c.configErr
}

// setup loads configuration and installs the global logger and telemetry.
func (c *commandContext) setup(ctx context.Context) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger.Init(cfg.Logging)

	shutdown, err := observability.Setup(ctx, cfg.Observability)
	if err != nil {
		return err
	}
	c.shutdown = shutdown
	return nil
}

func (c *commandContext) teardown(ctx context.Context) error {
	if c.shutdown == nil {
		return nil
	}
	return c.shutdown(context.WithoutCancel(ctx))
}

// newRegistry registers the built-in provider kinds and creates the
// configured provider instances.
func newRegistry(ctx context.Context, cfg transcription.Config) (*transcription.Registry, error) {
	reg := transcription.NewRegistry()
	reg.RegisterFactory(whisper.Kind, whisper.Factory())
	reg.RegisterFactory(openai.Kind, openai.Factory())
	reg.RegisterFactory(command.Kind, command.Factory())
	reg.RegisterFactory(transcriptiontest.Kind, transcriptiontest.Factory())

	if err := transcription.RegisterProviders(ctx, reg, cfg.Providers); err != nil {
		_ = reg.Close(ctx)
		return nil, err
	}
	return reg, nil
}

// newExecutor builds an executor with the configured policy, the global
// logger and the global meter.
func newExecutor(cfg transcription.Config, reg *transcription.Registry) (*transcription.Executor, *observability.Metrics, error) {
	policy, err := cfg.SelectionPolicy()
	if err != nil {
		return nil, nil, err
	}
	metrics, err := observability.NewMetrics(observability.Meter(serviceName))
	if err != nil {
		return nil, nil, err
	}
	ex := transcription.NewExecutor(reg,
		transcription.WithPolicy(policy),
		transcription.WithLogger(logger.Get("transcription")),
		transcription.WithMetrics(metrics),
	)
	return ex, metrics, nil
}

// kindsByName maps configured provider names to their kinds.
func kindsByName(cfg transcription.Config) map[string]string {
	out := make(map[string]string, len(cfg.Providers))
	for _, p := range cfg.Providers {
		out[p.Name] = p.Kind
	}
	return out
}
