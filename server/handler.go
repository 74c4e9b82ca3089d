package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/kbukum/sttkit/errors"
	"github.com/kbukum/sttkit/logger"
	"github.com/kbukum/sttkit/observability"
	"github.com/kbukum/sttkit/resilience"
	"github.com/kbukum/sttkit/server/middleware"
	"github.com/kbukum/sttkit/transcription"
)

// TranscribeRequest is the body of POST /v1/transcriptions.
type TranscribeRequest struct {
	AudioPath string `json:"audio_path" binding:"required"`
	Format    string `json:"format"`
	// Policy overrides the configured selection policy.
	Policy string       `json:"policy"`
	Plan   *PlanRequest `json:"plan"`
}

// PlanRequest is the JSON form of a plan. Durations use Go syntax ("90s").
// Unset fields take the configured defaults.
type PlanRequest struct {
	Providers  []string                         `json:"providers"`
	MaxRetries *int                             `json:"max_retries"`
	Timeout    string                           `json:"timeout"`
	Backoff    string                           `json:"backoff"`
	Options    map[string]transcription.Options `json:"options"`
}

func (p *PlanRequest) config() (transcription.PlanConfig, error) {
	var cfg transcription.PlanConfig
	if p == nil {
		return cfg, nil
	}
	cfg.Providers = p.Providers
	cfg.MaxRetries = p.MaxRetries
	cfg.Options = p.Options

	var err error
	if cfg.Timeout, err = parseDuration("plan.timeout", p.Timeout); err != nil {
		return cfg, err
	}
	if cfg.Backoff, err = parseDuration("plan.backoff", p.Backoff); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func parseDuration(field, s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, apperrors.InvalidInput(field, "must be a duration such as 30s or 2m").WithCause(err)
	}
	return d, nil
}

// ProviderView is one entry of GET /v1/providers.
type ProviderView struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
}

// Handler serves the transcription API.
type Handler struct {
	registry *transcription.Registry
	executor *transcription.Executor
	defaults transcription.PlanConfig
	bulkhead *resilience.Bulkhead
	service  string
	version  string
	log      *logger.Logger
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithPlanDefaults sets the plan fields used when a request omits them.
func WithPlanDefaults(defaults transcription.PlanConfig) HandlerOption {
	return func(h *Handler) { h.defaults = defaults }
}

// WithBulkhead caps concurrent transcriptions.
func WithBulkhead(b *resilience.Bulkhead) HandlerOption {
	return func(h *Handler) { h.bulkhead = b }
}

// WithServiceInfo sets the service name and version reported by /healthz.
func WithServiceInfo(name, version string) HandlerOption {
	return func(h *Handler) { h.service, h.version = name, version }
}

// WithHandlerLogger sets the handler logger.
func WithHandlerLogger(l *logger.Logger) HandlerOption {
	return func(h *Handler) { h.log = l }
}

// NewHandler creates a Handler running jobs with executor against registry.
func NewHandler(registry *transcription.Registry, executor *transcription.Executor, opts ...HandlerOption) *Handler {
	h := &Handler{
		registry: registry,
		executor: executor,
		service:  "sttkit",
		log:      logger.Get("server"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the routes on r.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/healthz", h.health)

	v1 := r.Group("/v1")
	v1.GET("/providers", h.listProviders)

	jobs := v1.Group("/transcriptions")
	if h.bulkhead != nil {
		jobs.Use(middleware.ConcurrencyLimit(h.bulkhead))
	}
	jobs.POST("", h.transcribe)
}

func (h *Handler) transcribe(c *gin.Context) {
	var req TranscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, apperrors.InvalidInput("body", err.Error()).WithCause(err))
		return
	}

	audio, err := transcription.NewAudioReference(req.AudioPath, req.Format)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	planCfg, err := req.Plan.config()
	if err != nil {
		RespondWithError(c, err)
		return
	}
	plan, err := planCfg.Merge(h.defaults).Plan()
	if err != nil {
		RespondWithError(c, err)
		return
	}

	executor := h.executor
	if req.Policy != "" {
		policy, err := transcription.PolicyByName(req.Policy, req.Format)
		if err != nil {
			RespondWithError(c, err)
			return
		}
		executor = executor.Using(policy)
	}

	job, err := executor.Execute(c.Request.Context(), transcription.NewJob(audio, plan))
	if err != nil {
		RespondWithError(c, err)
		return
	}

	h.log.Info("transcription request finished", logger.Fields(
		logger.FieldRequestID, middleware.RequestIDFrom(c),
		logger.FieldJobID, job.ID().String(),
		logger.FieldStatus, string(job.Status()),
		logger.FieldProvider, job.Provider(),
	))
	RespondJob(c, job)
}

func (h *Handler) listProviders(c *gin.Context) {
	providers := h.registry.List()
	out := make([]ProviderView, 0, len(providers))
	for _, p := range providers {
		out = append(out, ProviderView{Name: p.Name(), Available: p.IsAvailable(c.Request.Context())})
	}
	RespondOK(c, out)
}

func (h *Handler) health(c *gin.Context) {
	sh := observability.NewServiceHealth(h.service, h.version)
	for _, p := range h.registry.List() {
		status := observability.HealthStatusUp
		if !p.IsAvailable(c.Request.Context()) {
			status = observability.HealthStatusDown
		}
		sh.AddComponent(observability.Health{Name: p.Name(), Status: status})
	}

	code := http.StatusOK
	if !sh.IsUp() {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, sh)
}
