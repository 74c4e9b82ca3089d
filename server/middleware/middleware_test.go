package middleware_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/sttkit/logger"
	"github.com/kbukum/sttkit/resilience"
	"github.com/kbukum/sttkit/server/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(engine *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	engine.ServeHTTP(rr, req)
	return rr
}

// ---------------------------------------------------------------------------
// Recovery
// ---------------------------------------------------------------------------

func TestRecovery_Panic(t *testing.T) {
	var logs bytes.Buffer
	log := logger.NewWithWriter(&logger.Config{Level: "info", Format: "json"}, "test", &logs)

	engine := gin.New()
	engine.Use(middleware.Recovery(log))
	engine.GET("/boom", func(*gin.Context) { panic("test panic") })

	rr := serve(engine, httptest.NewRequest(http.MethodGet, "/boom", http.NoBody))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}

	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if body.Error.Code != "INTERNAL_ERROR" {
		t.Errorf("unexpected error code %q", body.Error.Code)
	}
	if !strings.Contains(logs.String(), "test panic") {
		t.Errorf("expected panic to be logged, got %q", logs.String())
	}
}

// ---------------------------------------------------------------------------
// RequestID
// ---------------------------------------------------------------------------

func TestRequestID(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
	}{
		{"generates id", ""},
		{"echoes id", "req-123"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var fromGin, fromCtx string
			engine := gin.New()
			engine.Use(middleware.RequestID())
			engine.GET("/", func(c *gin.Context) {
				fromGin = middleware.RequestIDFrom(c)
				fromCtx = middleware.RequestIDFromContext(c.Request.Context())
				c.Status(http.StatusNoContent)
			})

			req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
			if tc.incoming != "" {
				req.Header.Set(middleware.HeaderRequestID, tc.incoming)
			}
			rr := serve(engine, req)

			got := rr.Header().Get(middleware.HeaderRequestID)
			if got == "" {
				t.Fatal("expected X-Request-Id on the response")
			}
			if tc.incoming != "" && got != tc.incoming {
				t.Errorf("expected echoed id %q, got %q", tc.incoming, got)
			}
			if fromGin != got || fromCtx != got {
				t.Errorf("handler saw %q/%q, response carried %q", fromGin, fromCtx, got)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// BodySizeLimit
// ---------------------------------------------------------------------------

func TestBodySizeLimit(t *testing.T) {
	engine := gin.New()
	engine.Use(middleware.BodySizeLimit(8))
	engine.POST("/", func(c *gin.Context) {
		if _, err := io.ReadAll(c.Request.Body); err != nil {
			c.Status(http.StatusRequestEntityTooLarge)
			return
		}
		c.Status(http.StatusOK)
	})

	if rr := serve(engine, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("small"))); rr.Code != http.StatusOK {
		t.Errorf("expected 200 for small body, got %d", rr.Code)
	}
	if rr := serve(engine, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("much too large"))); rr.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413 for large body, got %d", rr.Code)
	}
}

// ---------------------------------------------------------------------------
// RequestLogger
// ---------------------------------------------------------------------------

func TestRequestLogger(t *testing.T) {
	var logs bytes.Buffer
	log := logger.NewWithWriter(&logger.Config{Level: "debug", Format: "json"}, "test", &logs)

	engine := gin.New()
	engine.Use(middleware.RequestLogger(log, nil))
	engine.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	engine.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	serve(engine, httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody))
	if logs.Len() != 0 {
		t.Errorf("health checks must not be logged, got %q", logs.String())
	}

	serve(engine, httptest.NewRequest(http.MethodGet, "/missing", http.NoBody))
	out := logs.String()
	if !strings.Contains(out, `"level":"warn"`) || !strings.Contains(out, `"status":404`) {
		t.Errorf("expected warn entry with status, got %q", out)
	}
}

// ---------------------------------------------------------------------------
// ConcurrencyLimit
// ---------------------------------------------------------------------------

func TestConcurrencyLimit(t *testing.T) {
	bulkhead := resilience.NewBulkhead(resilience.BulkheadConfig{Name: "jobs", MaxConcurrent: 1})
	entered := make(chan struct{})
	release := make(chan struct{})

	engine := gin.New()
	engine.Use(middleware.ConcurrencyLimit(bulkhead))
	engine.GET("/slow", func(c *gin.Context) {
		close(entered)
		<-release
		c.Status(http.StatusOK)
	})
	engine.GET("/fast", func(c *gin.Context) { c.Status(http.StatusOK) })

	var wg sync.WaitGroup
	wg.Add(1)
	var slow *httptest.ResponseRecorder
	go func() {
		defer wg.Done()
		slow = serve(engine, httptest.NewRequest(http.MethodGet, "/slow", http.NoBody))
	}()
	<-entered

	rejected := serve(engine, httptest.NewRequest(http.MethodGet, "/fast", http.NoBody))
	if rejected.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429 while the slot is held, got %d", rejected.Code)
	}

	close(release)
	wg.Wait()
	if slow.Code != http.StatusOK {
		t.Errorf("expected 200 for the slow request, got %d", slow.Code)
	}
	if rr := serve(engine, httptest.NewRequest(http.MethodGet, "/fast", http.NoBody)); rr.Code != http.StatusOK {
		t.Errorf("expected 200 after release, got %d", rr.Code)
	}
}
