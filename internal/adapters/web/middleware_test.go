package web

import (
	"bytes"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"unreplied/pkg/log"
	"unreplied/pkg/log/transporters"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"golang.org/x/time/rate"
)

func setupTestApp() *fiber.App {
	app := fiber.New()
	app.Use(requestid.New(RequestIDConfig()))
	app.Use(RequestIDToContextMiddleware())
	return app
}

func TestRequestIDToContext_ExtractsIDFromFiber(t *testing.T) {
	app := setupTestApp()

	var capturedRequestID string
	app.Get("/test", func(c *fiber.Ctx) error {
		capturedRequestID = log.RequestIDFromContext(c.UserContext())
		return c.SendString("ok")
	})

	req := httptest.NewRequest("GET", "/test", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	defer resp.Body.Close()

	if capturedRequestID == "" {
		t.Error("request_id should be extracted from Fiber's requestid middleware")
	}

	// Should also be in response header (set by Fiber's requestid)
	headerID := resp.Header.Get("X-Request-ID")
	if headerID == "" {
		t.Error("X-Request-ID header should be set in response")
	}

	if headerID != capturedRequestID {
		t.Errorf("response header = %q, context = %q, should match", headerID, capturedRequestID)
	}
}

func TestRequestIDToContext_UsesProvidedID(t *testing.T) {
	app := setupTestApp()

	var capturedRequestID string
	app.Get("/test", func(c *fiber.Ctx) error {
		capturedRequestID = log.RequestIDFromContext(c.UserContext())
		return c.SendString("ok")
	})

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("X-Request-ID", "custom-trace-id-123")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	defer resp.Body.Close()

	if capturedRequestID != "custom-trace-id-123" {
		t.Errorf("request_id = %q, want %q", capturedRequestID, "custom-trace-id-123")
	}
}

func TestRequestLoggerMiddleware_LogsRequest(t *testing.T) {
	// Capture log output
	var buf bytes.Buffer
	logger := log.New(log.Info, transporters.NewStdoutWithWriter(&buf))
	log.SetDefault(logger)
	defer logger.Close()

	app := fiber.New()
	app.Use(requestid.New(RequestIDConfig()))
	app.Use(RequestIDToContextMiddleware())
	app.Use(RequestLoggerMiddleware())

	app.Get("/test-path", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	req := httptest.NewRequest("GET", "/test-path", nil)
	req.Header.Set("X-Request-ID", "test-req-123")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	// Wait for async log
	logger.Close()

	output := buf.String()

	// Verify log contains expected fields
	if !strings.Contains(output, "request completed") {
		t.Errorf("log should contain 'request completed', got: %s", output)
	}
	if !strings.Contains(output, "test-req-123") {
		t.Errorf("log should contain request_id 'test-req-123', got: %s", output)
	}
	if !strings.Contains(output, "/test-path") {
		t.Errorf("log should contain path '/test-path', got: %s", output)
	}
	if !strings.Contains(output, `"status":200`) {
		t.Errorf("log should contain status 200, got: %s", output)
	}
}

func TestRequestLoggerMiddleware_LogsErrorStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.Info, transporters.NewStdoutWithWriter(&buf))
	log.SetDefault(logger)
	defer logger.Close()

	app := fiber.New()
	app.Use(requestid.New(RequestIDConfig()))
	app.Use(RequestIDToContextMiddleware())
	app.Use(RequestLoggerMiddleware())

	app.Get("/not-found", func(c *fiber.Ctx) error {
		return c.Status(404).SendString("not found")
	})

	req := httptest.NewRequest("GET", "/not-found", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	logger.Close()

	output := buf.String()

	// 4xx should be logged as WARN
	if !strings.Contains(output, "WARN") {
		t.Errorf("4xx status should be logged as WARN, got: %s", output)
	}
}

func TestRequestLoggerMiddleware_Logs500AsError(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.Info, transporters.NewStdoutWithWriter(&buf))
	log.SetDefault(logger)
	defer logger.Close()

	app := fiber.New()
	app.Use(requestid.New(RequestIDConfig()))
	app.Use(RequestIDToContextMiddleware())
	app.Use(RequestLoggerMiddleware())

	app.Get("/error", func(c *fiber.Ctx) error {
		return c.Status(500).SendString("internal error")
	})

	req := httptest.NewRequest("GET", "/error", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	logger.Close()

	output := buf.String()

	// 5xx should be logged as ERROR
	if !strings.Contains(output, "ERROR") {
		t.Errorf("5xx status should be logged as ERROR, got: %s", output)
	}
}

func TestGetLimiter_PerIP(t *testing.T) {
	rl := NewRateLimiter(rate.Limit(10), 20)
	defer rl.Close()

	limiter1 := rl.getLimiter("192.168.1.1")
	limiter2 := rl.getLimiter("192.168.1.1")
	limiter3 := rl.getLimiter("192.168.1.2")

	if limiter1 != limiter2 {
		t.Error("getLimiter should return the same limiter for the same IP")
	}
	if limiter1 == limiter3 {
		t.Error("getLimiter should return different limiters for different IPs")
	}
}

func TestRateLimiterMiddleware(t *testing.T) {
	tests := []struct {
		name           string
		requestCount   int
		rateLimit      rate.Limit
		burst          int
		expectedStatus int
	}{
		{"under limit", 5, rate.Limit(10), 10, fiber.StatusOK},
		{"at burst limit", 10, rate.Limit(1), 10, fiber.StatusOK},
		{"over limit", 15, rate.Limit(1), 10, fiber.StatusTooManyRequests},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rl := NewRateLimiter(tt.rateLimit, tt.burst)
			defer rl.Close()
			app := fiber.New()
			app.Use(rl.Middleware())
			app.Get("/test", func(c *fiber.Ctx) error { return c.SendString("ok") })

			var lastStatus int
			for i := 0; i < tt.requestCount; i++ {
				resp, err := app.Test(httptest.NewRequest("GET", "/test", nil))
				if err != nil {
					t.Fatalf("app.Test() error = %v", err)
				}
				resp.Body.Close()
				lastStatus = resp.StatusCode
			}

			if lastStatus != tt.expectedStatus {
				t.Errorf("final status: got %d, want %d", lastStatus, tt.expectedStatus)
			}
		})
	}
}

func TestRateLimiterMiddleware_ErrorResponse(t *testing.T) {
	rl := NewRateLimiter(rate.Limit(1), 1)
	defer rl.Close()
	app := fiber.New()
	app.Use(rl.Middleware())
	app.Get("/test", func(c *fiber.Ctx) error { return c.SendString("ok") })

	first, _ := app.Test(httptest.NewRequest("GET", "/test", nil))
	first.Body.Close()
	resp, err := app.Test(httptest.NewRequest("GET", "/test", nil))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != fiber.StatusTooManyRequests {
		t.Errorf("status: got %d, want 429", resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") != "1" {
		t.Errorf("Retry-After: got %q, want 1", resp.Header.Get("Retry-After"))
	}
	if !strings.Contains(string(body), `"error":"rate limit exceeded"`) {
		t.Errorf("body: got %s", body)
	}
}

func TestRateLimiter_EvictIdle(t *testing.T) {
	rl := NewRateLimiter(rate.Limit(1), 1)
	defer rl.Close()
	rl.getLimiter("10.0.0.1")

	if n := rl.evictIdle(time.Now()); n != 0 {
		t.Errorf("evicted fresh visitors: got %d, want 0", n)
	}
	if n := rl.evictIdle(time.Now().Add(time.Hour)); n != 1 {
		t.Errorf("evicted idle visitors: got %d, want 1", n)
	}
}

func TestPerMinute(t *testing.T) {
	if PerMinute(0) != rate.Inf {
		t.Errorf("PerMinute(0): got %v, want Inf", PerMinute(0))
	}
	if PerMinute(120) != rate.Limit(2) {
		t.Errorf("PerMinute(120): got %v, want 2", PerMinute(120))
	}
}
