package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimiterPerClient(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rl := NewRateLimiter(ctx, 1, 2)
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return clock }

	h := rl.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	do := func(addr string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/authenticate", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	if do("a") != http.StatusOK || do("a") != http.StatusOK {
		t.Fatal("burst should be allowed")
	}
	if code := do("a"); code != http.StatusTooManyRequests {
		t.Errorf("third request = %d, want 429", code)
	}
	if code := do("b"); code != http.StatusOK {
		t.Errorf("other client = %d", code)
	}

	clock = clock.Add(time.Second)
	if code := do("a"); code != http.StatusOK {
		t.Errorf("after refill = %d", code)
	}
}

func TestRateLimiterIgnoresClientPort(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rl := NewRateLimiter(ctx, 1, 2)
	rl.now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }

	h := rl.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	codes := make([]int, 0, 3)
	for _, addr := range []string{"203.0.113.7:50001", "203.0.113.7:50002", "203.0.113.7:50003"} {
		req := httptest.NewRequest(http.MethodPost, "/api/authenticate", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	if codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v, want the third connection from one host limited", codes)
	}

	for addr, want := range map[string]string{
		"203.0.113.7:50001": "203.0.113.7",
		"[2001:db8::1]:443": "2001:db8::1",
		"198.51.100.4":      "198.51.100.4",
	} {
		if got := clientKey(addr); got != want {
			t.Errorf("clientKey(%q) = %q, want %q", addr, got, want)
		}
	}
}

func TestCORSPreflight(t *testing.T) {
	called := false
	h := CORS([]string{"*"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	req := httptest.NewRequest(http.MethodOptions, "/api/upload-document", nil)
	req.Header.Set("Origin", "https://portal.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if called {
		t.Error("preflight must not reach the handler")
	}
	if rec.Code != http.StatusOK || rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("code=%d headers=%v", rec.Code, rec.Header())
	}
}

func TestLoggingRecordsStatus(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	defer slog.SetDefault(prev)

	h := Logging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short and stout"))
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/authenticate", nil))

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if line["msg"] != "http request" || line["path"] != "/api/authenticate" {
		t.Errorf("log = %v", line)
	}
	if line["status"] != float64(http.StatusTeapot) || line["bytes"] != float64(15) {
		t.Errorf("status/bytes = %v/%v", line["status"], line["bytes"])
	}
}
