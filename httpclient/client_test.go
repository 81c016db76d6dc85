package httpclient

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func newClient(t *testing.T, cfg Config) *Client {
	t.Helper()
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func TestDo_ReadsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s", r.Method)
		}
		if r.URL.Path != "/service2/api/data" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("X-Request-ID"); got != "req-7" {
			t.Errorf("X-Request-ID = %q", got)
		}
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("Hello from service2"))
	}))
	defer srv.Close()

	c := newClient(t, Config{})
	resp, err := c.Do(context.Background(), Request{
		URL:     srv.URL + "/service2/api/data",
		Headers: map[string]string{"X-Request-ID": "req-7"},
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if resp.StatusCode != http.StatusOK || string(resp.Body) != "Hello from service2" {
		t.Errorf("resp = %d %q", resp.StatusCode, resp.Body)
	}
	if resp.Header.Get("Content-Type") != "text/plain" {
		t.Errorf("Content-Type = %q", resp.Header.Get("Content-Type"))
	}
}

func TestDo_NonSuccessStatus(t *testing.T) {
	for _, code := range []int{http.StatusNotFound, http.StatusInternalServerError, http.StatusServiceUnavailable} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(code)
			_, _ = w.Write([]byte("nope"))
		}))

		c := newClient(t, Config{})
		resp, err := c.Do(context.Background(), Request{URL: srv.URL})
		srv.Close()

		if resp != nil {
			t.Errorf("%d: expected no response", code)
		}
		var e *Error
		if !errors.As(err, &e) || e.Code != ErrCodeStatus {
			t.Fatalf("%d: err = %v", code, err)
		}
		if e.StatusCode != code || string(e.Body) != "nope" {
			t.Errorf("%d: error = %+v", code, e)
		}
	}
}

func TestDo_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := newClient(t, Config{Timeout: 100 * time.Millisecond})
	start := time.Now()
	_, err := c.Do(context.Background(), Request{URL: srv.URL})
	if CodeOf(err) != ErrCodeTimeout {
		t.Fatalf("err = %v, want timeout", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("took %s", elapsed)
	}
}

func TestDo_CallerDeadlineWins(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	c := newClient(t, Config{Timeout: 10 * time.Second})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := c.Do(ctx, Request{URL: srv.URL}); CodeOf(err) != ErrCodeTimeout {
		t.Fatalf("err = %v, want timeout", err)
	}
}

func TestDo_SlowBodyIsTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("partial"))
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	c := newClient(t, Config{Timeout: 100 * time.Millisecond})
	if _, err := c.Do(context.Background(), Request{URL: srv.URL}); CodeOf(err) != ErrCodeTimeout {
		t.Fatalf("err = %v, want timeout", err)
	}
}

func TestDo_ConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	c := newClient(t, Config{Timeout: time.Second})
	if _, err := c.Do(context.Background(), Request{URL: "http://" + addr + "/"}); CodeOf(err) != ErrCodeConnection {
		t.Fatalf("err = %v, want connection failure", err)
	}
}

func TestDo_ConnectionReset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, _, err := w.(http.Hijacker).Hijack()
		if err != nil {
			t.Error(err)
			return
		}
		_ = conn.Close()
	}))
	defer srv.Close()

	c := newClient(t, Config{Timeout: time.Second})
	if _, err := c.Do(context.Background(), Request{URL: srv.URL}); CodeOf(err) != ErrCodeConnection {
		t.Fatalf("err = %v, want connection failure", err)
	}
}

func TestDo_CancelledByCaller(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	c := newClient(t, Config{Timeout: 10 * time.Second})
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)
	if _, err := c.Do(ctx, Request{URL: srv.URL}); CodeOf(err) != ErrCodeConnection {
		t.Fatalf("err = %v, want connection failure", err)
	}
}

func TestDo_BodyTooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 64)))
	}))
	defer srv.Close()

	c := newClient(t, Config{MaxBodyBytes: 16})
	if _, err := c.Do(context.Background(), Request{URL: srv.URL}); CodeOf(err) != ErrCodeConnection {
		t.Fatalf("err = %v, want connection failure", err)
	}
}

func TestDo_BadURL(t *testing.T) {
	c := newClient(t, Config{})
	_, err := c.Do(context.Background(), Request{URL: "http://bad host/"})
	if err == nil || CodeOf(err) != 0 {
		t.Fatalf("err = %v, want unclassified build error", err)
	}
}

func TestDo_InjectsTraceContext(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("traceparent")
	}))
	defer srv.Close()

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	c := newClient(t, Config{})
	if _, err := c.Do(ctx, Request{URL: srv.URL}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "4bf92f3577b34da6a3ce929d0e0e4736") {
		t.Errorf("traceparent = %q", got)
	}
}
