package handoff

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"

	"github.com/example/rectpose/internal/pose"
	"github.com/example/rectpose/internal/poselog"
)

func fp(v float64) *float64 { return &v }

func TestSendRejectsLocallyWithoutDetection(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
	}))
	defer server.Close()

	logbook := poselog.NewRing()
	client := NewClient(server.URL, logbook, zap.NewNop())

	for name, estimate := range map[string]*pose.Estimate{
		"nil":           nil,
		"not found":     {Found: false},
		"missing theta": {Found: true, XPx: fp(1), YPx: fp(2)},
	} {
		err := client.Send(context.Background(), estimate, 0.25)
		if err == nil {
			t.Fatalf("%s: expected rejection", name)
		}
		var vErr *pose.ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("%s: expected local validation error, got %T", name, err)
		}
	}

	if atomic.LoadInt32(&requests) != 0 {
		t.Fatalf("local rejection must make zero network calls, got %d", requests)
	}

	entries := logbook.Entries()
	if len(entries) != 3 || entries[0].Message != "Cannot send: no rectangle detected" {
		t.Fatalf("expected one rejection entry per attempt, got %v", entries)
	}
}

func TestSendEnrichesMillimetersFromScale(t *testing.T) {
	var got pose.Payload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/pose/send" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("bad payload: %v", err)
		}
		_, _ = w.Write([]byte(`{"status":"ok","receivedAt":"2026-01-01T00:00:00Z"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, poselog.NewRing(), zap.NewNop())
	estimate := &pose.Estimate{Found: true, XPx: fp(100), YPx: fp(200), ThetaDeg: fp(45)}

	if err := client.Send(context.Background(), estimate, 0.25); err != nil {
		t.Fatalf("send: %v", err)
	}

	if got.XMm == nil || *got.XMm != 25.0 {
		t.Fatalf("expected derived x_mm 25.0, got %v", got.XMm)
	}
	if got.YMm == nil || *got.YMm != 50.0 {
		t.Fatalf("expected derived y_mm 50.0, got %v", got.YMm)
	}
}

func TestSendPrefersEstimatorMillimeters(t *testing.T) {
	var got pose.Payload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, poselog.NewRing(), zap.NewNop())
	estimate := &pose.Estimate{
		Found: true, XPx: fp(100), YPx: fp(200), ThetaDeg: fp(45),
		XMm: fp(12.5),
	}

	if err := client.Send(context.Background(), estimate, 0.25); err != nil {
		t.Fatalf("send: %v", err)
	}
	if got.XMm == nil || *got.XMm != 12.5 {
		t.Fatalf("estimator mm must win, got %v", got.XMm)
	}
	if got.YMm == nil || *got.YMm != 50.0 {
		t.Fatalf("absent mm still derives from scale, got %v", got.YMm)
	}
}

func TestSendOmitsMillimetersWithoutScale(t *testing.T) {
	var raw map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&raw)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, poselog.NewRing(), zap.NewNop())
	estimate := &pose.Estimate{Found: true, XPx: fp(100), YPx: fp(200), ThetaDeg: fp(45)}

	if err := client.Send(context.Background(), estimate, 0); err != nil {
		t.Fatalf("send: %v", err)
	}
	if raw["x_mm"] != nil || raw["y_mm"] != nil {
		t.Fatalf("expected null mm fields without scale, got %v", raw)
	}
}

func TestSendSurfacesTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	logbook := poselog.NewRing()
	client := NewClient(server.URL, logbook, zap.NewNop())
	estimate := &pose.Estimate{Found: true, XPx: fp(1), YPx: fp(2), ThetaDeg: fp(3)}

	err := client.Send(context.Background(), estimate, 0)
	var tErr *pose.TransportError
	if !errors.As(err, &tErr) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if tErr.Status != http.StatusServiceUnavailable {
		t.Fatalf("unexpected status %d", tErr.Status)
	}

	entries := logbook.Entries()
	if len(entries) != 1 || entries[0].Message[:11] != "Send failed" {
		t.Fatalf("expected a send-failed entry, got %v", entries)
	}
}
