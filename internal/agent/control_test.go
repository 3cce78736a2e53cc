package agent

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/example/rectpose/internal/dispatcher"
	"github.com/example/rectpose/internal/pose"
	"github.com/example/rectpose/internal/poselog"
)

type stubLoop struct {
	startErr error
	state    dispatcher.State
	latest   *pose.Estimate
	updated  time.Time
	stops    int
}

func (s *stubLoop) Start(ctx context.Context) error {
	if s.startErr != nil {
		return s.startErr
	}
	s.state = dispatcher.StateStreaming
	return nil
}

func (s *stubLoop) Stop() {
	s.stops++
	s.state = dispatcher.StateIdle
}

func (s *stubLoop) State() dispatcher.State { return s.state }

func (s *stubLoop) Latest() (*pose.Estimate, time.Time) { return s.latest, s.updated }

type stubSender struct {
	err   error
	calls int
	scale float64
}

func (s *stubSender) Send(ctx context.Context, estimate *pose.Estimate, scale float64) error {
	s.calls++
	s.scale = scale
	return s.err
}

func fp(v float64) *float64 { return &v }

func newControlRouter(loop Loop, sender Sender, scale float64) (*gin.Engine, *poselog.Ring) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	logbook := poselog.NewRing()
	ctl := NewControl(context.Background(), loop, sender, nil, logbook, scale)
	ctl.RegisterRoutes(router)
	return router, logbook
}

func do(t *testing.T, router *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	decoded := map[string]interface{}{}
	if err := json.Unmarshal(resp.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("response not JSON: %v (%s)", err, resp.Body.String())
	}
	return resp, decoded
}

func TestStartReportsCameraFailure(t *testing.T) {
	loop := &stubLoop{startErr: errors.New("camera: no compatible capture device")}
	router, _ := newControlRouter(loop, &stubSender{}, 0)

	resp, body := do(t, router, http.MethodPost, "/control/start", "")
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.Code)
	}
	if body["status"] != "error" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestStartStopRoundTrip(t *testing.T) {
	loop := &stubLoop{}
	router, _ := newControlRouter(loop, &stubSender{}, 0)

	resp, body := do(t, router, http.MethodPost, "/control/start", "")
	if resp.Code != http.StatusOK || body["state"] != "streaming" {
		t.Fatalf("unexpected start reply: %d %v", resp.Code, body)
	}

	resp, body = do(t, router, http.MethodPost, "/control/stop", "")
	if resp.Code != http.StatusOK || body["state"] != "idle" {
		t.Fatalf("unexpected stop reply: %d %v", resp.Code, body)
	}
	if loop.stops != 1 {
		t.Fatalf("expected one stop, got %d", loop.stops)
	}
}

func TestHandoffMapsErrors(t *testing.T) {
	loop := &stubLoop{latest: &pose.Estimate{Found: true, XPx: fp(1), YPx: fp(2), ThetaDeg: fp(3)}}

	sender := &stubSender{err: pose.NewValidationError("pose", "no detection to send")}
	router, _ := newControlRouter(loop, sender, 0)
	resp, _ := do(t, router, http.MethodPost, "/control/handoff", "")
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("validation failure must map to 400, got %d", resp.Code)
	}

	sender = &stubSender{err: &pose.TransportError{Op: "handoff.send", Status: 503, Err: errors.New("HTTP 503")}}
	router, _ = newControlRouter(loop, sender, 0)
	resp, _ = do(t, router, http.MethodPost, "/control/handoff", "")
	if resp.Code != http.StatusBadGateway {
		t.Fatalf("transport failure must map to 502, got %d", resp.Code)
	}

	sender = &stubSender{}
	router, _ = newControlRouter(loop, sender, 0.25)
	resp, _ = do(t, router, http.MethodPost, "/control/handoff", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if sender.scale != 0.25 {
		t.Fatalf("configured scale must reach the sender, got %f", sender.scale)
	}
}

func TestScaleUpdateAffectsStatusDisplay(t *testing.T) {
	loop := &stubLoop{
		latest:  &pose.Estimate{Found: true, XPx: fp(100), YPx: fp(200), ThetaDeg: fp(45)},
		updated: time.Now(),
	}
	router, _ := newControlRouter(loop, &stubSender{}, 0.25)

	_, body := do(t, router, http.MethodGet, "/control/status", "")
	poseBody := body["pose"].(map[string]interface{})
	if poseBody["x_mm"] != 25.0 {
		t.Fatalf("expected x_mm 25.0 at scale 0.25, got %v", poseBody["x_mm"])
	}

	resp, _ := do(t, router, http.MethodPost, "/control/scale", `{"mm_per_px":0.5}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("scale update failed: %d", resp.Code)
	}

	// Same estimate, new scale: mm values recompute on the next read.
	_, body = do(t, router, http.MethodGet, "/control/status", "")
	poseBody = body["pose"].(map[string]interface{})
	if poseBody["x_mm"] != 50.0 {
		t.Fatalf("expected x_mm 50.0 after scale change, got %v", poseBody["x_mm"])
	}
}

func TestScaleRejectsInvalidInput(t *testing.T) {
	router, _ := newControlRouter(&stubLoop{}, &stubSender{}, 0)
	for _, body := range []string{`{}`, `{"mm_per_px":-1}`, `{"mm_per_px":"abc"}`, `not json`} {
		resp, _ := do(t, router, http.MethodPost, "/control/scale", body)
		if resp.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for %q, got %d", body, resp.Code)
		}
	}
}

func TestLogsEndpointReturnsRing(t *testing.T) {
	router, logbook := newControlRouter(&stubLoop{}, &stubSender{}, 0)
	logbook.Append("Camera started")

	_, body := do(t, router, http.MethodGet, "/control/logs", "")
	entries, ok := body["entries"].([]interface{})
	if !ok || len(entries) != 1 {
		t.Fatalf("unexpected logs body: %v", body)
	}
}

func TestFrameEndpointWithoutSource(t *testing.T) {
	router, _ := newControlRouter(&stubLoop{}, &stubSender{}, 0)
	resp, _ := do(t, router, http.MethodGet, "/control/frame", "")
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without a frame source, got %d", resp.Code)
	}
}
