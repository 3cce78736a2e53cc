// Package camera owns the capture device for the lifetime of a streaming
// session. Nothing else in the agent opens or releases the device.
package camera

import (
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

const (
	frameWidth  = 1280
	frameHeight = 720
	jpegQuality = 85
)

// Error reports that the capture device is unavailable or denied.
type Error struct {
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("camera: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("camera: %s", e.Reason)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Frame is a snapshot of the current camera image. The caller owns the
// Mat and must Close it.
type Frame struct {
	Image gocv.Mat
	At    time.Time
}

// Close releases the underlying image buffer.
func (f *Frame) Close() {
	_ = f.Image.Close()
}

// Sampler produces timestamped frames from a single capture device.
// All methods serialize on an internal mutex so the device handle is
// only ever touched from one goroutine at a time.
type Sampler struct {
	mu     sync.Mutex
	device int
	cap    *gocv.VideoCapture
	logger *zap.Logger
}

// NewSampler builds a sampler for the given device index.
func NewSampler(device int, logger *zap.Logger) *Sampler {
	return &Sampler{device: device, logger: logger.Named("frame_sampler")}
}

// Start acquires the capture device and requests 1280x720 frames. Any
// partially-acquired handle is released before an error returns, so a
// failed Start never leaks the device.
func (s *Sampler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cap != nil {
		return nil
	}

	capture, err := gocv.OpenVideoCapture(s.device)
	if err != nil {
		return &Error{Reason: "unable to open capture device", Err: err}
	}
	if !capture.IsOpened() {
		_ = capture.Close()
		return &Error{Reason: "no compatible capture device"}
	}

	capture.Set(gocv.VideoCaptureFrameWidth, frameWidth)
	capture.Set(gocv.VideoCaptureFrameHeight, frameHeight)

	s.cap = capture
	s.logger.Info("camera started",
		zap.Int("device", s.device),
		zap.Int("width", frameWidth),
		zap.Int("height", frameHeight),
	)
	return nil
}

// Stop releases the device unconditionally. Safe to call when no session
// is active.
func (s *Sampler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cap == nil {
		return
	}
	if err := s.cap.Close(); err != nil {
		s.logger.Warn("failed to release capture device", zap.Error(err))
	}
	s.cap = nil
	s.logger.Info("camera stopped")
}

// CaptureFrame returns a fresh snapshot, or false if no session is active
// or the device has not yet produced a sized frame.
func (s *Sampler) CaptureFrame() (*Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cap == nil {
		return nil, false
	}

	img := gocv.NewMat()
	if ok := s.cap.Read(&img); !ok || img.Empty() {
		_ = img.Close()
		return nil, false
	}
	return &Frame{Image: img, At: time.Now()}, true
}

// CaptureDataURL captures a frame and encodes it as a JPEG data URL, the
// shape the estimator expects.
func (s *Sampler) CaptureDataURL() (string, bool) {
	frame, ok := s.CaptureFrame()
	if !ok {
		return "", false
	}
	defer frame.Close()

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, frame.Image, []int{gocv.IMWriteJpegQuality, jpegQuality})
	if err != nil {
		s.logger.Warn("frame encode failed", zap.Error(err))
		return "", false
	}
	defer buf.Close()

	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.GetBytes()), true
}
