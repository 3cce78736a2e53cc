// Package agent exposes the operator control surface of the acquisition
// agent: start/stop the streaming session, trigger a handoff, inspect
// status and logs, and fetch the current frame with the overlay drawn.
package agent

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"gocv.io/x/gocv"

	"github.com/example/rectpose/internal/camera"
	"github.com/example/rectpose/internal/dispatcher"
	"github.com/example/rectpose/internal/overlay"
	"github.com/example/rectpose/internal/pose"
	"github.com/example/rectpose/internal/poselog"
)

// Loop is the streaming state machine the control surface drives.
type Loop interface {
	Start(ctx context.Context) error
	Stop()
	State() dispatcher.State
	Latest() (*pose.Estimate, time.Time)
}

// Sender forwards a pose to the robot ingress.
type Sender interface {
	Send(ctx context.Context, estimate *pose.Estimate, scale float64) error
}

// FrameProvider hands out raw frames for the annotated-frame endpoint.
type FrameProvider interface {
	CaptureFrame() (*camera.Frame, bool)
}

// Control wires the agent components behind an HTTP surface.
type Control struct {
	baseCtx  context.Context
	loop     Loop
	sender   Sender
	frames   FrameProvider
	renderer *overlay.Renderer
	logbook  *poselog.Ring

	mu    sync.Mutex
	scale float64 // millimeters per pixel, 0 when unset
}

// NewControl builds the control surface. ctx bounds the streaming loop's
// lifetime, not any single request. frames may be nil when the agent runs
// without the annotated-frame endpoint.
func NewControl(ctx context.Context, loop Loop, sender Sender, frames FrameProvider, logbook *poselog.Ring, scale float64) *Control {
	return &Control{
		baseCtx:  ctx,
		loop:     loop,
		sender:   sender,
		frames:   frames,
		renderer: overlay.NewRenderer(),
		logbook:  logbook,
		scale:    scale,
	}
}

// Scale returns the configured millimeters-per-pixel factor.
func (ctl *Control) Scale() float64 {
	ctl.mu.Lock()
	defer ctl.mu.Unlock()
	return ctl.scale
}

// RegisterRoutes wires the control handlers to the Gin router.
func (ctl *Control) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "rectpose-agent"})
	})

	router.POST("/control/start", func(c *gin.Context) {
		// The loop outlives this request; it runs on the agent context.
		if err := ctl.loop.Start(ctl.baseCtx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "message": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "state": ctl.loop.State().String()})
	})

	router.POST("/control/stop", func(c *gin.Context) {
		ctl.loop.Stop()
		c.JSON(http.StatusOK, gin.H{"status": "ok", "state": ctl.loop.State().String()})
	})

	router.POST("/control/handoff", func(c *gin.Context) {
		estimate, _ := ctl.loop.Latest()
		err := ctl.sender.Send(c.Request.Context(), estimate, ctl.Scale())
		if err != nil {
			var vErr *pose.ValidationError
			if errors.As(err, &vErr) {
				c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
				return
			}
			c.JSON(http.StatusBadGateway, gin.H{"status": "error", "message": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.POST("/control/scale", func(c *gin.Context) {
		var body struct {
			MMPerPixel *float64 `json:"mm_per_px"`
		}
		if err := c.ShouldBindJSON(&body); err != nil || body.MMPerPixel == nil ||
			!pose.IsFinite(*body.MMPerPixel) || *body.MMPerPixel < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Invalid scale"})
			return
		}
		ctl.mu.Lock()
		ctl.scale = *body.MMPerPixel
		ctl.mu.Unlock()
		c.JSON(http.StatusOK, gin.H{"status": "ok", "mm_per_px": *body.MMPerPixel})
	})

	router.GET("/control/status", func(c *gin.Context) {
		estimate, lastUpdated := ctl.loop.Latest()
		body := gin.H{
			"state":     ctl.loop.State().String(),
			"mm_per_px": ctl.Scale(),
		}
		if !lastUpdated.IsZero() {
			body["lastUpdated"] = lastUpdated.Format("15:04:05")
		}
		if estimate != nil {
			// Display mm values are recomputed per request, never cached.
			plan := overlay.BuildPlan(estimate, ctl.Scale())
			body["pose"] = gin.H{
				"found":     estimate.Found,
				"x_px":      estimate.XPx,
				"y_px":      estimate.YPx,
				"theta_deg": estimate.ThetaDeg,
				"x_mm":      plan.XMm,
				"y_mm":      plan.YMm,
			}
		}
		c.JSON(http.StatusOK, body)
	})

	router.GET("/control/logs", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"entries": ctl.logbook.Entries()})
	})

	router.GET("/control/frame", ctl.frameHandler)
}

// frameHandler returns the current camera frame with the overlay drawn.
// Every request is a full redraw on a fresh copy of the frame.
func (ctl *Control) frameHandler(c *gin.Context) {
	if ctl.frames == nil {
		c.JSON(http.StatusNotFound, gin.H{"status": "error", "message": "No frame source"})
		return
	}
	frame, ok := ctl.frames.CaptureFrame()
	if !ok {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "message": "No frame available"})
		return
	}
	defer frame.Close()

	estimate, _ := ctl.loop.Latest()
	plan := overlay.BuildPlan(estimate, ctl.Scale())
	ctl.renderer.Draw(&frame.Image, plan)

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, frame.Image)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "Frame encode failed"})
		return
	}
	defer buf.Close()

	c.Data(http.StatusOK, "image/jpeg", buf.GetBytes())
}
