// Package overlay projects an estimate onto a video frame: bounding
// polygon, center marker, orientation ray, and display-only millimeter
// values. Plan building is pure so the geometry can be tested without a
// frame buffer; Draw applies a plan to a Mat.
package overlay

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"gocv.io/x/gocv"

	"github.com/example/rectpose/internal/pose"
)

// RayLength is the orientation ray length in pixels.
const RayLength = 50.0

// MarkerRadius is the center marker radius in pixels.
const MarkerRadius = 6

// Plan is everything a single render draws. Built fresh on every call;
// nothing in a plan survives to the next frame.
type Plan struct {
	NotFound   bool
	CenterX    float64
	CenterY    float64
	RayEndX    float64
	RayEndY    float64
	HasRay     bool
	ThetaLabel string
	Polygon    [][2]float64 // nil unless the estimate carried exactly 4 corners
	XMm        *float64     // display values, estimator verbatim or scale-derived
	YMm        *float64
}

// BuildPlan computes the drawable geometry for an estimate. The scale is
// millimeters per pixel; display mm values are recomputed here on every
// call and never cached, so a scale change takes effect immediately.
func BuildPlan(e *pose.Estimate, scale float64) Plan {
	if e == nil || !e.Found || e.XPx == nil || e.YPx == nil {
		return Plan{NotFound: true}
	}

	plan := Plan{
		CenterX: *e.XPx,
		CenterY: *e.YPx,
		XMm:     pose.EnrichedMillimeters(e.XMm, *e.XPx, scale),
		YMm:     pose.EnrichedMillimeters(e.YMm, *e.YPx, scale),
	}

	if len(e.Box) == 4 {
		plan.Polygon = e.Box
	}

	if e.ThetaDeg != nil {
		rad := *e.ThetaDeg * math.Pi / 180
		plan.HasRay = true
		plan.RayEndX = plan.CenterX + RayLength*math.Cos(rad)
		plan.RayEndY = plan.CenterY + RayLength*math.Sin(rad)
		plan.ThetaLabel = fmt.Sprintf("theta %.1f deg", *e.ThetaDeg)
	}

	return plan
}

var (
	polygonColor  = color.RGBA{R: 34, G: 211, B: 238, A: 255}
	markerColor   = color.RGBA{R: 249, G: 115, B: 22, A: 255}
	textColor     = color.RGBA{R: 226, G: 232, B: 240, A: 255}
	notFoundPoint = image.Point{X: 18, Y: 26}
)

// Renderer draws plans onto frames.
type Renderer struct{}

// NewRenderer returns a renderer.
func NewRenderer() *Renderer {
	return &Renderer{}
}

// Draw applies the plan to the canvas. The canvas is expected to be a
// fresh copy of the current frame; a draw is always a full redraw, never
// a patch on top of a previous overlay.
func (r *Renderer) Draw(canvas *gocv.Mat, plan Plan) {
	if plan.NotFound {
		gocv.PutText(canvas, "No rectangle detected", notFoundPoint,
			gocv.FontHersheySimplex, 0.5, textColor, 1)
		return
	}

	if plan.Polygon != nil {
		for i := range plan.Polygon {
			from := pt(plan.Polygon[i])
			to := pt(plan.Polygon[(i+1)%len(plan.Polygon)])
			gocv.Line(canvas, from, to, polygonColor, 3)
		}
	}

	center := image.Point{X: int(math.Round(plan.CenterX)), Y: int(math.Round(plan.CenterY))}
	gocv.Circle(canvas, center, MarkerRadius, markerColor, -1)

	if plan.HasRay {
		end := image.Point{X: int(math.Round(plan.RayEndX)), Y: int(math.Round(plan.RayEndY))}
		gocv.Line(canvas, center, end, markerColor, 2)
		gocv.PutText(canvas, plan.ThetaLabel, image.Point{X: center.X + 10, Y: center.Y - 10},
			gocv.FontHersheySimplex, 0.45, textColor, 1)
	}
}

func pt(p [2]float64) image.Point {
	return image.Point{X: int(math.Round(p[0])), Y: int(math.Round(p[1]))}
}
