package layout

import "math"

// UIMaxSidePx is the editor canvas cap: the longer physical side of a label
// always maps to this many on-screen pixels.
const UIMaxSidePx = 700.0

const (
	DefaultWidthCM  = 10.0
	DefaultHeightCM = 10.0
	DefaultDPI      = 300
)

// Engine holds the derived geometry for one template: the DPI-based print
// pixel space and the capped editor pixel space, plus the scale between them.
type Engine struct {
	WidthCM  float64 `json:"width_cm"`
	HeightCM float64 `json:"height_cm"`
	DPI      int     `json:"dpi"`

	RealPxPerCM float64 `json:"real_px_per_cm"`
	RealWPx     int     `json:"real_w_px"`
	RealHPx     int     `json:"real_h_px"`

	UIScale   float64 `json:"ui_scale"`
	UIWPx     int     `json:"ui_w_px"`
	UIHPx     int     `json:"ui_h_px"`
	UIPxPerCM float64 `json:"ui_px_per_cm"`
}

// Compute derives the full geometry for a label of the given physical size.
// Zero or negative dimensions fall back to 10cm, zero DPI to 300.
func Compute(widthCM, heightCM float64, dpi int) Engine {
	return ComputeWithMaxSide(widthCM, heightCM, dpi, UIMaxSidePx)
}

// ComputeWithMaxSide is Compute with a configurable editor canvas cap.
func ComputeWithMaxSide(widthCM, heightCM float64, dpi int, uiMaxSidePx float64) Engine {
	if widthCM <= 0 {
		widthCM = DefaultWidthCM
	}
	if heightCM <= 0 {
		heightCM = DefaultHeightCM
	}
	if dpi <= 0 {
		dpi = DefaultDPI
	}

	// 1 inch = 2.54 cm
	realPxPerCM := float64(dpi) / 2.54
	realWPx := int(math.Round(widthCM * realPxPerCM))
	realHPx := int(math.Round(heightCM * realPxPerCM))

	maxRealSide := realWPx
	if realHPx > maxRealSide {
		maxRealSide = realHPx
	}
	if maxRealSide < 1 {
		maxRealSide = 1
	}
	uiScale := uiMaxSidePx / float64(maxRealSide)

	return Engine{
		WidthCM:     widthCM,
		HeightCM:    heightCM,
		DPI:         dpi,
		RealPxPerCM: realPxPerCM,
		RealWPx:     realWPx,
		RealHPx:     realHPx,
		UIScale:     uiScale,
		UIWPx:       int(math.Round(float64(realWPx) * uiScale)),
		UIHPx:       int(math.Round(float64(realHPx) * uiScale)),
		UIPxPerCM:   realPxPerCM * uiScale,
	}
}

// UIToReal converts an editor-space pixel value into the print pixel space.
func (e Engine) UIToReal(uiValue int) int {
	if e.UIScale <= 0 {
		return uiValue
	}
	return int(math.Round(float64(uiValue) / e.UIScale))
}

// RealToUI converts a print-space pixel value into the editor pixel space.
func (e Engine) RealToUI(realValue int) int {
	return int(math.Round(float64(realValue) * e.UIScale))
}

// UIPxPerCM is the canvas-sizing shortcut: the longer side maps to
// UIMaxSidePx, so one physical cm covers this many editor pixels.
func UIPxPerCM(widthCM, heightCM float64) float64 {
	maxSide := math.Max(widthCM, heightCM)
	if maxSide <= 0 {
		maxSide = 1.0
	}
	return UIMaxSidePx / maxSide
}

// CanvasUISize returns the editor canvas size in pixels for a label.
func CanvasUISize(widthCM, heightCM, uiPxPerCM float64) (int, int) {
	return int(math.Round(widthCM * uiPxPerCM)), int(math.Round(heightCM * uiPxPerCM))
}

// PxToMM converts an editor pixel value into millimeters using the scale the
// layout was authored under. 1 cm = 10 mm.
func PxToMM(px float64, uiPxPerCM float64) float64 {
	if uiPxPerCM <= 0 {
		return 0
	}
	return (px / uiPxPerCM) * 10.0
}
