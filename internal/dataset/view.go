package dataset

import "math"

// SizeTolerance is how far, per axis, two image sizes may differ and still
// share a view.
const SizeTolerance = 2.0

// ViewState is how an image is displayed: a pan offset and a zoom factor.
type ViewState struct {
	PanX float64 `json:"pan_x"`
	PanY float64 `json:"pan_y"`
	Zoom float64 `json:"zoom"`
}

// FitView is the reset-to-fit view.
func FitView() ViewState {
	return ViewState{Zoom: 1}
}

// Normalize replaces a non-positive or non-finite zoom with 1 and a
// non-finite pan with 0.
func (v ViewState) Normalize() ViewState {
	if v.Zoom <= 0 || math.IsNaN(v.Zoom) || math.IsInf(v.Zoom, 0) {
		v.Zoom = 1
	}
	if math.IsNaN(v.PanX) || math.IsInf(v.PanX, 0) {
		v.PanX = 0
	}
	if math.IsNaN(v.PanY) || math.IsInf(v.PanY, 0) {
		v.PanY = 0
	}
	return v
}

// Size is an image size in pixels.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Close reports whether s and o differ by at most SizeTolerance on each axis.
func (s Size) Close(o Size) bool {
	return math.Abs(s.Width-o.Width) <= SizeTolerance && math.Abs(s.Height-o.Height) <= SizeTolerance
}
