package imaging

import (
	"image"

	"github.com/anthonynsimon/bild/blur"
	"github.com/anthonynsimon/bild/effect"
)

// EdgeDetectResult contains an edge image encoded as base64 PNG.
//
// The front-end draws it as a translucent overlay so the annotator can see
// which boundaries auto-resize is likely to snap to.
type EdgeDetectResult struct {
	// Width of the output image in pixels (same as input).
	Width int `json:"width"`

	// Height of the output image in pixels (same as input).
	Height int `json:"height"`

	// ImageBase64 is the edge image encoded as base64 PNG.
	// Brighter pixels mark stronger gradients.
	ImageBase64 string `json:"image_base64"`

	// MimeType is always "image/png".
	MimeType string `json:"mime_type"`
}

// EdgePreview renders the gradient magnitude of img as a grayscale PNG.
//
// The image is blurred with the same sigma auto-resize uses and then passed
// through a Sobel filter, so the preview shows the same edges the refinement
// search scores.
func EdgePreview(img image.Image) (*EdgeDetectResult, error) {
	edges := effect.Sobel(blur.Gaussian(img, blurSigma))

	encoded, err := encodePNG(edges)
	if err != nil {
		return nil, err
	}

	bounds := edges.Bounds()
	return &EdgeDetectResult{
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
		ImageBase64: encoded,
		MimeType:    "image/png",
	}, nil
}
