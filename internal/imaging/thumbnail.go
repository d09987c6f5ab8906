package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"math"

	"github.com/disintegration/imaging"

	"github.com/ironsheep/image-annotator/internal/geometry"
)

// DefaultThumbnailSize is the longest side of an annotation thumbnail.
const DefaultThumbnailSize = 96

// Thumbnail is a cropped, downscaled view of one annotation's region,
// encoded as base64 PNG for the front-end's annotation list.
type Thumbnail struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// CropThumbnail crops r out of img and fits it within maxSide pixels.
//
// Parameters:
//   - img: Source image.
//   - r: Region in image pixel coordinates. It is clamped to the image and
//     rounded outward to whole pixels. Regions narrower than one pixel (a
//     point annotation) are widened to a small square around the location.
//   - maxSide: Longest side of the result. Values below one use
//     DefaultThumbnailSize. Crops smaller than maxSide are not upscaled.
//
// Returns:
//   - *Thumbnail: The encoded crop.
//   - error: Non-nil if the region lies outside the image or PNG encoding fails.
func CropThumbnail(img image.Image, r geometry.Rect, maxSide int) (*Thumbnail, error) {
	if maxSide < 1 {
		maxSide = DefaultThumbnailSize
	}
	if r.Width < 1 || r.Height < 1 {
		pad := geometry.HitRadius
		r = geometry.Rect{X: r.X - pad, Y: r.Y - pad, Width: r.Width + 2*pad, Height: r.Height + 2*pad}
	}

	b := img.Bounds()
	clamped := r.Offset(-float64(b.Min.X), -float64(b.Min.Y)).Clamp(float64(b.Dx()), float64(b.Dy()))
	if clamped.Width <= 0 || clamped.Height <= 0 {
		return nil, fmt.Errorf("thumbnail region (%.1f,%.1f %.1fx%.1f) outside image bounds %v",
			r.X, r.Y, r.Width, r.Height, b)
	}
	region := image.Rect(
		int(math.Floor(clamped.X))+b.Min.X,
		int(math.Floor(clamped.Y))+b.Min.Y,
		int(math.Ceil(clamped.Right()))+b.Min.X,
		int(math.Ceil(clamped.Bottom()))+b.Min.Y,
	)
	var thumb image.Image = imaging.Crop(img, region)
	if region.Dx() > maxSide || region.Dy() > maxSide {
		thumb = imaging.Fit(thumb, maxSide, maxSide, imaging.Lanczos)
	}

	encoded, err := encodePNG(thumb)
	if err != nil {
		return nil, err
	}
	return &Thumbnail{
		Width:       thumb.Bounds().Dx(),
		Height:      thumb.Bounds().Dy(),
		ImageBase64: encoded,
		MimeType:    "image/png",
	}, nil
}

func encodePNG(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("failed to encode image: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
