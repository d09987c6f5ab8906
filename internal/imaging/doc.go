// Package imaging provides the raster side of the annotator: decoding dataset
// images, refining boxes against image content, and rendering small previews.
//
// All operations work with standard Go image.Image types and use a coordinate
// system where (0,0) is at the top-left corner, X increases rightward and Y
// increases downward. Box coordinates are float64 pixels as used by
// internal/geometry.
//
// # Auto-Resize
//
// AutoResize moves each side of a box to the strongest nearby intensity
// boundary. It blurs a grayscale copy of the image, computes Sobel gradient
// magnitude, and for every side scores candidate positions inside a search
// window by the mean gradient along the side. Low-confidence sides stay put,
// and a refinement that would shrink the box below 10 pixels is discarded.
// The result is always clamped to the image.
//
// # Thread Safety
//
// ImageCache is safe for concurrent use. The remaining functions are
// stateless and may be called concurrently on the same image as long as the
// image itself is not being modified.
//
// # Error Handling
//
// Decode failures are returned as errors. AutoResizeFile wraps them in
// ErrProcessingFailed; callers show a placeholder or leave the box unchanged
// rather than failing the whole operation.
package imaging
