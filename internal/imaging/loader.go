package imaging

import (
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"os"
	"sync"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"  // Register BMP format decoder
	_ "golang.org/x/image/webp" // Register WebP format decoder
)

// ImageCache provides thread-safe caching of decoded dataset images.
//
// Images are keyed by the exact path string. Navigation back and forth through
// a dataset and repeated auto-resize requests on the same frame reuse the
// decoded copy instead of reading the file again. Pixel dimensions are cached
// separately so the save path can compute normalized label coordinates for
// frames that were never displayed without decoding their pixels.
//
// ImageCache is safe for concurrent use by multiple goroutines.
//
// # Memory Management
//
// Decoded images remain in memory until removed with Evict or Clear. The
// editor evicts the previous frame on navigation so a long session holds
// roughly one decoded image at a time.
type ImageCache struct {
	mu     sync.RWMutex
	images map[string]image.Image
	sizes  map[string]image.Point
}

// NewImageCache creates an empty cache ready for use.
func NewImageCache() *ImageCache {
	return &ImageCache{
		images: make(map[string]image.Image),
		sizes:  make(map[string]image.Point),
	}
}

// Load retrieves an image from the cache or decodes it from disk.
//
// Parameters:
//   - path: Path to a PNG, JPEG, GIF, BMP or WebP file.
//
// Returns:
//   - image.Image: The decoded image with EXIF orientation applied, so a
//     portrait JPEG from a phone is annotated upright.
//   - error: Non-nil if the file cannot be opened or decoded.
func (c *ImageCache) Load(path string) (image.Image, error) {
	c.mu.RLock()
	if img, ok := c.images[path]; ok {
		c.mu.RUnlock()
		return img, nil
	}
	c.mu.RUnlock()

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	c.mu.Lock()
	c.images[path] = img
	c.sizes[path] = img.Bounds().Size()
	c.mu.Unlock()

	return img, nil
}

// Size returns the pixel dimensions of the image at path.
//
// A cached decode is used when available; otherwise only the header is read
// with image.DecodeConfig. Header sizes ignore EXIF orientation, which only
// matters for rotated JPEGs that have never been displayed.
func (c *ImageCache) Size(path string) (width, height int, err error) {
	c.mu.RLock()
	if sz, ok := c.sizes[path]; ok {
		c.mu.RUnlock()
		return sz.X, sz.Y, nil
	}
	c.mu.RUnlock()

	f, err := os.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read image header: %w", err)
	}

	c.mu.Lock()
	c.sizes[path] = image.Point{X: cfg.Width, Y: cfg.Height}
	c.mu.Unlock()

	return cfg.Width, cfg.Height, nil
}

// Clear removes all images and sizes from the cache.
func (c *ImageCache) Clear() {
	c.mu.Lock()
	c.images = make(map[string]image.Image)
	c.sizes = make(map[string]image.Point)
	c.mu.Unlock()
}

// Evict drops the decoded pixels for path. The cached size is kept since it
// is small and still needed when saving.
func (c *ImageCache) Evict(path string) {
	c.mu.Lock()
	delete(c.images, path)
	c.mu.Unlock()
}

// ImageInfo contains metadata about an image file.
type ImageInfo struct {
	// Width is the image width in pixels.
	Width int `json:"width"`

	// Height is the image height in pixels.
	Height int `json:"height"`

	// Format is the decoder name reported by the image package
	// ("png", "jpeg", "gif", "bmp", "webp").
	Format string `json:"format"`

	// FileSizeBytes is the size of the image file on disk in bytes.
	FileSizeBytes int64 `json:"file_size_bytes"`
}

// LoadImageInfo reads an image header and returns its metadata without
// decoding the pixel data.
//
// Returns:
//   - *ImageInfo: Metadata about the image.
//   - error: Non-nil if the file cannot be stat'd or its header is not a
//     recognised image format.
func LoadImageInfo(path string) (*ImageInfo, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read image header: %w", err)
	}

	return &ImageInfo{
		Width:         cfg.Width,
		Height:        cfg.Height,
		Format:        format,
		FileSizeBytes: stat.Size(),
	}, nil
}
