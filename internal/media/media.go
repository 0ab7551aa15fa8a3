// Package media stores uploaded product images.
package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/nfnt/resize"
)

const (
	DefaultMaxBytes  = 10 << 20
	DefaultMaxPixels = 40_000_000
)

var (
	ErrUnsupportedFormat = errors.New("only .png, .jpg and .jpeg images are supported")
	ErrInvalidImage      = errors.New("image file could not be decoded")
	ErrImageTooLarge     = errors.New("image is too large")
)

// ImageStore writes re-encoded JPEGs into Dir and serves them under URLPrefix.
// Uploads over MaxBytes, or whose header declares more than MaxPixels, are
// rejected before the pixel data is decoded.
type ImageStore struct {
	Dir       string
	URLPrefix string
	MaxWidth  uint
	MaxBytes  int64
	MaxPixels int
}

func NewImageStore(dir, urlPrefix string) *ImageStore {
	return &ImageStore{
		Dir:       dir,
		URLPrefix: urlPrefix,
		MaxWidth:  800,
		MaxBytes:  DefaultMaxBytes,
		MaxPixels: DefaultMaxPixels,
	}
}

type codec struct {
	config func(io.Reader) (image.Config, error)
	decode func(io.Reader) (image.Image, error)
}

var codecs = map[string]codec{
	".png":  {png.DecodeConfig, png.Decode},
	".jpg":  {jpeg.DecodeConfig, jpeg.Decode},
	".jpeg": {jpeg.DecodeConfig, jpeg.Decode},
}

// Save decodes the upload, scales it down to MaxWidth when wider, and returns
// the public URL of the stored file.
func (s *ImageStore) Save(filename string, r io.Reader) (string, error) {
	dec, ok := codecs[strings.ToLower(filepath.Ext(filename))]
	if !ok {
		return "", ErrUnsupportedFormat
	}

	if s.MaxBytes > 0 {
		r = io.LimitReader(r, s.MaxBytes+1)
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	if s.MaxBytes > 0 && int64(len(raw)) > s.MaxBytes {
		return "", ErrImageTooLarge
	}

	cfg, err := dec.config(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return "", ErrInvalidImage
	}
	if s.MaxPixels > 0 && cfg.Width > s.MaxPixels/cfg.Height {
		return "", fmt.Errorf("%w: %dx%d", ErrImageTooLarge, cfg.Width, cfg.Height)
	}
	img, err := dec.decode(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	if s.MaxWidth > 0 && uint(img.Bounds().Dx()) > s.MaxWidth {
		img = resize.Resize(s.MaxWidth, 0, img, resize.Lanczos3)
	}

	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	name := fmt.Sprintf("%s.jpg", uuid.New().String())
	full := filepath.Join(s.Dir, name)
	out, err := os.Create(full)
	if err != nil {
		return "", fmt.Errorf("create image file: %w", err)
	}
	if err := jpeg.Encode(out, img, &jpeg.Options{Quality: 80}); err != nil {
		out.Close()
		os.Remove(full)
		return "", fmt.Errorf("encode image: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(full)
		return "", fmt.Errorf("close image file: %w", err)
	}
	return path.Join(s.URLPrefix, name), nil
}

// Remove deletes a file previously returned by Save. URLs outside URLPrefix
// are ignored, as is a file that is already gone.
func (s *ImageStore) Remove(url string) error {
	prefix := strings.TrimSuffix(s.URLPrefix, "/") + "/"
	if !strings.HasPrefix(url, prefix) {
		return nil
	}
	name := path.Base(url)
	if name != strings.TrimPrefix(url, prefix) {
		return nil
	}
	err := os.Remove(filepath.Join(s.Dir, name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove image: %w", err)
	}
	return nil
}
