// Package media stores uploaded recipe images on local disk and builds
// their public URLs.
package media

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/mikepea/foodgram/pkg/foodgram/apierr"
)

// RecipeImagesDir is the subdirectory of the media root holding recipe images.
const RecipeImagesDir = "recipes/images"

// MaxDimension bounds the stored width and height of an image.
const MaxDimension = 1920

// MaxPixels bounds the decoded size of an upload, checked from the image
// header before any pixel data is allocated.
const MaxPixels = 40_000_000

var imageNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("foodgram/recipe-images"))

// allowedExt lists the formats imaging can both decode and encode.
var allowedExt = map[string]string{
	"jpeg": "jpg",
	"jpg":  "jpg",
	"png":  "png",
	"gif":  "gif",
	"bmp":  "bmp",
	"tiff": "tiff",
}

// ErrInvalidImage is returned for payloads that are not a base64 data URI
// of a supported image.
var ErrInvalidImage = apierr.Validation("image",
	"Upload a valid image. The file you uploaded was either not an image or a corrupted image.")

// ErrImageTooLarge is returned for images with more than MaxPixels pixels.
var ErrImageTooLarge = &apierr.Error{
	Kind:    apierr.KindValidation,
	Code:    "image_too_large",
	Field:   "image",
	Message: fmt.Sprintf("Image is too large. At most %d pixels are allowed.", MaxPixels),
}

// Storage saves files under Dir and serves them from URLPrefix.
type Storage struct {
	Dir       string
	URLPrefix string
}

// NewStorage returns a Storage rooted at dir. baseURL and mediaURL are
// joined to form the public prefix, e.g. http://host/media/.
func NewStorage(dir, baseURL, mediaURL string) *Storage {
	prefix := strings.TrimRight(baseURL, "/") + "/" + strings.Trim(mediaURL, "/") + "/"
	return &Storage{Dir: dir, URLPrefix: prefix}
}

// DecodeDataURI splits "data:image/<ext>;base64,<payload>" into the
// normalised extension and the decoded bytes.
func DecodeDataURI(uri string) (string, []byte, error) {
	header, payload, ok := strings.Cut(uri, ";base64,")
	if !ok || !strings.HasPrefix(header, "data:image/") {
		return "", nil, ErrInvalidImage
	}
	ext, ok := allowedExt[strings.ToLower(strings.TrimPrefix(header, "data:image/"))]
	if !ok {
		return "", nil, ErrInvalidImage
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil || len(data) == 0 {
		return "", nil, ErrInvalidImage
	}
	return ext, data, nil
}

// SaveImage decodes a data URI, verifies it is an image and stores it as
// recipes/images/<username>_<uuid>.<ext>. The uuid is derived from the
// uploader and the payload, so re-uploading the same image reuses the
// file. The returned path is relative to the media root.
func (s *Storage) SaveImage(username, dataURI string) (string, error) {
	ext, data, err := DecodeDataURI(dataURI)
	if err != nil {
		return "", err
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", ErrInvalidImage
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return "", ErrImageTooLarge
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return "", ErrInvalidImage
	}
	b := img.Bounds()
	if b.Dx() > MaxDimension || b.Dy() > MaxDimension {
		img = imaging.Fit(img, MaxDimension, MaxDimension, imaging.Lanczos)
	}

	id := uuid.NewSHA1(imageNamespace, append([]byte(username+":"), data...))
	rel := path.Join(RecipeImagesDir, fmt.Sprintf("%s_%s.%s", username, id, ext))
	full := filepath.Join(s.Dir, filepath.FromSlash(rel))

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("failed to create media directory: %w", err)
	}
	if err := imaging.Save(img, full); err != nil {
		return "", fmt.Errorf("failed to save image: %w", err)
	}
	return rel, nil
}

// Remove deletes a stored file. Missing files are ignored.
func (s *Storage) Remove(rel string) error {
	if rel == "" {
		return nil
	}
	err := os.Remove(filepath.Join(s.Dir, filepath.FromSlash(rel)))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s: %w", rel, err)
	}
	return nil
}

// URL returns the public URL of a stored file.
func (s *Storage) URL(rel string) string {
	if rel == "" {
		return ""
	}
	return s.URLPrefix + strings.TrimLeft(rel, "/")
}
