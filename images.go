package ments

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"golang.org/x/image/draw"
)

const (
	maxImageWidth = 800
	jpegQuality   = 80
	maxUploadSize = 5 << 20
)

// ErrImageTooLarge is returned for uploads above the size limit.
var ErrImageTooLarge = errors.New("image too large (max 5MB)")

// ImageRecords persists image metadata.
type ImageRecords interface {
	SaveImage(ctx context.Context, img Image) error
	ListImages(ctx context.Context) ([]Image, error)
	DeleteImage(ctx context.Context, filename string) error
}

// ImageStore is the image bucket: resized JPEGs on disk under Dir, served
// from BaseURL, with metadata in Records.
type ImageStore struct {
	Dir     string
	BaseURL string
	Records ImageRecords
}

// URL returns the public address of filename.
func (s *ImageStore) URL(filename string) string {
	return strings.TrimRight(s.BaseURL, "/") + "/" + filename
}

// SaveUpload stores a multipart upload.
func (s *ImageStore) SaveUpload(ctx context.Context, fh *multipart.FileHeader) (Image, error) {
	if fh.Size > maxUploadSize {
		return Image{}, ErrImageTooLarge
	}
	src, err := fh.Open()
	if err != nil {
		return Image{}, err
	}
	defer src.Close()
	return s.Save(ctx, src, fh.Filename)
}

// Save decodes, resizes and writes an image under a random name, then
// records it.
func (s *ImageStore) Save(ctx context.Context, src io.Reader, originalName string) (Image, error) {
	img, data, err := processImage(io.LimitReader(src, maxUploadSize+1), originalName)
	if err != nil {
		return Image{}, err
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return Image{}, fmt.Errorf("create uploads dir: %w", err)
	}
	path := filepath.Join(s.Dir, img.Filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return Image{}, fmt.Errorf("write image: %w", err)
	}
	if err := s.Records.SaveImage(ctx, img); err != nil {
		_ = os.Remove(path)
		return Image{}, err
	}
	return img, nil
}

// Delete removes the file and its record.
func (s *ImageStore) Delete(ctx context.Context, filename string) error {
	if filename != filepath.Base(filename) || strings.HasPrefix(filename, ".") {
		return ErrNotFound
	}
	_ = os.Remove(filepath.Join(s.Dir, filename)) // ignore error if file already gone
	return s.Records.DeleteImage(ctx, filename)
}

// processImage decodes an image from src, resizes it to maxImageWidth when
// wider, and encodes it as JPEG.
func processImage(src io.Reader, originalName string) (Image, []byte, error) {
	img, _, err := image.Decode(src)
	if err != nil {
		return Image{}, nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	if w > maxImageWidth {
		newH := h * maxImageWidth / w
		dst := image.NewRGBA(image.Rect(0, 0, maxImageWidth, newH))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
		img = dst
		w = maxImageWidth
		h = newH
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return Image{}, nil, fmt.Errorf("encode jpeg: %w", err)
	}

	return Image{
		Filename:     imageFilename(originalName),
		OriginalName: originalName,
		Width:        w,
		Height:       h,
		Size:         buf.Len(),
		UploadedAt:   time.Now().UTC(),
	}, buf.Bytes(), nil
}

// imageFilename keeps a readable slug of the original name and appends a
// short random suffix so uploads never collide.
func imageFilename(originalName string) string {
	base := Slugify(strings.TrimSuffix(originalName, filepath.Ext(originalName)))
	suffix := strings.SplitN(uuid.NewString(), "-", 2)[0]
	if base == "" {
		return suffix + ".jpg"
	}
	return base + "-" + suffix + ".jpg"
}

func (a *App) handleImageUpload(c echo.Context) error {
	file, err := c.FormFile("image")
	if err != nil {
		return c.String(http.StatusBadRequest, "No image file provided")
	}
	img, err := a.Images.SaveUpload(c.Request().Context(), file)
	if err != nil {
		if errors.Is(err, ErrImageTooLarge) {
			return c.String(http.StatusBadRequest, err.Error())
		}
		return c.String(http.StatusBadRequest, "Invalid image: "+err.Error())
	}
	if !isHTMX(c) {
		return c.JSON(http.StatusOK, map[string]string{
			"url":      a.Images.URL(img.Filename),
			"markdown": "![" + img.OriginalName + "](" + a.Images.URL(img.Filename) + ")",
		})
	}
	return a.renderImageList(c)
}

func (a *App) handleImageDelete(c echo.Context) error {
	err := a.Images.Delete(c.Request().Context(), c.Param("filename"))
	if errors.Is(err, ErrNotFound) {
		return echo.ErrNotFound
	}
	if err != nil {
		return err
	}
	return a.renderImageList(c)
}

func (a *App) handleImageList(c echo.Context) error {
	return a.renderImageList(c)
}

func (a *App) renderImageList(c echo.Context) error {
	images, err := a.Images.Records.ListImages(c.Request().Context())
	if err != nil {
		return err
	}
	return Render(c, a.Views.AdminImages(ImagesData{
		Images:    images,
		BaseURL:   a.Images.BaseURL,
		CSRFToken: CsrfToken(c),
	}))
}
