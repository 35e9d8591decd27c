package ments

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x += 10 {
		img.Set(x, h/2, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestProcessImageResizesWideImages(t *testing.T) {
	img, data, err := processImage(bytes.NewReader(pngBytes(t, 1600, 900)), "Holiday Photo.png")
	require.NoError(t, err)
	assert.Equal(t, 800, img.Width)
	assert.Equal(t, 450, img.Height)
	assert.Equal(t, len(data), img.Size)
	assert.True(t, strings.HasPrefix(img.Filename, "holiday-photo-"))
	assert.True(t, strings.HasSuffix(img.Filename, ".jpg"))

	decoded, format, err := image.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 800, decoded.Bounds().Dx())
}

func TestProcessImageKeepsNarrowImages(t *testing.T) {
	img, _, err := processImage(bytes.NewReader(pngBytes(t, 320, 200)), "small.png")
	require.NoError(t, err)
	assert.Equal(t, 320, img.Width)
	assert.Equal(t, 200, img.Height)
}

func TestProcessImageRejectsGarbage(t *testing.T) {
	_, _, err := processImage(strings.NewReader("not an image"), "x.png")
	assert.Error(t, err)
}

func TestImageFilenameIsUnique(t *testing.T) {
	a, b := imageFilename("cover.png"), imageFilename("cover.png")
	assert.NotEqual(t, a, b)
	assert.False(t, strings.HasPrefix(imageFilename("!!!.png"), "-"), "unsluggable names get a bare suffix")
}

func TestImageStoreSaveAndDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "uploads")
	images := &ImageStore{Dir: dir, BaseURL: "/uploads/", Records: s}

	img, err := images.Save(ctx, bytes.NewReader(pngBytes(t, 900, 300)), "banner.png")
	require.NoError(t, err)
	assert.Equal(t, "/uploads/"+img.Filename, images.URL(img.Filename))
	assert.FileExists(t, filepath.Join(dir, img.Filename))

	list, err := s.ListImages(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "banner.png", list[0].OriginalName)

	require.NoError(t, images.Delete(ctx, img.Filename))
	_, err = os.Stat(filepath.Join(dir, img.Filename))
	assert.True(t, os.IsNotExist(err))

	assert.ErrorIs(t, images.Delete(ctx, "../ments.db"), ErrNotFound)
	assert.ErrorIs(t, images.Delete(ctx, ".hidden"), ErrNotFound)
}
