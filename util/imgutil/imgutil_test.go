package imgutil

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solidImage(w, h int, c color.Color) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDecode(t *testing.T) {
	data := pngBytes(t, solidImage(4, 4, color.White))
	img, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 4, 4), img.Bounds())

	_, err = Decode([]byte("not an image"))
	require.Error(t, err)
}

func TestResizeExact(t *testing.T) {
	img := ResizeExact(solidImage(1024, 768, color.White), 800, 480)
	assert.Equal(t, 800, img.Bounds().Dx())
	assert.Equal(t, 480, img.Bounds().Dy())
}

func TestCoverCrop(t *testing.T) {
	img := CoverCrop(solidImage(1024, 1024, color.Gray{Y: 128}), 800, 480)
	assert.Equal(t, 800, img.Bounds().Dx())
	assert.Equal(t, 480, img.Bounds().Dy())
}

func TestCompositeSideBySide(t *testing.T) {
	left := solidImage(100, 80, color.White)
	right := solidImage(120, 60, color.Gray{Y: 200})
	img := CompositeSideBySide(left, right, 800, 480)
	assert.Equal(t, 800, img.Bounds().Dx())
	assert.Equal(t, 480, img.Bounds().Dy())
}

func TestSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.png")
	require.NoError(t, Save(solidImage(8, 8, color.White), path))

	data, err := Decode(pngBytes(t, solidImage(8, 8, color.White)))
	require.NoError(t, err)
	assert.NotNil(t, data)
}

func TestConvertFormat(t *testing.T) {
	var out bytes.Buffer
	in := bytes.NewReader(pngBytes(t, solidImage(4, 4, color.White)))
	require.NoError(t, ConvertFormat(in, &out, ".jpg"))
	assert.NotZero(t, out.Len())

	err := ConvertFormat(bytes.NewReader(nil), &bytes.Buffer{}, ".xyz")
	require.Error(t, err)
}
