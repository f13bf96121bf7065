package onnx

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"

	"objectvision/internal/model"
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestDecodeImage(t *testing.T) {
	img := solid(8, 4, color.RGBA{R: 255, A: 255})

	var pngBuf, bmpBuf bytes.Buffer
	require.NoError(t, png.Encode(&pngBuf, img))
	require.NoError(t, bmp.Encode(&bmpBuf, img))

	for name, data := range map[string][]byte{"png": pngBuf.Bytes(), "bmp": bmpBuf.Bytes()} {
		decoded, err := DecodeImage(data)
		require.NoError(t, err, name)
		assert.Equal(t, 8, decoded.Bounds().Dx(), name)
		assert.Equal(t, 4, decoded.Bounds().Dy(), name)
	}

	_, err := DecodeImage([]byte("not an image"))
	assert.ErrorIs(t, err, model.ErrInvalidArgument)
}

func TestPreprocess_CHW(t *testing.T) {
	const size = 4
	dst := make([]float32, 3*size*size)
	Preprocess(solid(10, 6, color.RGBA{R: 255, G: 0, B: 51, A: 255}), size, dst)

	stride := size * size
	for i := 0; i < stride; i++ {
		assert.InDelta(t, 1.0, dst[i], 1e-3)
		assert.InDelta(t, 0.0, dst[i+stride], 1e-3)
		assert.InDelta(t, 0.2, dst[i+2*stride], 1e-3)
	}
}

func TestAnchors(t *testing.T) {
	assert.Equal(t, 8400, Anchors(640))
	assert.Equal(t, 2100, Anchors(320))
}
