package onnx

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/nfnt/resize"
	_ "golang.org/x/image/bmp"

	"objectvision/internal/model"
)

// DecodeImage decodes png, jpeg, gif or bmp bytes.
func DecodeImage(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode image: %v", model.ErrInvalidArgument, err)
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("%w: decoded image is empty", model.ErrInvalidArgument)
	}
	return img, nil
}

// Preprocess resizes img to size x size and writes it into dst as CHW RGB
// scaled to [0,1]. dst must hold 3*size*size values.
func Preprocess(img image.Image, size int, dst []float32) {
	resized := resize.Resize(uint(size), uint(size), img, resize.Bilinear)
	b := resized.Bounds()
	stride := size * size
	idx := 0

	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			r, g, bl, _ := resized.At(b.Min.X+x, b.Min.Y+y).RGBA()
			dst[idx] = float32(r>>8) / 255.0
			dst[idx+stride] = float32(g>>8) / 255.0
			dst[idx+2*stride] = float32(bl>>8) / 255.0
			idx++
		}
	}
}
