package model

import (
	"image"

	"github.com/nfnt/resize"
)

// prepareInput resizes an RGB image to the model input size and lays it out
// as a normalized CHW float buffer.
func prepareInput(img *image.NRGBA, inputSize int) []float32 {
	resized := resize.Resize(uint(inputSize), uint(inputSize), img, resize.Lanczos3)

	channelSize := inputSize * inputSize
	data := make([]float32, 3*channelSize)
	for y := 0; y < inputSize; y++ {
		offset := y * inputSize
		for x := 0; x < inputSize; x++ {
			r, g, b, _ := resized.At(x, y).RGBA()
			i := offset + x
			data[i] = float32(r>>8) / 255.0
			data[channelSize+i] = float32(g>>8) / 255.0
			data[2*channelSize+i] = float32(b>>8) / 255.0
		}
	}
	return data
}
