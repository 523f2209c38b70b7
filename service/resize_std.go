//go:build !gocv
// +build !gocv

package service

import (
	"image"

	"github.com/nfnt/resize"
)

// resizeBilinear 默认实现，纯 Go
func resizeBilinear(src image.Image, width, height int) (image.Image, error) {
	return resize.Resize(uint(width), uint(height), src, resize.Bilinear), nil
}
