//go:build gocv
// +build gocv

package service

import (
	"errors"
	"image"

	"gocv.io/x/gocv"
)

// resizeBilinear 使用 OpenCV 的线性插值，需要 -tags gocv
func resizeBilinear(src image.Image, width, height int) (image.Image, error) {
	mat, err := gocv.ImageToMatRGB(src)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	if mat.Empty() {
		return nil, errors.New("empty image")
	}

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(mat, &resized, image.Point{X: width, Y: height}, 0, 0, gocv.InterpolationLinear)

	return resized.ToImage()
}
