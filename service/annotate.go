package service

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	labelX       = 10
	labelY       = 10
	labelPadding = 3
)

var (
	labelColor = color.RGBA{R: 255, A: 255}
	// 白色底框，透明度 0.8
	labelBackground = color.NRGBA{R: 255, G: 255, B: 255, A: 204}
)

// Annotator 缩放到展示尺寸并在左上角叠加 "标签: 置信度"
type Annotator struct {
	width   int
	height  int
	quality int
}

func NewAnnotator(width, height, quality int) *Annotator {
	if quality <= 0 || quality > 100 {
		quality = 90
	}
	return &Annotator{width: width, height: height, quality: quality}
}

// Annotate 返回 JPEG data URI
func (a *Annotator) Annotate(src image.Image, label string, confidence float64) (string, error) {
	display := imaging.Resize(src, a.width, a.height, imaging.Linear)

	canvas := image.NewRGBA(display.Bounds())
	draw.Draw(canvas, canvas.Bounds(), display, display.Bounds().Min, draw.Src)

	text := fmt.Sprintf("%s: %.2f", label, confidence)
	face := basicfont.Face7x13
	drawer := &font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(labelColor),
		Face: face,
	}

	textWidth := drawer.MeasureString(text).Ceil()
	box := image.Rect(
		labelX-labelPadding,
		labelY-labelPadding,
		labelX+textWidth+labelPadding,
		labelY+face.Height+labelPadding,
	)
	draw.Draw(canvas, box, image.NewUniform(labelBackground), image.Point{}, draw.Over)

	drawer.Dot = fixed.P(labelX, labelY+face.Ascent)
	drawer.DrawString(text)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, canvas, imaging.JPEG, imaging.JPEGQuality(a.quality)); err != nil {
		return "", fmt.Errorf("encode annotated image: %w", err)
	}

	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
