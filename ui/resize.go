package ui

import (
	"image"

	"golang.org/x/image/draw"
)

// Resize 最近邻放大ratio倍，保持像素风格
func Resize(source *image.RGBA, w int, h int, ratio int) *image.RGBA {
	if ratio < 1 {
		ratio = 1
	}
	target := image.NewRGBA(image.Rect(0, 0, w*ratio, h*ratio))
	draw.NearestNeighbor.Scale(target, target.Bounds(), source, image.Rect(0, 0, w, h), draw.Src, nil)
	return target
}
