package captcha

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math/rand/v2"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// ContentType は Render が返す画像の MIME タイプです。
const ContentType = "image/png"

const (
	imageWidth  = 160
	imageHeight = 50
	noiseLines  = 8
	glyphScale  = 2
)

var (
	backgroundColor = color.RGBA{R: 240, G: 244, B: 255, A: 255}
	textColor       = color.RGBA{R: 40, G: 60, B: 120, A: 255}
	noiseColor      = color.RGBA{R: 180, G: 200, B: 240, A: 255}
)

// Render はコードを中央に描いた PNG 画像を返します。ノイズ線は装飾で、検証には影響しません。
func Render(code string) ([]byte, error) {
	canvas := image.NewRGBA(image.Rect(0, 0, imageWidth, imageHeight))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(backgroundColor), image.Point{}, draw.Src)

	for i := 0; i < noiseLines; i++ {
		drawLine(canvas,
			rand.IntN(imageWidth+1), rand.IntN(imageHeight+1),
			rand.IntN(imageWidth+1), rand.IntN(imageHeight+1),
			noiseColor)
	}

	face := basicfont.Face7x13
	textWidth := font.MeasureString(face, code).Ceil()
	text := image.NewRGBA(image.Rect(0, 0, textWidth, face.Height))
	d := &font.Drawer{
		Dst:  text,
		Src:  image.NewUniform(textColor),
		Face: face,
		Dot:  fixed.P(0, face.Ascent),
	}
	d.DrawString(code)

	w, h := textWidth*glyphScale, face.Height*glyphScale
	x := (imageWidth - w) / 2
	y := (imageHeight - h) / 2
	draw.NearestNeighbor.Scale(canvas, image.Rect(x, y, x+w, y+h), text, text.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// drawLine は Bresenham のアルゴリズムで線を引きます。
func drawLine(img *image.RGBA, x0, y0, x1, y1 int, c color.Color) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for {
		img.Set(x0, y0, c)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
