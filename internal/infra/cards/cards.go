// Package cards renders printable QR cards: a QR code with a caption
// underneath, one PNG per album plus the control cards.
package cards

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	qrcode "github.com/skip2/go-qrcode"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/osa030/qrjukebox/internal/domain/album"
)

const (
	// DefaultSize is the QR code edge length in pixels.
	DefaultSize = 400

	margin      = 20
	labelHeight = 60
	labelScale  = 3
)

// Card is one card to print.
type Card struct {
	Code  string // Encoded in the QR code
	Label string // Printed under the code
}

// ForAlbum returns the card of an album folder, e.g. "beatles-abbey-road"
// is labelled "Beatles Abbey Road".
func ForAlbum(selector string) Card {
	return Card{
		Code:  selector,
		Label: cases.Title(language.English).String(album.Label(selector)),
	}
}

// Render draws the card with a QR code of size pixels.
func Render(c Card, size int) (*image.RGBA, error) {
	if size <= 0 {
		size = DefaultSize
	}

	qr, err := qrcode.New(c.Code, qrcode.Highest)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to encode %q", c.Code)
	}
	code := qr.Image(size)

	width := size + 2*margin
	height := size + labelHeight + 2*margin
	card := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(card, card.Bounds(), image.White, image.Point{}, draw.Src)

	// Paste QR code centered
	draw.Draw(card, image.Rect(margin, margin, margin+size, margin+size), code, code.Bounds().Min, draw.Src)

	drawLabel(card, c.Label, margin+size+(labelHeight-basicfont.Face7x13.Height*labelScale)/2)
	return card, nil
}

// drawLabel renders text with the fixed 7x13 face and scales it up,
// centered horizontally at row top.
func drawLabel(dst *image.RGBA, text string, top int) {
	face := basicfont.Face7x13
	d := &font.Drawer{Face: face}
	w := d.MeasureString(text).Ceil()
	if w == 0 {
		return
	}

	small := image.NewRGBA(image.Rect(0, 0, w, face.Height))
	draw.Draw(small, small.Bounds(), image.White, image.Point{}, draw.Src)
	d.Dst = small
	d.Src = image.NewUniform(color.Black)
	d.Dot = fixed.P(0, face.Ascent)
	d.DrawString(text)

	sw, sh := w*labelScale, face.Height*labelScale
	// Shrink to fit long labels
	if limit := dst.Bounds().Dx() - 2*margin; sw > limit {
		sh = sh * limit / sw
		sw = limit
	}
	x := (dst.Bounds().Dx() - sw) / 2
	draw.NearestNeighbor.Scale(dst, image.Rect(x, top, x+sw, top+sh), small, small.Bounds(), draw.Over, nil)
}

// WriteFile renders c and writes it as PNG to dir/<code>.png.
func WriteFile(dir string, c Card, size int) (string, error) {
	img, err := Render(c, size)
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, strings.ReplaceAll(c.Code, string(filepath.Separator), "_")+".png")
	f, err := os.Create(path)
	if err != nil {
		return "", errors.Wrapf(err, "failed to create %s", path)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		return "", errors.Wrapf(err, "failed to write %s", path)
	}
	if err := f.Close(); err != nil {
		return "", errors.Wrapf(err, "failed to close %s", path)
	}
	return path, nil
}
