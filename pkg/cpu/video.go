package cpu

import (
	"image"
	"image/png"
	"os"

	"golang.org/x/image/draw"

	"hackvm/pkg/grid"
)

const wordsPerRow = ScreenWidth / 16

// GetFramebufferRGBA decodes the screen memory map into a 512×256 RGBA8888
// byte slice. Each word holds 16 pixels, least significant bit leftmost;
// a set bit is black.
func (c *CPU) GetFramebufferRGBA() []byte {
	pixels := make([]byte, ScreenWidth*ScreenHeight*4)

	for wordIdx := 0; wordIdx < ScreenWords; wordIdx++ {
		word := c.RAM[ScreenBase+wordIdx]
		col, row := grid.GetGridCoords(wordIdx, wordsPerRow)
		for bit := 0; bit < 16; bit++ {
			var v byte = 0xFF
			if word&(1<<bit) != 0 {
				v = 0x00
			}
			pixelIdx := grid.GetIndex(col*16+bit, row, ScreenWidth) * 4
			pixels[pixelIdx+0] = v
			pixels[pixelIdx+1] = v
			pixels[pixelIdx+2] = v
			pixels[pixelIdx+3] = 0xFF
		}
	}

	return pixels
}

// Pixel reports whether the screen pixel at (x, y) is black.
func (c *CPU) Pixel(x, y int) bool {
	addr := ScreenBase + grid.GetIndex(x/16, y, wordsPerRow)
	return c.RAM[addr]&(1<<(x%16)) != 0
}

// SetPixel blackens or clears the screen pixel at (x, y).
func (c *CPU) SetPixel(x, y int, black bool) {
	addr := ScreenBase + grid.GetIndex(x/16, y, wordsPerRow)
	if black {
		c.RAM[addr] |= 1 << (x % 16)
	} else {
		c.RAM[addr] &^= 1 << (x % 16)
	}
}

// GetFramebufferImage returns the screen as an *image.RGBA.
func (c *CPU) GetFramebufferImage() *image.RGBA {
	pix := c.GetFramebufferRGBA()
	return &image.RGBA{
		Pix:    pix,
		Stride: ScreenWidth * 4,
		Rect:   image.Rect(0, 0, ScreenWidth, ScreenHeight),
	}
}

// ScaledFramebuffer returns the screen enlarged by scale with
// nearest-neighbour sampling, keeping pixels sharp.
func (c *CPU) ScaledFramebuffer(scale int) *image.RGBA {
	src := c.GetFramebufferImage()
	if scale <= 1 {
		return src
	}
	dst := image.NewRGBA(image.Rect(0, 0, ScreenWidth*scale, ScreenHeight*scale))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

// SaveScreenshot encodes the screen, enlarged by scale, as a PNG file.
func (c *CPU) SaveScreenshot(filename string, scale int) error {
	img := c.ScaledFramebuffer(scale)
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}
