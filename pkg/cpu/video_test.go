package cpu

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func TestFramebufferBitOrder(t *testing.T) {
	c := NewCPU()
	// first word: leftmost pixel and pixel 15 set
	c.RAM[ScreenBase] = 0x8001
	// second row, first word: pixel 1 set
	c.RAM[ScreenBase+ScreenWidth/16] = 0x0002

	pix := c.GetFramebufferRGBA()
	if len(pix) != ScreenWidth*ScreenHeight*4 {
		t.Fatalf("framebuffer size: expected %d, got %d", ScreenWidth*ScreenHeight*4, len(pix))
	}

	at := func(x, y int) byte { return pix[(y*ScreenWidth+x)*4] }

	tests := []struct {
		x, y  int
		black bool
	}{
		{0, 0, true},
		{1, 0, false},
		{15, 0, true},
		{16, 0, false},
		{0, 1, false},
		{1, 1, true},
	}
	for _, tc := range tests {
		want := byte(0xFF)
		if tc.black {
			want = 0x00
		}
		if got := at(tc.x, tc.y); got != want {
			t.Errorf("pixel (%d,%d): expected 0x%02X, got 0x%02X", tc.x, tc.y, want, got)
		}
	}
	if pix[3] != 0xFF {
		t.Error("alpha must be opaque")
	}
}

func TestScaledFramebuffer(t *testing.T) {
	c := NewCPU()
	c.RAM[ScreenBase] = 0x0001

	img := c.ScaledFramebuffer(2)
	b := img.Bounds()
	if b.Dx() != ScreenWidth*2 || b.Dy() != ScreenHeight*2 {
		t.Fatalf("scaled size: got %dx%d", b.Dx(), b.Dy())
	}
	for _, p := range [][2]int{{0, 0}, {1, 0}, {0, 1}, {1, 1}} {
		if r, _, _, _ := img.At(p[0], p[1]).RGBA(); r != 0 {
			t.Errorf("pixel %v must be black after scaling", p)
		}
	}
	if r, _, _, _ := img.At(2, 0).RGBA(); r == 0 {
		t.Error("pixel (2,0) must stay white")
	}

	if got := c.ScaledFramebuffer(1).Bounds().Dx(); got != ScreenWidth {
		t.Errorf("scale 1 width: expected %d, got %d", ScreenWidth, got)
	}
}

func TestSaveScreenshot(t *testing.T) {
	c := NewCPU()
	path := filepath.Join(t.TempDir(), "screen.png")
	if err := c.SaveScreenshot(path, 3); err != nil {
		t.Fatalf("SaveScreenshot: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cfg.Width != ScreenWidth*3 || cfg.Height != ScreenHeight*3 {
		t.Errorf("png size: got %dx%d", cfg.Width, cfg.Height)
	}
}

func TestPixel(t *testing.T) {
	c := NewCPU()
	c.SetPixel(17, 2, true)

	// row 2 starts 64 words into the screen; x=17 is bit 1 of its second word
	if c.RAM[ScreenBase+65] != 0x0002 {
		t.Errorf("screen word: expected 0x0002, got 0x%04X", c.RAM[ScreenBase+65])
	}
	if !c.Pixel(17, 2) || c.Pixel(16, 2) || c.Pixel(17, 1) {
		t.Error("Pixel does not match SetPixel")
	}

	c.SetPixel(17, 2, false)
	if c.Pixel(17, 2) {
		t.Error("SetPixel(false) must clear the pixel")
	}
}
