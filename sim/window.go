//go:build !tinygo

package sim

import (
	"errors"
	"image"

	"github.com/hajimehoshi/ebiten/v2"

	"titan/internal/buildinfo"
)

// ErrLanded ends the window loop once both cores are parked.
var ErrLanded = errors.New("sim: flight landed")

// RunWindow opens a desktop window showing the diagnostics console. It
// blocks until the window closes or the flight lands.
func (f *Flight) RunWindow() error {
	f.Launch()

	g := &game{f: f}
	ebiten.SetWindowTitle("Titan (" + buildinfo.Short() + ")")
	ebiten.SetWindowSize(f.fb.width*2, f.fb.height*2)
	ebiten.SetTPS(60)
	err := ebiten.RunGame(g)
	f.machine.Shutdown()
	if errors.Is(err, ErrLanded) {
		return nil
	}
	return err
}

type game struct {
	f       *Flight
	img     *image.RGBA
	fbImg   *ebiten.Image
	scratch []byte
}

func (g *game) Update() error {
	select {
	case <-g.f.machine.ResetRequested():
		return ErrLanded
	default:
	}
	if g.f.Landed() {
		return ErrLanded
	}
	return nil
}

func (g *game) Draw(screen *ebiten.Image) {
	fb := g.f.fb
	if g.img == nil {
		g.img = image.NewRGBA(image.Rect(0, 0, fb.width, fb.height))
		g.scratch = make([]byte, len(fb.buf))
		g.fbImg = ebiten.NewImage(fb.width, fb.height)
	}

	fb.snapshot(g.scratch)

	src := g.scratch
	dst := g.img.Pix
	for i := 0; i+1 < len(src) && i/2*4+3 < len(dst); i += 2 {
		r, gg, b := rgb888From565(uint16(src[i]) | uint16(src[i+1])<<8)
		j := (i / 2) * 4
		dst[j+0] = r
		dst[j+1] = gg
		dst[j+2] = b
		dst[j+3] = 0xFF
	}

	g.fbImg.ReplacePixels(g.img.Pix)
	screen.DrawImage(g.fbImg, nil)
}

func (g *game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return g.f.fb.width, g.f.fb.height
}
