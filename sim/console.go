package sim

import (
	"image/color"
	"sync"

	"tinygo.org/x/drivers"
	"tinygo.org/x/tinyfont/proggy"
	"tinygo.org/x/tinyterm"
)

// fbDisplay adapts the framebuffer to the terminal's Displayer surface.
type fbDisplay struct {
	fb *framebuffer
}

func (d *fbDisplay) Size() (x, y int16) {
	return int16(d.fb.width), int16(d.fb.height)
}

func (d *fbDisplay) SetPixel(x, y int16, c color.RGBA) {
	d.fb.setPixel(int(x), int(y), rgb565(c.R, c.G, c.B))
}

func (d *fbDisplay) Display() error { return nil }

func (d *fbDisplay) FillRectangle(x, y, width, height int16, c color.RGBA) error {
	d.fb.fillRect(int(x), int(y), int(width), int(height), rgb565(c.R, c.G, c.B))
	return nil
}

// SetScroll is unsupported; the terminal falls back to software scroll.
func (d *fbDisplay) SetScroll(line int16) {}

func (d *fbDisplay) SetRotation(rotation drivers.Rotation) error { return nil }

// console renders log lines onto the framebuffer through a VT100
// terminal. It doubles as an io.Writer so the machine log can be teed
// into it.
type console struct {
	mu   sync.Mutex
	term *tinyterm.Terminal
}

func newConsole(fb *framebuffer) *console {
	d := &fbDisplay{fb: fb}
	t := tinyterm.NewTerminal(d)
	t.Configure(&tinyterm.Config{
		Font:              &proggy.TinySZ8pt7b,
		FontHeight:        10,
		FontOffset:        6,
		UseSoftwareScroll: true,
	})
	return &console{term: t}
}

func (c *console) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, err := c.term.Write(p)
	if err != nil {
		return n, err
	}
	c.term.Display()
	return n, nil
}
