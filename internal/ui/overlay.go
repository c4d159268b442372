//go:build ebiten

package ui

import (
	"image/color"

	"halo-ca/internal/core"
	"halo-ca/internal/render"
	"halo-ca/pkg/grid"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

type boundaryProvider interface {
	Boundaries() []int
}

type trackedProvider interface {
	AppendTracked(dst []grid.Point) []grid.Point
}

var trackedPalette = []color.RGBA{{}, {R: 255, G: 196, B: 48, A: 110}}

// Overlay draws partition borders (key 1) and the dead cells the engine is
// tracking (key 2) on top of the universe.
type Overlay struct {
	sim         core.Sim
	scale       int
	showStrips  bool
	showTracked bool

	pixel   *ebiten.Image
	maskImg *ebiten.Image
	maskBuf []byte
	mask    []uint8
	tracked []grid.Point
}

// NewOverlay constructs an overlay for sim drawn at the given scale.
func NewOverlay(sim core.Sim, scale int) *Overlay {
	o := &Overlay{sim: sim, scale: max(scale, 1), showStrips: true}
	o.pixel = ebiten.NewImage(1, 1)
	o.pixel.Fill(color.White)
	return o
}

// Update handles the toggle keys.
func (o *Overlay) Update() {
	if inpututil.IsKeyJustPressed(ebiten.KeyDigit1) {
		o.showStrips = !o.showStrips
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyDigit2) {
		o.showTracked = !o.showTracked
	}
}

// Draw renders the enabled layers onto screen.
func (o *Overlay) Draw(screen *ebiten.Image) {
	size := o.sim.Size()
	if size.W <= 0 || size.H <= 0 {
		return
	}
	if o.showTracked {
		if p, ok := o.sim.(trackedProvider); ok {
			o.drawTracked(screen, p, size)
		}
	}
	if o.showStrips {
		if p, ok := o.sim.(boundaryProvider); ok {
			o.drawBoundaries(screen, p.Boundaries(), size)
		}
	}
}

func (o *Overlay) drawTracked(screen *ebiten.Image, p trackedProvider, size core.Size) {
	total := size.W * size.H
	if o.maskImg == nil || len(o.mask) != total {
		o.maskImg = ebiten.NewImage(size.W, size.H)
		o.maskBuf = make([]byte, 4*total)
		o.mask = make([]uint8, total)
	}
	clear(o.mask)
	o.tracked = p.AppendTracked(o.tracked[:0])
	for _, c := range o.tracked {
		o.mask[c.Y*size.W+c.X] = 1
	}
	render.FillPalette(o.maskBuf, o.mask, trackedPalette)
	o.maskImg.WritePixels(o.maskBuf)
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(float64(o.scale), float64(o.scale))
	screen.DrawImage(o.maskImg, op)
}

// drawBoundaries marks the low edge of every strip with a one pixel line.
// Column 0 is skipped since the wrap seam is the window border.
func (o *Overlay) drawBoundaries(screen *ebiten.Image, xs []int, size core.Size) {
	col := color.RGBA{R: 220, G: 60, B: 60, A: 200}
	for _, x := range xs {
		if x <= 0 {
			continue
		}
		op := &ebiten.DrawImageOptions{}
		op.GeoM.Scale(1, float64(size.H*o.scale))
		op.GeoM.Translate(float64(x*o.scale), 0)
		op.ColorM.Scale(float64(col.R)/255.0, float64(col.G)/255.0, float64(col.B)/255.0, float64(col.A)/255.0)
		screen.DrawImage(o.pixel, op)
	}
}
