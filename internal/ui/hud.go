//go:build ebiten

package ui

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strconv"

	"halo-ca/internal/core"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/text"
	"golang.org/x/image/font/basicfont"
)

var (
	panelColor = color.RGBA{R: 16, G: 16, B: 20, A: 255}
	titleColor = color.RGBA{R: 200, G: 200, B: 210, A: 255}
	labelColor = color.RGBA{R: 220, G: 220, B: 230, A: 255}
	dimColor   = color.RGBA{R: 160, G: 160, B: 170, A: 255}
	errorColor = color.RGBA{R: 240, G: 96, B: 96, A: 255}
)

// HUD renders the parameter panel to the right of the universe: adjustable
// controls with -/+ buttons first, then every reported value by group.
type HUD struct {
	sim          core.Sim
	width        int
	panel        *ebiten.Image
	pixel        *ebiten.Image
	title        string
	panelOffsetX int

	snapshot    core.ParameterSnapshot
	controls    []hudControlState
	intSetter   core.IntParameterSetter
	floatSetter core.FloatParameterSetter
}

type hudControlState struct {
	control  core.ParameterControl
	value    float64
	hasValue bool

	top       int
	minusRect image.Rectangle
	plusRect  image.Rectangle
}

// NewHUD constructs a HUD for sim with a panel of the given width.
func NewHUD(sim core.Sim, width int) *HUD {
	h := &HUD{sim: sim, width: max(width, 0), title: "Controls"}
	if width > 0 {
		h.pixel = ebiten.NewImage(1, 1)
		h.pixel.Fill(color.White)
	}
	if name := sim.Name(); name != "" {
		h.title = name
	}
	if p, ok := sim.(core.ParameterControlsProvider); ok {
		for i, ctrl := range p.ParameterControls() {
			top := controlsTop + i*lineHeight
			y := top + (lineHeight-buttonSize)/2
			plus := image.Rect(h.width-panelPadding-buttonSize, y, h.width-panelPadding, y+buttonSize)
			minus := plus.Sub(image.Pt(buttonSize+buttonGap, 0))
			h.controls = append(h.controls, hudControlState{control: ctrl, top: top, minusRect: minus, plusRect: plus})
		}
	}
	h.intSetter, _ = sim.(core.IntParameterSetter)
	h.floatSetter, _ = sim.(core.FloatParameterSetter)
	return h
}

// Update refreshes the snapshot and handles clicks on the control buttons.
func (h *HUD) Update(panelOffsetX int) {
	if h == nil {
		return
	}
	h.panelOffsetX = panelOffsetX
	h.snapshot = core.ParameterSnapshot{}
	if p, ok := h.sim.(core.ParameterProvider); ok {
		h.snapshot = p.Parameters()
	}
	for i := range h.controls {
		state := &h.controls[i]
		state.hasValue = false
		if p, ok := h.snapshot.Lookup(state.control.Key); ok {
			if v, err := strconv.ParseFloat(p.Value, 64); err == nil {
				state.value, state.hasValue = v, true
			}
		}
	}
	h.handleInput()
}

func (h *HUD) handleInput() {
	if !inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		return
	}
	mx, my := ebiten.CursorPosition()
	pt := image.Pt(mx-h.panelOffsetX, my)
	for i := range h.controls {
		state := &h.controls[i]
		switch {
		case pt.In(state.minusRect):
			h.adjust(state, -1)
			return
		case pt.In(state.plusRect):
			h.adjust(state, 1)
			return
		}
	}
}

// target computes the value one step in direction, reporting false when
// the control cannot move that way.
func (h *HUD) target(state *hudControlState, direction int) (float64, bool) {
	if !state.hasValue {
		return 0, false
	}
	ctrl := state.control
	step := ctrl.Step
	switch ctrl.Type {
	case core.ParamTypeInt:
		if h.intSetter == nil {
			return 0, false
		}
		step = math.Max(math.Round(step), 1)
	case core.ParamTypeFloat:
		if h.floatSetter == nil {
			return 0, false
		}
		if step <= 0 {
			step = 0.05
		}
	default:
		return 0, false
	}
	v := state.value + float64(direction)*step
	if ctrl.HasMin {
		v = math.Max(v, ctrl.Min)
	}
	if ctrl.HasMax {
		v = math.Min(v, ctrl.Max)
	}
	return v, math.Abs(v-state.value) > 1e-9
}

func (h *HUD) adjust(state *hudControlState, direction int) {
	v, ok := h.target(state, direction)
	if !ok {
		return
	}
	var applied bool
	if state.control.Type == core.ParamTypeInt {
		applied = h.intSetter.SetIntParameter(state.control.Key, int(v))
	} else {
		applied = h.floatSetter.SetFloatParameter(state.control.Key, v)
	}
	if applied {
		state.value = v
	}
}

// Draw paints the panel at offsetX, as tall as the scaled universe.
func (h *HUD) Draw(screen *ebiten.Image, offsetX int, scale int) {
	if h == nil || h.width <= 0 {
		return
	}
	height := h.sim.Size().H * max(scale, 1)
	if height <= 0 {
		return
	}
	if h.panel == nil || h.panel.Bounds().Dy() != height {
		h.panel = ebiten.NewImage(h.width, height)
	}
	h.panel.Fill(panelColor)
	face := basicfont.Face7x13
	text.Draw(h.panel, h.title, face, panelPadding, panelPadding+headerBaseline, titleColor)

	for i := range h.controls {
		h.drawControl(&h.controls[i])
	}
	y := controlsTop + len(h.controls)*lineHeight + groupGap
	for _, g := range h.snapshot.Groups {
		text.Draw(h.panel, g.Name, face, panelPadding, y, titleColor)
		y += rowHeight
		for _, p := range g.Params {
			text.Draw(h.panel, fmt.Sprintf("%-11s %s", p.Label, p.Value), face, panelPadding, y, dimColor)
			y += rowHeight
		}
		y += groupGap
	}
	if f, ok := h.sim.(core.Failer); ok && f.Err() != nil {
		text.Draw(h.panel, "stopped, see log", face, panelPadding, y, errorColor)
	}

	op := &ebiten.DrawImageOptions{}
	op.GeoM.Translate(float64(offsetX), 0)
	screen.DrawImage(h.panel, op)
}

func (h *HUD) drawControl(state *hudControlState) {
	face := basicfont.Face7x13
	baseline := state.top + labelBaseline
	text.Draw(h.panel, state.control.Label, face, panelPadding, baseline, labelColor)

	value, col := "--", dimColor
	if state.hasValue {
		value, col = formatValue(state.control, state.value), labelColor
	}
	width := text.BoundString(face, value).Dx()
	text.Draw(h.panel, value, face, state.minusRect.Min.X-buttonGap-width, baseline, col)

	_, minus := h.target(state, -1)
	_, plus := h.target(state, 1)
	h.drawButton(state.minusRect, "-", minus)
	h.drawButton(state.plusRect, "+", plus)
}

func (h *HUD) drawButton(rect image.Rectangle, label string, enabled bool) {
	bg := color.RGBA{R: 54, G: 56, B: 64, A: 255}
	fg := color.RGBA{R: 230, G: 230, B: 240, A: 255}
	if !enabled {
		bg = color.RGBA{R: 32, G: 34, B: 40, A: 255}
		fg = color.RGBA{R: 120, G: 120, B: 130, A: 255}
	}
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(float64(rect.Dx()), float64(rect.Dy()))
	op.GeoM.Translate(float64(rect.Min.X), float64(rect.Min.Y))
	op.ColorM.Scale(float64(bg.R)/255.0, float64(bg.G)/255.0, float64(bg.B)/255.0, float64(bg.A)/255.0)
	h.panel.DrawImage(h.pixel, op)

	face := basicfont.Face7x13
	b := text.BoundString(face, label)
	x := rect.Min.X + (rect.Dx()-b.Dx())/2
	y := rect.Min.Y + (rect.Dy()-b.Dy())/2 + b.Dy()
	text.Draw(h.panel, label, face, x, y, fg)
}

func formatValue(ctrl core.ParameterControl, v float64) string {
	if ctrl.Type == core.ParamTypeInt {
		return strconv.Itoa(int(v))
	}
	precision := 1
	switch {
	case ctrl.Step > 0 && ctrl.Step < 0.01:
		precision = 3
	case ctrl.Step > 0 && ctrl.Step < 0.1:
		precision = 2
	}
	return strconv.FormatFloat(v, 'f', precision, 64)
}

const (
	panelPadding   = 12
	lineHeight     = 36
	rowHeight      = 16
	groupGap       = 10
	buttonSize     = 24
	buttonGap      = 6
	headerBaseline = 18
	labelBaseline  = 24
	controlsTop    = panelPadding + headerBaseline + 14
)
