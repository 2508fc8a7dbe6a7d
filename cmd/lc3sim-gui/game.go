package main

import (
	"image"
	"image/color"
	"strings"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"golang.org/x/image/font/basicfont"

	"lc3tools/internal/gui"
	"lc3tools/pkg/grid"
)

// Cell size of basicfont.Face7x13.
const (
	charW = 7
	charH = 13
	pad   = 6
)

const (
	regRows    = 2
	codeRows   = 13
	consoleTop = pad + (regRows+1+codeRows)*charH + pad
	statusTop  = consoleTop + gui.ConsoleRows*charH + pad
	width      = pad*2 + gui.ConsoleCols*charW
	height     = statusTop + charH + pad
)

var (
	background = color.RGBA{0x1c, 0x1e, 0x26, 0xff}
	foreground = color.RGBA{0xd8, 0xda, 0xe0, 0xff}
	dimmed     = color.RGBA{0x70, 0x74, 0x80, 0xff}
	pcColor    = color.RGBA{0xf0, 0xc6, 0x4a, 0xff}
	breakColor = color.RGBA{0xe8, 0x5a, 0x5a, 0xff}
	newColor   = color.RGBA{0x6a, 0xc8, 0x8a, 0xff}
)

// binding maps a function key to the debugger command it sends.
type binding struct {
	key  ebiten.Key
	name string
	cmd  string
}

var bindings = []binding{
	{ebiten.KeyF5, "F5", "continue"},
	{ebiten.KeyF6, "F6", "finish"},
	{ebiten.KeyF10, "F10", "next"},
	{ebiten.KeyF11, "F11", "step"},
}

type Game struct {
	session *gui.Session
	// reload is nil when reloading is off.
	reload        *gui.Reloader
	watched       string
	reloadPending bool
	face          *text.GoXFace
}

func newGame(s *gui.Session, r *gui.Reloader) *Game {
	return &Game{
		session: s,
		reload:  r,
		face:    text.NewGoXFace(basicfont.Face7x13),
	}
}

func (g *Game) Update() error {
	select {
	case err := <-g.session.Done():
		if err != nil {
			return err
		}
		return ebiten.Termination
	default:
	}

	for _, r := range ebiten.AppendInputChars(nil) {
		if r < 0x80 {
			g.session.Type(byte(r))
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEnter) || inpututil.IsKeyJustPressed(ebiten.KeyNumpadEnter) {
		g.session.Type('\n')
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyBackspace) {
		g.session.Type('\b')
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		g.session.Stop()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF9) {
		g.session.ToggleBreakpoint()
	}
	for _, b := range bindings {
		if inpututil.IsKeyJustPressed(b.key) {
			g.session.Command(b.cmd)
		}
	}
	g.checkReload()
	return nil
}

// checkReload reloads the current object file once it has changed on disk
// and the simulator is idle.
func (g *Game) checkReload() {
	if g.reload == nil {
		return
	}
	v, idle := g.session.View()
	if v.File == "" {
		return
	}
	if v.File != g.watched {
		g.watched = v.File
		g.reloadPending = false
		if err := g.reload.Watch(v.File); err != nil {
			return
		}
	}
	if idle && g.reload.Take(v.File) {
		g.reloadPending = true
	}
	if g.reloadPending && g.session.Command("file "+v.File) {
		g.reloadPending = false
	}
}

func (g *Game) print(dst *ebiten.Image, s string, x, y int, clr color.Color) {
	op := &text.DrawOptions{}
	op.GeoM.Translate(float64(x), float64(y))
	op.ColorScale.ScaleWithColor(clr)
	text.Draw(dst, s, g.face, op)
}

func (g *Game) Draw(screen *ebiten.Image) {
	screen.Fill(background)
	v, idle := g.session.View()

	y := pad
	for _, line := range v.Registers {
		g.print(screen, line, pad, y, foreground)
		y += charH
	}
	y += charH
	for i, line := range v.Code {
		clr := foreground
		switch {
		case i == v.PCLine:
			clr = pcColor
		case strings.HasPrefix(line, "  B"):
			clr = breakColor
		case v.Changed[i]:
			clr = newColor
		}
		g.print(screen, line, pad, y, clr)
		y += charH
	}

	rule := screen.SubImage(image.Rect(pad, consoleTop-pad/2-1, width-pad, consoleTop-pad/2)).(*ebiten.Image)
	rule.Fill(dimmed)

	con := g.session.Screen()
	for i, ch := range con.Cells() {
		if ch == ' ' {
			continue
		}
		x, row := grid.GetGridCoords(i, gui.ConsoleCols)
		g.print(screen, string(ch), pad+x*charW, consoleTop+row*charH, foreground)
	}
	if idle {
		x, row := con.Cursor()
		g.print(screen, "_", pad+x*charW, consoleTop+row*charH, pcColor)
	}

	g.print(screen, statusLine(idle), pad, statusTop, dimmed)
}

func statusLine(idle bool) string {
	if !idle {
		return "running... Esc stops the LC-3"
	}
	parts := make([]string, 0, len(bindings)+1)
	for _, b := range bindings {
		parts = append(parts, b.name+" "+b.cmd)
	}
	parts = append(parts, "F9 breakpoint", "Esc stop")
	return strings.Join(parts, "  ")
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return width, height
}
