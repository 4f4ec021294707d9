// Package components holds widgets shared by the views.
package components

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/paulmach/orb"

	"github.com/contato-rede/leads/internal/tui/styles"
)

// MapView plots the anchors a scan searched and the places it found as a
// braille scatter plot. Found places are drawn over anchors.
type MapView struct {
	width   int
	height  int
	anchors []orb.Point
	hits    []orb.Point
	bound   orb.Bound
}

func NewMapView(width, height int) MapView {
	return MapView{width: width, height: height}
}

// SetPoints replaces both layers and refits the viewport around them.
func (m *MapView) SetPoints(anchors, hits []orb.Point) {
	m.anchors = anchors
	m.hits = hits
	m.fitBounds()
}

// Empty reports whether there is nothing to plot.
func (m MapView) Empty() bool {
	return len(m.anchors) == 0 && len(m.hits) == 0
}

func (m *MapView) fitBounds() {
	var all []orb.Point
	all = append(all, m.anchors...)
	all = append(all, m.hits...)
	if len(all) == 0 {
		m.bound = orb.Bound{}
		return
	}
	b := orb.MultiPoint(all).Bound()

	lngPad := (b.Max[0] - b.Min[0]) * 0.05
	latPad := (b.Max[1] - b.Min[1]) * 0.05
	if lngPad == 0 {
		lngPad = 0.01
	}
	if latPad == 0 {
		latPad = 0.01
	}
	m.bound = orb.Bound{
		Min: orb.Point{b.Min[0] - lngPad, b.Min[1] - latPad},
		Max: orb.Point{b.Max[0] + lngPad, b.Max[1] + latPad},
	}
}

// Each braille cell is a 2x4 dot grid, numbered
//
//	0 3
//	1 4
//	2 5
//	6 7
//
// and encoded as 0x2800 plus the bits of the raised dots.
var brailleDots = [8]rune{0x01, 0x02, 0x04, 0x08, 0x10, 0x20, 0x40, 0x80}

// dotOffsets is the (row, col) of each dot inside its cell.
var dotOffsets = [8][2]int{
	{0, 0}, {1, 0}, {2, 0}, {0, 1},
	{1, 1}, {2, 1}, {3, 0}, {3, 1},
}

const blankCell rune = 0x2800

func (m MapView) View() string {
	if m.width <= 0 || m.height <= 0 {
		return ""
	}
	cols, rows := m.width, m.height
	dotW, dotH := cols*2, rows*4

	lngRange := m.bound.Max[0] - m.bound.Min[0]
	latRange := m.bound.Max[1] - m.bound.Min[1]
	if latRange == 0 || lngRange == 0 {
		return strings.TrimSuffix(strings.Repeat(strings.Repeat(" ", cols)+"\n", rows), "\n")
	}

	// Longitude degrees shrink with cos(lat); dots are roughly square on screen.
	center := m.bound.Center()
	geoAspect := lngRange * math.Cos(center[1]*math.Pi/180) / latRange
	dotAspect := float64(dotW) / float64(dotH)

	effW, effH := dotW, dotH
	offX, offY := 0, 0
	if geoAspect < dotAspect {
		effW = max(4, int(float64(dotH)*geoAspect))
		offX = (dotW - effW) / 2
	} else {
		effH = max(4, int(float64(dotW)/geoAspect))
		offY = (dotH - effH) / 2
	}

	plot := func(points []orb.Point) [][]bool {
		grid := make([][]bool, dotH)
		for i := range grid {
			grid[i] = make([]bool, dotW)
		}
		for _, p := range points {
			x := offX + int((p[0]-m.bound.Min[0])/lngRange*float64(effW-1))
			y := offY + int((m.bound.Max[1]-p[1])/latRange*float64(effH-1))
			if x >= 0 && x < dotW && y >= 0 && y < dotH {
				grid[y][x] = true
			}
		}
		return grid
	}
	anchorGrid := plot(m.anchors)
	hitGrid := plot(m.hits)

	anchorStyle := lipgloss.NewStyle().Foreground(styles.Secondary)
	hitStyle := lipgloss.NewStyle().Foreground(styles.Success)

	var sb strings.Builder
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			anchorCell, hitCell := blankCell, blankCell
			for dot, off := range dotOffsets {
				dy, dx := row*4+off[0], col*2+off[1]
				if anchorGrid[dy][dx] {
					anchorCell |= brailleDots[dot]
				}
				if hitGrid[dy][dx] {
					hitCell |= brailleDots[dot]
				}
			}
			switch {
			case hitCell != blankCell:
				sb.WriteString(hitStyle.Render(string(hitCell)))
			case anchorCell != blankCell:
				sb.WriteString(anchorStyle.Render(string(anchorCell)))
			default:
				sb.WriteRune(' ')
			}
		}
		if row < rows-1 {
			sb.WriteRune('\n')
		}
	}
	return sb.String()
}
