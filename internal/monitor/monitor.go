package monitor

import (
	"sync"

	"github.com/gdamore/tcell/v2"
)

// Monitor is the terminal preview surface. Composited frames land on
// it as half-block cells; the bottom rows are reserved for transport
// widgets. All methods are safe for concurrent use.
type Monitor struct {
	mu         sync.Mutex
	screen     tcell.Screen
	cellCache  []uint64
	cacheW     int
	cacheH     int
	closed     bool
	needsClear bool
}

// Rows at the bottom kept free of picture content
const uiRows = 2

func New() (*Monitor, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	if err := screen.Init(); err != nil {
		return nil, err
	}

	screen.SetStyle(tcell.StyleDefault.Background(tcell.ColorBlack))
	screen.EnableMouse()
	screen.Clear()

	return &Monitor{
		screen:     screen,
		needsClear: true,
	}, nil
}

// Screen exposes the underlying tcell screen for event polling
func (m *Monitor) Screen() tcell.Screen {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.screen
}

// Size returns the terminal dimensions in cells
func (m *Monitor) Size() (width, height int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.screen == nil || m.closed {
		return 80, 24
	}
	return m.screen.Size()
}

func (m *Monitor) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.screen != nil && !m.closed {
		m.screen.Clear()
	}
	m.cellCache = nil
	m.needsClear = true
}

// RequestClear marks the picture area for a wipe on the next frame
func (m *Monitor) RequestClear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.needsClear = true
}

// NeedsClear returns and consumes the pending wipe flag
func (m *Monitor) NeedsClear() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := m.needsClear
	m.needsClear = false
	return result
}

// Sync forces a full terminal refresh, needed after resizes
func (m *Monitor) Sync() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.screen != nil && !m.closed {
		m.screen.Sync()
	}
}

// Show flushes pending cell updates to the terminal
func (m *Monitor) Show() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.screen != nil && !m.closed {
		m.screen.Show()
	}
}

// InvalidateCache drops the cell diff cache so the next frame paints
// every cell
func (m *Monitor) InvalidateCache() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cellCache = nil
}

// ClearCanvas blanks the picture area, leaving the widget rows alone
func (m *Monitor) ClearCanvas() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.screen == nil || m.closed {
		return
	}

	w, h := m.screen.Size()
	style := tcell.StyleDefault.Background(tcell.ColorBlack)

	for y := 0; y < h-uiRows; y++ {
		for x := 0; x < w; x++ {
			m.screen.SetContent(x, y, ' ', nil, style)
		}
	}

	m.needsClear = false
}

func (m *Monitor) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed || m.screen == nil
}

func (m *Monitor) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	m.closed = true

	if m.screen != nil {
		m.screen.Fini()
		m.screen = nil
	}
}

// FitCanvas fits a srcW x srcH picture into the terminal, reserving
// the widget rows plus one breathing row. The result is in render
// pixels: full cell width, two pixels per cell row, clamped even so
// half-block pairs always line up.
func FitCanvas(screenW, screenH, srcW, srcH int) (int, int) {
	availH := screenH - uiRows - 1
	if availH < 2 {
		availH = 2
	}
	canvasW := screenW
	canvasH := availH * 2

	if srcW > 0 && srcH > 0 {
		aspect := float64(srcW) / float64(srcH)
		canvasAspect := float64(canvasW) / float64(canvasH)

		if canvasAspect > aspect {
			canvasW = int(float64(canvasH) * aspect)
		} else {
			canvasH = int(float64(canvasW) / aspect)
		}
	}

	canvasW = clampInt((canvasW/2)*2, 4, screenW)
	canvasH = clampInt((canvasH/2)*2, 4, availH*2)

	return canvasW, canvasH
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
