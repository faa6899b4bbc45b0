package monitor

import "github.com/gdamore/tcell/v2"

// DrawText writes a string starting at (x, y), clipped to the screen
func (m *Monitor) DrawText(x, y int, text string, style tcell.Style) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.screen == nil || m.closed {
		return
	}

	w, h := m.screen.Size()
	if y < 0 || y >= h {
		return
	}

	for i, ch := range text {
		if x+i >= 0 && x+i < w {
			m.screen.SetContent(x+i, y, ch, nil, style)
		}
	}
}

// DrawTextRight writes a string ending at the right screen edge
func (m *Monitor) DrawTextRight(y int, text string, style tcell.Style) {
	m.mu.Lock()
	w := 0
	if m.screen != nil && !m.closed {
		w, _ = m.screen.Size()
	}
	m.mu.Unlock()
	if w == 0 {
		return
	}
	m.DrawText(w-len(text), y, text, style)
}

// FillLine paints a whole row with the style's background
func (m *Monitor) FillLine(y int, style tcell.Style) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.screen == nil || m.closed {
		return
	}

	w, h := m.screen.Size()
	if y < 0 || y >= h {
		return
	}

	for x := range w {
		m.screen.SetContent(x, y, ' ', nil, style)
	}
}

// RenderMessage shows a centered single-line banner across the middle
// of the screen
func (m *Monitor) RenderMessage(msg string, bgColor tcell.Color) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.screen == nil || m.closed {
		return
	}

	w, h := m.screen.Size()
	if w <= 0 || h <= 0 {
		return
	}

	style := tcell.StyleDefault.Background(bgColor).Foreground(tcell.ColorWhite)

	y := h / 2
	for x := range w {
		m.screen.SetContent(x, y, ' ', nil, style)
	}

	x := (w - len(msg)) / 2
	if x < 0 {
		x = 0
	}
	for i, ch := range msg {
		if x+i < w {
			m.screen.SetContent(x+i, y, ch, nil, style)
		}
	}
}

// ProgressBar draws the transport bar with a playhead marker. Marker
// ticks along the bar mark chapter positions when provided as
// fractions of the full range.
func (m *Monitor) ProgressBar(y int, progress float64, marks []float64, filledColor, emptyColor tcell.Color) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.screen == nil || m.closed {
		return
	}

	w, h := m.screen.Size()
	if y < 0 || y >= h || w < 4 {
		return
	}

	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}

	barW := w - 2
	filled := int(float64(barW) * progress)

	filledStyle := tcell.StyleDefault.Background(filledColor)
	emptyStyle := tcell.StyleDefault.Background(emptyColor)

	for x := 1; x < 1+filled && x < w-1; x++ {
		m.screen.SetContent(x, y, '━', nil, filledStyle)
	}
	for x := 1 + filled; x < 1+barW && x < w-1; x++ {
		m.screen.SetContent(x, y, '─', nil, emptyStyle)
	}

	markStyle := tcell.StyleDefault.Foreground(tcell.ColorYellow)
	for _, frac := range marks {
		if frac < 0 || frac > 1 {
			continue
		}
		mx := 1 + int(float64(barW)*frac)
		if mx >= w-1 {
			mx = w - 2
		}
		m.screen.SetContent(mx, y, '┆', nil, markStyle)
	}

	px := 1 + filled
	if px >= w-1 {
		px = w - 2
	}
	m.screen.SetContent(px, y, '●', nil, tcell.StyleDefault.Foreground(tcell.ColorWhite))
}
