package monitor

import (
	"image"

	"github.com/gdamore/tcell/v2"
)

// RenderImage draws an RGBA frame at the given cell offset using
// half-block characters, two image rows per terminal row. A packed
// color cache skips cells whose pixel pair did not change since the
// last frame, which keeps steady playback from repainting the whole
// screen every tick.
func (m *Monitor) RenderImage(img *image.RGBA, offsetX, offsetY int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if img == nil || m.screen == nil || m.closed {
		return
	}

	bounds := img.Bounds()
	imgW := bounds.Dx()
	imgH := bounds.Dy()
	if imgW <= 0 || imgH <= 0 {
		return
	}

	screenW, screenH := m.screen.Size()
	if screenW <= 0 || screenH <= 0 {
		return
	}

	cellW := imgW
	cellH := (imgH + 1) / 2

	bufsize := cellW * cellH
	if len(m.cellCache) != bufsize || m.cacheW != cellW || m.cacheH != cellH {
		m.cellCache = make([]uint64, bufsize)
		m.cacheW = cellW
		m.cacheH = cellH
		for i := range m.cellCache {
			m.cellCache[i] = 0xFFFFFFFFFFFFFFFF
		}
	}

	pix := img.Pix
	stride := img.Stride
	idx := 0

	for py := 0; py < imgH; py += 2 {
		cellY := offsetY + py/2
		if cellY < 0 || cellY >= screenH {
			idx += cellW
			continue
		}

		topRowOff := py * stride
		botRowOff := topRowOff + stride
		hasBot := py+1 < imgH

		for px := range imgW {
			cellX := offsetX + px
			if cellX < 0 || cellX >= screenW {
				idx++
				continue
			}

			topOff := topRowOff + px*4
			tr, tg, tb := pix[topOff], pix[topOff+1], pix[topOff+2]

			var br, bg, bb byte
			if hasBot {
				botOff := botRowOff + px*4
				br, bg, bb = pix[botOff], pix[botOff+1], pix[botOff+2]
			} else {
				br, bg, bb = tr, tg, tb
			}

			packed := packCell(tr, tg, tb, br, bg, bb)

			if idx < len(m.cellCache) && m.cellCache[idx] == packed {
				idx++
				continue
			}
			if idx < len(m.cellCache) {
				m.cellCache[idx] = packed
			}
			idx++

			style := tcell.StyleDefault.
				Foreground(tcell.NewRGBColor(int32(tr), int32(tg), int32(tb))).
				Background(tcell.NewRGBColor(int32(br), int32(bg), int32(bb)))

			m.screen.SetContent(cellX, cellY, '▀', nil, style)
		}
	}
}

func packCell(tr, tg, tb, br, bg, bb byte) uint64 {
	return uint64(tr)<<40 | uint64(tg)<<32 | uint64(tb)<<24 |
		uint64(br)<<16 | uint64(bg)<<8 | uint64(bb)
}
