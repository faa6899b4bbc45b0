package preview

import "github.com/gdamore/tcell/v2"

// ActionKind enumerates transport commands a key press can produce
type ActionKind int

const (
	ActNone ActionKind = iota
	ActQuit
	ActTogglePlay
	ActPlayOrFaster
	ActPauseNormal
	ActStepFrames
	ActJumpSeconds
	ActSeekFraction
	ActSeekStart
	ActSeekEnd
	ActRestart
	ActSpeedUp
	ActSpeedDown
	ActVolumeUp
	ActVolumeDown
	ActToggleMute
	ActToggleUI
)

// Action is one decoded transport command. Arg carries the numeric
// payload for stepping and fraction seeks.
type Action struct {
	Kind ActionKind
	Arg  float64
}

// Bind translates a key event into a transport action. The bindings
// follow the J/K/L convention: L plays and shuttles faster, J slower,
// K parks the transport at normal speed. Arrows step one frame, one
// second with shift held.
func Bind(ev *tcell.EventKey) Action {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return Action{Kind: ActQuit}
	case tcell.KeyLeft:
		if ev.Modifiers()&tcell.ModShift != 0 {
			return Action{Kind: ActJumpSeconds, Arg: -1}
		}
		return Action{Kind: ActStepFrames, Arg: -1}
	case tcell.KeyRight:
		if ev.Modifiers()&tcell.ModShift != 0 {
			return Action{Kind: ActJumpSeconds, Arg: 1}
		}
		return Action{Kind: ActStepFrames, Arg: 1}
	case tcell.KeyUp:
		return Action{Kind: ActVolumeUp}
	case tcell.KeyDown:
		return Action{Kind: ActVolumeDown}
	case tcell.KeyHome:
		return Action{Kind: ActSeekStart}
	case tcell.KeyEnd:
		return Action{Kind: ActSeekEnd}
	case tcell.KeyRune:
		return bindRune(ev.Rune())
	}
	return Action{Kind: ActNone}
}

func bindRune(r rune) Action {
	switch r {
	case 'q', 'Q':
		return Action{Kind: ActQuit}
	case ' ':
		return Action{Kind: ActTogglePlay}
	case 'k', 'K':
		return Action{Kind: ActPauseNormal}
	case 'l', 'L':
		return Action{Kind: ActPlayOrFaster}
	case 'j', 'J':
		return Action{Kind: ActSpeedDown}
	case ',':
		return Action{Kind: ActStepFrames, Arg: -1}
	case '.':
		return Action{Kind: ActStepFrames, Arg: 1}
	case '[':
		return Action{Kind: ActSpeedDown}
	case ']':
		return Action{Kind: ActSpeedUp}
	case 'm', 'M':
		return Action{Kind: ActToggleMute}
	case 'f', 'F':
		return Action{Kind: ActToggleUI}
	case 'r', 'R':
		return Action{Kind: ActRestart}
	case '0':
		return Action{Kind: ActSeekStart}
	case '1', '2', '3', '4', '5', '6', '7', '8', '9':
		return Action{Kind: ActSeekFraction, Arg: float64(r-'0') / 10}
	}
	return Action{Kind: ActNone}
}
