package preview

import (
	"testing"

	"github.com/gdamore/tcell/v2"
)

func key(k tcell.Key, r rune, mod tcell.ModMask) *tcell.EventKey {
	return tcell.NewEventKey(k, r, mod)
}

func rn(r rune) *tcell.EventKey {
	return tcell.NewEventKey(tcell.KeyRune, r, tcell.ModNone)
}

func TestBindTransportKeys(t *testing.T) {
	cases := []struct {
		name string
		ev   *tcell.EventKey
		want Action
	}{
		{"space toggles", rn(' '), Action{Kind: ActTogglePlay}},
		{"k parks transport", rn('k'), Action{Kind: ActPauseNormal}},
		{"K parks transport", rn('K'), Action{Kind: ActPauseNormal}},
		{"l rolls forward", rn('l'), Action{Kind: ActPlayOrFaster}},
		{"j shuttles slower", rn('j'), Action{Kind: ActSpeedDown}},
		{"left steps one frame back", key(tcell.KeyLeft, 0, tcell.ModNone), Action{Kind: ActStepFrames, Arg: -1}},
		{"right steps one frame forward", key(tcell.KeyRight, 0, tcell.ModNone), Action{Kind: ActStepFrames, Arg: 1}},
		{"shift left jumps a second back", key(tcell.KeyLeft, 0, tcell.ModShift), Action{Kind: ActJumpSeconds, Arg: -1}},
		{"shift right jumps a second forward", key(tcell.KeyRight, 0, tcell.ModShift), Action{Kind: ActJumpSeconds, Arg: 1}},
		{"comma steps back", rn(','), Action{Kind: ActStepFrames, Arg: -1}},
		{"dot steps forward", rn('.'), Action{Kind: ActStepFrames, Arg: 1}},
		{"open bracket slows", rn('['), Action{Kind: ActSpeedDown}},
		{"close bracket speeds", rn(']'), Action{Kind: ActSpeedUp}},
		{"up raises volume", key(tcell.KeyUp, 0, tcell.ModNone), Action{Kind: ActVolumeUp}},
		{"down lowers volume", key(tcell.KeyDown, 0, tcell.ModNone), Action{Kind: ActVolumeDown}},
		{"m mutes", rn('m'), Action{Kind: ActToggleMute}},
		{"f toggles the ui", rn('f'), Action{Kind: ActToggleUI}},
		{"home rewinds", key(tcell.KeyHome, 0, tcell.ModNone), Action{Kind: ActSeekStart}},
		{"end jumps to tail", key(tcell.KeyEnd, 0, tcell.ModNone), Action{Kind: ActSeekEnd}},
		{"zero rewinds", rn('0'), Action{Kind: ActSeekStart}},
		{"three seeks to 30 percent", rn('3'), Action{Kind: ActSeekFraction, Arg: 0.3}},
		{"nine seeks to 90 percent", rn('9'), Action{Kind: ActSeekFraction, Arg: 0.9}},
		{"r restarts", rn('r'), Action{Kind: ActRestart}},
		{"q quits", rn('q'), Action{Kind: ActQuit}},
		{"escape quits", key(tcell.KeyEscape, 0, tcell.ModNone), Action{Kind: ActQuit}},
		{"ctrl-c quits", key(tcell.KeyCtrlC, 0, tcell.ModNone), Action{Kind: ActQuit}},
		{"unbound rune is ignored", rn('x'), Action{Kind: ActNone}},
		{"unbound key is ignored", key(tcell.KeyF1, 0, tcell.ModNone), Action{Kind: ActNone}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Bind(tc.ev)
			if got != tc.want {
				t.Fatalf("Bind() = %+v, want %+v", got, tc.want)
			}
		})
	}
}
