package timeline

// Built-in sequence format presets
const (
	PresetShorts1080  = "shorts_1080"
	PresetYouTube1080 = "youtube_1080"
	PresetUHD4K       = "uhd_4k"
)

// FormatPreset returns a named output format, falling back to youtube_1080
func FormatPreset(name string) SequenceFormat {
	switch name {
	case PresetShorts1080:
		return SequenceFormat{
			Canvas:        Canvas{Width: 1080, Height: 1920},
			FPS:           Ratio{Num: 30, Den: 1},
			AudioRate:     48000,
			AudioChannels: 2,
		}
	case PresetUHD4K:
		return SequenceFormat{
			Canvas:        Canvas{Width: 3840, Height: 2160},
			FPS:           Ratio{Num: 30, Den: 1},
			AudioRate:     48000,
			AudioChannels: 2,
		}
	default:
		return SequenceFormat{
			Canvas:        Canvas{Width: 1920, Height: 1080},
			FPS:           Ratio{Num: 30, Den: 1},
			AudioRate:     48000,
			AudioChannels: 2,
		}
	}
}
