package media

// SegmentJob extracts one segment and fits it to the output frame
type SegmentJob struct {
	Input     string
	Start     float64
	Duration  float64
	SrcWidth  int
	SrcHeight int
	Width     int
	Height    int
	FPS       int
	HasAudio  bool
	Effect    Effect
	Output    string
}

// ConcatJob joins extracted segments into one video
type ConcatJob struct {
	Inputs  []string
	Output  string
	FadeIn  float64
	FadeOut float64

	// Duration is the expected length of the joined video
	Duration float64

	// TrimTo cuts the joined video to this length when positive
	TrimTo float64
}

// EncodeSettings are the final encoder parameters of an output
type EncodeSettings struct {
	VideoCodec   string
	AudioCodec   string
	VideoBitrate string
	AudioBitrate string
	Preset       string
	Format       string
	Threads      int
}

// FallbackEncodeSettings are the minimal settings tried when the platform
// settings fail.
func FallbackEncodeSettings() EncodeSettings {
	return EncodeSettings{
		VideoCodec: "libx264",
		AudioCodec: "aac",
		Preset:     "ultrafast",
		Format:     "mp4",
	}
}
