package platform

import "github.com/ZacxDev/scrambleclip/pkg/types"

// Vertical is a 9:16 short-form target. All of them share the remix frame
// size and differ in limits and bitrate.
type Vertical struct {
	name         types.ProcessingPlatform
	maxDuration  int
	maxFileSize  int64
	videoBitrate string
	audioBitrate string
}

func init() {
	Register(&Vertical{
		name:         types.ProcessingPlatformTikTok,
		maxDuration:  180,
		maxFileSize:  287 * 1024 * 1024, // 287MB
		videoBitrate: "2M",
		audioBitrate: "128k",
	})
	Register(&Vertical{
		name:         types.ProcessingPlatformInstagramReel,
		maxDuration:  90,
		maxFileSize:  250 * 1024 * 1024, // 250MB
		videoBitrate: "3M",
		audioBitrate: "128k",
	})
	Register(&Vertical{
		name:         types.ProcessingPlatformYouTubeShorts,
		maxDuration:  60,
		maxFileSize:  256 * 1024 * 1024,
		videoBitrate: "4M",
		audioBitrate: "192k",
	})
}

func (p *Vertical) GetName() string {
	return string(p.name)
}

func (p *Vertical) GetMaxDimensions() (width, height int) {
	return 1080, 1920
}

func (p *Vertical) GetMaxDuration() int {
	return p.maxDuration
}

func (p *Vertical) GetMaxFileSize() int64 {
	return p.maxFileSize
}

func (p *Vertical) GetVideoCodec() string {
	return "libx264" // H.264 for better compatibility
}

func (p *Vertical) GetAudioCodec() string {
	return "aac"
}

func (p *Vertical) GetVideoBitrate() string {
	return p.videoBitrate
}

func (p *Vertical) GetAudioBitrate() string {
	return p.audioBitrate
}

func (p *Vertical) GetOutputFormat() string {
	return "mp4"
}
