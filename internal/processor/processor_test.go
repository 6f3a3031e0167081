package processor

import (
	"context"
	"image"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/ZacxDev/scrambleclip/internal/config"
	"github.com/ZacxDev/scrambleclip/internal/history"
	"github.com/ZacxDev/scrambleclip/internal/media"
	"github.com/ZacxDev/scrambleclip/internal/media/mediatest"
	"github.com/ZacxDev/scrambleclip/internal/platform"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// fakeRenderer records every job and writes placeholder files for encodes
type fakeRenderer struct {
	mu sync.Mutex

	extracts  []media.SegmentJob
	concats   []media.ConcatJob
	encodes   []encodeCall
	overlays  int
	audioMixs int

	failExtract func(job media.SegmentJob) error
	failConcat  error
	failOverlay error
	failAudio   error
	failEncode  func(settings media.EncodeSettings) error
}

type encodeCall struct {
	input, output string
	settings      media.EncodeSettings
}

func (r *fakeRenderer) ExtractSegment(_ context.Context, job media.SegmentJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.extracts = append(r.extracts, job)
	if r.failExtract != nil {
		return r.failExtract(job)
	}
	return nil
}

func (r *fakeRenderer) Concat(_ context.Context, job media.ConcatJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.concats = append(r.concats, job)
	return r.failConcat
}

func (r *fakeRenderer) OverlayImage(_ context.Context, input, image, output string, duration float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.overlays++
	return r.failOverlay
}

func (r *fakeRenderer) SetAudio(_ context.Context, input, audio, output string, duration float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.audioMixs++
	return r.failAudio
}

func (r *fakeRenderer) Encode(_ context.Context, input, output string, settings media.EncodeSettings) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.encodes = append(r.encodes, encodeCall{input: input, output: output, settings: settings})
	if r.failEncode != nil {
		if err := r.failEncode(settings); err != nil {
			return err
		}
	}
	return os.WriteFile(output, []byte("video"), 0644)
}

// renderedDuration is what the joined file of concat job i would last
func (r *fakeRenderer) renderedDuration(i int) float64 {
	job := r.concats[i]
	if job.TrimTo > 0 && job.TrimTo < job.Duration {
		return job.TrimTo
	}
	return job.Duration
}

func testConfig(t *testing.T, count int) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Output.Dir = t.TempDir()
	cfg.Output.Count = count
	cfg.Seed = 42
	return cfg
}

func sources(durations map[string]float64) *mediatest.Opener {
	opener := &mediatest.Opener{Sources: map[string]*mediatest.Source{}}
	for path, d := range durations {
		opener.Sources[path] = &mediatest.Source{PathValue: path, DurationValue: d, W: 64, H: 112, Audio: true}
	}
	return opener
}

func newTestAssembler(t *testing.T, cfg *config.Config, opener media.Opener, renderer Renderer, inputs ...string) *Assembler {
	t.Helper()
	a, err := NewAssembler(Options{
		Config:   cfg,
		Inputs:   inputs,
		Opener:   opener,
		Renderer: renderer,
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)
	return a
}

func assertNoOverlap(t *testing.T, records []OutputRecord) {
	t.Helper()
	bySource := map[string][]history.Interval{}
	for _, rec := range records {
		for _, seg := range rec.Segments {
			bySource[seg.Source] = append(bySource[seg.Source], history.Interval{Start: seg.Start, End: seg.End})
		}
	}
	for source, segs := range bySource {
		sort.Slice(segs, func(i, j int) bool { return segs[i].Start < segs[j].Start })
		for i := 1; i < len(segs); i++ {
			assert.LessOrEqual(t, segs[i-1].End, segs[i].Start, "segments of %s overlap", source)
		}
	}
}

func TestRunTwoClipsHitsTargetDuration(t *testing.T) {
	cfg := testConfig(t, 1)
	renderer := &fakeRenderer{}
	a := newTestAssembler(t, cfg, sources(map[string]float64{"a.mp4": 20, "b.mp4": 20}), renderer, "a.mp4", "b.mp4")

	paths, err := a.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.FileExists(t, paths[0])
	assert.Equal(t, filepath.Join(cfg.Output.Dir, "scrambled_video_1.mp4"), paths[0])

	require.Len(t, renderer.concats, 1)
	assert.InDelta(t, config.TargetDuration, renderer.renderedDuration(0), config.DurationTolerance)

	records := a.Records()
	require.Len(t, records, 1)
	assert.GreaterOrEqual(t, len(records[0].Segments), config.DefaultMinClips)
	assert.LessOrEqual(t, len(records[0].Segments), config.DefaultMaxClips)
	assert.Equal(t, "primary", records[0].Attempt)
	assertNoOverlap(t, records)
}

func TestRunSeedsAreReproducible(t *testing.T) {
	run := func() []OutputRecord {
		cfg := testConfig(t, 2)
		a := newTestAssembler(t, cfg, sources(map[string]float64{"a.mp4": 30, "b.mp4": 25}), &fakeRenderer{}, "a.mp4", "b.mp4")
		_, err := a.Run(context.Background())
		require.NoError(t, err)
		return a.Records()
	}

	first, second := run(), run()
	require.Len(t, first, len(second))
	for i := range first {
		assert.Equal(t, first[i].Segments, second[i].Segments)
	}
}

func TestRunSingleShortClip(t *testing.T) {
	cfg := testConfig(t, 3)
	a := newTestAssembler(t, cfg, sources(map[string]float64{"short.mp4": 5}), &fakeRenderer{}, "short.mp4")

	paths, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, paths)
	assert.LessOrEqual(t, len(paths), 3)
	assertNoOverlap(t, a.Records())
}

func TestRunSegmentsNeverOverlapAcrossOutputs(t *testing.T) {
	cfg := testConfig(t, 3)
	opener := sources(map[string]float64{"a.mp4": 30, "b.mp4": 30, "c.mp4": 30})
	a := newTestAssembler(t, cfg, opener, &fakeRenderer{}, "a.mp4", "b.mp4", "c.mp4")

	paths, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, paths, 3)
	assertNoOverlap(t, a.Records())

	for _, src := range opener.Sources {
		assert.True(t, src.Closed())
	}
}

func TestRunNoInputs(t *testing.T) {
	a := newTestAssembler(t, testConfig(t, 1), sources(nil), &fakeRenderer{})

	paths, err := a.Run(context.Background())
	assert.ErrorIs(t, err, ErrNoInputs)
	assert.Empty(t, paths)
}

func TestRunNoUsableInputs(t *testing.T) {
	opener := sources(map[string]float64{"tiny.mp4": 0.2})
	opener.Fail = map[string]error{"broken.mp4": errors.New("corrupt")}
	a := newTestAssembler(t, testConfig(t, 1), opener, &fakeRenderer{}, "broken.mp4", "tiny.mp4", "missing.mp4")

	paths, err := a.Run(context.Background())
	assert.ErrorIs(t, err, ErrNoUsableInputs)
	assert.Empty(t, paths)
	assert.True(t, opener.Sources["tiny.mp4"].Closed())
}

func TestRunSkipsUnreadableInputs(t *testing.T) {
	opener := sources(map[string]float64{"good.mp4": 40})
	opener.Fail = map[string]error{"bad.mp4": errors.New("corrupt")}

	var messages []string
	a, err := NewAssembler(Options{
		Config:   testConfig(t, 1),
		Inputs:   []string{"bad.mp4", "good.mp4"},
		Opener:   opener,
		Renderer: &fakeRenderer{},
		Progress: func(_ int, msg string) { messages = append(messages, msg) },
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)

	paths, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, paths, 1)
	assert.Contains(t, messages, "Skipping bad.mp4: corrupt")
}

func TestRunProgressIsMonotonic(t *testing.T) {
	var percents []int
	a, err := NewAssembler(Options{
		Config:   testConfig(t, 2),
		Inputs:   []string{"a.mp4", "b.mp4"},
		Opener:   sources(map[string]float64{"a.mp4": 30, "b.mp4": 30}),
		Renderer: &fakeRenderer{},
		Progress: func(p int, _ string) { percents = append(percents, p) },
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)

	_, err = a.Run(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, percents)
	assert.Equal(t, 0, percents[0])
	assert.Equal(t, 100, percents[len(percents)-1])
	assert.True(t, sort.IntsAreSorted(percents))
}

func TestRunEncodeFallback(t *testing.T) {
	renderer := &fakeRenderer{
		failEncode: func(s media.EncodeSettings) error {
			if s.VideoBitrate != "" {
				return errors.New("bitrate not supported")
			}
			return nil
		},
	}
	a := newTestAssembler(t, testConfig(t, 1), sources(map[string]float64{"a.mp4": 40}), renderer, "a.mp4")

	paths, err := a.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, paths, 1)

	require.Len(t, renderer.encodes, 2)
	assert.Equal(t, "2M", renderer.encodes[0].settings.VideoBitrate)
	assert.Equal(t, media.FallbackEncodeSettings(), renderer.encodes[1].settings)
	assert.Equal(t, "fallback", a.Records()[0].Attempt)
}

func TestRunEncodeFailureSkipsOutput(t *testing.T) {
	cfg := testConfig(t, 2)
	renderer := &fakeRenderer{
		failEncode: func(media.EncodeSettings) error { return errors.New("encoder missing") },
	}
	a := newTestAssembler(t, cfg, sources(map[string]float64{"a.mp4": 60}), renderer, "a.mp4")

	paths, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, paths)
	assert.Len(t, renderer.encodes, 4)
	assert.FileExists(t, ManifestPath(cfg.Output.Dir, cfg.Output.Prefix))
}

func TestRunConcatFailureSkipsOutput(t *testing.T) {
	renderer := &fakeRenderer{failConcat: errors.New("concat failed")}
	a := newTestAssembler(t, testConfig(t, 1), sources(map[string]float64{"a.mp4": 40}), renderer, "a.mp4")

	paths, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, paths)
	assert.Empty(t, renderer.encodes)
}

func TestRunEffectFailureRetriesPlain(t *testing.T) {
	cfg := testConfig(t, 1)
	cfg.Effects.Enabled = true
	cfg.Effects.Probability = 1
	renderer := &fakeRenderer{
		failExtract: func(job media.SegmentJob) error {
			if job.Effect != media.EffectNone {
				return errors.New("filter not found")
			}
			return nil
		},
	}
	a := newTestAssembler(t, cfg, sources(map[string]float64{"a.mp4": 30, "b.mp4": 30}), renderer, "a.mp4", "b.mp4")

	paths, err := a.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, paths, 1)

	records := a.Records()
	require.NotEmpty(t, records[0].Segments)
	for _, seg := range records[0].Segments {
		assert.Equal(t, media.EffectNone, seg.Effect)
	}

	require.Len(t, renderer.concats, 1)
	assert.Equal(t, config.FadeDuration, renderer.concats[0].FadeIn)
	assert.Equal(t, config.FadeDuration, renderer.concats[0].FadeOut)
	assert.Len(t, renderer.concats[0].Inputs, len(records[0].Segments))
}

func TestRunDropsSegmentsThatFailToExtract(t *testing.T) {
	calls := 0
	renderer := &fakeRenderer{
		failExtract: func(media.SegmentJob) error {
			calls++
			if calls == 1 {
				return errors.New("seek failed")
			}
			return nil
		},
	}
	a := newTestAssembler(t, testConfig(t, 1), sources(map[string]float64{"a.mp4": 30, "b.mp4": 30}), renderer, "a.mp4", "b.mp4")

	paths, err := a.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Len(t, a.Records()[0].Segments, len(renderer.extracts)-1)
}

func TestRunTextAndAudio(t *testing.T) {
	cfg := testConfig(t, 1)
	cfg.Text.Enabled = true
	cfg.Text.Content = "HELLO"
	cfg.Audio.Paths = []string{"music.mp3"}
	renderer := &fakeRenderer{}
	a := newTestAssembler(t, cfg, sources(map[string]float64{"a.mp4": 40}), renderer, "a.mp4")

	paths, err := a.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Equal(t, 1, renderer.overlays)
	assert.Equal(t, 1, renderer.audioMixs)
	assert.Equal(t, "audio.mp4", filepath.Base(renderer.encodes[0].input))
}

func TestRunTextAndAudioFailuresKeepOutput(t *testing.T) {
	cfg := testConfig(t, 1)
	cfg.Text.Enabled = true
	cfg.Text.Content = "HELLO"
	cfg.Audio.Paths = []string{"music.mp3"}
	renderer := &fakeRenderer{
		failOverlay: errors.New("overlay failed"),
		failAudio:   errors.New("audio failed"),
	}
	a := newTestAssembler(t, cfg, sources(map[string]float64{"a.mp4": 40}), renderer, "a.mp4")

	paths, err := a.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Equal(t, "joined.mp4", filepath.Base(renderer.encodes[0].input))
}

func TestRunWritesManifest(t *testing.T) {
	cfg := testConfig(t, 2)
	cfg.Output.Prefix = "my remix"
	a := newTestAssembler(t, cfg, sources(map[string]float64{"a.mp4": 30, "b.mp4": 30}), &fakeRenderer{}, "a.mp4", "b.mp4")

	paths, err := a.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, paths, 2)
	assert.Equal(t, "my_remix_2.mp4", filepath.Base(paths[1]))

	data, err := os.ReadFile(filepath.Join(cfg.Output.Dir, "my_remix_manifest.yaml"))
	require.NoError(t, err)

	var m struct {
		BatchID  string `yaml:"batch_id"`
		Seed     uint64 `yaml:"seed"`
		Platform string `yaml:"platform"`
		Outputs  []struct {
			Path     string `yaml:"path"`
			Segments []struct {
				Source string `yaml:"source"`
				Effect string `yaml:"effect"`
			} `yaml:"segments"`
		} `yaml:"outputs"`
	}
	require.NoError(t, yaml.Unmarshal(data, &m))
	assert.Equal(t, a.BatchID(), m.BatchID)
	assert.Equal(t, uint64(42), m.Seed)
	assert.Equal(t, "tiktok", m.Platform)
	require.Len(t, m.Outputs, 2)
	assert.Equal(t, paths[0], m.Outputs[0].Path)
	require.NotEmpty(t, m.Outputs[0].Segments)
	assert.Equal(t, "none", m.Outputs[0].Segments[0].Effect)
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	renderer := &fakeRenderer{}
	a := newTestAssembler(t, testConfig(t, 2), sources(map[string]float64{"a.mp4": 30}), renderer, "a.mp4")

	paths, err := a.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, paths)
	assert.Empty(t, renderer.extracts)
}

func TestRunRankedCandidates(t *testing.T) {
	cfg := testConfig(t, 1)
	cfg.Selection.RankCandidates = true
	opener := sources(map[string]float64{"a.mp4": 30, "b.mp4": 30})
	for i, src := range []*mediatest.Source{opener.Sources["a.mp4"], opener.Sources["b.mp4"]} {
		seed := uint32(i + 1)
		src.Frames = func(at float64) image.Image {
			return mediatest.Noise(64, 112, seed+uint32(at*10))
		}
	}
	a := newTestAssembler(t, cfg, opener, &fakeRenderer{}, "a.mp4", "b.mp4")

	paths, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, paths, 1)
	assertNoOverlap(t, a.Records())
	assert.Positive(t, opener.Sources["a.mp4"].FrameCalls())
}

func TestRunOverlapFallbackFillsExhaustedClip(t *testing.T) {
	cfg := testConfig(t, 3)
	cfg.Selection.AllowOverlapFallback = true
	renderer := &fakeRenderer{}
	a := newTestAssembler(t, cfg, sources(map[string]float64{"short.mp4": 5}), renderer, "short.mp4")

	paths, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, paths, 3)
	for i := range renderer.concats {
		assert.InDelta(t, config.TargetDuration, renderer.renderedDuration(i), config.DurationTolerance)
	}
}

type shortPlatform struct {
	platform.Platform
}

func (shortPlatform) GetMaxDuration() int { return 10 }

func TestNewAssemblerRejectsShortPlatform(t *testing.T) {
	tiktok, err := platform.Get("tiktok")
	require.NoError(t, err)

	_, err = NewAssembler(Options{
		Config:   testConfig(t, 1),
		Opener:   sources(nil),
		Renderer: &fakeRenderer{},
		Platform: shortPlatform{tiktok},
	})
	assert.Error(t, err)
}

func TestNewAssemblerValidatesConfig(t *testing.T) {
	cfg := testConfig(t, 0)
	_, err := NewAssembler(Options{Config: cfg, Opener: sources(nil), Renderer: &fakeRenderer{}})
	assert.ErrorIs(t, err, config.ErrInvalid)

	cfg = testConfig(t, 1)
	cfg.Output.Platform = "myspace"
	_, err = NewAssembler(Options{Config: cfg, Opener: sources(nil), Renderer: &fakeRenderer{}})
	assert.Error(t, err)
}

func TestChooseEffect(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))

	for i := 0; i < 100; i++ {
		assert.Equal(t, media.EffectNone, chooseEffect(rng, false, 1))
		assert.Equal(t, media.EffectNone, chooseEffect(rng, true, 0))
	}

	counts := map[media.Effect]int{}
	const n = 20000
	for i := 0; i < n; i++ {
		counts[chooseEffect(rng, true, 1)]++
	}
	assert.InDelta(t, 0.4, float64(counts[media.EffectColorBoost])/n, 0.02)
	assert.InDelta(t, 0.2, float64(counts[media.EffectFadeIn])/n, 0.02)
	assert.InDelta(t, 0.4, float64(counts[media.EffectNone])/n, 0.02)
}

func TestDrawStartIsLengthWeighted(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	ranges := []history.Interval{{Start: 0, End: 1}, {Start: 10, End: 13}}

	second := 0
	const n = 10000
	for i := 0; i < n; i++ {
		s := drawStart(rng, ranges)
		inFirst := s >= 0 && s <= 1
		inSecond := s >= 10 && s <= 13
		require.True(t, inFirst || inSecond, "start %.3f outside ranges", s)
		if inSecond {
			second++
		}
	}
	assert.InDelta(t, 0.75, float64(second)/n, 0.02)

	assert.Equal(t, 4.0, drawStart(rng, []history.Interval{{Start: 4, End: 4}}))
}

func TestClosingDuration(t *testing.T) {
	a := newTestAssembler(t, testConfig(t, 1), sources(nil), &fakeRenderer{})
	b := slotBounds{count: 8, min: 1.4, max: 2.6}

	assert.Equal(t, 2.6, a.closingDuration(b, 3, 5))
	assert.Equal(t, 1.4, a.closingDuration(b, 3, 0.2))
	assert.InDelta(t, 4.0, a.closingDuration(b, config.DefaultMaxClips-1, 4), 1e-9)
	assert.InDelta(t, 5.2, a.closingDuration(b, config.DefaultMaxClips-1, 9), 1e-9)
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"scrambled_video", "scrambled_video"},
		{"my remix!", "my_remix"},
		{"clip.mp4", "clip"},
		{"a   b", "a_b"},
		{"***", config.DefaultOutputPrefix},
		{"", config.DefaultOutputPrefix},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sanitizeFilename(tt.in), tt.in)
	}
}

func TestEnsureOutputPath(t *testing.T) {
	a := newTestAssembler(t, testConfig(t, 1), sources(nil), &fakeRenderer{})
	dir := filepath.Join(t.TempDir(), "nested")

	got := a.ensureOutputPath(filepath.Join(dir, "out.mov"), "mp4")
	assert.Equal(t, filepath.Join(dir, "out.mp4"), got)
	assert.DirExists(t, dir)
}
