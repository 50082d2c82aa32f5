package app

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/gekko3d/particles"
	"github.com/gekko3d/particles/particlert/rt/core"
	"github.com/gekko3d/particles/particlert/rt/gpu"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSurface struct {
	width, height uint32
	format        wgpu.TextureFormat

	acquireErrs []error // consumed one per Acquire
	resizes     [][2]uint32
	acquired    int
	presented   int
}

func (s *fakeSurface) Size() (uint32, uint32) { return s.width, s.height }

func (s *fakeSurface) Resize(w, h uint32) bool {
	if w == 0 || h == 0 {
		return false
	}
	s.width, s.height = w, h
	s.resizes = append(s.resizes, [2]uint32{w, h})
	return true
}

func (s *fakeSurface) Config() gpu.SurfaceConfig {
	return gpu.SurfaceConfig{Format: s.format, Width: s.width, Height: s.height, PresentMode: wgpu.PresentModeFifo}
}

func (s *fakeSurface) Acquire() (*gpu.Frame, error) {
	s.acquired++
	if len(s.acquireErrs) > 0 {
		err := s.acquireErrs[0]
		s.acquireErrs = s.acquireErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &gpu.Frame{}, nil
}

func (s *fakeSurface) Present() { s.presented++ }

type fakeRenderer struct {
	uploads      int
	lastUpload   []core.ParticleInstance
	reconfigured []gpu.SurfaceConfig
	overlays     int
	lastOverlay  int
	draws        int
	released     bool
	drawErr      error
}

func (r *fakeRenderer) Upload(instances []core.ParticleInstance) error {
	r.uploads++
	r.lastUpload = append(r.lastUpload[:0], instances...)
	return nil
}

func (r *fakeRenderer) Reconfigure(cfg gpu.SurfaceConfig) error {
	r.reconfigured = append(r.reconfigured, cfg)
	return nil
}

func (r *fakeRenderer) SetOverlay(vertices []core.TextVertex) error {
	r.overlays++
	r.lastOverlay = len(vertices)
	return nil
}

func (r *fakeRenderer) Draw(frame *gpu.Frame) error {
	r.draws++
	return r.drawErr
}

func (r *fakeRenderer) Release() { r.released = true }

func newTestApp(t *testing.T, count int) (*App, *fakeSurface, *fakeRenderer) {
	t.Helper()
	cfg := particles.DefaultConfig()
	cfg.Simulation.Particles = count

	a := NewApp(cfg, particles.NewNopLogger())
	store, err := a.newStore(800, 600)
	require.NoError(t, err)

	surface := &fakeSurface{width: 800, height: 600, format: wgpu.TextureFormatBGRA8UnormSrgb}
	renderer := &fakeRenderer{}
	a.attach(surface, renderer, store)
	return a, surface, renderer
}

func TestAppImplementsCollaborators(t *testing.T) {
	var _ FrameSurface = (*gpu.SurfaceManager)(nil)
	var _ FrameRenderer = (*gpu.ParticleRenderer)(nil)
}

func TestUpdateIntegratesAndUploads(t *testing.T) {
	a, _, r := newTestApp(t, 100)
	before := a.Store.At(0)

	require.NoError(t, a.Update(0.016))
	assert.Equal(t, 1, r.uploads)
	require.Len(t, r.lastUpload, 100)
	assert.NotEqual(t, before.Position, a.Store.At(0).Position)

	p := a.Store.At(0)
	assert.Equal(t, [2]float32{p.Position.X(), p.Position.Y()}, r.lastUpload[0].Position)
	assert.Equal(t, p.Color, r.lastUpload[0].Color)

	require.NoError(t, a.Update(0.016))
	assert.Equal(t, 100, cap(a.instances), "instance slice must be reused")
}

func TestRenderSuccess(t *testing.T) {
	a, s, r := newTestApp(t, 10)
	require.NoError(t, a.Update(0.016))
	require.NoError(t, a.Render())

	assert.Equal(t, 1, s.acquired)
	assert.Equal(t, 1, r.draws)
	assert.Equal(t, 1, s.presented)
	assert.Empty(t, s.resizes)
}

func TestRenderRecoversLostSurface(t *testing.T) {
	a, s, r := newTestApp(t, 10)
	s.acquireErrs = []error{fmt.Errorf("%w: Lost", gpu.ErrSurfaceLost)}

	require.NoError(t, a.Render())
	assert.Equal(t, 0, r.draws, "no draw on the tick the surface was lost")
	assert.Equal(t, 0, s.presented)
	assert.Equal(t, [][2]uint32{{800, 600}}, s.resizes)
	require.Len(t, r.reconfigured, 1)
	assert.Equal(t, uint32(800), r.reconfigured[0].Width)
	assert.Equal(t, 1, a.Recoveries)

	require.NoError(t, a.Render())
	assert.Equal(t, 1, r.draws)
}

func TestRenderFatalErrors(t *testing.T) {
	for _, sentinel := range []error{gpu.ErrOutOfMemory, gpu.ErrDeviceLost} {
		a, s, r := newTestApp(t, 10)
		s.acquireErrs = []error{fmt.Errorf("%w: acquire", sentinel)}

		err := a.Render()
		require.Error(t, err)
		assert.ErrorIs(t, err, sentinel)
		assert.True(t, gpu.IsFatal(err))
		assert.Equal(t, 0, r.draws)
	}
}

// bindingError is what *gpu.SurfaceManager.Acquire returns for a failed status.
func bindingError(status wgpu.SurfaceGetCurrentTextureStatus) error {
	return gpu.ClassifySurfaceError(errors.New("wgpu.(*Surface).GetCurrentTexture(): surface status " + status.String()))
}

func TestRenderHandlesBindingStatuses(t *testing.T) {
	a, s, r := newTestApp(t, 10)
	s.acquireErrs = []error{
		bindingError(wgpu.SurfaceGetCurrentTextureStatusLost),
		bindingError(wgpu.SurfaceGetCurrentTextureStatusTimeout),
		bindingError(wgpu.SurfaceGetCurrentTextureStatusOutdated),
	}
	for i := 0; i < 3; i++ {
		require.NoError(t, a.Render())
	}
	assert.Equal(t, 1, a.Recoveries)
	assert.Equal(t, 2, a.SkippedFrames)
	assert.Equal(t, [][2]uint32{{800, 600}}, s.resizes)
	assert.Equal(t, 1, a.Profiler.Counts["recoveries"])
	assert.Equal(t, 2, a.Profiler.Counts["skipped"])
	assert.Equal(t, 0, r.draws)

	for _, status := range []wgpu.SurfaceGetCurrentTextureStatus{
		wgpu.SurfaceGetCurrentTextureStatusOutOfMemory,
		wgpu.SurfaceGetCurrentTextureStatusDeviceLost,
	} {
		s.acquireErrs = []error{bindingError(status)}
		err := a.Render()
		require.Error(t, err, status.String())
		assert.True(t, gpu.IsFatal(err), status.String())
	}
	assert.Equal(t, 1, a.Recoveries, "device-lost must not be treated as a lost surface")
}

func TestRenderSkipsTransientErrors(t *testing.T) {
	a, s, r := newTestApp(t, 10)
	s.acquireErrs = []error{
		fmt.Errorf("%w: Timeout", gpu.ErrSurfaceTimeout),
		fmt.Errorf("%w: Outdated", gpu.ErrSurfaceOutdated),
		errors.New("validation error"),
	}

	for i := 0; i < 3; i++ {
		require.NoError(t, a.Render())
	}
	assert.Equal(t, 0, r.draws)
	assert.Equal(t, 3, a.SkippedFrames)
	assert.Empty(t, s.resizes)

	require.NoError(t, a.Render())
	assert.Equal(t, 1, r.draws)
}

func TestRenderDrawFailure(t *testing.T) {
	a, s, r := newTestApp(t, 10)
	r.drawErr = errors.New("encoder finish failed")

	err := a.Render()
	assert.ErrorIs(t, err, r.drawErr)
	assert.Equal(t, 0, s.presented)
}

func TestResizeIsDeferred(t *testing.T) {
	a, s, r := newTestApp(t, 10)

	a.Resize(1024, 768)
	assert.Empty(t, s.resizes, "resize must wait for the frame boundary")
	w, h := s.Size()
	assert.Equal(t, uint32(800), w)
	assert.Equal(t, uint32(600), h)

	require.NoError(t, a.Update(0.016))
	assert.Equal(t, [][2]uint32{{1024, 768}}, s.resizes)
	assert.Len(t, r.lastUpload, a.Store.Len())
	require.Len(t, r.reconfigured, 1)
	assert.Equal(t, uint32(1024), r.reconfigured[0].Width)
	assert.Equal(t, uint32(768), r.reconfigured[0].Height)

	// Applied once only.
	require.NoError(t, a.Render())
	assert.Len(t, s.resizes, 1)
}

func TestResizeCoalesces(t *testing.T) {
	a, s, _ := newTestApp(t, 10)

	a.Resize(1024, 768)
	a.Resize(640, 480)
	require.NoError(t, a.Render())
	assert.Equal(t, [][2]uint32{{640, 480}}, s.resizes)
}

func TestResizeConcurrentWithFrames(t *testing.T) {
	a, s, _ := newTestApp(t, 10)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= 50; i++ {
			a.Resize(400+i, 300+i)
		}
	}()
	for i := 0; i < 50; i++ {
		require.NoError(t, a.Update(0.016))
	}
	wg.Wait()
	require.NoError(t, a.Update(0.016))

	w, h := s.Size()
	assert.Equal(t, uint32(450), w)
	assert.Equal(t, uint32(350), h)
}

func TestInstanceCountStableAcrossResizes(t *testing.T) {
	a, _, r := newTestApp(t, 250)

	sizes := [][2]int{{1024, 768}, {0, 480}, {1, 1}, {3, 3}, {640, 0}, {1920, 1080}, {200, 100}}
	for _, size := range sizes {
		a.Resize(size[0], size[1])
		require.NoError(t, a.Update(0.016))
		require.NoError(t, a.Render())
		assert.Len(t, r.lastUpload, a.Store.Len(), "after resize to %dx%d", size[0], size[1])
		assert.Equal(t, 250, a.Store.Len())
	}
	assert.Equal(t, 250, cap(a.instances))
}

func TestZeroResizeIgnored(t *testing.T) {
	a, s, r := newTestApp(t, 10)

	a.Resize(0, 600)
	a.Resize(800, 0)
	require.NoError(t, a.Update(0.016))
	require.NoError(t, a.Render())

	assert.Empty(t, s.resizes)
	assert.Empty(t, r.reconfigured)
	w, h := s.Size()
	assert.Equal(t, uint32(800), w)
	assert.Equal(t, uint32(600), h)
}

func TestParticlesStayInsideAfterShrink(t *testing.T) {
	a, _, r := newTestApp(t, 500)

	a.Resize(200, 100)
	for i := 0; i < 10; i++ {
		require.NoError(t, a.Update(0.016))
		assert.Len(t, r.lastUpload, a.Store.Len())
	}
	radius := a.Config.Simulation.ParticleSize / 2
	for i := 0; i < a.Store.Len(); i++ {
		p := a.Store.At(i).Position
		assert.GreaterOrEqual(t, p.X(), radius)
		assert.LessOrEqual(t, p.X(), 200-radius)
		assert.GreaterOrEqual(t, p.Y(), radius)
		assert.LessOrEqual(t, p.Y(), 100-radius)
	}
}

func TestCloseStopsFrames(t *testing.T) {
	a, s, r := newTestApp(t, 10)

	a.Close()
	assert.True(t, a.Closed())
	assert.True(t, r.released)

	require.NoError(t, a.Update(0.016))
	require.NoError(t, a.Render())
	assert.Equal(t, 0, r.uploads)
	assert.Equal(t, 0, s.acquired)

	a.Close()
}

func TestUninitializedApp(t *testing.T) {
	a := NewApp(particles.DefaultConfig(), nil)
	assert.ErrorIs(t, a.Update(0.016), ErrNotInitialized)
	assert.ErrorIs(t, a.Render(), ErrNotInitialized)
}

func TestZeroParticles(t *testing.T) {
	a, s, r := newTestApp(t, 0)

	require.NoError(t, a.Update(0.016))
	require.NoError(t, a.Render())
	assert.Empty(t, r.lastUpload)
	assert.Equal(t, 1, s.presented)
}

func TestHUDOverlay(t *testing.T) {
	a, _, r := newTestApp(t, 10)
	a.Text = core.NewDefaultTextRenderer()

	require.NoError(t, a.Update(0.016))
	assert.Equal(t, 1, r.overlays)
	assert.Positive(t, r.lastOverlay)
	assert.Zero(t, r.lastOverlay%6)
	require.Len(t, a.hudItems, len(a.Profiler.Lines()))
	_, lineHeight := a.Text.MeasureText("FPS", 1)
	assert.Equal(t, a.hudItems[0].Position[1]+lineHeight, a.hudItems[1].Position[1])
}

func TestStoreSeedIsDeterministic(t *testing.T) {
	cfg := particles.DefaultConfig()
	cfg.Simulation.Particles = 20
	cfg.Simulation.Seed = 7

	first, err := NewApp(cfg, nil).newStore(800, 600)
	require.NoError(t, err)
	second, err := NewApp(cfg, nil).newStore(800, 600)
	require.NoError(t, err)
	for i := 0; i < first.Len(); i++ {
		assert.Equal(t, first.At(i), second.At(i))
	}
}

func TestProfilerFPS(t *testing.T) {
	p := NewProfiler()
	for i := 0; i < 59; i++ {
		assert.False(t, p.FrameDone(1.0/60))
	}
	assert.True(t, p.FrameDone(1.0/60+0.001))
	assert.InDelta(t, 60, p.FPS, 0.5)

	p.BeginScope("integrate")
	p.EndScope("integrate")
	p.BeginScope("integrate")
	p.SetCount("particles", 5000)
	lines := p.Lines()
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "FPS")
	assert.Contains(t, lines[1], "integrate")
	assert.Contains(t, lines[2], "5000")

	p.AddCount("skipped", 1)
	p.AddCount("skipped", 2)
	assert.Equal(t, 3, p.Counts["skipped"])
	stats := p.GetStatsString()
	assert.Contains(t, stats, "integrate")
	assert.Contains(t, stats, "particles")
	assert.Len(t, strings.Split(stats, "\n"), 4)
}
