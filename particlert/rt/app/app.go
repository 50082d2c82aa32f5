package app

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"

	"github.com/gekko3d/particles"
	"github.com/gekko3d/particles/particlert/rt/core"
	"github.com/gekko3d/particles/particlert/rt/gpu"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
)

var ErrNotInitialized = errors.New("app is not initialized")

// FrameSurface is the presentation side of a frame. *gpu.SurfaceManager implements it.
type FrameSurface interface {
	Size() (uint32, uint32)
	Resize(width, height uint32) bool
	Config() gpu.SurfaceConfig
	Acquire() (*gpu.Frame, error)
	Present()
}

// FrameRenderer records and submits the particle draw. *gpu.ParticleRenderer implements it.
type FrameRenderer interface {
	Upload(instances []core.ParticleInstance) error
	Reconfigure(cfg gpu.SurfaceConfig) error
	SetOverlay(vertices []core.TextVertex) error
	Draw(frame *gpu.Frame) error
	Release()
}

var (
	hudColor  = [4]float32{1, 1, 0, 1}
	hudOrigin = [2]float32{10, 10}
)

// App drives one simulation step and one frame per tick. Update and Render must be called
// from the same goroutine; Resize and Close may arrive from any goroutine.
type App struct {
	Config particles.Config

	Surface  FrameSurface
	Renderer FrameRenderer
	Store    *core.Store
	Profiler *Profiler

	// Text is non-nil when the HUD is enabled.
	Text *core.TextRenderer

	SkippedFrames int
	Recoveries    int

	logger    particles.Logger
	instances []core.ParticleInstance
	hudItems  []core.TextItem
	manager   *gpu.SurfaceManager

	mu            sync.Mutex
	pendingResize bool
	pendingW      uint32
	pendingH      uint32
	closed        bool
}

func NewApp(cfg particles.Config, logger particles.Logger) *App {
	return &App{
		Config:   cfg,
		Profiler: NewProfiler(),
		logger:   particles.OrNop(logger),
	}
}

// Init opens the GPU surface, spawns the particles and prepares every GPU resource.
func (a *App) Init(desc *wgpu.SurfaceDescriptor, width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", gpu.ErrInvalidSize, width, height)
	}

	manager, err := gpu.NewSurfaceManager(desc, uint32(width), uint32(height), a.logger)
	if err != nil {
		return err
	}

	store, err := a.newStore(float32(width), float32(height))
	if err != nil {
		manager.Release()
		return err
	}

	sim := a.Config.Simulation
	renderer, err := gpu.NewParticleRenderer(manager.Device, manager.Queue, manager.Config(), gpu.ParticleRendererOptions{
		ParticleCount: store.Len(),
		ParticleSize:  sim.ParticleSize,
		ClearColor:    a.Config.Render.ClearColor,
	})
	if err != nil {
		manager.Release()
		return err
	}

	if a.Config.Render.HUD || a.Config.Debug {
		tr, err := a.newTextRenderer()
		if err != nil {
			a.logger.Warnf("HUD disabled: %v", err)
		} else if renderer.Text, err = gpu.NewTextPass(manager.Device, manager.Queue, manager.Config().Format, tr); err != nil {
			a.logger.Warnf("HUD disabled: %v", err)
		} else {
			a.Text = tr
		}
	}

	a.manager = manager
	a.attach(manager, renderer, store)
	a.logger.Infof("Initialized %d particles on a %dx%d surface", store.Len(), width, height)
	return nil
}

func (a *App) attach(surface FrameSurface, renderer FrameRenderer, store *core.Store) {
	a.Surface = surface
	a.Renderer = renderer
	a.Store = store
	a.instances = make([]core.ParticleInstance, 0, store.Len())
	a.Profiler.SetCount("particles", store.Len())
}

func (a *App) newStore(width, height float32) (*core.Store, error) {
	sim := a.Config.Simulation
	params := core.SimParams{
		ParticleSize: sim.ParticleSize,
		Gravity:      mgl32.Vec2{sim.Gravity[0], sim.Gravity[1]},
		Damping:      sim.Damping,
		InitialSpeed: sim.InitialSpeed,
		ColorMin:     sim.ColorMin,
		ColorMax:     sim.ColorMax,
	}
	var rng *rand.Rand
	if sim.Seed != 0 {
		rng = rand.New(rand.NewSource(sim.Seed))
	}
	return core.NewStore(sim.Particles, width, height, params, rng)
}

func (a *App) newTextRenderer() (*core.TextRenderer, error) {
	if a.Config.Render.FontPath == "" {
		return core.NewDefaultTextRenderer(), nil
	}
	return core.NewTextRendererFromFile(a.Config.Render.FontPath, a.Config.Render.FontSize)
}

// Resize records the new framebuffer size. It takes effect at the next Update or Render.
func (a *App) Resize(w, h int) {
	if w <= 0 || h <= 0 {
		return
	}
	a.mu.Lock()
	a.pendingResize = true
	a.pendingW, a.pendingH = uint32(w), uint32(h)
	a.mu.Unlock()
}

// Close stops frame production. GPU work already submitted is left to finish.
func (a *App) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	a.mu.Unlock()

	if a.Renderer != nil {
		a.Renderer.Release()
	}
	if a.manager != nil {
		a.manager.Release()
		a.manager = nil
	}
	a.logger.Infof("Shut down after %d skipped frames and %d surface recoveries", a.SkippedFrames, a.Recoveries)
	if a.logger.DebugEnabled() {
		a.logger.Debugf("Final frame stats:\n%s", a.Profiler.GetStatsString())
	}
}

func (a *App) Closed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}

// frameBoundary applies a deferred resize. It reports false once the app is closed.
func (a *App) frameBoundary() (bool, error) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return false, nil
	}
	pending, w, h := a.pendingResize, a.pendingW, a.pendingH
	a.pendingResize = false
	a.mu.Unlock()

	if a.Surface == nil || a.Renderer == nil || a.Store == nil {
		return false, ErrNotInitialized
	}
	if pending {
		if err := a.reconfigure(w, h); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (a *App) reconfigure(w, h uint32) error {
	if !a.Surface.Resize(w, h) {
		return nil
	}
	if err := a.Renderer.Reconfigure(a.Surface.Config()); err != nil {
		return fmt.Errorf("failed to reconfigure renderer for %dx%d: %w", w, h, err)
	}
	a.logger.Debugf("Reconfigured for %dx%d", w, h)
	return nil
}

// Update advances the simulation by dt seconds and uploads the new instance data.
func (a *App) Update(dt float32) error {
	ok, err := a.frameBoundary()
	if !ok {
		return err
	}

	w, h := a.Surface.Size()
	a.Profiler.BeginScope("integrate")
	a.Store.Integrate(dt, float32(w), float32(h))
	a.instances = a.Store.Project(a.instances)
	a.Profiler.EndScope("integrate")

	a.Profiler.BeginScope("upload")
	err = a.Renderer.Upload(a.instances)
	a.Profiler.EndScope("upload")
	if err != nil {
		return err
	}

	if a.Profiler.FrameDone(dt) {
		a.logger.Debugf("fps=%.1f skipped=%d recoveries=%d", a.Profiler.FPS, a.SkippedFrames, a.Recoveries)
	}
	if a.Text != nil {
		return a.updateHUD(w, h)
	}
	return nil
}

func (a *App) updateHUD(w, h uint32) error {
	a.hudItems = a.hudItems[:0]
	y := hudOrigin[1]
	for _, line := range a.Profiler.Lines() {
		a.hudItems = append(a.hudItems, core.TextItem{
			Text:     line,
			Position: [2]float32{hudOrigin[0], y},
			Scale:    1,
			Color:    hudColor,
		})
		_, lineHeight := a.Text.MeasureText(line, 1)
		y += lineHeight
	}
	return a.Renderer.SetOverlay(a.Text.BuildVertices(a.hudItems, int(w), int(h)))
}

// Render draws and presents one frame. Only fatal errors are returned; a lost surface is
// reconfigured and other acquire failures skip the frame.
func (a *App) Render() error {
	ok, err := a.frameBoundary()
	if !ok {
		return err
	}

	frame, err := a.Surface.Acquire()
	if err != nil {
		return a.handleAcquireError(err)
	}
	defer frame.Release()

	a.Profiler.BeginScope("render")
	err = a.Renderer.Draw(frame)
	a.Profiler.EndScope("render")
	if err != nil {
		return fmt.Errorf("failed to draw frame: %w", err)
	}
	a.Surface.Present()
	return nil
}

func (a *App) handleAcquireError(err error) error {
	switch {
	case gpu.IsFatal(err):
		return fmt.Errorf("failed to acquire frame: %w", err)
	case errors.Is(err, gpu.ErrSurfaceLost):
		a.Recoveries++
		a.Profiler.AddCount("recoveries", 1)
		w, h := a.Surface.Size()
		a.logger.Warnf("Surface lost, reconfiguring at %dx%d", w, h)
		return a.reconfigure(w, h)
	default:
		a.SkippedFrames++
		a.Profiler.AddCount("skipped", 1)
		a.logger.Warnf("Skipping frame: %v", err)
		return nil
	}
}
