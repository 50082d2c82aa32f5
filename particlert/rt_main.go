package main

import (
	"flag"
	"os"
	"runtime"

	"github.com/gekko3d/particles"
	"github.com/gekko3d/particles/particlert/rt/app"

	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"
)

func init() {
	runtime.LockOSThread()
}

func main() {
	configPath := flag.String("config", "", "YAML config file (defaults are used when empty)")
	debug := flag.Bool("debug", false, "Enable debug logging and the stats overlay")
	count := flag.Int("particles", -1, "Override the particle count")
	seed := flag.Int64("seed", 0, "Override the spawn seed (0 keeps the config value)")
	flag.Parse()

	os.Exit(run(*configPath, *debug, *count, *seed))
}

func run(configPath string, debug bool, count int, seed int64) int {
	logger := particles.NewDefaultLogger("particles", debug)
	logger.SetSession(particles.NewSessionID())

	cfg, err := particles.LoadConfig(configPath)
	if err != nil {
		logger.Errorf("%v", err)
		return 1
	}
	if debug {
		cfg.Debug = true
	}
	if count >= 0 {
		cfg.Simulation.Particles = count
	}
	if seed != 0 {
		cfg.Simulation.Seed = seed
	}
	logger.SetDebug(cfg.Debug)

	if err := glfw.Init(); err != nil {
		logger.Errorf("failed to initialize glfw: %v", err)
		return 1
	}
	defer glfw.Terminate()

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	window, err := glfw.CreateWindow(cfg.Window.Width, cfg.Window.Height, cfg.Window.Title, nil, nil)
	if err != nil {
		logger.Errorf("failed to create window: %v", err)
		return 1
	}
	defer window.Destroy()

	application := app.NewApp(cfg, logger)
	width, height := window.GetFramebufferSize()
	if err := application.Init(wgpuglfw.GetSurfaceDescriptor(window), width, height); err != nil {
		logger.Errorf("startup failed: %v", err)
		return 1
	}
	defer application.Close()

	window.SetFramebufferSizeCallback(func(w *glfw.Window, width, height int) {
		application.Resize(width, height)
	})
	window.SetContentScaleCallback(func(w *glfw.Window, x, y float32) {
		application.Resize(w.GetFramebufferSize())
	})
	window.SetKeyCallback(func(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		if key == glfw.KeyEscape && action == glfw.Press {
			w.SetShouldClose(true)
		}
	})

	clock := particles.NewClock(cfg.Simulation.MaxFrameStep)
	for !window.ShouldClose() {
		glfw.PollEvents()

		if err := application.Update(clock.Tick()); err != nil {
			logger.Errorf("update failed: %v", err)
			return 1
		}
		if err := application.Render(); err != nil {
			logger.Errorf("render failed: %v", err)
			return 1
		}
	}
	return 0
}
