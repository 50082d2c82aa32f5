package gpu

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gekko3d/particles"

	"github.com/cogentcore/webgpu/wgpu"
)

var (
	ErrNoAdapter   = errors.New("no compatible GPU adapter")
	ErrNoDevice    = errors.New("failed to open GPU device")
	ErrNoFormat    = errors.New("surface reports no supported formats")
	ErrInvalidSize = errors.New("surface size must be non-zero")

	ErrSurfaceLost     = errors.New("surface lost")
	ErrSurfaceOutdated = errors.New("surface outdated")
	ErrSurfaceTimeout  = errors.New("surface timeout")
	ErrOutOfMemory     = errors.New("out of memory")
	ErrDeviceLost      = errors.New("device lost")
)

// SurfaceConfig is the part of the swapchain configuration the pipeline depends on.
type SurfaceConfig struct {
	Format      wgpu.TextureFormat
	Width       uint32
	Height      uint32
	PresentMode wgpu.PresentMode
}

// Frame is one acquired swapchain image. Release it after Present.
type Frame struct {
	Texture *wgpu.Texture
	View    *wgpu.TextureView
}

func (f *Frame) Release() {
	if f == nil {
		return
	}
	if f.View != nil {
		f.View.Release()
	}
	if f.Texture != nil {
		f.Texture.Release()
	}
}

// SurfaceManager owns the device/queue/surface triple and the surface configuration.
type SurfaceManager struct {
	Instance *wgpu.Instance
	Adapter  *wgpu.Adapter
	Device   *wgpu.Device
	Queue    *wgpu.Queue
	Surface  *wgpu.Surface

	config    *wgpu.SurfaceConfiguration
	configure func(cfg *wgpu.SurfaceConfiguration)
	logger    particles.Logger
}

func NewSurfaceManager(desc *wgpu.SurfaceDescriptor, width, height uint32, logger particles.Logger) (*SurfaceManager, error) {
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	m := &SurfaceManager{logger: particles.OrNop(logger)}

	m.Instance = wgpu.CreateInstance(nil)
	m.Surface = m.Instance.CreateSurface(desc)

	adapter, err := m.Instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: m.Surface,
		PowerPreference:   wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		m.Release()
		return nil, fmt.Errorf("%w: %v", ErrNoAdapter, err)
	}
	m.Adapter = adapter

	device, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Particles Device",
	})
	if err != nil {
		m.Release()
		return nil, fmt.Errorf("%w: %v", ErrNoDevice, err)
	}
	m.Device = device
	m.Queue = device.GetQueue()

	caps := m.Surface.GetCapabilities(adapter)
	format, err := SelectFormat(caps.Formats)
	if err != nil {
		m.Release()
		return nil, err
	}
	var alphaMode wgpu.CompositeAlphaMode
	if len(caps.AlphaModes) > 0 {
		alphaMode = caps.AlphaModes[0]
	}

	m.config = &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      format,
		Width:       width,
		Height:      height,
		PresentMode: wgpu.PresentModeFifo,
		AlphaMode:   alphaMode,
	}
	m.configure = func(cfg *wgpu.SurfaceConfiguration) {
		m.Surface.Configure(m.Adapter, m.Device, cfg)
	}
	m.configure(m.config)

	m.logger.Infof("Surface configured: format=%v size=%dx%d present=fifo", format, width, height)
	return m, nil
}

// SelectFormat prefers an sRGB format and falls back to the first one reported.
func SelectFormat(formats []wgpu.TextureFormat) (wgpu.TextureFormat, error) {
	if len(formats) == 0 {
		return wgpu.TextureFormat(0), ErrNoFormat
	}
	for _, f := range formats {
		if IsSrgb(f) {
			return f, nil
		}
	}
	return formats[0], nil
}

func IsSrgb(f wgpu.TextureFormat) bool {
	switch f {
	case wgpu.TextureFormatRGBA8UnormSrgb, wgpu.TextureFormatBGRA8UnormSrgb:
		return true
	}
	return false
}

func (m *SurfaceManager) Config() SurfaceConfig {
	return SurfaceConfig{
		Format:      m.config.Format,
		Width:       m.config.Width,
		Height:      m.config.Height,
		PresentMode: m.config.PresentMode,
	}
}

func (m *SurfaceManager) Size() (uint32, uint32) {
	return m.config.Width, m.config.Height
}

// Resize reconfigures the surface, even when the size is unchanged (surface-lost recovery).
// A zero dimension is ignored and the previous configuration kept; the return value reports
// whether the surface was reconfigured.
func (m *SurfaceManager) Resize(width, height uint32) bool {
	if width == 0 || height == 0 {
		return false
	}
	m.config.Width = width
	m.config.Height = height
	m.configure(m.config)
	m.logger.Debugf("Surface reconfigured to %dx%d", width, height)
	return true
}

// Acquire returns the next presentable image. Errors wrap one of the ErrSurface*/ErrOutOfMemory/ErrDeviceLost sentinels.
func (m *SurfaceManager) Acquire() (*Frame, error) {
	texture, err := m.Surface.GetCurrentTexture()
	if err != nil {
		return nil, ClassifySurfaceError(err)
	}
	view, err := texture.CreateView(nil)
	if err != nil {
		texture.Release()
		return nil, fmt.Errorf("failed to create swapchain view: %w", err)
	}
	return &Frame{Texture: texture, View: view}, nil
}

func (m *SurfaceManager) Present() {
	m.Surface.Present()
}

func (m *SurfaceManager) Release() {
	if m.Queue != nil {
		m.Queue.Release()
		m.Queue = nil
	}
	if m.Device != nil {
		m.Device.Release()
		m.Device = nil
	}
	if m.Adapter != nil {
		m.Adapter.Release()
		m.Adapter = nil
	}
	if m.Surface != nil {
		m.Surface.Release()
		m.Surface = nil
	}
	if m.Instance != nil {
		m.Instance.Release()
		m.Instance = nil
	}
}

// surfaceStatusPrefix precedes the status name in GetCurrentTexture errors.
const surfaceStatusPrefix = "surface status "

// Ordered so device-lost is tried before lost.
var surfaceStatusErrors = []struct {
	status wgpu.SurfaceGetCurrentTextureStatus
	err    error
}{
	{wgpu.SurfaceGetCurrentTextureStatusDeviceLost, ErrDeviceLost},
	{wgpu.SurfaceGetCurrentTextureStatusOutOfMemory, ErrOutOfMemory},
	{wgpu.SurfaceGetCurrentTextureStatusLost, ErrSurfaceLost},
	{wgpu.SurfaceGetCurrentTextureStatusOutdated, ErrSurfaceOutdated},
	{wgpu.SurfaceGetCurrentTextureStatusTimeout, ErrSurfaceTimeout},
}

// ClassifySurfaceError maps the texture-acquire status reported by wgpu onto a sentinel.
// The binding only exposes the status through the error text, which ends in
// "surface status <name>". Unrecognized errors are returned unchanged.
func ClassifySurfaceError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	for _, s := range surfaceStatusErrors {
		if strings.HasSuffix(msg, surfaceStatusPrefix+s.status.String()) {
			return fmt.Errorf("%w: %v", s.err, err)
		}
	}
	return err
}

// IsFatal reports errors the frame loop must not try to recover from.
func IsFatal(err error) bool {
	return errors.Is(err, ErrOutOfMemory) || errors.Is(err, ErrDeviceLost)
}
