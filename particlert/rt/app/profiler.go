package app

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Profiler records the CPU time of named frame phases, a few counters and the frame rate.
type Profiler struct {
	Scopes     map[string]time.Duration
	StartTimes map[string]time.Time
	Counts     map[string]int
	Order      []string

	FPS       float64
	frames    int
	frameTime time.Duration

	now func() time.Time
}

func NewProfiler() *Profiler {
	return &Profiler{
		Scopes:     make(map[string]time.Duration),
		StartTimes: make(map[string]time.Time),
		Counts:     make(map[string]int),
		Order:      make([]string, 0),
		now:        time.Now,
	}
}

func (p *Profiler) BeginScope(name string) {
	p.StartTimes[name] = p.now()
	for _, n := range p.Order {
		if n == name {
			return
		}
	}
	p.Order = append(p.Order, name)
}

func (p *Profiler) EndScope(name string) {
	if start, ok := p.StartTimes[name]; ok {
		p.Scopes[name] = p.now().Sub(start)
	}
}

func (p *Profiler) SetCount(name string, count int) {
	p.Counts[name] = count
}

func (p *Profiler) AddCount(name string, delta int) {
	p.Counts[name] += delta
}

// FrameDone accumulates one frame of dt seconds and refreshes FPS once a full second has
// been observed. It reports whether FPS was refreshed.
func (p *Profiler) FrameDone(dt float32) bool {
	p.frames++
	p.frameTime += time.Duration(float64(dt) * float64(time.Second))
	if p.frameTime < time.Second {
		return false
	}
	p.FPS = float64(p.frames) / p.frameTime.Seconds()
	p.frames = 0
	p.frameTime = 0
	return true
}

// Lines renders the FPS, the timings in first-seen order and the counters sorted by name.
func (p *Profiler) Lines() []string {
	lines := []string{fmt.Sprintf("FPS: %.1f", p.FPS)}
	for _, name := range p.Order {
		ms := float64(p.Scopes[name].Microseconds()) / 1000.0
		lines = append(lines, fmt.Sprintf("%-10s %.2f ms", name, ms))
	}

	keys := make([]string, 0, len(p.Counts))
	for k := range p.Counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("%-10s %d", k, p.Counts[k]))
	}
	return lines
}

func (p *Profiler) GetStatsString() string {
	return strings.Join(p.Lines(), "\n")
}
