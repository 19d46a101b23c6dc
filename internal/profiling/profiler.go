// Package profiling captures pprof data around long-running commands.
//
// A full reindex over a large workspace is the only hot path in
// vibemcp, so profiles wrap a single unit of work rather than a server
// lifetime.
package profiling

import (
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"runtime/trace"
)

// Config selects which profiles a Session captures. An empty path
// disables the corresponding profile.
type Config struct {
	CPUPath   string
	HeapPath  string
	TracePath string
}

// Session captures profiles around one unit of work. Start it before
// the work and Stop it after; both are no-ops when nothing is enabled.
type Session struct {
	cfg Config

	cpuFile   *os.File
	traceFile *os.File
}

// NewSession creates a Session for the requested profiles.
func NewSession(cfg Config) *Session {
	return &Session{cfg: cfg}
}

// Enabled reports whether any profile was requested.
func (s *Session) Enabled() bool {
	return s.cfg.CPUPath != "" || s.cfg.HeapPath != "" || s.cfg.TracePath != ""
}

// Start begins the streaming profiles. If any of them fails to start,
// the ones already running are stopped before returning.
func (s *Session) Start() error {
	if s.cfg.CPUPath != "" {
		f, err := os.Create(s.cfg.CPUPath)
		if err != nil {
			return fmt.Errorf("failed to create CPU profile file: %w", err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			_ = f.Close()
			return fmt.Errorf("failed to start CPU profile: %w", err)
		}
		s.cpuFile = f
	}

	if s.cfg.TracePath != "" {
		f, err := os.Create(s.cfg.TracePath)
		if err != nil {
			s.stopCPU()
			return fmt.Errorf("failed to create trace file: %w", err)
		}
		if err := trace.Start(f); err != nil {
			_ = f.Close()
			s.stopCPU()
			return fmt.Errorf("failed to start trace: %w", err)
		}
		s.traceFile = f
	}

	return nil
}

// Stop flushes the streaming profiles and writes the heap snapshot.
// Calling it again after a successful Stop is a no-op.
func (s *Session) Stop() error {
	s.stopCPU()

	if s.traceFile != nil {
		trace.Stop()
		_ = s.traceFile.Close()
		s.traceFile = nil
	}

	if s.cfg.HeapPath != "" {
		path := s.cfg.HeapPath
		s.cfg.HeapPath = ""
		return WriteHeap(path)
	}

	return nil
}

// stopCPU halts CPU profiling if it is running.
func (s *Session) stopCPU() {
	if s.cpuFile == nil {
		return
	}
	pprof.StopCPUProfile()
	_ = s.cpuFile.Close()
	s.cpuFile = nil
}

// WriteHeap writes a point-in-time heap snapshot to path. It runs a
// garbage collection first so the profile reflects live objects.
func WriteHeap(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create heap profile file: %w", err)
	}
	defer func() { _ = f.Close() }()

	runtime.GC()

	if err := pprof.WriteHeapProfile(f); err != nil {
		return fmt.Errorf("failed to write heap profile: %w", err)
	}

	return nil
}
