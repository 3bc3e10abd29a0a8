// SPDX-FileCopyrightText: 2025 The gorocml Authors
// SPDX-License-Identifier: Apache-2.0

package rocml

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/rocm-tools/gorocml/config"
)

// SMI is a handle-lifecycle session over the AMD SMI library. A single
// SMI may be shared by any number of goroutines; queries are safe to
// run concurrently between Initialize and Shutdown.
//
// Initialize and Shutdown nest: each Initialize must be paired with a
// Shutdown, and queries stay available until the last pair closes. An
// unmatched Shutdown is rejected with ErrUninitialized. The shared
// library itself stays resident for the lifetime of the process even
// after the last Shutdown.
type SMI struct {
	logger *slog.Logger
	lib    smiLib

	// initMu guards the lifecycle fields below. It is never held
	// across a native call.
	initMu      sync.Mutex
	initialized bool
	refcount    int

	// handleMu guards the device handle table. Queries take the read
	// side; populate and clear take the write side.
	handleMu sync.RWMutex
	handles  []Handle
}

// Opts configures a new SMI session.
type Opts struct {
	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// ROCmPath overrides the ROCm install root used to locate
	// libamd_smi.so. Defaults to $ROCM_PATH, then /opt/rocm.
	ROCmPath string

	// LibraryPath, when set, is the full path of the library to load
	// and skips the install-root probe.
	LibraryPath string

	// SysFS is the sysfs mount point used for the amdgpu driver
	// liveness check. Defaults to /sys.
	SysFS string
}

// New creates an SMI session backed by the real AMD SMI library. No
// native code runs until Initialize.
func New(opts Opts) *SMI {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return newSMI(newNativeSMI(opts.Logger, opts.ROCmPath, opts.LibraryPath, opts.SysFS), opts.Logger)
}

func newSMI(lib smiLib, logger *slog.Logger) *SMI {
	return &SMI{
		logger: logger.With("service", "rocml"),
		lib:    lib,
	}
}

// FromConfig builds an SMI session from a loaded configuration,
// including its logging settings. The dev-only fake backend is
// substituted when cfg.Dev.FakeSMI.Enabled is set.
func FromConfig(cfg *config.Config) *SMI {
	logger := newLoggerFromConfig(cfg)
	if cfg.Dev.FakeSMI.Enabled != nil && *cfg.Dev.FakeSMI.Enabled {
		logger.Warn("Using fake AMD SMI backend")
		fake := NewFakeSMI(FakeSMIOpts{DeviceCount: cfg.Dev.FakeSMI.DeviceCount})
		return newSMI(fake, logger)
	}
	return newSMI(newNativeSMI(logger, cfg.ROCm.Path, cfg.ROCm.LibraryPath, cfg.Host.SysFS), logger)
}

func newLoggerFromConfig(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.Log.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

var (
	defaultSMI  *SMI
	defaultOnce sync.Once
)

// Default returns the process-wide session, creating it with default
// options on first use.
func Default() *SMI {
	defaultOnce.Do(func() {
		defaultSMI = New(Opts{})
	})
	return defaultSMI
}

// Initialize loads the AMD SMI library if needed, initializes it for
// AMD GPUs and enumerates the device handles. Pairs with Shutdown.
//
// Device indices are positional: they are assigned in enumeration
// order and may map to different hardware after a Shutdown/Initialize
// cycle if the device set changed in between.
func (s *SMI) Initialize() error {
	if err := s.lib.Load(); err != nil {
		return err
	}

	if st := s.lib.Init(initAMDGPUs); st != StatusSuccess {
		msg := s.lib.StatusString(st)
		if msg == "" {
			msg = st.Message()
		}
		s.logger.Error("AMD SMI initialization failed", "error", msg)
		return fmt.Errorf("%w: %s", ErrInitializationFailed, msg)
	}

	s.populateHandles()

	s.initMu.Lock()
	s.refcount++
	s.initialized = true
	s.initMu.Unlock()
	return nil
}

// Shutdown closes one Initialize pair. The native shutdown runs each
// time; its failure is logged, not returned, and the session still
// unwinds. The handle table is cleared when the last pair closes. A
// Shutdown without a matching successful Initialize is rejected. The
// shared library stays loaded.
func (s *SMI) Shutdown() error {
	s.initMu.Lock()
	if !s.initialized {
		s.initMu.Unlock()
		return ErrUninitialized
	}
	s.refcount--
	last := s.refcount == 0
	s.initialized = !last
	s.initMu.Unlock()

	s.ok("amdsmi_shut_down", s.lib.ShutDown())

	if last {
		s.handleMu.Lock()
		s.handles = nil
		s.handleMu.Unlock()
	}
	return nil
}

// populateHandles discovers all GPU processors, socket by socket. A
// socket whose processor query fails is skipped so one bad socket does
// not hide the rest of the machine.
func (s *SMI) populateHandles() {
	s.handleMu.Lock()
	defer s.handleMu.Unlock()

	if s.handles != nil {
		return
	}

	sockets, st := enumerate(s.lib.SocketHandles)
	if !s.ok("amdsmi_get_socket_handles", st) {
		return
	}
	if len(sockets) == 0 {
		s.logger.Warn("No sockets found")
		return
	}

	handles := []Handle{}
	for i, socket := range sockets {
		procs, st := enumerate(func(count *uint32, buf *Handle) Status {
			return s.lib.ProcessorHandles(socket, count, buf)
		})
		if !s.ok("amdsmi_get_processor_handles", st) {
			s.logger.Warn("Failed to enumerate processors for socket", "socket", i)
			continue
		}
		if len(procs) == 0 {
			s.logger.Warn("No processors found on socket", "socket", i)
			continue
		}
		handles = append(handles, procs...)
		s.logger.Debug("Enumerated socket", "socket", i, "processors", len(procs))
	}

	if len(handles) == 0 {
		s.logger.Warn("No AMD GPU processors found")
	}
	s.handles = handles
	s.logger.Info("Initialized processor handles", "devices", len(handles))
}

// requireInit gates queries on the session lifecycle.
func (s *SMI) requireInit() error {
	s.initMu.Lock()
	defer s.initMu.Unlock()
	if !s.initialized {
		return ErrUninitialized
	}
	return nil
}

// ensureHandles retries enumeration when the handle table is missing,
// so an enumeration failure during Initialize does not pin the session
// at zero devices until the next full lifecycle.
func (s *SMI) ensureHandles() {
	s.handleMu.RLock()
	populated := s.handles != nil
	s.handleMu.RUnlock()
	if !populated {
		s.populateHandles()
	}
}

// handle resolves a device index to its processor handle.
func (s *SMI) handle(dev int) (Handle, error) {
	if err := s.requireInit(); err != nil {
		return 0, err
	}
	s.ensureHandles()
	s.handleMu.RLock()
	defer s.handleMu.RUnlock()
	if dev < 0 || dev >= len(s.handles) {
		return 0, ErrInvalidDeviceIndex{Index: dev, Count: len(s.handles)}
	}
	return s.handles[dev], nil
}

// checkIndex validates a device index without resolving a handle, for
// the legacy index-addressed entry points.
func (s *SMI) checkIndex(dev int) error {
	_, err := s.handle(dev)
	return err
}
