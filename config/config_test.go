// SPDX-FileCopyrightText: 2025 The gorocml Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"strings"
	"testing"

	"github.com/alecthomas/kingpin/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/utils/ptr"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, "/sys", cfg.Host.SysFS)
	assert.Empty(t, cfg.ROCm.Path)
	assert.Empty(t, cfg.ROCm.LibraryPath)
	assert.Equal(t, ptr.To(false), cfg.Dev.FakeSMI.Enabled)
	assert.Equal(t, 1, cfg.Dev.FakeSMI.DeviceCount)
}

func TestLoadYAML(t *testing.T) {
	yamlData := `
log:
  level: debug
  format: json
rocm:
  path: /tmp
dev:
  fake-smi:
    enabled: true
    deviceCount: 4
`
	cfg, err := Load(strings.NewReader(yamlData))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "/tmp", cfg.ROCm.Path)
	assert.Equal(t, ptr.To(true), cfg.Dev.FakeSMI.Enabled)
	assert.Equal(t, 4, cfg.Dev.FakeSMI.DeviceCount)

	// Defaults survive partial files
	assert.Equal(t, "/sys", cfg.Host.SysFS)
}

func TestLoadInvalidYAML(t *testing.T) {
	_, err := Load(strings.NewReader("log: ["))
	assert.Error(t, err)
}

func TestLoadSanitizes(t *testing.T) {
	yamlData := `
log:
  level: "  debug  "
  format: " text "
`
	cfg, err := Load(strings.NewReader(yamlData))
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{{
		name:   "default config is valid",
		mutate: func(cfg *Config) {},
	}, {
		name:    "bad log level",
		mutate:  func(cfg *Config) { cfg.Log.Level = "trace" },
		wantErr: "invalid log level",
	}, {
		name:    "bad log format",
		mutate:  func(cfg *Config) { cfg.Log.Format = "xml" },
		wantErr: "invalid log format",
	}, {
		name:    "unreadable rocm path",
		mutate:  func(cfg *Config) { cfg.ROCm.Path = "/does/not/exist" },
		wantErr: "invalid rocm path",
	}, {
		name:    "unreadable library path",
		mutate:  func(cfg *Config) { cfg.ROCm.LibraryPath = "/does/not/exist/libamd_smi.so" },
		wantErr: "unreadable library path",
	}, {
		name:    "negative fake device count",
		mutate:  func(cfg *Config) { cfg.Dev.FakeSMI.DeviceCount = -1 },
		wantErr: "invalid fake-smi device count",
	}}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate(SkipHostValidation)
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestValidateSkips(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Host.SysFS = "/does/not/exist"
	cfg.ROCm.Path = "/also/missing"

	assert.Error(t, cfg.Validate(SkipROCmValidation))
	assert.Error(t, cfg.Validate(SkipHostValidation))
	assert.NoError(t, cfg.Validate(SkipHostValidation, SkipROCmValidation))
}

func TestRegisterFlagsOverridesConfig(t *testing.T) {
	app := kingpin.New("test", "")
	updater := RegisterFlags(app)

	_, err := app.Parse([]string{
		"--log.level=error",
		"--rocm.path=/tmp",
	})
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.Log.Level = "debug" // pretend the config file set this
	require.NoError(t, updater(cfg))

	// flags that were set override the file
	assert.Equal(t, "error", cfg.Log.Level)
	assert.Equal(t, "/tmp", cfg.ROCm.Path)
	// flags that were not set leave the file values alone
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestRegisterFlagsUnsetLeavesDefaults(t *testing.T) {
	app := kingpin.New("test", "")
	updater := RegisterFlags(app)

	_, err := app.Parse([]string{})
	require.NoError(t, err)

	cfg := DefaultConfig()
	require.NoError(t, updater(cfg))
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestString(t *testing.T) {
	cfg := DefaultConfig()
	out := cfg.String()
	assert.Contains(t, out, "level: info")
	assert.Contains(t, out, "sysfs: /sys")
}
