// Package config loads blflash settings from a TOML file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/moffa90/go-bflb/bootloader"
	"github.com/moffa90/go-bflb/firmware"
	"github.com/moffa90/go-bflb/protocol"
	"github.com/moffa90/go-bflb/serialport"
)

// Config holds the settings of a flashing session.
type Config struct {
	Port        string
	BaudRate    int
	Timeout     time.Duration
	FlashOffset uint32
	ChunkSize   int
	Verify      bool
	Reset       bool
	BootPins    bool
	LogLevel    string
}

type fileConfig struct {
	Port        string `toml:"port"`
	Baud        int    `toml:"baud"`
	Timeout     string `toml:"timeout"`
	FlashOffset int64  `toml:"flash_offset"`
	ChunkSize   int    `toml:"chunk_size"`
	Verify      bool   `toml:"verify"`
	Reset       bool   `toml:"reset"`
	BootPins    bool   `toml:"boot_pins"`
	LogLevel    string `toml:"log_level"`
}

// Default returns the settings used when no file is given.
func Default() Config {
	return Config{
		BaudRate:    protocol.DefaultBaudRate,
		Timeout:     serialport.DefaultReadTimeout,
		FlashOffset: firmware.DefaultFlashOffset,
		ChunkSize:   firmware.DefaultChunkSize,
		Verify:      true,
		Reset:       true,
		LogLevel:    "info",
	}
}

// Load reads path and overlays the keys it defines on Default.
func Load(path string) (Config, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	return apply(meta, raw)
}

// Parse is Load for in-memory TOML.
func Parse(data string) (Config, error) {
	var raw fileConfig
	meta, err := toml.Decode(data, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return apply(meta, raw)
}

func apply(meta toml.MetaData, raw fileConfig) (Config, error) {
	cfg := Default()

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}

	if meta.IsDefined("port") {
		cfg.Port = strings.TrimSpace(raw.Port)
	}

	if meta.IsDefined("baud") {
		if raw.Baud <= 0 {
			return Config{}, fmt.Errorf("baud must be positive, got %d", raw.Baud)
		}
		cfg.BaudRate = raw.Baud
	}

	if meta.IsDefined("timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Timeout))
		if err != nil {
			return Config{}, fmt.Errorf("parse timeout: %w", err)
		}
		cfg.Timeout = d
	}

	if meta.IsDefined("flash_offset") {
		if raw.FlashOffset < 0 || raw.FlashOffset > 0xFFFFFFFF {
			return Config{}, fmt.Errorf("flash_offset 0x%X out of range", raw.FlashOffset)
		}
		cfg.FlashOffset = uint32(raw.FlashOffset)
	}

	if meta.IsDefined("chunk_size") {
		if raw.ChunkSize < 1 || raw.ChunkSize > bootloader.MaxChunkSize {
			return Config{}, fmt.Errorf("chunk_size must be between 1 and %d, got %d", bootloader.MaxChunkSize, raw.ChunkSize)
		}
		cfg.ChunkSize = raw.ChunkSize
	}

	if meta.IsDefined("verify") {
		cfg.Verify = raw.Verify
	}

	if meta.IsDefined("reset") {
		cfg.Reset = raw.Reset
	}

	if meta.IsDefined("boot_pins") {
		cfg.BootPins = raw.BootPins
	}

	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}

	return cfg, nil
}
