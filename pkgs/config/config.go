// Package config loads the two-layer configuration the CLI and long-running
// controller process share: a global YAML file under the user's home
// directory, plus an optional per-job YAML file in the current working
// directory that overrides tool-table and default-WCS details for one job
// (§4.H). It is purely opaque key/value loading — it never validates G-code.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Connection describes how to reach the machine.
type Connection struct {
	Address string
	Port    uint16
	Kind    string // "tcp" or "serial"
}

// Discovery configures the UDP broadcast query.
type Discovery struct {
	Port      int
	WindowSec int
}

// Transfer configures file-transfer defaults.
type Transfer struct {
	ChecksumMode      string // "crc16" or "sum8"
	CompressThreshold int64  // loaded only; uploads are compressed by ".lz" name or Options.Compress, not by size
}

// Tool is one entry of a job's tool table, mirroring cncstate.ToolOffset's
// shape without importing it (config stays a leaf package).
type Tool struct {
	X, Y, Z float64
}

// Job is read from an optional "job.yaml" in the working directory,
// mirroring the teacher's per-locomotive contextual "loco.json" overlay.
type Job struct {
	DefaultWCS string
	ToolTable  map[int]Tool
}

// Config is the merged global + job-local configuration.
type Config struct {
	Connection Connection
	Discovery  Discovery
	Transfer   Transfer
	Job        Job
}

// Load reads the global configuration (creating it with defaults on first
// run) and merges in a job-local overlay when present. A missing job file is
// not an error; a malformed one is.
func Load() (*Config, error) {
	cfg := Config{}

	global := viper.New()
	global.SetConfigType("yaml")
	global.SetConfigName(".carverarc")
	global.AddConfigPath("$HOME/")
	global.AddConfigPath(".")

	global.SetDefault("connection.address", "192.168.5.1")
	global.SetDefault("connection.port", 2222)
	global.SetDefault("connection.kind", "tcp")
	global.SetDefault("discovery.port", 3333)
	global.SetDefault("discovery.windowsec", 3)
	global.SetDefault("transfer.checksummode", "crc16")
	global.SetDefault("transfer.compressthreshold", 64*1024)
	_ = global.SafeWriteConfig()

	job := viper.New()
	job.SetConfigType("yaml")
	job.SetConfigName("job")
	job.AddConfigPath(".")
	_ = job.ReadInConfig()

	if err := global.ReadInConfig(); err != nil {
		return &Config{}, fmt.Errorf("cannot parse config: %s", err.Error())
	}
	if err := global.Unmarshal(&cfg); err != nil {
		return &cfg, fmt.Errorf("cannot parse config: %s", err.Error())
	}
	if err := job.ReadInConfig(); err != nil {
		// A missing job file is expected outside a job directory.
		if !strings.Contains(err.Error(), "Not Found") {
			return &Config{}, fmt.Errorf("cannot parse job config: %s", err.Error())
		}
	}
	if err := job.Unmarshal(&cfg.Job); err != nil {
		return &cfg, fmt.Errorf("cannot parse job config: %s", err.Error())
	}

	return &cfg, nil
}
