// Package config layers the broadcast daemon's settings from a YAML file,
// environment variables (optionally loaded from a .env file), and finally
// command-line flags, in increasing order of precedence.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/rhizomatica/hermes-broadcast/broadcast"
)

// File is the shape of an optional YAML config file overlay.
type File struct {
	Mode        *int    `yaml:"mode"`
	TXDir       *string `yaml:"tx_dir"`
	RXDir       *string `yaml:"rx_dir"`
	IP          *string `yaml:"ip"`
	Port        *int    `yaml:"port"`
	Verbose     *bool   `yaml:"verbose"`
	MetricsAddr *string `yaml:"metrics_addr"`
	LogFile     *string `yaml:"log_file"`
}

// LoadFile parses a YAML config file. A missing path is not an error: it
// returns a zero File, so the caller's defaults stand.
func LoadFile(path string) (File, error) {
	var f File
	if path == "" {
		return f, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return f, nil
		}
		return f, err
	}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return f, err
	}
	return f, nil
}

// LoadDotEnv loads a .env file into the process environment if present.
// Absence is not an error, matching godotenv's typical optional-overlay use.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	err := godotenv.Load(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// env overlay keys, applied between the YAML file and CLI flags.
const (
	envMode        = "HERMES_BROADCAST_MODE"
	envTXDir       = "HERMES_BROADCAST_TX_DIR"
	envRXDir       = "HERMES_BROADCAST_RX_DIR"
	envIP          = "HERMES_BROADCAST_IP"
	envPort        = "HERMES_BROADCAST_PORT"
	envVerbose     = "HERMES_BROADCAST_VERBOSE"
	envMetricsAddr = "HERMES_BROADCAST_METRICS_ADDR"
	envLogFile     = "HERMES_BROADCAST_LOG_FILE"
)

// Overlay is the fully resolved set of settings, config.File fields
// merged with environment and CLI overrides: a broadcast.Config plus the
// extras broadcast.Config doesn't model (metrics address, log file).
type Overlay struct {
	broadcast.Config
	MetricsAddr string
	LogFile     string
}

// Resolve builds an Overlay starting from broadcast.DefaultConfig, applying
// file in order, then any matching environment variables, then the cli
// fields whose flag names are marked true in cliSet, zero values included
// (cmd/broadcastd tracks which flags were explicitly passed). Resolve does
// not itself try to distinguish a flag's zero value from "not passed".
func Resolve(file File, cli Overlay, cliSet map[string]bool) Overlay {
	o := Overlay{Config: broadcast.DefaultConfig()}

	applyFile(&o, file)
	applyEnv(&o)
	applyCLI(&o, cli, cliSet)

	return o
}

func applyFile(o *Overlay, f File) {
	if f.Mode != nil {
		o.Mode = *f.Mode
	}
	if f.TXDir != nil {
		o.TXDir = *f.TXDir
	}
	if f.RXDir != nil {
		o.RXDir = *f.RXDir
	}
	if f.IP != nil {
		o.IP = *f.IP
	}
	if f.Port != nil {
		o.Port = *f.Port
	}
	if f.Verbose != nil {
		o.Verbose = *f.Verbose
	}
	if f.MetricsAddr != nil {
		o.MetricsAddr = *f.MetricsAddr
	}
	if f.LogFile != nil {
		o.LogFile = *f.LogFile
	}
}

func applyEnv(o *Overlay) {
	if v, ok := os.LookupEnv(envMode); ok {
		if n, err := strconv.Atoi(v); err == nil {
			o.Mode = n
		}
	}
	if v, ok := os.LookupEnv(envTXDir); ok {
		o.TXDir = v
	}
	if v, ok := os.LookupEnv(envRXDir); ok {
		o.RXDir = v
	}
	if v, ok := os.LookupEnv(envIP); ok {
		o.IP = v
	}
	if v, ok := os.LookupEnv(envPort); ok {
		if n, err := strconv.Atoi(v); err == nil {
			o.Port = n
		}
	}
	if v, ok := os.LookupEnv(envVerbose); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			o.Verbose = b
		}
	}
	if v, ok := os.LookupEnv(envMetricsAddr); ok {
		o.MetricsAddr = v
	}
	if v, ok := os.LookupEnv(envLogFile); ok {
		o.LogFile = v
	}
}

func applyCLI(o *Overlay, cli Overlay, set map[string]bool) {
	if set["mode"] {
		o.Mode = cli.Mode
	}
	if set["tx-dir"] {
		o.TXDir = cli.TXDir
	}
	if set["rx-dir"] {
		o.RXDir = cli.RXDir
	}
	if set["ip"] {
		o.IP = cli.IP
	}
	if set["port"] {
		o.Port = cli.Port
	}
	if set["verbose"] {
		o.Verbose = cli.Verbose
	}
	if set["metrics-addr"] {
		o.MetricsAddr = cli.MetricsAddr
	}
	if set["log-file"] {
		o.LogFile = cli.LogFile
	}
	if set["config"] {
		// handled by the caller before Resolve; present here only so the
		// flag-tracking map's keys stay centralized in one place.
	}
}
