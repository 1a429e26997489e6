package broadcast

import "time"

// Config holds the supervisor's tunables. Zero value is meaningless; use
// DefaultConfig and Options to build one.
type Config struct {
	Mode    int
	TXDir   string
	RXDir   string
	IP      string
	Port    int
	Verbose bool

	// ScanInterval is the TX loop's idle-queue / budget-reached sleep.
	ScanInterval time.Duration
	// OpenFailureInterval is the TX loop's sleep after a failed session
	// open.
	OpenFailureInterval time.Duration
	// ProgressInterval throttles ProgressTracker callback invocations.
	ProgressInterval time.Duration
}

// DefaultConfig returns the daemon's built-in defaults.
func DefaultConfig() Config {
	return Config{
		Mode:                0,
		TXDir:               "./tx",
		RXDir:               "./rx",
		IP:                  "127.0.0.1",
		Port:                8100,
		Verbose:             false,
		ScanInterval:        200 * time.Millisecond,
		OpenFailureInterval: 500 * time.Millisecond,
		ProgressInterval:    time.Second,
	}
}

// Option mutates a Config under construction.
type Option func(*Config)

func WithMode(mode int) Option        { return func(c *Config) { c.Mode = mode } }
func WithTXDir(dir string) Option     { return func(c *Config) { c.TXDir = dir } }
func WithRXDir(dir string) Option     { return func(c *Config) { c.RXDir = dir } }
func WithIP(ip string) Option         { return func(c *Config) { c.IP = ip } }
func WithPort(port int) Option        { return func(c *Config) { c.Port = port } }
func WithVerbose(verbose bool) Option { return func(c *Config) { c.Verbose = verbose } }

// NewConfig builds a Config from DefaultConfig plus any Options, in order.
func NewConfig(opts ...Option) Config {
	c := DefaultConfig()
	for _, opt := range opts {
		opt(&c)
	}
	return c
}
