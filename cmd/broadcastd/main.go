package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rhizomatica/hermes-broadcast/broadcast"
	"github.com/rhizomatica/hermes-broadcast/config"
	"github.com/rhizomatica/hermes-broadcast/metrics"
)

const versionString = "broadcastd version 0.1.0"

var (
	mode        = flag.Int("mode", -1, "transport mode (0-6)")
	txDir       = flag.String("tx-dir", "", "queue directory to transmit files from")
	rxDir       = flag.String("rx-dir", "", "directory to write received objects to")
	ip          = flag.String("ip", "", "modem host")
	port        = flag.Int("port", -1, "modem TCP port")
	verbose     = flag.Bool("verbose", false, "verbose logging")
	configPath  = flag.String("config", "", "YAML config file")
	logFile     = flag.String("log-file", "", "write logs to this file instead of stderr")
	metricsAddr = flag.String("metrics-addr", "", "address to serve Prometheus metrics on, e.g. :9090 (disabled if empty)")
	help        = flag.Bool("help", false, "show help")
	version     = flag.Bool("version", false, "show version")
)

func main() {
	flag.Parse()

	if *help {
		showUsage(0)
	}
	if *version {
		fmt.Println(versionString)
		os.Exit(0)
	}

	if err := config.LoadDotEnv(""); err != nil {
		fmt.Fprintf(os.Stderr, "broadcastd: load .env: %v\n", err)
		os.Exit(1)
	}

	file, err := config.LoadFile(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "broadcastd: load config %s: %v\n", *configPath, err)
		os.Exit(1)
	}

	cli := config.Overlay{}
	cli.Mode = *mode
	cli.TXDir = *txDir
	cli.RXDir = *rxDir
	cli.IP = *ip
	cli.Port = *port
	cli.Verbose = *verbose
	cli.MetricsAddr = *metricsAddr
	cli.LogFile = *logFile

	resolved := config.Resolve(file, cli, flagsSet())

	logger, err := buildLogger(resolved)
	if err != nil {
		fmt.Fprintf(os.Stderr, "broadcastd: open log file: %v\n", err)
		os.Exit(1)
	}
	if fl, ok := logger.(*broadcast.FileLogger); ok {
		defer fl.Close()
	}

	reg := metrics.New()
	callbacks := reg.Callbacks(nil)

	sup, err := broadcast.NewSupervisor(resolved.Config, logger, callbacks)
	if err != nil {
		fmt.Fprintf(os.Stderr, "broadcastd: %v\n", err)
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	ctx, cancel := signalContext(sigChan)
	defer cancel()

	if resolved.MetricsAddr != "" {
		go func() {
			if err := reg.Serve(ctx, resolved.MetricsAddr); err != nil {
				logger.Error("metrics server: %v", err)
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		sup.Run()
		close(done)
	}()

	select {
	case <-ctx.Done():
		sup.Stop()
		<-done
	case <-done:
	}

	os.Exit(0)
}

func buildLogger(resolved config.Overlay) (broadcast.Logger, error) {
	if resolved.LogFile != "" {
		return broadcast.NewFileLogger(resolved.LogFile, resolved.Verbose)
	}
	return broadcast.NewStderrLogger(resolved.Verbose), nil
}

// flagsSet reports which flags were explicitly passed on the command line,
// so config.Resolve can tell a CLI override from an unset default.
func flagsSet() map[string]bool {
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "mode", "tx-dir", "rx-dir", "ip", "port", "verbose", "metrics-addr", "log-file", "config":
			set[f.Name] = true
		}
	})
	return set
}

func signalContext(sigChan chan os.Signal) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-sigChan
		cancel()
	}()
	return ctx, cancel
}

func showUsage(exitcode int) {
	fmt.Fprintf(os.Stderr, `%s - RaptorQ broadcast daemon over a KISS modem link

Usage: %s [options]

Options:
  --mode N            transport mode 0-6 (default 0)
  --tx-dir DIR        queue directory to transmit files from (default ./tx)
  --rx-dir DIR        directory to write received objects to (default ./rx)
  --ip HOST           modem host (default 127.0.0.1)
  --port N            modem TCP port (default 8100)
  --verbose           verbose logging
  --config FILE       YAML config file
  --log-file FILE     write logs to this file instead of stderr
  --metrics-addr ADDR  serve Prometheus metrics at ADDR (e.g. :9090)
  --help              show this help message
  --version           show version

Precedence: command-line flags > environment (including .env) > YAML config file > built-in defaults.
`, versionString, os.Args[0])
	os.Exit(exitcode)
}
