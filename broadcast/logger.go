package broadcast

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rhizomatica/hermes-broadcast/frame"
)

// Logger is the sink the supervisor, loops and sessions write diagnostics
// to. Debug is reserved for per-frame chatter (only useful with --verbose);
// Info and Error cover session lifecycle and fatal conditions.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Error(format string, args ...any)
}

// NoopLogger discards everything. It is the default for any component that
// isn't handed an explicit Logger.
type NoopLogger struct{}

func (NoopLogger) Debug(string, ...any) {}
func (NoopLogger) Info(string, ...any)  {}
func (NoopLogger) Error(string, ...any) {}

// StderrLogger writes timestamped lines to os.Stderr. DebugEnabled gates
// Debug output; Info and Error are always emitted.
type StderrLogger struct {
	mu           sync.Mutex
	DebugEnabled bool
}

func NewStderrLogger(debug bool) *StderrLogger {
	return &StderrLogger{DebugEnabled: debug}
}

func (l *StderrLogger) Debug(format string, args ...any) {
	if !l.DebugEnabled {
		return
	}
	l.write("DEBUG", format, args...)
}

func (l *StderrLogger) Info(format string, args ...any)  { l.write("INFO", format, args...) }
func (l *StderrLogger) Error(format string, args ...any) { l.write("ERROR", format, args...) }

func (l *StderrLogger) write(level, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(os.Stderr, "%s [%s] %s\n", time.Now().Format(time.RFC3339), level, fmt.Sprintf(format, args...))
}

// FileLogger appends timestamped lines to a file under a mutex, closing and
// reopening is the caller's responsibility via Close.
type FileLogger struct {
	mu           sync.Mutex
	file         *os.File
	DebugEnabled bool
}

// NewFileLogger opens (creating/appending) path for logging.
func NewFileLogger(path string, debug bool) (*FileLogger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, NewPathError(ErrConfig, "open log file", path, err)
	}
	return &FileLogger{file: f, DebugEnabled: debug}, nil
}

func (l *FileLogger) Debug(format string, args ...any) {
	if !l.DebugEnabled {
		return
	}
	l.write("DEBUG", format, args...)
}
func (l *FileLogger) Info(format string, args ...any)  { l.write("INFO", format, args...) }
func (l *FileLogger) Error(format string, args ...any) { l.write("ERROR", format, args...) }

func (l *FileLogger) write(level, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.file, "%s [%s] %s\n", time.Now().Format(time.RFC3339), level, fmt.Sprintf(format, args...))
}

// Close closes the underlying file.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

// FormatFrameLog describes one RQ_CONFIG frame for debug logging: the
// owning session's id (for correlating frame lines back to a session-open/
// complete pair in the same log), direction, OTI pair, (sbn, esi) tag and
// CRC verdict.
func FormatFrameLog(direction string, sessionID uuid.UUID, oti frame.OTIPair, tag frame.Tag, crcOK bool) string {
	return fmt.Sprintf("%s session=%s oti={F=%d T=%d Z=%d N=%d} sbn=%d esi=%d crc_ok=%t",
		direction, sessionID, oti.Common.TransferLength, oti.Common.SymbolSize,
		oti.Scheme.SourceBlocks, oti.Scheme.SubBlocks, tag.SBN, tag.ESI, crcOK)
}
