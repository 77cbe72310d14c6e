package log

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

// Level represents log severity levels
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel parses a level name such as "debug" or "WARN".
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DebugLevel, nil
	case "info", "":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	}
	return InfoLevel, fmt.Errorf("unknown log level %q", s)
}

// Logger interface defines structured logging methods. Arguments after the
// message are key/value pairs.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	SetLevel(level Level)
	SetJSONOutput(enabled bool)
}

// LoggerConfig holds configuration for the logger
type LoggerConfig struct {
	Level      Level
	JSONOutput bool
	// Output receives log lines. Defaults to os.Stderr.
	Output io.Writer
}

// DefaultLogger is the default implementation of Logger
type DefaultLogger struct {
	mu         sync.Mutex
	level      Level
	jsonOutput bool
	out        io.Writer
	colors     bool
}

var (
	defaultLogger *DefaultLogger
	once          sync.Once
)

// New creates a new logger with the given configuration
func New(cfg LoggerConfig) *DefaultLogger {
	l := &DefaultLogger{
		level:      cfg.Level,
		jsonOutput: cfg.JSONOutput,
		out:        cfg.Output,
	}
	if l.out == nil {
		l.out = os.Stderr
	}
	l.colors = l.out == os.Stderr && !color.NoColor
	return l
}

// Default returns the shared logger. It logs warnings and errors only, so
// library code stays quiet unless a command raises the level.
func Default() *DefaultLogger {
	once.Do(func() {
		defaultLogger = New(LoggerConfig{Level: WarnLevel})
	})
	return defaultLogger
}

var levelColors = map[Level]*color.Color{
	DebugLevel: color.New(color.FgCyan),
	InfoLevel:  color.New(color.FgGreen),
	WarnLevel:  color.New(color.FgYellow),
	ErrorLevel: color.New(color.FgRed),
}

// fields pairs up key/value arguments. A leading odd argument is kept under
// the key "arg".
func fields(args []interface{}) [][2]interface{} {
	var out [][2]interface{}
	if len(args)%2 != 0 {
		out = append(out, [2]interface{}{"arg", args[0]})
		args = args[1:]
	}
	for i := 0; i < len(args); i += 2 {
		out = append(out, [2]interface{}{args[i], args[i+1]})
	}
	return out
}

// formatMessage formats the message with key-value args
func formatMessage(msg string, args ...interface{}) string {
	if len(args) == 0 {
		return msg
	}
	var sb strings.Builder
	sb.WriteString(msg)
	for _, kv := range fields(args) {
		fmt.Fprintf(&sb, " %v=%v", kv[0], kv[1])
	}
	return sb.String()
}

func (l *DefaultLogger) write(level Level, msg string, args []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	timestamp := time.Now().Format("2006-01-02 15:04:05")

	if l.jsonOutput {
		entry := map[string]interface{}{
			"timestamp": timestamp,
			"level":     level.String(),
			"message":   msg,
		}
		for _, kv := range fields(args) {
			v := kv[1]
			if err, ok := v.(error); ok {
				v = err.Error()
			}
			entry[fmt.Sprint(kv[0])] = v
		}
		data, err := json.Marshal(entry)
		if err != nil {
			data, _ = json.Marshal(map[string]string{"timestamp": timestamp, "level": level.String(), "message": msg})
		}
		fmt.Fprintln(l.out, string(data))
		return
	}

	line := formatMessage(msg, args...)
	if l.colors {
		line = levelColors[level].Sprint(line)
	}
	fmt.Fprintf(l.out, "[%s] %s: %s\n", timestamp, level, line)
}

// Debug logs a debug message
func (l *DefaultLogger) Debug(msg string, args ...interface{}) {
	if l.enabled(DebugLevel) {
		l.write(DebugLevel, msg, args)
	}
}

// Info logs an info message
func (l *DefaultLogger) Info(msg string, args ...interface{}) {
	if l.enabled(InfoLevel) {
		l.write(InfoLevel, msg, args)
	}
}

// Warn logs a warning message
func (l *DefaultLogger) Warn(msg string, args ...interface{}) {
	if l.enabled(WarnLevel) {
		l.write(WarnLevel, msg, args)
	}
}

// Error logs an error message
func (l *DefaultLogger) Error(msg string, args ...interface{}) {
	if l.enabled(ErrorLevel) {
		l.write(ErrorLevel, msg, args)
	}
}

func (l *DefaultLogger) enabled(level Level) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return level >= l.level
}

// SetLevel sets the minimum log level
func (l *DefaultLogger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// SetJSONOutput enables or disables JSON output
func (l *DefaultLogger) SetJSONOutput(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.jsonOutput = enabled
}

// ProgressSpinner shows a spinner with a message while a directory is being
// processed.
type ProgressSpinner struct {
	mu      sync.Mutex
	message string
	frames  []string
	current int
	writer  io.Writer
	stop    chan struct{}
	done    chan struct{}
}

// NewProgressSpinner creates a spinner writing to w.
func NewProgressSpinner(w io.Writer, message string) *ProgressSpinner {
	return &ProgressSpinner{
		message: message,
		frames:  []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
		writer:  w,
	}
}

// Start begins the spinner animation
func (p *ProgressSpinner) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stop != nil {
		return
	}
	p.stop, p.done = make(chan struct{}), make(chan struct{})
	go p.animate(p.stop, p.done)
}

// Stop stops the spinner and clears its line.
func (p *ProgressSpinner) Stop() {
	p.mu.Lock()
	stop, done := p.stop, p.done
	p.stop, p.done = nil, nil
	p.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
	fmt.Fprint(p.writer, "\r\033[K")
}

// Message updates the spinner message
func (p *ProgressSpinner) Message(msg string) {
	p.mu.Lock()
	p.message = msg
	p.mu.Unlock()
}

func (p *ProgressSpinner) animate(stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(80 * time.Millisecond)
	defer ticker.Stop()
	cyan := color.New(color.FgCyan)
	for {
		select {
		case <-ticker.C:
			p.mu.Lock()
			frame := p.frames[p.current%len(p.frames)]
			p.current++
			fmt.Fprintf(p.writer, "\r%s %s", cyan.Sprint(frame), p.message)
			p.mu.Unlock()
		case <-stop:
			return
		}
	}
}
