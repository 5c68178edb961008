package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config describes how a logger is built.
type Config struct {
	Level      slog.Level
	JSON       bool
	Output     io.Writer
	Attrs      []slog.Attr
	Extractors []ContextExtractor
}

// Option configures a logger.
type Option func(*Config)

// ContextExtractor pulls a request-scoped attribute out of a context.
type ContextExtractor func(ctx context.Context) (slog.Attr, bool)

// WithLevel sets the minimum level.
func WithLevel(level slog.Level) Option {
	return func(c *Config) {
		c.Level = level
	}
}

// WithJSONFormatter switches output to JSON.
func WithJSONFormatter() Option {
	return func(c *Config) {
		c.JSON = true
	}
}

// WithTextFormatter switches output to logfmt-style text.
func WithTextFormatter() Option {
	return func(c *Config) {
		c.JSON = false
	}
}

// WithOutput sets the destination writer.
func WithOutput(w io.Writer) Option {
	return func(c *Config) {
		if w != nil {
			c.Output = w
		}
	}
}

// WithAttr adds attributes to every record.
func WithAttr(attrs ...slog.Attr) Option {
	return func(c *Config) {
		c.Attrs = append(c.Attrs, attrs...)
	}
}

// WithContextExtractors adds extractors evaluated on every *Context call.
func WithContextExtractors(fns ...ContextExtractor) Option {
	return func(c *Config) {
		c.Extractors = append(c.Extractors, fns...)
	}
}

// WithDevelopment configures text output at debug level.
func WithDevelopment(service string) Option {
	return func(c *Config) {
		c.Level = slog.LevelDebug
		c.JSON = false
		c.Attrs = append(c.Attrs, slog.String("service", service), slog.String("env", "development"))
	}
}

// WithStaging configures JSON output at info level.
func WithStaging(service string) Option {
	return func(c *Config) {
		c.Level = slog.LevelInfo
		c.JSON = true
		c.Attrs = append(c.Attrs, slog.String("service", service), slog.String("env", "staging"))
	}
}

// WithProduction configures JSON output at info level.
func WithProduction(service string) Option {
	return func(c *Config) {
		c.Level = slog.LevelInfo
		c.JSON = true
		c.Attrs = append(c.Attrs, slog.String("service", service), slog.String("env", "production"))
	}
}

// New builds a *slog.Logger from options. Defaults to text at info level on stdout.
func New(opts ...Option) *slog.Logger {
	cfg := Config{
		Level:  slog.LevelInfo,
		Output: os.Stdout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	hopts := &slog.HandlerOptions{Level: cfg.Level}
	var h slog.Handler
	if cfg.JSON {
		h = slog.NewJSONHandler(cfg.Output, hopts)
	} else {
		h = slog.NewTextHandler(cfg.Output, hopts)
	}
	if len(cfg.Attrs) > 0 {
		h = h.WithAttrs(cfg.Attrs)
	}
	if len(cfg.Extractors) > 0 {
		h = &contextHandler{Handler: h, extractors: cfg.Extractors}
	}
	return slog.New(h)
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ParseLevel maps a level name to slog.Level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type contextHandler struct {
	slog.Handler
	extractors []ContextExtractor
}

func (h *contextHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, fn := range h.extractors {
		if attr, ok := fn(ctx); ok {
			r.AddAttrs(attr)
		}
	}
	return h.Handler.Handle(ctx, r)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{Handler: h.Handler.WithAttrs(attrs), extractors: h.extractors}
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{Handler: h.Handler.WithGroup(name), extractors: h.extractors}
}
