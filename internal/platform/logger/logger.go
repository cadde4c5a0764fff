// Package logger wraps zap with key/value helpers that redact visitor PII.
package logger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

type Logger struct {
	sugar  *zap.SugaredLogger
	redact bool
	salt   string
}

type Options struct {
	Mode   string
	Level  string
	Redact bool
	// HashSalt is mixed into hashed identifiers so log readers cannot
	// reverse them by hashing known emails.
	HashSalt string
}

func New(opts Options) (*Logger, error) {
	var cfg zap.Config
	switch strings.ToLower(strings.TrimSpace(opts.Mode)) {
	case "prod", "production":
		cfg = zap.NewProductionConfig()
	default:
		cfg = zap.NewDevelopmentConfig()
	}

	if opts.Level != "" {
		level, err := zap.ParseAtomicLevel(opts.Level)
		if err != nil {
			return nil, fmt.Errorf("parse log level %q: %w", opts.Level, err)
		}
		cfg.Level = level
	}

	zapLogger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build zap logger: %w", err)
	}

	return &Logger{sugar: zapLogger.Sugar(), redact: opts.Redact, salt: opts.HashSalt}, nil
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{sugar: zap.NewNop().Sugar()}
}

// Wrap adapts an existing zap logger, mostly for tests using zaptest/observer.
func Wrap(z *zap.Logger, redact bool) *Logger {
	return &Logger{sugar: z.Sugar(), redact: redact}
}

func (l *Logger) Sync() {
	_ = l.sugar.Sync()
}

func (l *Logger) Debug(msg string, keysAndValues ...any) {
	l.sugar.Debugw(msg, l.sanitize(keysAndValues)...)
}

func (l *Logger) Info(msg string, keysAndValues ...any) {
	l.sugar.Infow(msg, l.sanitize(keysAndValues)...)
}

func (l *Logger) Warn(msg string, keysAndValues ...any) {
	l.sugar.Warnw(msg, l.sanitize(keysAndValues)...)
}

func (l *Logger) Error(msg string, keysAndValues ...any) {
	l.sugar.Errorw(msg, l.sanitize(keysAndValues)...)
}

func (l *Logger) With(keysAndValues ...any) *Logger {
	return &Logger{
		sugar:  l.sugar.With(l.sanitize(keysAndValues)...),
		redact: l.redact,
		salt:   l.salt,
	}
}

func (l *Logger) Named(name string) *Logger {
	return &Logger{sugar: l.sugar.Named(name), redact: l.redact, salt: l.salt}
}

func (l *Logger) sanitize(kv []any) []any {
	if !l.redact || len(kv) == 0 {
		return kv
	}

	out := make([]any, 0, len(kv))
	for i := 0; i < len(kv); i += 2 {
		if i == len(kv)-1 {
			out = append(out, kv[i])
			break
		}
		key := toString(kv[i])
		out = append(out, key, l.sanitizeValue(strings.ToLower(strings.TrimSpace(key)), kv[i+1]))
	}

	return out
}

func (l *Logger) sanitizeValue(key string, value any) any {
	switch {
	case isRedactKey(key):
		return "[REDACTED]"
	case isHashKey(key):
		return l.hash(value)
	}

	if m, ok := value.(map[string]any); ok {
		out := make(map[string]any, len(m))
		for k, v := range m {
			out[k] = l.sanitizeValue(strings.ToLower(strings.TrimSpace(k)), v)
		}
		return out
	}

	return value
}

func isRedactKey(key string) bool {
	for _, marker := range []string{"password", "token", "secret", "cookie", "authorization", "email"} {
		if strings.Contains(key, marker) {
			return true
		}
	}
	return false
}

func isHashKey(key string) bool {
	return strings.Contains(key, "user_id") || strings.Contains(key, "visitor_id")
}

func (l *Logger) hash(value any) string {
	raw := toString(value)
	if raw == "" {
		return ""
	}

	h := sha256.New()
	_, _ = h.Write([]byte(l.salt))
	_, _ = h.Write([]byte(raw))
	return "hash:" + hex.EncodeToString(h.Sum(nil))[:12]
}

func toString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}
