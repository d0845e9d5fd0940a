package log

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
)

const defaultBufferSize = 1000

// Logger writes structured entries through an async Buffer.
type Logger struct {
	level  *atomic.Int32
	buffer *Buffer
	fields map[string]any
}

// New creates a logger with a minimum level and output transporters.
func New(level Level, transporters ...Transporter) *Logger {
	lvl := new(atomic.Int32)
	lvl.Store(int32(level))
	return &Logger{
		level:  lvl,
		buffer: NewBuffer(defaultBufferSize, transporters...),
		fields: map[string]any{},
	}
}

// SetLevel changes the minimum level for this logger and its children.
func (l *Logger) SetLevel(level Level) {
	l.level.Store(int32(level))
}

// Level returns the current minimum level.
func (l *Logger) Level() Level {
	return Level(l.level.Load())
}

// With returns a child logger that adds the given fields to every entry.
// The child shares the parent's buffer and level.
func (l *Logger) With(keysAndValues ...any) *Logger {
	fields := make(map[string]any, len(l.fields)+len(keysAndValues)/2)
	for k, v := range l.fields {
		fields[k] = v
	}
	mergePairs(fields, keysAndValues)
	return &Logger{level: l.level, buffer: l.buffer, fields: fields}
}

// Close flushes pending entries and closes the transporters.
func (l *Logger) Close() {
	l.buffer.Close()
}

// Dropped returns the number of entries lost to buffer overflow.
func (l *Logger) Dropped() int64 {
	return l.buffer.DroppedCount()
}

func (l *Logger) emit(ctx context.Context, level Level, msg string, keysAndValues []any) {
	if !l.Level().Enables(level) {
		return
	}

	entry := NewEntry(level, msg)
	entry.Caller = caller(3)
	for k, v := range l.fields {
		entry.Fields[k] = v
	}
	if ctx != nil {
		entry.RequestID = RequestIDFromContext(ctx)
		for k, v := range FieldsFromContext(ctx) {
			entry.Fields[k] = v
		}
	}
	mergePairs(entry.Fields, keysAndValues)

	l.buffer.Send(*entry)
}

// caller returns "file.go:line" for the given stack depth.
func caller(skip int) string {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return ""
	}
	return fmt.Sprintf("%s:%d", filepath.Base(file), line)
}

func (l *Logger) Trace(msg string, kv ...any) { l.emit(nil, Trace, msg, kv) }
func (l *Logger) Debug(msg string, kv ...any) { l.emit(nil, Debug, msg, kv) }
func (l *Logger) Info(msg string, kv ...any)  { l.emit(nil, Info, msg, kv) }
func (l *Logger) Warn(msg string, kv ...any)  { l.emit(nil, Warn, msg, kv) }
func (l *Logger) Error(msg string, kv ...any) { l.emit(nil, Error, msg, kv) }

// Fatal logs at Fatal level. It does not exit; that is the caller's call.
func (l *Logger) Fatal(msg string, kv ...any) { l.emit(nil, Fatal, msg, kv) }

func (l *Logger) TraceCtx(ctx context.Context, msg string, kv ...any) { l.emit(ctx, Trace, msg, kv) }
func (l *Logger) DebugCtx(ctx context.Context, msg string, kv ...any) { l.emit(ctx, Debug, msg, kv) }
func (l *Logger) InfoCtx(ctx context.Context, msg string, kv ...any)  { l.emit(ctx, Info, msg, kv) }
func (l *Logger) WarnCtx(ctx context.Context, msg string, kv ...any)  { l.emit(ctx, Warn, msg, kv) }
func (l *Logger) ErrorCtx(ctx context.Context, msg string, kv ...any) { l.emit(ctx, Error, msg, kv) }
func (l *Logger) FatalCtx(ctx context.Context, msg string, kv ...any) { l.emit(ctx, Fatal, msg, kv) }

// --- process-wide default ---

var (
	defaultMu     sync.RWMutex
	defaultLogger *Logger
	discardLogger = newDiscard()
)

func newDiscard() *Logger {
	l := New(Fatal + 1)
	return l
}

// SetDefault installs the logger used by the Global* helpers. Call it once
// during startup.
func SetDefault(l *Logger) {
	defaultMu.Lock()
	defaultLogger = l
	defaultMu.Unlock()
}

// Default returns the installed logger, or one that discards everything.
func Default() *Logger {
	defaultMu.RLock()
	l := defaultLogger
	defaultMu.RUnlock()
	if l == nil {
		return discardLogger
	}
	return l
}

// The Global* helpers log through Default(). The caller frame stays
// correct because they call emit at the same depth as the methods.

func GlobalTrace(msg string, kv ...any) { Default().emit(nil, Trace, msg, kv) }
func GlobalDebug(msg string, kv ...any) { Default().emit(nil, Debug, msg, kv) }
func GlobalInfo(msg string, kv ...any)  { Default().emit(nil, Info, msg, kv) }
func GlobalWarn(msg string, kv ...any)  { Default().emit(nil, Warn, msg, kv) }
func GlobalError(msg string, kv ...any) { Default().emit(nil, Error, msg, kv) }
func GlobalFatal(msg string, kv ...any) { Default().emit(nil, Fatal, msg, kv) }

func GlobalTraceCtx(ctx context.Context, msg string, kv ...any) { Default().emit(ctx, Trace, msg, kv) }
func GlobalDebugCtx(ctx context.Context, msg string, kv ...any) { Default().emit(ctx, Debug, msg, kv) }
func GlobalInfoCtx(ctx context.Context, msg string, kv ...any)  { Default().emit(ctx, Info, msg, kv) }
func GlobalWarnCtx(ctx context.Context, msg string, kv ...any)  { Default().emit(ctx, Warn, msg, kv) }
func GlobalErrorCtx(ctx context.Context, msg string, kv ...any) { Default().emit(ctx, Error, msg, kv) }
func GlobalFatalCtx(ctx context.Context, msg string, kv ...any) { Default().emit(ctx, Fatal, msg, kv) }
