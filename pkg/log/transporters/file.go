package transporters

import (
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"

	"unreplied/pkg/log"
)

// FileOptions configures log rotation.
type FileOptions struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// File writes JSON lines to a size-rotated file.
type File struct {
	mu  sync.Mutex
	out *lumberjack.Logger
}

// NewFile opens (lazily) a rotating log file.
func NewFile(opts FileOptions) *File {
	if opts.MaxSizeMB <= 0 {
		opts.MaxSizeMB = 100
	}
	return &File{out: &lumberjack.Logger{
		Filename:   opts.Path,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   opts.Compress,
	}}
}

func (f *File) Name() string { return "file" }

func (f *File) Write(entry log.Entry) error {
	return writeLine(&f.mu, f.out, entry)
}

// Close closes the current log file.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.out.Close()
}
