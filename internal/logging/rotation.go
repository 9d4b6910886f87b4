package logging

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// RotationConfig holds configuration for log rotation
type RotationConfig struct {
	// Filename is the file to write logs to
	Filename string

	// MaxSizeMB is the size in megabytes that triggers rotation (0 = never rotate)
	MaxSizeMB int64

	// MaxBackups is the number of rotated files to retain (0 = retain all)
	MaxBackups int

	// Compress gzips rotated files
	Compress bool
}

// RotatingWriter is an io.WriteCloser over a log file that is renamed aside
// once it reaches the configured size.
type RotatingWriter struct {
	mu sync.Mutex

	config RotationConfig
	file   *os.File
	size   int64
	now    func() time.Time
}

// NewRotatingWriter opens (or creates) the log file and returns a writer for it
func NewRotatingWriter(config RotationConfig) (*RotatingWriter, error) {
	if config.Filename == "" {
		return nil, fmt.Errorf("filename is required")
	}

	w := &RotatingWriter{
		config: config,
		now:    func() time.Time { return time.Now().UTC() },
	}
	if err := w.openFile(); err != nil {
		return nil, err
	}
	return w, nil
}

// Write implements io.Writer
func (w *RotatingWriter) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return 0, os.ErrClosed
	}

	if w.shouldRotate(int64(len(p))) {
		if err := w.rotate(); err != nil {
			return 0, fmt.Errorf("failed to rotate log: %w", err)
		}
	}

	n, err = w.file.Write(p)
	w.size += int64(n)
	return n, err
}

// Close closes the log file
func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

// Rotate forces an immediate rotation
func (w *RotatingWriter) Rotate() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rotate()
}

func (w *RotatingWriter) shouldRotate(writeSize int64) bool {
	if w.config.MaxSizeMB <= 0 || w.size == 0 {
		return false
	}
	return w.size+writeSize > w.config.MaxSizeMB*1024*1024
}

func (w *RotatingWriter) rotate() error {
	if w.file != nil {
		if err := w.file.Close(); err != nil {
			return fmt.Errorf("failed to close current log file: %w", err)
		}
		w.file = nil
	}

	backupName := w.backupFilename(w.now())
	if err := os.Rename(w.config.Filename, backupName); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to rename log file: %w", err)
	}

	// Compression and cleanup failures must not stop logging
	if w.config.Compress {
		if err := compressFile(backupName); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to compress log file %s: %v\n", backupName, err)
		}
	}
	if err := w.cleanupOldBackups(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to cleanup old log backups: %v\n", err)
	}

	return w.openFile()
}

func (w *RotatingWriter) openFile() error {
	if err := os.MkdirAll(filepath.Dir(w.config.Filename), 0750); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(w.config.Filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return fmt.Errorf("failed to stat log file: %w", err)
	}

	w.file = file
	w.size = info.Size()
	return nil
}

func (w *RotatingWriter) prefixAndExt() (string, string) {
	base := filepath.Base(w.config.Filename)
	ext := filepath.Ext(base)
	return base[:len(base)-len(ext)], ext
}

// backupFilename names a rotated file app-2006-01-02T15-04-05.000.log
func (w *RotatingWriter) backupFilename(t time.Time) string {
	prefix, ext := w.prefixAndExt()
	stamp := t.Format("2006-01-02T15-04-05.000")
	return filepath.Join(filepath.Dir(w.config.Filename), fmt.Sprintf("%s-%s%s", prefix, stamp, ext))
}

func (w *RotatingWriter) cleanupOldBackups() error {
	if w.config.MaxBackups <= 0 {
		return nil
	}

	backups, err := w.backupFiles()
	if err != nil {
		return err
	}
	if len(backups) <= w.config.MaxBackups {
		return nil
	}

	// Timestamped names sort oldest first
	sort.Strings(backups)
	dir := filepath.Dir(w.config.Filename)
	for _, name := range backups[:len(backups)-w.config.MaxBackups] {
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			return err
		}
	}
	return nil
}

func (w *RotatingWriter) backupFiles() ([]string, error) {
	prefix, ext := w.prefixAndExt()
	entries, err := os.ReadDir(filepath.Dir(w.config.Filename))
	if err != nil {
		return nil, err
	}

	var backups []string
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, prefix+"-") {
			continue
		}
		if strings.HasSuffix(name, ext) || strings.HasSuffix(name, ext+".gz") {
			backups = append(backups, name)
		}
	}
	return backups, nil
}

func compressFile(filename string) error {
	src, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	dst, err := os.Create(filename + ".gz")
	if err != nil {
		return err
	}
	defer func() { _ = dst.Close() }()

	gz := gzip.NewWriter(dst)
	if _, err := io.Copy(gz, src); err != nil {
		return err
	}
	if err := gz.Close(); err != nil {
		return err
	}
	if err := dst.Close(); err != nil {
		return err
	}
	return os.Remove(filename)
}
