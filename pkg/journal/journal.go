// ABOUTME: Append-only change journal with size-based file rotation
// ABOUTME: Subscribed to a store's change feed, it records every applied event

package journal

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/nainya/timegraph/internal/logger"
	"github.com/nainya/timegraph/internal/metrics"
	"github.com/nainya/timegraph/pkg/changefeed"
)

const (
	// DefaultMaxFileSize is the rotation threshold of a single journal file (64MB)
	DefaultMaxFileSize = 64 << 20
)

// Options configures a Journal
type Options struct {
	// MaxFileSize triggers rotation; zero means DefaultMaxFileSize
	MaxFileSize int64

	// MaxFiles bounds the number of files kept; zero keeps every file
	MaxFiles int

	// SyncEveryWrite fsyncs after each entry
	SyncEveryWrite bool

	Logger  *logger.Logger
	Metrics *metrics.Metrics
}

// Journal is a file-backed changefeed.Listener.
// Files are named <base>.000, <base>.001, ... next to Path.
type Journal struct {
	// Path is the base path for journal files (e.g. "/data/timegraph.journal")
	Path string

	opts    Options
	log     *logger.Logger
	metrics *metrics.Metrics

	mu        sync.Mutex
	fd        *os.File
	lsn       uint64
	fileSize  int64
	fileIndex int
	closed    bool
}

// Open opens or creates the journal at path and resumes after its highest LSN
func Open(path string, opts Options) (*Journal, error) {
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	j := &Journal{
		Path:    path,
		opts:    opts,
		log:     opts.Logger.JournalLogger(),
		metrics: opts.Metrics,
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	files, err := Files(path)
	if err != nil {
		return nil, err
	}

	if len(files) == 0 {
		if err := j.openFile(0); err != nil {
			return nil, err
		}
		return j, nil
	}

	latest := files[len(files)-1]
	if _, err := fmt.Sscanf(filepath.Base(latest), filepath.Base(path)+".%d", &j.fileIndex); err != nil {
		j.fileIndex = len(files) - 1
	}
	if err := j.openFile(j.fileIndex); err != nil {
		return nil, err
	}
	stat, err := j.fd.Stat()
	if err != nil {
		j.fd.Close()
		return nil, err
	}
	j.fileSize = stat.Size()

	skipped, err := Replay(path, func(e *Entry) error {
		if e.LSN > j.lsn {
			j.lsn = e.LSN
		}
		return nil
	})
	if err != nil {
		j.fd.Close()
		return nil, err
	}
	if skipped > 0 {
		j.log.Warn("skipped corrupt journal entries").Int("skipped", skipped).Send()
	}
	j.log.Info("journal opened").Str("path", path).Uint64("lsn", j.lsn).Int("files", len(files)).Send()
	return j, nil
}

// LSN returns the sequence number of the last written entry
func (j *Journal) LSN() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.lsn
}

// Apply journals ev; it makes Journal a changefeed.Listener
func (j *Journal) Apply(ctx context.Context, ev changefeed.Event) error {
	e, err := NewEntry(ev)
	if err != nil {
		return err
	}
	_, err = j.Write(e)
	return err
}

// Write assigns the next LSN to e and appends it
func (j *Journal) Write(e Entry) (uint64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return 0, ErrClosed
	}

	e.LSN = j.lsn + 1
	data := e.Encode()

	if j.fileSize > 0 && j.fileSize+int64(len(data)) > j.opts.MaxFileSize {
		if err := j.rotateLocked(); err != nil {
			return 0, err
		}
	}

	n, err := j.fd.Write(data)
	j.fileSize += int64(n)
	if err != nil {
		return 0, err
	}
	if j.opts.SyncEveryWrite {
		if err := j.fd.Sync(); err != nil {
			return 0, err
		}
	}

	j.lsn = e.LSN
	j.metrics.RecordJournalEntry()
	return e.LSN, nil
}

// Sync flushes the current file to disk
func (j *Journal) Sync() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return ErrClosed
	}
	return j.fd.Sync()
}

// Close syncs and closes the journal
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil
	}
	j.closed = true
	if err := j.fd.Sync(); err != nil {
		j.fd.Close()
		return err
	}
	return j.fd.Close()
}

func (j *Journal) openFile(index int) error {
	fd, err := os.OpenFile(filePath(j.Path, index), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	j.fd = fd
	j.fileIndex = index
	j.fileSize = 0
	return nil
}

// rotateLocked moves to a new file (caller must hold mu)
func (j *Journal) rotateLocked() error {
	if err := j.fd.Sync(); err != nil {
		return err
	}
	if err := j.fd.Close(); err != nil {
		return err
	}
	if err := j.openFile(j.fileIndex + 1); err != nil {
		return err
	}
	j.log.Debug("journal rotated").Int("file_index", j.fileIndex).Send()
	return j.cleanOldFilesLocked()
}

func (j *Journal) cleanOldFilesLocked() error {
	if j.opts.MaxFiles <= 0 {
		return nil
	}
	files, err := Files(j.Path)
	if err != nil {
		return err
	}
	if len(files) > j.opts.MaxFiles {
		for _, f := range files[:len(files)-j.opts.MaxFiles] {
			if err := os.Remove(f); err != nil {
				j.log.Warn("failed to remove old journal file").Str("file", f).Err(err).Send()
			}
		}
	}
	return nil
}

func filePath(base string, index int) string {
	return filepath.Join(filepath.Dir(base), fmt.Sprintf("%s.%03d", filepath.Base(base), index))
}

// Files returns the journal files for base, oldest first
func Files(base string) ([]string, error) {
	dir := filepath.Dir(base)
	name := filepath.Base(base)

	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	type indexed struct {
		path  string
		index int
	}
	var found []indexed
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		var idx int
		if _, err := fmt.Sscanf(entry.Name(), name+".%d", &idx); err != nil {
			continue
		}
		if entry.Name() != fmt.Sprintf("%s.%03d", name, idx) {
			continue
		}
		found = append(found, indexed{path: filepath.Join(dir, entry.Name()), index: idx})
	}

	sort.Slice(found, func(a, b int) bool { return found[a].index < found[b].index })
	files := make([]string, len(found))
	for i, f := range found {
		files[i] = f.path
	}
	return files, nil
}
