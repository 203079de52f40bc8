package journal

import (
	"bufio"
	"errors"
	"io"
	"os"

	"github.com/nainya/timegraph/pkg/changefeed"
)

// Reader reads entries from journal files in order
type Reader struct {
	files   []string
	current int
	fd      *os.File
	br      *bufio.Reader
	skipped int
}

// NewReader creates a reader for the given files
func NewReader(files []string) *Reader {
	return &Reader{files: files, current: -1}
}

// Skipped returns how many damaged entries were passed over
func (r *Reader) Skipped() int { return r.skipped }

// Next returns the next intact entry, or io.EOF after the last file.
// An entry with a bad checksum is skipped. A truncated entry or an
// unreadable header ends its file, since nothing after it can be framed.
func (r *Reader) Next() (*Entry, error) {
	for {
		if r.br == nil {
			if err := r.nextFile(); err != nil {
				return nil, err
			}
		}

		e, err := r.readEntry()
		switch {
		case err == nil:
			return e, nil
		case errors.Is(err, io.EOF):
			r.closeFile()
		case errors.Is(err, ErrCorrupted) && e != nil:
			// framed but damaged
			r.skipped++
		case errors.Is(err, ErrCorrupted), errors.Is(err, ErrTruncated), errors.Is(err, io.ErrUnexpectedEOF):
			r.skipped++
			r.closeFile()
		default:
			return nil, err
		}
	}
}

// readEntry returns a non-nil placeholder entry with ErrCorrupted when the
// frame was consumed but the checksum failed
func (r *Reader) readEntry() (*Entry, error) {
	header := make([]byte, EntryHeaderSize)
	if _, err := io.ReadFull(r.br, header); err != nil {
		return nil, err
	}

	n, err := bodyLen(header)
	if err != nil {
		return nil, err
	}
	data := make([]byte, EntryHeaderSize+n)
	copy(data, header)
	if _, err := io.ReadFull(r.br, data[EntryHeaderSize:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrTruncated
		}
		return nil, err
	}

	e, err := DecodeEntry(data)
	if errors.Is(err, ErrCorrupted) {
		return &Entry{}, err
	}
	return e, err
}

func (r *Reader) nextFile() error {
	r.current++
	if r.current >= len(r.files) {
		return io.EOF
	}
	fd, err := os.Open(r.files[r.current])
	if err != nil {
		return err
	}
	r.fd = fd
	r.br = bufio.NewReader(fd)
	return nil
}

func (r *Reader) closeFile() {
	if r.fd != nil {
		r.fd.Close()
	}
	r.fd, r.br = nil, nil
}

// Close closes the reader
func (r *Reader) Close() error {
	if r.fd != nil {
		err := r.fd.Close()
		r.fd, r.br = nil, nil
		return err
	}
	return nil
}

// Replay calls fn for every intact entry of the journal at base, oldest
// first, and returns the number of damaged entries skipped. An error from
// fn stops the replay.
func Replay(base string, fn func(*Entry) error) (int, error) {
	files, err := Files(base)
	if err != nil {
		return 0, err
	}
	if len(files) == 0 {
		return 0, ErrNotFound
	}

	r := NewReader(files)
	defer r.Close()
	for {
		e, err := r.Next()
		if errors.Is(err, io.EOF) {
			return r.Skipped(), nil
		}
		if err != nil {
			return r.Skipped(), err
		}
		if err := fn(e); err != nil {
			return r.Skipped(), err
		}
	}
}

// ReplayEvents is Replay with entries decoded back into change events.
// Entries whose payload cannot be decoded count as skipped.
func ReplayEvents(base string, fn func(*Entry, changefeed.Event) error) (int, error) {
	bad := 0
	skipped, err := Replay(base, func(e *Entry) error {
		ev, err := e.Event()
		if err != nil {
			bad++
			return nil
		}
		return fn(e, ev)
	})
	return skipped + bad, err
}
