package record

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"
)

// CSVSink appends rows to a CSV file. Each row is encoded in memory and
// written with a single write call under an exclusive lock, then synced. A
// failed write or sync truncates the file back to the previous row boundary,
// so the log never holds a partial row.
type CSVSink struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	out    logFile
	exists bool
	closed bool
}

// logFile is the part of *os.File a sink writes through.
type logFile interface {
	io.Writer
	io.Seeker
	Sync() error
	Truncate(size int64) error
}

// ErrSinkClosed is returned when writing to a closed sink.
var ErrSinkClosed = errors.New("record: sink is closed")

// OpenCSV opens path for appending, creating it and its directory if needed.
func OpenCSV(path string) (*CSVSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat log: %w", err)
	}
	return &CSVSink{path: path, file: f, out: f, exists: info.Size() > 0}, nil
}

// Path returns the file path.
func (s *CSVSink) Path() string {
	return s.path
}

// Exists implements Sink.
func (s *CSVSink) Exists() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exists
}

// WriteHeader implements Sink.
func (s *CSVSink) WriteHeader() error {
	if err := s.writeRecord(Header); err != nil {
		return err
	}
	s.mu.Lock()
	s.exists = true
	s.mu.Unlock()
	return nil
}

// Append implements Sink.
func (s *CSVSink) Append(r Result) error {
	return s.writeRecord(r.Row())
}

func (s *CSVSink) writeRecord(rec []string) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	// Rows written by earlier versions of the experiment use CRLF.
	w.UseCRLF = true
	if err := w.Write(rec); err != nil {
		return fmt.Errorf("encode row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("encode row: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSinkClosed
	}

	if err := lockFile(s.file); err != nil {
		return fmt.Errorf("lock log: %w", err)
	}
	defer unlockFile(s.file)

	offset, err := s.out.Seek(0, io.SeekEnd)
	if err != nil {
		return fmt.Errorf("seek log: %w", err)
	}
	if _, err := s.out.Write(buf.Bytes()); err != nil {
		return s.rollback(offset, fmt.Errorf("write row: %w", err))
	}
	if err := s.out.Sync(); err != nil {
		return s.rollback(offset, fmt.Errorf("sync log: %w", err))
	}
	return nil
}

// rollback cuts the file back to offset after a failed append.
func (s *CSVSink) rollback(offset int64, cause error) error {
	if err := s.out.Truncate(offset); err != nil {
		return errors.Join(cause, fmt.Errorf("truncate log to %d: %w", offset, err))
	}
	if err := s.out.Sync(); err != nil {
		return errors.Join(cause, fmt.Errorf("sync log: %w", err))
	}
	return cause
}

// Close implements Sink.
func (s *CSVSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.file.Close()
}

// ReadCSV parses a trial log. The header row is required.
func ReadCSV(path string) ([]Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer f.Close()
	return ParseCSV(f)
}

// ParseCSV parses a trial log from r.
func ParseCSV(r io.Reader) ([]Result, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Header)

	head, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if !slices.Equal(head, Header) {
		return nil, fmt.Errorf("%w: unexpected header %v", ErrMalformedRow, head)
	}

	var out []Result
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read line %d: %w", line, err)
		}
		if slices.Equal(row, Header) {
			continue
		}
		res, err := ParseRow(row)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, res)
	}
}
