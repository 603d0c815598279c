package store

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sys/unix"
)

// FileLedger keeps one identity per line in a plain text file. The mutex
// serializes callers in this process; flock serializes processes sharing
// the file.
type FileLedger struct {
	path string
	mu   sync.Mutex
}

func NewFileLedger(path string) (*FileLedger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating ledger directory: %w", err)
	}
	return &FileLedger{path: path}, nil
}

func (l *FileLedger) Path() string { return l.path }

func (l *FileLedger) Contains(ctx context.Context, identity string) (bool, error) {
	if identity == "" {
		return false, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("opening ledger: %w", err)
	}
	defer f.Close()

	if err := unix.Flock(int(f.Fd()), unix.LOCK_SH); err != nil {
		return false, fmt.Errorf("locking ledger: %w", err)
	}
	defer unix.Flock(int(f.Fd()), unix.LOCK_UN)

	return scanFor(f, identity)
}

func (l *FileLedger) Append(ctx context.Context, identity string) error {
	if identity == "" {
		return ErrEmptyIdentity
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := l.openForWrite()
	if err != nil {
		return err
	}
	defer f.Close()

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		return fmt.Errorf("locking ledger: %w", err)
	}
	defer unix.Flock(int(f.Fd()), unix.LOCK_UN)

	return appendLine(f, identity)
}

func (l *FileLedger) InsertIfAbsent(ctx context.Context, identity string) (bool, error) {
	if identity == "" {
		return false, ErrEmptyIdentity
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := l.openForWrite()
	if err != nil {
		return false, err
	}
	defer f.Close()

	// The exclusive lock is held across the scan and the write.
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		return false, fmt.Errorf("locking ledger: %w", err)
	}
	defer unix.Flock(int(f.Fd()), unix.LOCK_UN)

	found, err := scanFor(f, identity)
	if err != nil {
		return false, err
	}
	if found {
		return false, nil
	}
	if err := appendLine(f, identity); err != nil {
		return false, err
	}
	return true, nil
}

// Identities returns every recorded identity in file order.
func (l *FileLedger) Identities() ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening ledger: %w", err)
	}
	defer f.Close()
	return ReadIdentities(f)
}

func (l *FileLedger) Close() error { return nil }

func (l *FileLedger) openForWrite() (*os.File, error) {
	f, err := os.OpenFile(l.path, os.O_RDWR|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening ledger for append: %w", err)
	}
	return f, nil
}

// ReadIdentities parses a newline-delimited identity list, skipping blank lines.
func ReadIdentities(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading identities: %w", err)
	}
	return out, nil
}

func scanFor(r io.Reader, identity string) (bool, error) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if strings.TrimRight(sc.Text(), "\r") == identity {
			return true, nil
		}
	}
	if err := sc.Err(); err != nil {
		return false, fmt.Errorf("reading ledger: %w", err)
	}
	return false, nil
}

// appendLine writes identity as its own line. A file whose last line lacks
// a terminator gets one first, so the previous identity stays intact.
func appendLine(f *os.File, identity string) error {
	if strings.ContainsAny(identity, "\r\n") {
		return fmt.Errorf("identity %q contains a line break", identity)
	}

	line := identity + "\n"
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("inspecting ledger: %w", err)
	}
	if size := info.Size(); size > 0 {
		last := make([]byte, 1)
		if _, err := f.ReadAt(last, size-1); err != nil {
			return fmt.Errorf("reading ledger tail: %w", err)
		}
		if last[0] != '\n' {
			line = "\n" + line
		}
	}

	if _, err := io.WriteString(f, line); err != nil {
		return fmt.Errorf("appending to ledger: %w", err)
	}
	return nil
}
