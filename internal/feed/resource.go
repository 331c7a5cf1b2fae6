package feed

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"golang.org/x/sys/unix"
)

var (
	// ErrResourceMissing reports that the feed file does not exist.
	ErrResourceMissing = errors.New("feed resource missing")
	// ErrResourceUnreadable reports that the feed exists but could not be read
	// in full: permissions, not a regular file, over the size limit, or I/O.
	ErrResourceUnreadable = errors.New("feed resource unreadable")
)

// Presence is the result of probing the feed location.
type Presence struct {
	Exists   bool
	Readable bool
}

// Probe reports whether path exists and whether this process may read it.
func Probe(path string) Presence {
	info, err := os.Stat(path)
	if err != nil {
		return Presence{}
	}
	return Presence{
		Exists:   true,
		Readable: info.Mode().IsRegular() && unix.Access(path, unix.R_OK) == nil,
	}
}

// Read returns the complete content of the feed in one shot. Only regular
// files are read and content larger than maxBytes is refused, so a FIFO or a
// runaway producer cannot block or exhaust the reader.
func Read(path string, maxBytes int64) ([]byte, error) {
	file, err := os.OpenFile(path, os.O_RDONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, classify(path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, classify(path, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("read feed %s: %w: not a regular file (%s)", path, ErrResourceUnreadable, info.Mode().Type())
	}
	if maxBytes > 0 && info.Size() > maxBytes {
		return nil, fmt.Errorf("read feed %s: %w: %d bytes exceeds limit of %d", path, ErrResourceUnreadable, info.Size(), maxBytes)
	}

	reader := io.Reader(file)
	if maxBytes > 0 {
		reader = io.LimitReader(file, maxBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, classify(path, err)
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("read feed %s: %w: content grew past limit of %d bytes", path, ErrResourceUnreadable, maxBytes)
	}
	return data, nil
}

// Load reads and parses the feed at path.
func Load(path string, maxBytes int64) ([]Entry, error) {
	data, err := Read(path, maxBytes)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func classify(path string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("read feed %s: %w: %w", path, ErrResourceMissing, err)
	}
	return fmt.Errorf("read feed %s: %w: %w", path, ErrResourceUnreadable, err)
}
