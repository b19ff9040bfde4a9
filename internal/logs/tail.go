package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

// Window is a batch of complete lines and the offset just past the last one.
type Window struct {
	Lines  []string
	Offset int64
}

// Last returns the final n lines of path. A missing file yields an empty
// window at offset zero.
func Last(path string, n int) (Window, error) {
	file, err := openLog(path)
	if err != nil || file == nil {
		return Window{}, err
	}
	defer file.Close()

	if n <= 0 {
		end, err := file.Seek(0, io.SeekEnd)
		if err != nil {
			return Window{}, fmt.Errorf("seek log file: %w", err)
		}
		return Window{Offset: end}, nil
	}

	ring := make([]string, n)
	count, next := 0, 0
	offset, err := scanLines(file, func(line string) {
		ring[next] = line
		next = (next + 1) % n
		if count < n {
			count++
		}
	})
	if err != nil {
		return Window{}, err
	}

	lines := make([]string, 0, count)
	start := 0
	if count == n {
		start = next
	}
	for i := 0; i < count; i++ {
		lines = append(lines, ring[(start+i)%n])
	}
	return Window{Lines: lines, Offset: offset}, nil
}

// Since returns the complete lines written at or after offset. When the file
// has shrunk below offset it was rotated or truncated, and reading restarts
// from the beginning.
func Since(path string, offset int64) (Window, error) {
	file, err := openLog(path)
	if err != nil || file == nil {
		return Window{}, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return Window{Offset: offset}, fmt.Errorf("stat log file: %w", err)
	}
	if offset < 0 || offset > info.Size() {
		offset = 0
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return Window{Offset: offset}, fmt.Errorf("seek log file: %w", err)
	}

	var lines []string
	consumed, err := scanLines(file, func(line string) {
		lines = append(lines, line)
	})
	if err != nil {
		return Window{Offset: offset}, err
	}
	return Window{Lines: lines, Offset: offset + consumed}, nil
}

// Follow calls emit for every line appended after offset, polling every
// interval, until ctx is done. It returns nil on cancellation.
func Follow(ctx context.Context, path string, offset int64, interval time.Duration, emit func(string)) error {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		window, err := Since(path, offset)
		if err != nil {
			return err
		}
		for _, line := range window.Lines {
			emit(line)
		}
		offset = window.Offset

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func openLog(path string) (*os.File, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("log path %q is a directory", path)
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return file, nil
}

// scanLines feeds each newline-terminated line of r to fn and returns the
// number of bytes consumed. A trailing partial line is left for the next read
// so a record being written is never split.
func scanLines(r io.Reader, fn func(string)) (int64, error) {
	reader := bufio.NewReaderSize(r, 64*1024)
	var consumed int64
	for {
		chunk, err := reader.ReadSlice('\n')
		if errors.Is(err, bufio.ErrBufferFull) {
			buf := append([]byte(nil), chunk...)
			for errors.Is(err, bufio.ErrBufferFull) {
				chunk, err = reader.ReadSlice('\n')
				buf = append(buf, chunk...)
			}
			chunk = buf
		}
		if err == nil {
			consumed += int64(len(chunk))
			fn(string(chunk[:len(chunk)-1]))
			continue
		}
		if errors.Is(err, io.EOF) {
			return consumed, nil
		}
		return consumed, fmt.Errorf("read log file: %w", err)
	}
}
