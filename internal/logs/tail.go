package logs

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
)

// maxLineBytes bounds a single log line.
const maxLineBytes = 1024 * 1024

// TailOptions selects which part of a file to read. A negative Offset reads
// the last Limit lines (all lines when Limit <= 0); otherwise lines appended
// after Offset are returned.
type TailOptions struct {
	Offset int64
	Limit  int
}

// TailResult carries lines and the offset to resume from.
type TailResult struct {
	Lines  []string
	Offset int64
}

// Tail reads path according to opts. A missing file is reported with
// os.ErrNotExist so callers can distinguish it from an empty one.
func Tail(path string, opts TailOptions) (TailResult, error) {
	result := TailResult{Offset: opts.Offset}

	file, err := os.Open(path)
	if err != nil {
		return result, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return result, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return result, fmt.Errorf("log path %q is a directory", path)
	}

	if opts.Offset < 0 {
		lines, err := lastLines(file, opts.Limit)
		if err != nil {
			return result, err
		}
		result.Lines = lines
		result.Offset = info.Size()
		return result, nil
	}

	offset := opts.Offset
	if offset > info.Size() {
		// Rotated or truncated since the caller last read; start over.
		offset = 0
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return result, fmt.Errorf("seek log file: %w", err)
	}
	lines, read, err := scanLines(file)
	if err != nil {
		return result, err
	}
	result.Lines = lines
	result.Offset = offset + read
	return result, nil
}

// IsNotExist reports whether err means the log file is absent.
func IsNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}

func lastLines(r io.Reader, limit int) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	if limit <= 0 {
		var lines []string
		for scanner.Scan() {
			lines = append(lines, scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read log file: %w", err)
		}
		return lines, nil
	}

	ring := make([]string, limit)
	count := 0
	idx := 0
	for scanner.Scan() {
		ring[idx] = scanner.Text()
		idx = (idx + 1) % limit
		if count < limit {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log file: %w", err)
	}

	lines := make([]string, count)
	if count == limit {
		for i := 0; i < count; i++ {
			lines[i] = ring[(idx+i)%limit]
		}
	} else {
		copy(lines, ring[:count])
	}
	return lines, nil
}

// scanLines returns complete lines and the number of bytes they span. A
// trailing partial line is left for the next read.
func scanLines(r io.Reader) ([]string, int64, error) {
	reader := bufio.NewReaderSize(r, 64*1024)
	var lines []string
	var consumed int64
	for {
		line, err := reader.ReadString('\n')
		if err == io.EOF {
			return lines, consumed, nil
		}
		if err != nil {
			return nil, 0, fmt.Errorf("read log file: %w", err)
		}
		if len(line) > maxLineBytes {
			line = line[:maxLineBytes]
		}
		consumed += int64(len(line))
		lines = append(lines, trimNewline(line))
	}
}

func trimNewline(line string) string {
	n := len(line)
	if n > 0 && line[n-1] == '\n' {
		n--
	}
	if n > 0 && line[n-1] == '\r' {
		n--
	}
	return line[:n]
}
