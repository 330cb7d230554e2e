package telemlog

import (
	"errors"
	"fmt"
	"os"
)

// RetrieveLatest returns up to count of the most recently appended records,
// oldest of the returned batch first. Each payload is exactly RecordSize
// bytes; zero padding from short appends is not stripped. The scan starts
// at the active file and walks backward one whole frame at a time, crossing
// into older files until the request is filled; if fewer than count records
// are retained it fails with ErrInsufficientLogs instead of returning a
// short batch. Retrieval with no intervening append is idempotent.
func (m *Module) RetrieveLatest(count int) ([][]byte, error) {
	if count < 1 {
		return nil, fmt.Errorf("%w: requested %d", ErrInsufficientLogs, count)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	frameSize := int64(m.frameSize())
	out := make([][]byte, 0, count)

	idx := m.index
	for len(out) < count {
		buf, err := m.readDataFile(idx)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				// Past the oldest retained file.
				break
			}
			return nil, err
		}

		// Frame k (newest first) starts at size-(k+1)*frameSize. Anchoring
		// at the file length means a torn tail from a mid-append crash
		// shows up as a delimiter mismatch, never as a shifted payload.
		size := int64(len(buf))
		for k := int64(0); len(out) < count; k++ {
			start := size - (k+1)*frameSize
			if start < 0 {
				break
			}
			payload, err := decodeFrame(buf[start : start+frameSize])
			if err != nil {
				return nil, fmt.Errorf("%s/%d%s offset %d: %w", m.name, idx, dataFileExt, start, err)
			}
			out = append(out, payload)
		}

		if idx == 0 {
			break
		}
		idx--
	}

	if len(out) < count {
		return nil, fmt.Errorf("%w: requested %d, have %d", ErrInsufficientLogs, count, len(out))
	}

	// The scan collects newest first; callers get oldest first.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// readDataFile returns the contents of one data file. Files behind the
// active index are immutable until evicted, so they are served from the
// sealed-file cache; the active file is always read fresh.
func (m *Module) readDataFile(idx uint64) ([]byte, error) {
	if idx != m.index {
		if v, ok := m.sealed.Get(idx); ok {
			return v.([]byte), nil
		}
	}
	buf, err := os.ReadFile(dataFilePath(m.dir, idx))
	if err != nil {
		return nil, err
	}
	if idx != m.index {
		m.sealed.Add(idx, buf)
	}
	return buf, nil
}
