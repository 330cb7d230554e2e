package telemlog

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	indexFileName  = "index.inf"
	moduleFileName = "module.inf"
	dataFileExt    = ".dat"
)

// dataFilePath returns the path of the numbered data file for idx.
func dataFilePath(dir string, idx uint64) string {
	return filepath.Join(dir, strconv.FormatUint(idx, 10)+dataFileExt)
}

// loadIndex reads the persisted active file index. The second return value
// reports whether an index file existed.
func loadIndex(dir string) (uint64, bool, error) {
	b, err := os.ReadFile(filepath.Join(dir, indexFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}
		return 0, false, err
	}
	idx, err := strconv.ParseUint(strings.TrimSpace(string(b)), 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("telemlog: bad index file: %w", err)
	}
	return idx, true, nil
}

// writeIndex durably persists the active file index. It must not return
// before the new value is safe on disk: a reader that observes the new
// index afterwards can rely on it surviving a crash.
func writeIndex(dir string, idx uint64) error {
	return writeFileDurable(filepath.Join(dir, indexFileName), fmt.Appendf(nil, "%d\n", idx))
}

// loadRecordSize reads module.inf. The second return value reports whether
// the file existed.
func loadRecordSize(dir string) (int, bool, error) {
	b, err := os.ReadFile(filepath.Join(dir, moduleFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}
		return 0, false, err
	}
	size, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil {
		return 0, false, fmt.Errorf("telemlog: bad module file: %w", err)
	}
	return size, true, nil
}

func writeRecordSize(dir string, size int) error {
	return writeFileDurable(filepath.Join(dir, moduleFileName), fmt.Appendf(nil, "%d\n", size))
}

// writeFileDurable writes data through a synced temp file and renames it
// into place, so a crash mid-write never leaves a partial file visible.
func writeFileDurable(path string, data []byte) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
