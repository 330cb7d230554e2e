// Package boot maintains the persistent boot counter. The count
// distinguishes log data written across power cycles and must survive every
// restart, so the file is rewritten durably on each boot.
package boot

import (
	"os"
	"strconv"
	"strings"
)

// Next returns the number of completed boots before this one and durably
// records the new count: 0 on a fresh system, 1 on the second boot, and so
// on. Unparseable contents restart the count at zero; only a filesystem
// failure is returned as an error.
func Next(path string) (int, error) {
	count := 0
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if n, perr := strconv.Atoi(strings.TrimSpace(string(b))); perr == nil && n >= 0 {
			count = n
		}
	case !os.IsNotExist(err):
		return 0, err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, err
	}
	if _, err := f.WriteString(strconv.Itoa(count + 1)); err != nil {
		f.Close()
		return 0, err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return 0, err
	}
	if err := f.Close(); err != nil {
		return 0, err
	}
	return count, nil
}
