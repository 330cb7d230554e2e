package telemlog

import (
	"errors"
	"fmt"
	"os"
	"sync"

	lru "github.com/hashicorp/golang-lru"

	"github.com/stratoflight/telemlog/pkg/log"
)

// Module is the handle for one registered subsystem's log. The design
// assumes a single writer per module; the handle's mutex serializes the
// whole stat-rotate-evict-write sequence so retrieval never observes a file
// mid-rotation.
type Module struct {
	name       string
	dir        string
	recordSize int
	logger     log.Logger

	mu     sync.Mutex
	cfg    settings
	index  uint64
	sealed *lru.Cache // contents of closed data files, keyed by index
}

// Name returns the module name.
func (m *Module) Name() string { return m.name }

// RecordSize returns the fixed record size bound at registration.
func (m *Module) RecordSize() int { return m.recordSize }

// frameSize is the constant on-disk size of one framed record.
func (m *Module) frameSize() int { return m.recordSize + FrameOverhead }

// QuerySize returns the number of bytes RetrieveLatest(count) covers on
// disk, framing included. Callers sizing buffers ahead of retrieval use
// this as the capacity contract.
func (m *Module) QuerySize(count int) int {
	return count * m.frameSize()
}

// Settings returns the current size limits.
func (m *Module) Settings() (maxFileSize, maxDirSize int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg.maxFileSize, m.cfg.maxDirSize
}

// EditSetting updates one size limit and rewrites the settings file
// atomically. Values outside [1, hard limit] fail with ErrInvalidSetting;
// on failure the in-memory value is left untouched.
func (m *Module) EditSetting(field Setting, value int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.cfg
	switch field {
	case MaxFileSize:
		if value < 1 || value > HardLimitFileSize {
			return fmt.Errorf("%w: %s=%d, limit %d", ErrInvalidSetting, field, value, HardLimitFileSize)
		}
		next.maxFileSize = value
	case MaxDirSize:
		if value < 1 || value > HardLimitDirSize {
			return fmt.Errorf("%w: %s=%d, limit %d", ErrInvalidSetting, field, value, HardLimitDirSize)
		}
		next.maxDirSize = value
	default:
		return fmt.Errorf("%w: unknown setting %d", ErrInvalidSetting, field)
	}

	if err := writeSettings(m.dir, next); err != nil {
		return err
	}
	m.cfg = next
	m.logger.Info("setting updated",
		log.String("module", m.name), log.String("setting", field.String()), log.Int64("value", value))
	return nil
}

// Append logs one record durably. Payloads shorter than the record size are
// left-justified and zero-padded to it; retrieval returns the padded
// record, so callers that need the original length must carry it inside the
// payload. If appending would push the active file past its size limit the
// file is rotated first, so a completed append never leaves a file over
// the limit.
//
// An ErrRotation return means eviction of the oldest file failed; the
// record itself has still been written.
func (m *Module) Append(payload []byte) error {
	if len(payload) > m.recordSize {
		return fmt.Errorf("%w: %d bytes into %d-byte records", ErrCapacity, len(payload), m.recordSize)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	active := dataFilePath(m.dir, m.index)
	var size int64
	if fi, err := os.Stat(active); err == nil {
		size = fi.Size()
	} else if !os.IsNotExist(err) {
		return err
	}

	var evictErr error
	if size+int64(m.frameSize()) > m.cfg.maxFileSize {
		if err := m.rotate(); err != nil {
			return err
		}
		evictErr = m.evictExcess()
		active = dataFilePath(m.dir, m.index)
	}

	frame := encodeFrame(make([]byte, 0, m.frameSize()), payload, m.recordSize)
	f, err := os.OpenFile(active, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(frame); err != nil {
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
	return evictErr
}

// rotate advances the active index durably and creates the new empty data
// file. The index write comes first: a crash after it leaves a missing
// active file, which registration reconciles, while a crash before it is
// invisible to readers.
func (m *Module) rotate() error {
	next := m.index + 1
	if err := writeIndex(m.dir, next); err != nil {
		return fmt.Errorf("%w: persist index %d: %v", ErrRotation, next, err)
	}
	if err := ensureDataFile(dataFilePath(m.dir, next)); err != nil {
		return fmt.Errorf("%w: create file %d: %v", ErrRotation, next, err)
	}
	m.index = next
	m.logger.Debug("rotated to new log file", log.String("module", m.name), log.Uint64("index", next))
	return nil
}

// evictExcess deletes the single oldest retained file when the directory
// exceeds its file budget. Eviction failure never blocks the pending write;
// the caller surfaces it after appending.
func (m *Module) evictExcess() error {
	budget := m.cfg.fileBudget()
	if m.index < budget {
		return nil
	}
	oldest := m.index - budget
	m.sealed.Remove(oldest)
	if err := os.Remove(dataFilePath(m.dir, oldest)); err != nil && !errors.Is(err, os.ErrNotExist) {
		m.logger.Warn("evicting oldest log file failed",
			log.String("module", m.name), log.Uint64("index", oldest), log.Err(err))
		return fmt.Errorf("%w: evict file %d: %v", ErrRotation, oldest, err)
	}
	m.logger.Debug("evicted oldest log file", log.String("module", m.name), log.Uint64("index", oldest))
	return nil
}
