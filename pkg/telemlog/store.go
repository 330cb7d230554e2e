package telemlog

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru"

	"github.com/stratoflight/telemlog/pkg/log"
)

// defaultFileCacheSize is the number of sealed data files each module keeps
// decoded in memory for retrieval.
const defaultFileCacheSize = 4

// Store is the datalogger's module registry, rooted at a log directory.
// One long-lived Store owns every module handle for the process lifetime;
// handles are passed explicitly to collaborators.
type Store struct {
	root       string
	logger     log.Logger
	cacheFiles int

	mu      sync.Mutex
	modules map[string]*Module
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used by the store and its modules.
func WithLogger(l log.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithFileCacheSize sets how many sealed data files each module caches for
// retrieval. Values below one are ignored.
func WithFileCacheSize(n int) Option {
	return func(s *Store) {
		if n >= 1 {
			s.cacheFiles = n
		}
	}
}

// Open creates a Store rooted at dir, creating the directory if needed.
// On-disk state from earlier runs is picked up lazily as modules register.
func Open(dir string, opts ...Option) (*Store, error) {
	s := &Store{
		root:       dir,
		logger:     log.NewNoopLogger(),
		cacheFiles: defaultFileCacheSize,
		modules:    make(map[string]*Module),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	return s, nil
}

// Register binds a module name to a fixed record size and returns its
// handle. Registration is idempotent for an equal record size; a differing
// size fails with ErrAlreadyRegistered, whether the earlier registration
// happened this run or before a restart.
func (s *Store) Register(name string, recordSize int) (*Module, error) {
	if recordSize < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidSize, recordSize)
	}
	if name == "" || strings.ContainsAny(name, "/\\") {
		return nil, fmt.Errorf("%w: invalid module name %q", ErrInvalidSize, name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if m, ok := s.modules[name]; ok {
		if m.recordSize != recordSize {
			return nil, fmt.Errorf("%w: %s holds %d-byte records, requested %d",
				ErrAlreadyRegistered, name, m.recordSize, recordSize)
		}
		return m, nil
	}

	m, err := s.openModule(name, recordSize)
	if err != nil {
		return nil, err
	}
	s.modules[name] = m
	return m, nil
}

// Lookup returns the handle of a module registered this run.
func (s *Store) Lookup(name string) (*Module, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.modules[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, name)
	}
	return m, nil
}

// openModule creates or replays the on-disk layout for one module:
// module.inf (record size), settings.cfg, index.inf and the active data
// file, reconciling the persisted index against the files actually present.
func (s *Store) openModule(name string, recordSize int) (*Module, error) {
	dir := filepath.Join(s.root, name)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}

	onDisk, haveSize, err := loadRecordSize(dir)
	if err != nil {
		return nil, err
	}
	if haveSize && onDisk != recordSize {
		return nil, fmt.Errorf("%w: %s holds %d-byte records, requested %d",
			ErrAlreadyRegistered, name, onDisk, recordSize)
	}
	if !haveSize {
		if err := writeRecordSize(dir, recordSize); err != nil {
			return nil, err
		}
	}

	cfg, err := loadSettings(dir)
	if err != nil {
		return nil, err
	}

	persisted, haveIndex, err := loadIndex(dir)
	if err != nil {
		return nil, err
	}
	active, err := reconcileIndex(dir, persisted)
	if err != nil {
		return nil, err
	}
	if active != persisted || !haveIndex {
		if active != persisted {
			s.logger.Warn("active index reconciled against data files",
				log.String("module", name), log.Uint64("persisted", persisted), log.Uint64("active", active))
		}
		if err := writeIndex(dir, active); err != nil {
			return nil, err
		}
	}
	if err := ensureDataFile(dataFilePath(dir, active)); err != nil {
		return nil, err
	}

	sealed, err := lru.New(s.cacheFiles)
	if err != nil {
		return nil, err
	}

	s.logger.Info("module registered",
		log.String("module", name), log.Int("record_size", recordSize), log.Uint64("index", active))

	return &Module{
		name:       name,
		dir:        dir,
		recordSize: recordSize,
		logger:     s.logger,
		cfg:        cfg,
		index:      active,
		sealed:     sealed,
	}, nil
}

// reconcileIndex resolves the persisted active index against the numbered
// data files actually on disk. A crash between creating a rotated file and
// persisting the new index can leave either side ahead; the highest index
// with a file present wins. With no data files at all the persisted value
// is honored as-is.
func reconcileIndex(dir string, persisted uint64) (uint64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	var highest uint64
	found := false
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, dataFileExt) {
			continue
		}
		n, err := strconv.ParseUint(strings.TrimSuffix(name, dataFileExt), 10, 64)
		if err != nil {
			continue
		}
		if !found || n > highest {
			highest = n
			found = true
		}
	}
	if !found {
		return persisted, nil
	}
	return highest, nil
}

// ensureDataFile creates an empty data file if none exists.
func ensureDataFile(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	return f.Close()
}
