package store

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/sirupsen/logrus"
)

const (
	// WildcardMarker is the directory name that stands for any single path segment
	WildcardMarker = "__"

	// Extension is the suffix every mock file carries
	Extension = ".mock"
)

type (
	// Store is a read-only view over a directory of mock files
	Store struct {
		fsys    fs.FS
		refresh time.Duration
		logger  logrus.FieldLogger
		now     func() time.Time

		mu        sync.RWMutex
		wildcards []string
		builtAt   time.Time
		built     bool
	}

	config struct {
		refresh time.Duration
		logger  logrus.FieldLogger
		now     func() time.Time
	}

	// Option is a function that can modify a default config
	Option func(c *config)
)

// New returns a Store rooted at the directory root
func New(root string, options ...Option) *Store {
	return NewFS(os.DirFS(root), options...)
}

// NewFS returns a Store over any fs.FS, mostly useful for tests
func NewFS(fsys fs.FS, options ...Option) *Store {
	c := &config{
		logger: logrus.StandardLogger(),
		now:    time.Now,
	}

	for _, applyOption := range options {
		applyOption(c)
	}

	return &Store{
		fsys:    fsys,
		refresh: c.refresh,
		logger:  c.logger,
		now:     c.now,
	}
}

// WithRefresh rebuilds the wildcard index once it is older than d. Zero builds it once.
func WithRefresh(d time.Duration) Option {
	return func(c *config) {
		c.refresh = d
	}
}

// WithLogger overrides the default logger
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithClock overrides the time source used to age the wildcard index
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		c.now = now
	}
}

// Read returns the content of the slash separated file name relative to the store root
func (s *Store) Read(name string) (string, error) {
	name = strings.TrimPrefix(name, "/")
	if !fs.ValidPath(name) {
		return "", &fs.PathError{Op: "read", Path: name, Err: fs.ErrInvalid}
	}

	content, err := fs.ReadFile(s.fsys, name)
	if err != nil {
		return "", err
	}

	return string(content), nil
}

// Wildcards returns every directory containing a wildcard segment, deepest first
func (s *Store) Wildcards() []string {
	s.mu.RLock()
	if s.built && (s.refresh <= 0 || s.now().Sub(s.builtAt) < s.refresh) {
		wildcards := s.wildcards
		s.mu.RUnlock()
		return wildcards
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Another request may have rebuilt it while we waited
	if s.built && (s.refresh <= 0 || s.now().Sub(s.builtAt) < s.refresh) {
		return s.wildcards
	}

	wildcards, err := s.index()
	if err != nil {
		s.logger.WithError(err).Warn("failed to index wildcard directories")
	}

	s.wildcards = wildcards
	s.builtAt = s.now()
	s.built = true

	s.logger.WithField("wildcards", len(wildcards)).Debug("wildcard index built")

	return wildcards
}

func (s *Store) index() ([]string, error) {
	var wildcards []string

	err := doublestar.GlobWalk(s.fsys, "**", func(p string, d fs.DirEntry) error {
		if !d.IsDir() || p == "." || p == "" {
			return nil
		}
		if hasWildcard(p) {
			wildcards = append(wildcards, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk mock directories: %w", err)
	}

	sort.SliceStable(wildcards, func(i, j int) bool {
		a, b := strings.Split(wildcards[i], "/"), strings.Split(wildcards[j], "/")
		if len(a) != len(b) {
			return len(a) > len(b)
		}
		if wa, wb := countWildcards(a), countWildcards(b); wa != wb {
			return wa < wb
		}
		return wildcards[i] < wildcards[j]
	})

	return wildcards, nil
}

// Join builds a slash separated store path, the root being the empty string
func Join(elem ...string) string {
	joined := path.Join(elem...)
	if joined == "." {
		return ""
	}

	return strings.TrimPrefix(joined, "/")
}

func hasWildcard(dir string) bool {
	return countWildcards(strings.Split(dir, "/")) > 0
}

func countWildcards(segments []string) int {
	n := 0
	for _, s := range segments {
		if s == WildcardMarker {
			n++
		}
	}

	return n
}
