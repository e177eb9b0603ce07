// Package counter manages the on-disk build counter store.
//
// The store is a text file whose entire content is the decimal form of a
// non-negative integer. It is read once and rewritten once per build.
package counter

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/foxytanuki/buildstamp/internal/fsutil"
)

// DefaultPath is the counter store location relative to the working directory.
const DefaultPath = "build_number"

var (
	ErrInvalid  = errors.New("counter is not an integer")
	ErrNegative = errors.New("counter is negative")
	ErrOverflow = errors.New("counter overflows int")
)

// Store is a counter store backed by a single file.
type Store struct {
	path string
}

// New returns a store for path. An empty path selects DefaultPath.
func New(path string) *Store {
	if path == "" {
		path = DefaultPath
	}
	return &Store{path: path}
}

// Path returns the file backing the store.
func (s *Store) Path() string {
	return s.path
}

// Load reads and parses the stored value.
func (s *Store) Load() (int, error) {
	data, err := fsutil.ReadFile(s.path)
	if err != nil {
		return 0, err
	}
	return Parse(data)
}

// Save overwrites the store with n.
func (s *Store) Save(n int) error {
	return fsutil.WriteFile(s.path, Format(n))
}

// Increment loads the stored value, adds one and saves the result.
func (s *Store) Increment() (prev, next int, err error) {
	prev, err = s.Load()
	if err != nil {
		return 0, 0, err
	}
	next, err = Next(prev)
	if err != nil {
		return prev, 0, err
	}
	if err := s.Save(next); err != nil {
		return prev, 0, err
	}
	return prev, next, nil
}

// Parse decodes store content. Surrounding whitespace is ignored.
func Parse(data []byte) (int, error) {
	text := strings.TrimSpace(string(data))
	n, err := strconv.Atoi(text)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) && errors.Is(numErr.Err, strconv.ErrRange) {
			return 0, fmt.Errorf("%w: %q", ErrOverflow, text)
		}
		return 0, fmt.Errorf("%w: %q", ErrInvalid, text)
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: %d", ErrNegative, n)
	}
	return n, nil
}

// Format encodes n the way it is persisted: bare decimal, no newline.
func Format(n int) []byte {
	return []byte(strconv.Itoa(n))
}

// Next returns n+1.
func Next(n int) (int, error) {
	if n == math.MaxInt {
		return 0, fmt.Errorf("%w: %d + 1", ErrOverflow, n)
	}
	return n + 1, nil
}
