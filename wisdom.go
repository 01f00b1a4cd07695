package aofft

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

const wisdomHeader = "# aofft wisdom v1"

// WisdomEntry is the measured best backend for one plan request.
type WisdomEntry struct {
	Backend BackendTag
	Cost    time.Duration
}

// Wisdom caches the fastest backend per (precision, direction, shape, axes).
// It is safe for concurrent use.
type Wisdom struct {
	mu      sync.RWMutex
	entries map[string]WisdomEntry
}

// DefaultWisdom is filled by FlagMeasure plans and consulted by plans that do
// not name a backend.
var DefaultWisdom = NewWisdom()

// NewWisdom creates a new empty wisdom cache.
func NewWisdom() *Wisdom {
	return &Wisdom{entries: make(map[string]WisdomEntry)}
}

func wisdomKey(req Request) string {
	dims := make([]string, len(req.Shape))
	for i, d := range req.Shape {
		dims[i] = strconv.Itoa(d)
	}

	axes := make([]string, len(req.Axes))
	for i, a := range req.Axes {
		axes[i] = strconv.Itoa(a)
	}

	return fmt.Sprintf("%s:%s:%s:%s", req.Precision, req.Direction, strings.Join(dims, "x"), strings.Join(axes, ","))
}

// Store records tag as the best backend for key, keeping the cheaper entry
// if one exists.
func (w *Wisdom) Store(key string, tag BackendTag, cost time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if old, ok := w.entries[key]; ok && old.Cost > 0 && old.Cost <= cost && old.Backend != tag {
		return
	}

	w.entries[key] = WisdomEntry{Backend: tag, Cost: cost}
}

// Lookup returns the backend recorded for key.
func (w *Wisdom) Lookup(key string) (BackendTag, bool) {
	w.mu.RLock()
	e, ok := w.entries[key]
	w.mu.RUnlock()

	return e.Backend, ok
}

// Len returns the number of entries.
func (w *Wisdom) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return len(w.entries)
}

// Clear removes all entries.
func (w *Wisdom) Clear() {
	w.mu.Lock()
	clear(w.entries)
	w.mu.Unlock()
}

// Export writes one "key backend nanoseconds" line per entry, sorted by key.
func (w *Wisdom) Export(out io.Writer) error {
	w.mu.RLock()
	keys := make([]string, 0, len(w.entries))
	for k := range w.entries {
		keys = append(keys, k)
	}

	slices.Sort(keys)

	var sb strings.Builder

	sb.WriteString(wisdomHeader)
	sb.WriteByte('\n')

	for _, k := range keys {
		e := w.entries[k]
		fmt.Fprintf(&sb, "%s %s %d\n", k, e.Backend, e.Cost.Nanoseconds())
	}
	w.mu.RUnlock()

	_, err := io.WriteString(out, sb.String())

	return err
}

// Import merges entries written by Export. Blank lines and lines starting
// with '#' are ignored.
func (w *Wisdom) Import(in io.Reader) error {
	scanner := bufio.NewScanner(in)
	lineNo := 0

	parsed := make(map[string]WisdomEntry)

	for scanner.Scan() {
		lineNo++

		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) != 3 {
			return fmt.Errorf("wisdom line %d: want 3 fields, got %d", lineNo, len(fields))
		}

		ns, err := strconv.ParseInt(fields[2], 10, 64)
		if err != nil {
			return fmt.Errorf("wisdom line %d: %w", lineNo, err)
		}

		parsed[fields[0]] = WisdomEntry{Backend: BackendTag(fields[1]), Cost: time.Duration(ns)}
	}

	if err := scanner.Err(); err != nil {
		return err
	}

	w.mu.Lock()
	for k, e := range parsed {
		w.entries[k] = e
	}
	w.mu.Unlock()

	return nil
}

// ImportWisdom loads wisdom data from a file.
// The file should be in the format produced by ExportWisdom.
func ImportWisdom(filename string) error {
	f, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("failed to open wisdom file: %w", err)
	}

	defer f.Close()

	if err := DefaultWisdom.Import(f); err != nil {
		return fmt.Errorf("failed to import wisdom: %w", err)
	}

	return nil
}

// ExportWisdom saves the default wisdom cache to a file.
func ExportWisdom(filename string) error {
	return ExportWisdomTo(filename, DefaultWisdom)
}

// ExportWisdomTo saves a specific wisdom cache to a file.
func ExportWisdomTo(filename string, wisdom *Wisdom) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create wisdom file: %w", err)
	}

	defer file.Close()

	if err := wisdom.Export(file); err != nil {
		return fmt.Errorf("failed to export wisdom: %w", err)
	}

	return nil
}

// ImportWisdomFromString loads wisdom data from a string.
// This is useful for embedding wisdom data in compiled binaries.
func ImportWisdomFromString(data string) error {
	err := DefaultWisdom.Import(strings.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to import wisdom from string: %w", err)
	}

	return nil
}

// ClearWisdom removes all entries from the default wisdom cache.
func ClearWisdom() {
	DefaultWisdom.Clear()
}

// WisdomLen returns the number of entries in the default wisdom cache.
func WisdomLen() int {
	return DefaultWisdom.Len()
}
