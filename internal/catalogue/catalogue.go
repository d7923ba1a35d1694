// Package catalogue holds the lessons available to play.
package catalogue

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rahul/storylab/internal/scenario"
)

// Lesson is a loaded script and where it came from.
type Lesson struct {
	Script scenario.Script
	Path   string
	// Warnings holds lint findings for lessons admitted in lenient mode.
	Warnings error
}

func (l Lesson) ID() string { return l.Script.ID }

// Catalogue is safe for concurrent use.
type Catalogue struct {
	mu      sync.RWMutex
	lessons map[string]Lesson
}

func New() *Catalogue {
	return &Catalogue{lessons: make(map[string]Lesson)}
}

// Register adds a lesson. Lesson IDs are unique.
func (c *Catalogue) Register(l Lesson) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := l.ID()
	if id == "" {
		return fmt.Errorf("lesson from %q has no id", l.Path)
	}
	if prev, exists := c.lessons[id]; exists {
		return fmt.Errorf("lesson %q is already registered from %q", id, prev.Path)
	}
	c.lessons[id] = l
	return nil
}

func (c *Catalogue) Get(id string) (Lesson, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	l, ok := c.lessons[id]
	return l, ok
}

// List returns lessons ordered by chapter and then id.
func (c *Catalogue) List() []Lesson {
	c.mu.RLock()
	defer c.mu.RUnlock()

	list := make([]Lesson, 0, len(c.lessons))
	for _, l := range c.lessons {
		list = append(list, l)
	}
	sort.Slice(list, func(i, j int) bool {
		a, b := list[i].Script, list[j].Script
		if a.Chapter != b.Chapter {
			return a.Chapter < b.Chapter
		}
		return a.ID < b.ID
	})
	return list
}

func (c *Catalogue) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.lessons)
}

// LoadDir loads every .yaml or .yml file in dir. Scripts that fail to
// parse are skipped. check validates each task's lab and config; scripts
// with uncompletable tasks are skipped when strict is set and admitted
// with warnings otherwise. The returned error
// joins every problem found; lessons that loaded stay registered.
func (c *Catalogue) LoadDir(dir string, strict bool, check func(lab string, config map[string]any) error) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read lessons dir: %w", err)
	}

	var errs []error
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		path := filepath.Join(dir, e.Name())

		script, err := scenario.LoadFile(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		lesson := Lesson{Script: script, Path: path}
		if lintErr := scenario.Lint(script, check); lintErr != nil {
			if strict {
				errs = append(errs, lintErr)
				continue
			}
			log.Printf("⚠️ Lesson %s loaded with problems: %v", script.ID, lintErr)
			lesson.Warnings = lintErr
		}
		if err := c.Register(lesson); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
