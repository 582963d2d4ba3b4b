// Package catalog loads the stock character catalog from a YAML file and
// serves it as an immutable, ordered set. Stock characters are shared by
// all users and never mutated; per-user edits go through the roster's
// copy-on-write path instead.
package catalog

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/scrypster/troupe/pkg/types"
)

// entry is the YAML shape of one stock character.
type entry struct {
	ID            string   `yaml:"id"`
	Name          string   `yaml:"name"`
	Age           int      `yaml:"age"`
	Sex           string   `yaml:"sex"`
	Personality   string   `yaml:"personality"`
	Appearance    string   `yaml:"appearance"`
	Background    string   `yaml:"background"`
	Avatar        string   `yaml:"avatar"`
	Color         string   `yaml:"color"`
	Temperature   *float64 `yaml:"temperature"`
	MaxTokens     *int     `yaml:"max_tokens"`
	ContextWindow *int     `yaml:"context_window"`
	MemoryEnabled *bool    `yaml:"memory_enabled"`
	ChatExamples  []struct {
		User      string `yaml:"user"`
		Character string `yaml:"character"`
	} `yaml:"chat_examples"`
	Relationships []struct {
		Target      string `yaml:"target"`
		TargetName  string `yaml:"target_name"`
		Description string `yaml:"description"`
	} `yaml:"relationships"`
	Tags []string `yaml:"tags"`
}

type file struct {
	Characters []entry `yaml:"characters"`
}

// Catalog is the in-memory stock character set. File order is the catalog
// order surfaced to users.
type Catalog struct {
	path string

	mu    sync.RWMutex
	chars []types.Character
	byID  map[string]int

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// Load reads the catalog file and returns a ready Catalog.
func Load(path string) (*Catalog, error) {
	c := &Catalog{path: path}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload re-reads the catalog file. On any error the previous catalog stays
// in place.
func (c *Catalog) Reload() error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return fmt.Errorf("catalog: failed to read %s: %w", c.path, err)
	}

	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("catalog: failed to parse %s: %w", c.path, err)
	}

	chars := make([]types.Character, 0, len(f.Characters))
	byID := make(map[string]int, len(f.Characters))
	for _, e := range f.Characters {
		ch, err := e.toCharacter()
		if err != nil {
			log.Printf("catalog: skipping entry %q: %v", e.ID, err)
			continue
		}
		if _, dup := byID[ch.ID]; dup {
			log.Printf("catalog: skipping duplicate entry %q", ch.ID)
			continue
		}
		byID[ch.ID] = len(chars)
		chars = append(chars, *ch)
	}

	c.mu.Lock()
	c.chars = chars
	c.byID = byID
	c.mu.Unlock()

	log.Printf("catalog: loaded %d stock characters from %s", len(chars), c.path)
	return nil
}

// All returns the stock characters in catalog order. The returned slice is
// a copy and safe to retain.
func (c *Catalog) All() []types.Character {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]types.Character, len(c.chars))
	copy(out, c.chars)
	return out
}

// Get returns the stock character with the given id.
func (c *Catalog) Get(id string) (*types.Character, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.byID[id]
	if !ok {
		return nil, false
	}
	ch := c.chars[i]
	return &ch, true
}

// Len returns the number of stock characters currently loaded.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.chars)
}

// Watch reloads the catalog whenever the file changes on disk. Editors and
// config management tools typically replace the file, so the watch is on
// the parent directory with events filtered by name. Call Stop to clean up.
func (c *Catalog) Watch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("catalog: failed to create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(c.path)); err != nil {
		_ = w.Close()
		return fmt.Errorf("catalog: failed to watch %s: %w", filepath.Dir(c.path), err)
	}
	c.watcher = w
	c.done = make(chan struct{})

	go c.loop()
	log.Printf("catalog: watching %s for changes", c.path)
	return nil
}

// Stop shuts down the watcher. No-op when Watch was never called.
func (c *Catalog) Stop() {
	if c.watcher == nil {
		return
	}
	_ = c.watcher.Close()
	<-c.done
}

func (c *Catalog) loop() {
	defer close(c.done)
	for {
		select {
		case evt, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			if evt.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if filepath.Clean(evt.Name) != filepath.Clean(c.path) {
				continue
			}
			if err := c.Reload(); err != nil {
				log.Printf("catalog: reload failed, keeping previous catalog: %v", err)
			}
		case err, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("catalog: watcher error: %v", err)
		}
	}
}

func (e *entry) toCharacter() (*types.Character, error) {
	if e.ID == "" {
		return nil, fmt.Errorf("id is required")
	}

	draft := &types.CharacterDraft{
		Name:        e.Name,
		Personality: e.Personality,
	}
	if e.Age != 0 {
		age := e.Age
		draft.Age = &age
	}
	if err := types.ValidateCharacterDraft(draft); err != nil {
		return nil, err
	}

	ch := &types.Character{
		ID:            e.ID,
		IsDefault:     true,
		Name:          e.Name,
		Age:           e.Age,
		Sex:           e.Sex,
		Personality:   e.Personality,
		Appearance:    e.Appearance,
		Background:    e.Background,
		Avatar:        e.Avatar,
		Color:         e.Color,
		Temperature:   types.DefaultTemperature,
		MaxTokens:     types.DefaultMaxTokens,
		ContextWindow: types.DefaultContextWindow,
		MemoryEnabled: true,
		Tags:          e.Tags,
	}
	if ch.Avatar == "" {
		ch.Avatar = types.DefaultAvatar
	}
	if ch.Color == "" {
		ch.Color = types.DefaultColor
	}
	if e.Temperature != nil {
		ch.Temperature = *e.Temperature
	}
	if e.MaxTokens != nil {
		ch.MaxTokens = *e.MaxTokens
	}
	if e.ContextWindow != nil {
		ch.ContextWindow = *e.ContextWindow
	}
	if e.MemoryEnabled != nil {
		ch.MemoryEnabled = *e.MemoryEnabled
	}
	for _, ex := range e.ChatExamples {
		ch.ChatExamples = append(ch.ChatExamples, types.ChatExample{User: ex.User, Character: ex.Character})
	}
	for _, r := range e.Relationships {
		ch.Relationships = append(ch.Relationships, types.CharacterRelationship{
			TargetCharacterID: r.Target,
			TargetName:        r.TargetName,
			Description:       r.Description,
		})
	}
	return ch, nil
}
