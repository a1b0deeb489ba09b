// Package i18n loads YAML message catalogs and resolves user-facing strings.
// Lookups are pure: a missing key resolves to the key itself so callers never
// render an empty message.
package i18n

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Catalog holds the loaded messages for every language found in the locale
// directory. Reload replaces the whole message map atomically under a lock.
type Catalog struct {
	dir      string
	fallback string

	mu       sync.RWMutex
	messages map[string]map[string]string // lang -> flattened key -> text
}

// Load reads every *.yaml file in dir (file stem = language code) and returns
// a catalog with the given fallback language.
func Load(dir, fallback string) (*Catalog, error) {
	c := &Catalog{dir: dir, fallback: fallback}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload re-reads all catalog files from the locale directory.
func (c *Catalog) Reload() error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("i18n: read locale dir: %w", err)
	}

	messages := make(map[string]map[string]string)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".yaml") {
			continue
		}
		lang := strings.TrimSuffix(name, ".yaml")
		data, err := os.ReadFile(filepath.Join(c.dir, name))
		if err != nil {
			return fmt.Errorf("i18n: read %s: %w", name, err)
		}
		var tree map[string]any
		if err := yaml.Unmarshal(data, &tree); err != nil {
			return fmt.Errorf("i18n: parse %s: %w", name, err)
		}
		flat := make(map[string]string)
		flatten("", tree, flat)
		messages[lang] = flat
	}

	c.mu.Lock()
	c.messages = messages
	c.mu.Unlock()
	return nil
}

// flatten turns nested YAML maps into dot-joined keys.
func flatten(prefix string, tree map[string]any, out map[string]string) {
	for k, v := range tree {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case map[string]any:
			flatten(key, val, out)
		case string:
			out[key] = val
		default:
			out[key] = fmt.Sprintf("%v", val)
		}
	}
}

// T resolves key in lang, falling back to the fallback language and then to
// the key itself.
func (c *Catalog) T(lang, key string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if m, ok := c.messages[lang]; ok {
		if s, ok := m[key]; ok {
			return s
		}
	}
	if lang != c.fallback {
		if m, ok := c.messages[c.fallback]; ok {
			if s, ok := m[key]; ok {
				return s
			}
		}
	}
	return key
}

// Languages returns the loaded language codes.
func (c *Catalog) Languages() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.messages))
	for lang := range c.messages {
		out = append(out, lang)
	}
	return out
}

// WrapError wraps a raw failure reason in the localized generic error
// prefix and suffix, matching how validation and workflow errors are shown.
func (c *Catalog) WrapError(lang, reason string) string {
	return c.T(lang, "errors.generic-front") + reason + c.T(lang, "errors.generic-back")
}
