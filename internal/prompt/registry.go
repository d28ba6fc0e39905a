package prompt

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"dealgraph/internal/logging"
)

// Registry serves prompt templates by key. Compiled-in defaults are always
// present; templates loaded from an override directory shadow them. Override
// files are named <key>.txt.
type Registry struct {
	mu        sync.RWMutex
	defaults  map[string]string
	overrides map[string]string
}

// NewRegistry creates a registry with the compiled-in defaults.
func NewRegistry() *Registry {
	return &Registry{
		defaults:  defaultTemplates(),
		overrides: make(map[string]string),
	}
}

// Get returns the template for key, preferring an override.
func (r *Registry) Get(key string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if tpl, ok := r.overrides[key]; ok {
		return tpl, nil
	}
	if tpl, ok := r.defaults[key]; ok {
		return tpl, nil
	}
	return "", fmt.Errorf("unknown prompt template: %s", key)
}

// Keys returns every key the registry can serve.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.defaults))
	for k := range r.defaults {
		keys = append(keys, k)
	}
	return keys
}

// LoadOverrides reads <key>.txt files from dir and installs them as
// overrides. Files whose name does not match a known key are skipped. A
// missing directory is not an error; the defaults simply stay in effect.
func (r *Registry) LoadOverrides(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read prompt override dir %s: %w", dir, err)
	}

	loaded := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}
		key := strings.TrimSuffix(entry.Name(), ".txt")
		if _, known := r.defaults[key]; !known {
			logging.Get(logging.CategoryPipeline).Warn("Skipping override for unknown template key: %s", key)
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("failed to read prompt override %s: %w", entry.Name(), err)
		}
		if strings.TrimSpace(string(data)) == "" {
			logging.Get(logging.CategoryPipeline).Warn("Ignoring empty override for template %s", key)
			continue
		}
		loaded[key] = string(data)
	}

	r.mu.Lock()
	r.overrides = loaded
	r.mu.Unlock()

	if len(loaded) > 0 {
		logging.Pipeline("Loaded %d prompt override(s) from %s", len(loaded), dir)
	}
	return nil
}

// ResetOverrides drops all overrides, restoring compiled-in defaults.
func (r *Registry) ResetOverrides() {
	r.mu.Lock()
	r.overrides = make(map[string]string)
	r.mu.Unlock()
}

// Render substitutes {name} placeholders in the template for key. Only the
// provided variable names are replaced, so JSON braces inside templates pass
// through untouched.
func (r *Registry) Render(key string, vars map[string]string) (string, error) {
	tpl, err := r.Get(key)
	if err != nil {
		return "", err
	}
	pairs := make([]string, 0, len(vars)*2)
	for name, value := range vars {
		pairs = append(pairs, "{"+name+"}", value)
	}
	return strings.NewReplacer(pairs...).Replace(tpl), nil
}
