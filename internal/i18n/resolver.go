package i18n

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Resolver looks up dotted translation keys such as "contact.form.submit".
// Lookups that miss in the requested locale fall back to the default locale.
type Resolver struct {
	dir           string
	defaultLocale string

	mu      sync.RWMutex
	locales map[string]map[string]any
}

// NewResolver loads <locale>.yaml files from dir.
func NewResolver(dir, defaultLocale string) (*Resolver, error) {
	r := &Resolver{
		dir:           dir,
		defaultLocale: normalizeLocale(defaultLocale),
		locales:       map[string]map[string]any{},
	}
	if errReload := r.Reload(); errReload != nil {
		return nil, errReload
	}
	return r, nil
}

// NewStaticResolver builds a resolver over in-memory trees.
func NewStaticResolver(defaultLocale string, locales map[string]map[string]any) *Resolver {
	normalized := make(map[string]map[string]any, len(locales))
	for locale, tree := range locales {
		normalized[normalizeLocale(locale)] = tree
	}
	return &Resolver{defaultLocale: normalizeLocale(defaultLocale), locales: normalized}
}

// Dir returns the locale directory, empty for static resolvers.
func (r *Resolver) Dir() string { return r.dir }

// DefaultLocale returns the fallback locale.
func (r *Resolver) DefaultLocale() string { return r.defaultLocale }

// Reload re-reads every locale file. A missing directory leaves the resolver
// empty; a file that fails to parse aborts the reload and keeps the old set.
func (r *Resolver) Reload() error {
	if r.dir == "" {
		return nil
	}
	entries, errRead := os.ReadDir(r.dir)
	if errRead != nil {
		if errors.Is(errRead, fs.ErrNotExist) {
			log.WithField("dir", r.dir).Warn("i18n: locale directory not found")
			return nil
		}
		return fmt.Errorf("i18n: read %s: %w", r.dir, errRead)
	}

	loaded := map[string]map[string]any{}
	for _, entry := range entries {
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		data, errFile := os.ReadFile(filepath.Join(r.dir, entry.Name()))
		if errFile != nil {
			return fmt.Errorf("i18n: read %s: %w", entry.Name(), errFile)
		}
		var tree map[string]any
		if errUnmarshal := yaml.Unmarshal(data, &tree); errUnmarshal != nil {
			return fmt.Errorf("i18n: parse %s: %w", entry.Name(), errUnmarshal)
		}
		loaded[normalizeLocale(strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name())))] = tree
	}

	r.mu.Lock()
	r.locales = loaded
	r.mu.Unlock()
	if _, ok := loaded[r.defaultLocale]; !ok {
		log.WithField("locale", r.defaultLocale).Warn("i18n: default locale has no translations")
	}
	return nil
}

// Locales returns the loaded locale codes in sorted order.
func (r *Resolver) Locales() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.locales))
	for locale := range r.locales {
		out = append(out, locale)
	}
	sort.Strings(out)
	return out
}

// HasLocale reports whether translations exist for locale.
func (r *Resolver) HasLocale(locale string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.locales[normalizeLocale(locale)]
	return ok
}

// T returns the string at key, the default locale's string, or key itself.
func (r *Resolver) T(locale, key string) string {
	if s, ok := r.resolve(locale, key, func(v any) bool { _, ok := v.(string); return ok }); ok {
		return s.(string)
	}
	return key
}

// TArray returns the list at key or the default locale's list. It never returns nil.
func (r *Resolver) TArray(locale, key string) []string {
	v, ok := r.resolve(locale, key, func(v any) bool { _, ok := v.([]any); return ok })
	if !ok {
		return []string{}
	}
	items := v.([]any)
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, isString := item.(string); isString {
			out = append(out, s)
			continue
		}
		out = append(out, fmt.Sprint(item))
	}
	return out
}

// TRaw returns whatever value sits at key, falling back to the default locale.
func (r *Resolver) TRaw(locale, key string) (any, bool) {
	return r.resolve(locale, key, func(any) bool { return true })
}

func (r *Resolver) resolve(locale, key string, accept func(any) bool) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if v, ok := lookup(r.locales[normalizeLocale(locale)], key); ok && accept(v) {
		return v, true
	}
	if v, ok := lookup(r.locales[r.defaultLocale], key); ok && accept(v) {
		return v, true
	}
	return nil, false
}

func lookup(tree map[string]any, key string) (any, bool) {
	if tree == nil || key == "" {
		return nil, false
	}
	var current any = tree
	for _, part := range strings.Split(key, ".") {
		node, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = node[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func normalizeLocale(locale string) string {
	return strings.ToLower(strings.TrimSpace(locale))
}
