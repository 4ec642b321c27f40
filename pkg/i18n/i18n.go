// Package i18n translates interface strings. Catalogs are YAML documents
// whose nested keys are flattened with dots ("summary.yes").
package i18n

import (
	"context"
	"embed"
	"fmt"
	"path"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var builtin embed.FS

// DefaultLocale is used when a requested locale has no catalog.
const DefaultLocale = "fr"

// Translator looks up keys in a locale with a fallback locale.
type Translator struct {
	mu       sync.RWMutex
	locale   string
	fallback string
	catalogs map[string]map[string]string
}

// NewTranslator creates an empty translator for locale.
func NewTranslator(locale string) *Translator {
	return &Translator{
		locale:   locale,
		fallback: DefaultLocale,
		catalogs: make(map[string]map[string]string),
	}
}

// Default returns a translator loaded with the built-in catalogs.
func Default(locale string) (*Translator, error) {
	t := NewTranslator(locale)
	entries, err := builtin.ReadDir("locales")
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		data, err := builtin.ReadFile(path.Join("locales", e.Name()))
		if err != nil {
			return nil, err
		}
		if err := t.LoadYAML(strings.TrimSuffix(e.Name(), ".yaml"), data); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// MustDefault is Default for package-level initialization.
func MustDefault(locale string) *Translator {
	t, err := Default(locale)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Translator) Locale() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.locale
}

// Load merges flat translations into locale.
func (t *Translator) Load(locale string, translations map[string]string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cat := t.catalogs[locale]
	if cat == nil {
		cat = make(map[string]string, len(translations))
		t.catalogs[locale] = cat
	}
	for k, v := range translations {
		cat[k] = v
	}
}

// LoadYAML merges a YAML catalog into locale.
func (t *Translator) LoadYAML(locale string, data []byte) error {
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return fmt.Errorf("i18n: parse %s catalog: %w", locale, err)
	}
	flat := make(map[string]string)
	flatten("", tree, flat)
	t.Load(locale, flat)
	return nil
}

func flatten(prefix string, node map[string]any, out map[string]string) {
	for k, v := range node {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case map[string]any:
			flatten(key, val, out)
		case nil:
			out[key] = ""
		default:
			out[key] = fmt.Sprint(val)
		}
	}
}

// T translates key in the current locale. Args fill %1, %2 positional
// placeholders, or {{name}} placeholders when the only arg is a map.
// Unknown keys are returned unchanged.
func (t *Translator) T(key string, args ...any) string {
	return t.TLocale(t.Locale(), key, args...)
}

// TLocale translates key in locale.
func (t *Translator) TLocale(locale, key string, args ...any) string {
	t.mu.RLock()
	v, ok := t.catalogs[locale][key]
	if !ok && locale != t.fallback {
		v, ok = t.catalogs[t.fallback][key]
	}
	t.mu.RUnlock()

	if !ok {
		return key
	}
	return interpolate(v, args...)
}

// Has reports whether key exists in the current or fallback locale.
func (t *Translator) Has(key string) bool {
	return t.T(key) != key
}

func interpolate(s string, args ...any) string {
	if len(args) == 0 {
		return s
	}
	if m, ok := args[0].(map[string]any); ok && len(args) == 1 {
		for k, v := range m {
			s = strings.ReplaceAll(s, "{{"+k+"}}", fmt.Sprint(v))
		}
		return s
	}
	for i := len(args) - 1; i >= 0; i-- {
		s = strings.ReplaceAll(s, fmt.Sprintf("%%%d", i+1), fmt.Sprint(args[i]))
	}
	return s
}

type contextKey struct{}

func WithTranslator(ctx context.Context, t *Translator) context.Context {
	return context.WithValue(ctx, contextKey{}, t)
}

func TranslatorFromContext(ctx context.Context) *Translator {
	t, _ := ctx.Value(contextKey{}).(*Translator)
	return t
}

// T translates with the context translator, returning key when there is
// none.
func T(ctx context.Context, key string, args ...any) string {
	if t := TranslatorFromContext(ctx); t != nil {
		return t.T(key, args...)
	}
	return key
}
