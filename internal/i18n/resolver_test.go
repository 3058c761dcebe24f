package i18n

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const frYAML = `
nav:
  home: Accueil
  blog: Blog
contact:
  title: Contactez-nous
  services: [Atelier, Conférence]
footer:
  year: 2025
`

const enYAML = `
nav:
  home: Home
contact:
  services: [Workshop, Talk]
  title:
    nested: not a string
`

func newTestResolver(t *testing.T) *Resolver {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fr.yaml"), []byte(frYAML), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "EN.yml"), []byte(enYAML), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("ignored"), 0o600))
	r, err := NewResolver(dir, "fr")
	require.NoError(t, err)
	return r
}

func TestResolverT(t *testing.T) {
	r := newTestResolver(t)

	assert.Equal(t, "Home", r.T("en", "nav.home"))
	assert.Equal(t, "Blog", r.T("en", "nav.blog"), "falls back to default locale")
	assert.Equal(t, "Contactez-nous", r.T("en", "contact.title"), "non-string value falls back")
	assert.Equal(t, "Accueil", r.T("de", "nav.home"), "unknown locale falls back")
	assert.Equal(t, "nav.missing", r.T("en", "nav.missing"), "missing key returns key")
	assert.Equal(t, "nav", r.T("fr", "nav"), "object is not a string")
	assert.Equal(t, "nav.home.deeper", r.T("fr", "nav.home.deeper"))
}

func TestResolverTArray(t *testing.T) {
	r := newTestResolver(t)

	assert.Equal(t, []string{"Workshop", "Talk"}, r.TArray("en", "contact.services"))
	assert.Equal(t, []string{"Atelier", "Conférence"}, r.TArray("nl", "contact.services"))
	assert.Equal(t, []string{}, r.TArray("en", "nav.home"))
	assert.Equal(t, []string{}, r.TArray("en", "nope"))
}

func TestResolverTRaw(t *testing.T) {
	r := newTestResolver(t)

	v, ok := r.TRaw("en", "contact.title")
	require.True(t, ok)
	assert.Equal(t, map[string]any{"nested": "not a string"}, v)

	v, ok = r.TRaw("en", "footer.year")
	require.True(t, ok)
	assert.Equal(t, 2025, v)

	_, ok = r.TRaw("en", "footer.month")
	assert.False(t, ok)
}

func TestResolverLocalesAndReload(t *testing.T) {
	r := newTestResolver(t)
	assert.Equal(t, []string{"en", "fr"}, r.Locales())
	assert.True(t, r.HasLocale("EN"))
	assert.False(t, r.HasLocale("nl"))

	require.NoError(t, os.WriteFile(filepath.Join(r.Dir(), "nl.yaml"), []byte("nav:\n  home: Startpagina\n"), 0o600))
	require.NoError(t, r.Reload())
	assert.Equal(t, "Startpagina", r.T("nl", "nav.home"))

	require.NoError(t, os.WriteFile(filepath.Join(r.Dir(), "nl.yaml"), []byte("nav: [unterminated"), 0o600))
	assert.Error(t, r.Reload())
	assert.Equal(t, "Startpagina", r.T("nl", "nav.home"), "failed reload keeps previous set")
}

func TestStaticResolver(t *testing.T) {
	r := NewStaticResolver("FR", map[string]map[string]any{
		"fr": {"hello": "bonjour"},
	})
	assert.Equal(t, "fr", r.DefaultLocale())
	assert.Equal(t, "bonjour", r.T("en", "hello"))
	assert.NoError(t, r.Reload())
}
