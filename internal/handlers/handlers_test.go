package handlers

import (
	"context"
	"testing"

	"github.com/magiconair/properties"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/sectionconf/internal/registry"
	"github.com/vk/sectionconf/internal/scanner"
	"github.com/vk/sectionconf/internal/testutil"
)

func parse(t *testing.T, r *registry.Registry, text string) {
	t.Helper()
	require.NoError(t, scanner.Scan(context.Background(), testutil.Lines("test.conf", text), nil, r.Dispatcher()))
}

func TestMap(t *testing.T) {
	r := registry.New()
	m := NewMap("mappings")
	require.NoError(t, r.RegisterBound(m))

	parse(t, r, "[mappings]\nnewUser: templates/custom-newUser\n\n[object]\none=foo\n[mappings]\nnewUser = templates/other\nlogin = templates/login")

	got, err := registry.GetSection[map[string]string](r, "mappings")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"newUser": "templates/other", "login": "templates/login"}, got)

	v, ok := m.Get("login")
	assert.True(t, ok)
	assert.Equal(t, "templates/login", v)

	got["login"] = "changed"
	v, _ = m.Get("login")
	assert.Equal(t, "templates/login", v, "Configuration returns a copy")
}

func TestProperties(t *testing.T) {
	r := registry.New()
	p := NewProperties("db")
	require.NoError(t, r.RegisterBound(p))

	parse(t, r, "[db]\nurl = jdbc:h2:${not.expanded}\nuser = sa\nurl = jdbc:h2:mem")

	got, err := registry.Get[*properties.Properties](r)
	require.NoError(t, err)
	assert.Equal(t, []string{"url", "user"}, got.Keys(), "input order is kept and a redefinition stays in place")
	assert.Equal(t, "jdbc:h2:mem", got.MustGetString("url"))
	assert.Equal(t, "sa", got.MustGetString("user"))
	assert.Equal(t, "db", p.Section())
}

func TestProperties_ValuesAreNotExpanded(t *testing.T) {
	p := NewProperties("raw")
	require.NoError(t, p.Parameter("raw", "a", "${b}"))
	assert.Equal(t, "${b}", p.Configuration().MustGetString("a"))
}
