package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMatcher(t *testing.T) {
	t.Run("longer prefix-sharing name wins", func(t *testing.T) {
		re := BuildMatcher([]string{"app", "appgroup"})
		assert.Equal(t, "appgroup", re.FindString("appgroup-1"))
		assert.Equal(t, "app", re.FindString("app-1"))
	})

	t.Run("input order does not matter", func(t *testing.T) {
		a := BuildMatcher([]string{"app", "appgroup", "user"})
		b := BuildMatcher([]string{"user", "appgroup", "app"})
		assert.Equal(t, a.String(), b.String())
		assert.Equal(t, "(?:user|appgroup|app)", a.String())
	})

	t.Run("metacharacters are quoted", func(t *testing.T) {
		re := BuildMatcher([]string{"a.b"})
		assert.False(t, re.MatchString("axb"))
		assert.True(t, re.MatchString("a.b"))
	})

	t.Run("duplicates and empty names dropped", func(t *testing.T) {
		re := BuildMatcher([]string{"order", "", "order"})
		assert.Equal(t, "(?:order)", re.String())
	})

	t.Run("empty set never matches", func(t *testing.T) {
		re := BuildMatcher(nil)
		assert.False(t, re.MatchString(""))
		assert.False(t, re.MatchString("anything"))
	})
}

func TestRegistryMatchers(t *testing.T) {
	r, _ := newTestRegistry(t)
	app, group := model("app"), model("appgroup")
	require.NoError(t, r.RegisterModel(app))
	require.NoError(t, r.RegisterModel(group))
	require.NoError(t, r.RegisterManager(manager(app)))
	require.NoError(t, r.RegisterManager(manager(group)))

	assert.Equal(t, "appgroup", r.TableMatcher().FindString("select * from appgroup-1"))
	assert.Equal(t, []string{"apps", "appgroups"}, r.PluralMatcher().FindAllString("apps and appgroups", -1))
}
