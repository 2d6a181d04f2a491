package client_test

import (
	"context"
	"testing"

	"github.com/goliatone/go-folio-auth/client"
	"github.com/goliatone/go-folio-auth/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type project struct {
	ID    string
	Title string
}

func TestSessionCache_StartEditingReplacesTarget(t *testing.T) {
	cache := client.NewSessionCache()

	var seen []client.EditingChange
	sub := cache.OnEditingChange(func(c client.EditingChange) {
		seen = append(seen, c)
	})
	defer sub.Unsubscribe()

	require.NoError(t, cache.StartEditing(client.EditProject, project{ID: "p1"}))
	assert.True(t, cache.IsEditing(client.EditProject))

	require.NoError(t, cache.StartEditing(client.EditSkill, "go"))
	assert.False(t, cache.IsEditing(client.EditProject))
	assert.True(t, cache.IsEditing(client.EditSkill))

	target, ok := cache.EditTarget()
	require.True(t, ok)
	assert.Equal(t, client.EditSkill, target.Kind)
	assert.Equal(t, "go", target.Entity)

	require.Len(t, seen, 3)
	assert.Equal(t, client.EditingChange{Target: client.EditTarget{Kind: client.EditProject, Entity: project{ID: "p1"}}, Active: true}, seen[0])
	assert.False(t, seen[1].Active)
	assert.Equal(t, client.EditProject, seen[1].Target.Kind)
	assert.True(t, seen[2].Active)
	assert.Equal(t, client.EditSkill, seen[2].Target.Kind)
}

func TestSessionCache_ClearEditing(t *testing.T) {
	cache := client.NewSessionCache()

	calls := 0
	cache.OnEditingChange(func(client.EditingChange) { calls++ })

	cache.ClearEditing()
	assert.Zero(t, calls, "nothing to clear")

	require.NoError(t, cache.StartEditing(client.EditProfile, nil))
	cache.ClearEditing()

	_, ok := cache.EditTarget()
	assert.False(t, ok)
	assert.False(t, cache.IsEditing(client.EditProfile))
	assert.Equal(t, 2, calls)
}

func TestSessionCache_RejectsUnknownKind(t *testing.T) {
	cache := client.NewSessionCache()

	err := cache.StartEditing("invoice", nil)
	assert.Equal(t, token.KindValidationFailed, token.KindOf(err))

	_, ok := cache.EditTarget()
	assert.False(t, ok)
}

func TestSessionCache_PageAndFormState(t *testing.T) {
	cache := client.NewSessionCache()

	cache.SetPageState("projects.page", 3)
	cache.SetFormField("title", "Draft")
	cache.SetFormField("tags", []string{"go"})

	v, ok := cache.GetPageState("projects.page")
	assert.True(t, ok)
	assert.Equal(t, 3, v)

	fields := cache.FormFields()
	assert.Len(t, fields, 2)
	fields["title"] = "mutated"
	title, _ := cache.GetFormField("title")
	assert.Equal(t, "Draft", title)

	cache.ClearFormFields()
	_, ok = cache.GetFormField("title")
	assert.False(t, ok)
	_, ok = cache.GetPageState("projects.page")
	assert.True(t, ok, "page state survives ClearFormFields")

	cache.Reset()
	_, ok = cache.GetPageState("projects.page")
	assert.False(t, ok)
}

func populate(t *testing.T, cache *client.SessionCache) {
	t.Helper()
	require.NoError(t, cache.StartEditing(client.EditProject, project{ID: "p1"}))
	cache.SetPageState("tab", "skills")
	cache.SetFormField("title", "Draft")
}

func assertEmpty(t *testing.T, cache *client.SessionCache) {
	t.Helper()
	_, editing := cache.EditTarget()
	_, page := cache.GetPageState("tab")
	_, field := cache.GetFormField("title")
	assert.False(t, editing || page || field, "cache should be empty")
}

func TestSessionCache_ClearedOnLogout(t *testing.T) {
	ctx := context.Background()
	state := client.NewAuthState(client.NewTokenStore(nil))
	cache := client.NewSessionCache()
	cache.Attach(state)
	defer cache.Close()

	require.NoError(t, state.MarkAuthenticated(ctx, aliceToken(t)))
	populate(t, cache)

	// same user again keeps drafts
	require.NoError(t, state.MarkAuthenticated(ctx, aliceToken(t)))
	_, ok := cache.GetFormField("title")
	assert.True(t, ok)

	require.NoError(t, state.MarkLoggedOut(ctx))
	assertEmpty(t, cache)
}

func TestSessionCache_ClearedOnUserSwitch(t *testing.T) {
	ctx := context.Background()
	state := client.NewAuthState(client.NewTokenStore(nil))
	cache := client.NewSessionCache()
	cache.Attach(state)
	defer cache.Close()

	require.NoError(t, state.MarkAuthenticated(ctx, aliceToken(t)))
	populate(t, cache)

	require.NoError(t, state.MarkAuthenticated(ctx, bobToken(t)))
	assertEmpty(t, cache)
}

func TestSessionCache_CloseDetaches(t *testing.T) {
	ctx := context.Background()
	state := client.NewAuthState(client.NewTokenStore(nil))
	cache := client.NewSessionCache()
	cache.Attach(state)

	require.NoError(t, state.MarkAuthenticated(ctx, aliceToken(t)))
	populate(t, cache)

	cache.Close()
	cache.Close()
	require.NoError(t, state.MarkLoggedOut(ctx))

	_, ok := cache.GetFormField("title")
	assert.True(t, ok)
}

func TestSessionCache_ReattachReleasesPrevious(t *testing.T) {
	ctx := context.Background()
	first := client.NewAuthState(client.NewTokenStore(nil))
	second := client.NewAuthState(client.NewTokenStore(nil))
	cache := client.NewSessionCache()

	cache.Attach(first)
	cache.Attach(second)
	defer cache.Close()

	populate(t, cache)
	require.NoError(t, first.MarkLoggedOut(ctx))
	_, ok := cache.GetFormField("title")
	assert.True(t, ok, "old state no longer drives the cache")

	require.NoError(t, second.MarkLoggedOut(ctx))
	assertEmpty(t, cache)
}
