package rbac

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckMultipleMember(t *testing.T) {
	source := newFakeSource()
	engine := newTestEngine(source)

	got := engine.CheckMultiple(context.Background(), "member-test-user-id",
		[]string{"createPost", "manageGroups", "viewMembers"})

	assert.Equal(t, map[string]Decision{
		"createPost":   Allow(),
		"manageGroups": Deny(ReasonManageGroupsDenied),
		"viewMembers":  Allow(),
	}, got)
	assert.Equal(t, 1, source.totalCalls())
}

func TestCheckMultipleUnknownName(t *testing.T) {
	engine := newTestEngine(newFakeSource())

	got := engine.CheckMultiple(context.Background(), "admin-test-user-id", []string{"createPost", "unknownAction"})

	assert.Equal(t, Allow(), got["createPost"])
	assert.Equal(t, Deny(ReasonUnknownPermission), got["unknownAction"])
	assert.Len(t, got, 2)
}

func TestCheckMultipleSingleLookup(t *testing.T) {
	source := newFakeSource()
	engine := newTestEngine(source)

	names := make([]string, 0, len(Actions()))
	for _, a := range Actions() {
		names = append(names, string(a))
	}
	got := engine.CheckMultiple(context.Background(), "admin-test-user-id", names)

	require.Len(t, got, len(names))
	for _, name := range names {
		assert.True(t, got[name].Allowed, name)
	}
	assert.Equal(t, 1, source.callCount("admin-test-user-id"))
}

func TestCheckMultipleDuplicatesCollapse(t *testing.T) {
	source := newFakeSource()
	engine := newTestEngine(source)

	got := engine.CheckMultiple(context.Background(), "member-test-user-id",
		[]string{"createPost", " createPost ", "createPost", "accessAdmin"})

	assert.Len(t, got, 2)
	assert.Equal(t, Allow(), got["createPost"])
	assert.Equal(t, Deny(ReasonAccessAdminDenied), got["accessAdmin"])
	assert.Equal(t, 1, source.totalCalls())
}

func TestCheckMultipleEmptyAndUnknownOnly(t *testing.T) {
	source := newFakeSource()
	engine := newTestEngine(source)
	ctx := context.Background()

	assert.Empty(t, engine.CheckMultiple(ctx, "member-test-user-id", nil))

	got := engine.CheckMultiple(ctx, "member-test-user-id", []string{"foo", "bar"})
	assert.Equal(t, Deny(ReasonUnknownPermission), got["foo"])
	assert.Equal(t, Deny(ReasonUnknownPermission), got["bar"])
	assert.Zero(t, source.totalCalls())
}

func TestCheckMultipleLookupFailure(t *testing.T) {
	source := newFakeSource()
	source.failWith(errors.New("timeout"))
	engine := newTestEngine(source)

	got := engine.CheckMultiple(context.Background(), "admin-test-user-id",
		[]string{"createPost", "accessAdmin", "mystery"})

	assert.Equal(t, Deny(ReasonVerifyFailed), got["createPost"])
	assert.Equal(t, Deny(ReasonVerifyFailed), got["accessAdmin"])
	assert.Equal(t, Deny(ReasonUnknownPermission), got["mystery"])
}

func TestCheckMultipleMatchesIndividualChecks(t *testing.T) {
	source := newFakeSource()
	engine := newTestEngine(source)
	ctx := context.Background()

	for _, user := range []string{"admin-test-user-id", "member-test-user-id", "guest-test-user-id", ""} {
		names := []string{"createPost", "manageGroups", "viewMembers", "deletePost", "accessAdmin"}
		batch := engine.CheckMultipleOn(ctx, user, "member-test-user-id", names)
		for _, name := range names {
			action, ok := ParseAction(name)
			require.True(t, ok)
			single := engine.Check(ctx, action, user, Target{OwnerID: "member-test-user-id"})
			assert.Equal(t, single, batch[name], "user %q action %s", user, name)
		}
	}
}

func TestCheckMultipleOnOwnership(t *testing.T) {
	engine := newTestEngine(newFakeSource())
	ctx := context.Background()

	own := engine.CheckMultipleOn(ctx, "member-test-user-id", "member-test-user-id", []string{"deletePost"})
	assert.Equal(t, Allow(), own["deletePost"])

	foreign := engine.CheckMultipleOn(ctx, "member-test-user-id", "other", []string{"deletePost"})
	assert.Equal(t, Deny(ReasonDeletePostNotOwner), foreign["deletePost"])

	none := engine.CheckMultiple(ctx, "member-test-user-id", []string{"deletePost"})
	assert.Equal(t, Deny(ReasonDeletePostNotOwner), none["deletePost"])
}

func TestCheckMultipleResolvesEachBatch(t *testing.T) {
	source := newFakeSource()
	engine := newTestEngine(source)
	ctx := context.Background()

	first := engine.CheckMultiple(ctx, "member-test-user-id", []string{"manageGroups"})
	require.False(t, first["manageGroups"].Allowed)

	source.set("member-test-user-id", grant(GrantAdmin, true))
	second := engine.CheckMultiple(ctx, "member-test-user-id", []string{"manageGroups"})
	assert.True(t, second["manageGroups"].Allowed)
	assert.Equal(t, 2, source.callCount("member-test-user-id"))
}
