package rbac

import (
	"context"
	"sync"
	"time"
)

// fakeSource is an in-memory GrantSource. A key present in profiles means the
// profile exists, even with no grants.
type fakeSource struct {
	mu       sync.Mutex
	profiles map[string][]RoleGrant
	err      error
	block    bool
	panicMsg string
	calls    map[string]int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		profiles: map[string][]RoleGrant{
			"admin-test-user-id":    {{UserID: "admin-test-user-id", Role: GrantAdmin, IsActive: true}},
			"member-test-user-id":   {{UserID: "member-test-user-id", Role: GrantUser, IsActive: true}},
			"inactive-test-user-id": {{UserID: "inactive-test-user-id", Role: GrantUser, IsActive: false}},
		},
		calls: make(map[string]int),
	}
}

func (f *fakeSource) set(userID string, grants ...RoleGrant) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profiles[userID] = grants
}

func (f *fakeSource) failWith(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeSource) callCount(userID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[userID]
}

func (f *fakeSource) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

func (f *fakeSource) GrantsForUser(ctx context.Context, userID string) ([]RoleGrant, error) {
	f.mu.Lock()
	f.calls[userID]++
	err := f.err
	block := f.block
	panicMsg := f.panicMsg
	grants, ok := f.profiles[userID]
	f.mu.Unlock()

	if panicMsg != "" {
		panic(panicMsg)
	}
	if block {
		// ignores ctx on purpose
		time.Sleep(time.Second)
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrProfileNotFound
	}
	out := make([]RoleGrant, len(grants))
	copy(out, grants)
	return out, nil
}

func grant(role GrantRole, active bool) RoleGrant {
	return RoleGrant{Role: role, IsActive: active}
}
