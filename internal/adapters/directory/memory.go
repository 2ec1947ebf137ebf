package directory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Restriction is an applied timed restriction.
type Restriction struct {
	SubjectID string
	Until     time.Time
	Reason    string
}

// Memory is an in-process directory. It is the default backend and the
// test double for the rank engine.
type Memory struct {
	mu           sync.RWMutex
	members      map[string]map[string]struct{} // subject -> roles
	roles        map[string]struct{}
	service      map[string]struct{}
	protected    map[string]struct{}
	restrictions map[string]Restriction
	now          func() time.Time
}

// MemoryOption configures a Memory directory.
type MemoryOption func(*Memory)

// WithRoles declares roles that exist.
func WithRoles(ids ...string) MemoryOption {
	return func(m *Memory) {
		for _, id := range ids {
			if id != "" {
				m.roles[id] = struct{}{}
			}
		}
	}
}

// WithMembers declares members with no roles.
func WithMembers(ids ...string) MemoryOption {
	return func(m *Memory) {
		for _, id := range ids {
			if _, ok := m.members[id]; !ok {
				m.members[id] = make(map[string]struct{})
			}
		}
	}
}

// WithServiceAccounts marks members as service accounts.
func WithServiceAccounts(ids ...string) MemoryOption {
	return func(m *Memory) {
		for _, id := range ids {
			m.service[id] = struct{}{}
		}
	}
}

// WithProtected marks members that cannot be restricted.
func WithProtected(ids ...string) MemoryOption {
	return func(m *Memory) {
		for _, id := range ids {
			m.protected[id] = struct{}{}
		}
	}
}

// WithMemoryClock sets the time source used for restriction expiry.
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMemory creates a directory.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		members:      make(map[string]map[string]struct{}),
		roles:        make(map[string]struct{}),
		service:      make(map[string]struct{}),
		protected:    make(map[string]struct{}),
		restrictions: make(map[string]Restriction),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Join adds a member. Members join implicitly on their first contribution.
func (m *Memory) Join(subjectID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.members[subjectID]; !ok {
		m.members[subjectID] = make(map[string]struct{})
	}
}

// Leave removes a member and its roles.
func (m *Memory) Leave(subjectID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.members, subjectID)
	delete(m.restrictions, subjectID)
}

// RoleHolders implements Client.
func (m *Memory) RoleHolders(_ context.Context, roleID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.roles[roleID]; !ok {
		return nil, fmt.Errorf("role %s: %w", roleID, ErrNotFound)
	}
	var out []string
	for id, roles := range m.members {
		if _, ok := roles[roleID]; ok {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}

// RolesOf returns the sorted roles a member holds.
func (m *Memory) RolesOf(subjectID string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.members[subjectID]))
	for r := range m.members[subjectID] {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

func (m *Memory) lookup(subjectID, roleID string) (map[string]struct{}, error) {
	roles, ok := m.members[subjectID]
	if !ok {
		return nil, fmt.Errorf("member %s: %w", subjectID, ErrNotFound)
	}
	if _, ok := m.roles[roleID]; !ok {
		return nil, fmt.Errorf("role %s: %w", roleID, ErrNotFound)
	}
	return roles, nil
}

// AddRole implements Client.
func (m *Memory) AddRole(_ context.Context, subjectID, roleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	roles, err := m.lookup(subjectID, roleID)
	if err != nil {
		return err
	}
	roles[roleID] = struct{}{}
	return nil
}

// RemoveRole implements Client.
func (m *Memory) RemoveRole(_ context.Context, subjectID, roleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	roles, err := m.lookup(subjectID, roleID)
	if err != nil {
		return err
	}
	delete(roles, roleID)
	return nil
}

// ApplyTimedRestriction implements Client.
func (m *Memory) ApplyTimedRestriction(_ context.Context, subjectID string, d time.Duration, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.members[subjectID]; !ok {
		return fmt.Errorf("member %s: %w", subjectID, ErrNotFound)
	}
	if _, ok := m.protected[subjectID]; ok {
		return fmt.Errorf("restrict %s: %w", subjectID, ErrPermission)
	}
	m.restrictions[subjectID] = Restriction{SubjectID: subjectID, Until: m.now().Add(d), Reason: reason}
	return nil
}

// RestrictedUntil returns when the member's restriction ends, if one is active.
func (m *Memory) RestrictedUntil(subjectID string) (time.Time, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.restrictions[subjectID]
	if !ok || !r.Until.After(m.now()) {
		return time.Time{}, false
	}
	return r.Until, true
}

// IsServiceAccount implements Eligibility.
func (m *Memory) IsServiceAccount(_ context.Context, subjectID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.service[subjectID]
	return ok, nil
}
