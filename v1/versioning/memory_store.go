package versioning

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps versions in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	subjects map[string][]SchemaVersion
	order    []string
	nextID   uint
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{subjects: make(map[string][]SchemaVersion)}
}

func (m *MemoryStore) ListVersions(ctx context.Context, subject string) ([]SchemaVersion, error) {
	if err := ctx.Err(); err != nil {
		return nil, readErr("list versions", err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]SchemaVersion(nil), m.subjects[subject]...), nil
}

func (m *MemoryStore) AppendVersionAtomic(ctx context.Context, candidate SchemaVersion) (SchemaVersion, error) {
	if err := validateCandidate(candidate); err != nil {
		return SchemaVersion{}, err
	}
	if err := ctx.Err(); err != nil {
		return SchemaVersion{}, writeErr("append version", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	existing, seen := m.subjects[candidate.Subject]
	for _, v := range existing {
		if v.Version == candidate.Version {
			return SchemaVersion{}, ErrVersionConflict
		}
	}

	m.nextID++
	candidate.ID = m.nextID

	// keep each lineage sorted by version regardless of insert order
	idx := sort.Search(len(existing), func(i int) bool { return existing[i].Version > candidate.Version })
	existing = append(existing, SchemaVersion{})
	copy(existing[idx+1:], existing[idx:])
	existing[idx] = candidate
	m.subjects[candidate.Subject] = existing

	if !seen {
		m.order = append(m.order, candidate.Subject)
	}
	return candidate, nil
}

// ListAll returns every version ordered by ID.
func (m *MemoryStore) ListAll(ctx context.Context) ([]SchemaVersion, error) {
	return m.filter(ctx, func(SchemaVersion) bool { return true })
}

func (m *MemoryStore) ListActive(ctx context.Context) ([]SchemaVersion, error) {
	return m.filter(ctx, func(v SchemaVersion) bool { return v.IsActive })
}

// ListSubjects returns subjects in first-registration order.
func (m *MemoryStore) ListSubjects(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, readErr("list subjects", err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.order...), nil
}

func (m *MemoryStore) GetVersion(ctx context.Context, subject string, version int) (SchemaVersion, error) {
	versions, err := m.ListVersions(ctx, subject)
	if err != nil {
		return SchemaVersion{}, err
	}
	for _, v := range versions {
		if v.Version == version {
			return v, nil
		}
	}
	return SchemaVersion{}, ErrNotFound
}

func (m *MemoryStore) GetBySchemaID(ctx context.Context, schemaID int) (SchemaVersion, error) {
	matches, err := m.filter(ctx, func(v SchemaVersion) bool { return v.SchemaID != nil && *v.SchemaID == schemaID })
	if err != nil {
		return SchemaVersion{}, err
	}
	if len(matches) == 0 {
		return SchemaVersion{}, ErrNotFound
	}
	return matches[len(matches)-1], nil
}

func (m *MemoryStore) filter(ctx context.Context, keep func(SchemaVersion) bool) ([]SchemaVersion, error) {
	if err := ctx.Err(); err != nil {
		return nil, readErr("list", err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []SchemaVersion
	for _, subject := range m.order {
		for _, v := range m.subjects[subject] {
			if keep(v) {
				out = append(out, v)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
