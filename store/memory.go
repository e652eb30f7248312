package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps fields, variables and API keys in process memory. It is
// used by tests and by the "memory" driver.
type MemoryStore struct {
	*InMemoryAPIKeyStore

	mu        sync.RWMutex
	nextField int64
	nextVar   int64
	fields    map[int64]*Field
	variables map[int64]*Variable
	now       func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		InMemoryAPIKeyStore: NewInMemoryAPIKeyStore(),
		fields:              make(map[int64]*Field),
		variables:           make(map[int64]*Variable),
		now:                 func() time.Time { return time.Now().UTC() },
	}
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

func copyField(f *Field) Field {
	cp := *f
	cp.Values = append([]FieldValue(nil), f.Values...)
	return cp
}

func copyVariable(v *Variable) Variable {
	cp := *v
	cp.Conditions = append([]Condition(nil), v.Conditions...)
	return cp
}

// fieldByNameLocked must be called with s.mu held.
func (s *MemoryStore) fieldByNameLocked(uid int64, name string) *Field {
	for _, f := range s.fields {
		if f.UserID == uid && f.Name == name {
			return f
		}
	}
	return nil
}

func (s *MemoryStore) variableByNameLocked(uid int64, name string) *Variable {
	for _, v := range s.variables {
		if v.UserID == uid && v.Name == name {
			return v
		}
	}
	return nil
}

func (s *MemoryStore) sortedFieldsLocked(uid int64) []*Field {
	out := []*Field{}
	for _, f := range s.fields {
		if f.UserID == uid {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *MemoryStore) sortedVariablesLocked(uid int64) []*Variable {
	out := []*Variable{}
	for _, v := range s.variables {
		if v.UserID == uid {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// --- fields ---

func (s *MemoryStore) ListFields(_ context.Context, uid int64) ([]Field, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []Field{}
	for _, f := range s.sortedFieldsLocked(uid) {
		out = append(out, copyField(f))
	}
	return out, nil
}

func (s *MemoryStore) FieldSummaries(_ context.Context, uid int64) (FieldSummaries, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fs := FieldSummaries{Fields: []FieldSummary{}}
	for _, f := range s.sortedFieldsLocked(uid) {
		fs.Fields = append(fs.Fields, summarizeField(f))
	}
	fs.Total = int64(len(fs.Fields))
	return fs, nil
}

func (s *MemoryStore) FieldSummary(_ context.Context, uid, id int64) (FieldSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.fields[id]
	if !ok || f.UserID != uid {
		return FieldSummary{}, ErrNotFound
	}
	return summarizeField(f), nil
}

func (s *MemoryStore) GetField(_ context.Context, uid, id int64) (Field, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.fields[id]
	if !ok || f.UserID != uid {
		return Field{}, ErrNotFound
	}
	return copyField(f), nil
}

func (s *MemoryStore) GetFieldByName(_ context.Context, uid int64, name string) (Field, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f := s.fieldByNameLocked(uid, Lower(name))
	if f == nil {
		return Field{}, ErrNotFound
	}
	return copyField(f), nil
}

func (s *MemoryStore) CreateField(_ context.Context, f *Field) error {
	if err := f.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fieldByNameLocked(f.UserID, f.Name) != nil {
		return fmt.Errorf("field %q: %w", f.Name, ErrDuplicate)
	}
	s.nextField++
	f.ID = s.nextField
	f.ModifiedDate = s.now()
	cp := copyField(f)
	s.fields[f.ID] = &cp
	return nil
}

func (s *MemoryStore) UpdateField(_ context.Context, f *Field) error {
	if err := f.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.fields[f.ID]
	if !ok || old.UserID != f.UserID {
		return ErrNotFound
	}
	if other := s.fieldByNameLocked(f.UserID, f.Name); other != nil && other.ID != f.ID {
		return fmt.Errorf("field %q: %w", f.Name, ErrDuplicate)
	}
	if old.Name != f.Name {
		for _, v := range s.variables {
			if v.UserID == f.UserID && v.Field == old.Name {
				v.Field = f.Name
			}
		}
	}
	f.ModifiedDate = s.now()
	cp := copyField(f)
	s.fields[f.ID] = &cp
	return nil
}

func (s *MemoryStore) DeleteField(_ context.Context, uid, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.fields[id]
	if !ok || f.UserID != uid {
		return ErrNotFound
	}
	for _, v := range s.variables {
		if v.UserID == uid && v.Field == f.Name {
			return fmt.Errorf("field %q referenced by variable %q: %w", f.Name, v.Name, ErrInUse)
		}
	}
	delete(s.fields, id)
	return nil
}

// --- variables ---

func (s *MemoryStore) ListVariables(_ context.Context, uid int64) ([]Variable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []Variable{}
	for _, v := range s.sortedVariablesLocked(uid) {
		out = append(out, copyVariable(v))
	}
	return out, nil
}

func (s *MemoryStore) VariableSummaries(_ context.Context, uid int64) (VariableSummaries, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	vs := VariableSummaries{Variables: []VariableSummary{}}
	for _, v := range s.sortedVariablesLocked(uid) {
		vs.Variables = append(vs.Variables, summarizeVariable(v))
	}
	vs.Total = int64(len(vs.Variables))
	return vs, nil
}

func (s *MemoryStore) VariableSummary(_ context.Context, uid, id int64) (VariableSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.variables[id]
	if !ok || v.UserID != uid {
		return VariableSummary{}, ErrNotFound
	}
	return summarizeVariable(v), nil
}

func (s *MemoryStore) GetVariable(_ context.Context, uid, id int64) (Variable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.variables[id]
	if !ok || v.UserID != uid {
		return Variable{}, ErrNotFound
	}
	return copyVariable(v), nil
}

func (s *MemoryStore) GetVariableByName(_ context.Context, uid int64, name string) (Variable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v := s.variableByNameLocked(uid, Lower(name))
	if v == nil {
		return Variable{}, ErrNotFound
	}
	return copyVariable(v), nil
}

func (s *MemoryStore) CreateVariable(_ context.Context, v *Variable) error {
	if err := v.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if v.Type == VariableSimple && s.fieldByNameLocked(v.UserID, v.Field) == nil {
		return ErrTargetFieldNotFound
	}
	if s.variableByNameLocked(v.UserID, v.Name) != nil {
		return fmt.Errorf("variable %q: %w", v.Name, ErrDuplicate)
	}
	s.nextVar++
	v.ID = s.nextVar
	v.ModifiedDate = s.now()
	cp := copyVariable(v)
	s.variables[v.ID] = &cp
	return nil
}

func (s *MemoryStore) UpdateVariable(_ context.Context, v *Variable) error {
	if err := v.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.variables[v.ID]
	if !ok || old.UserID != v.UserID {
		return ErrNotFound
	}
	if v.Type == VariableSimple && s.fieldByNameLocked(v.UserID, v.Field) == nil {
		return ErrTargetFieldNotFound
	}
	if other := s.variableByNameLocked(v.UserID, v.Name); other != nil && other.ID != v.ID {
		return fmt.Errorf("variable %q: %w", v.Name, ErrDuplicate)
	}
	v.ModifiedDate = s.now()
	cp := copyVariable(v)
	s.variables[v.ID] = &cp
	return nil
}

func (s *MemoryStore) DeleteVariable(_ context.Context, uid, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.variables[id]
	if !ok || v.UserID != uid {
		return ErrNotFound
	}
	delete(s.variables, id)
	return nil
}

func summarizeField(f *Field) FieldSummary {
	return FieldSummary{
		ID:           f.ID,
		Name:         f.Name,
		ModifiedDate: f.ModifiedDate,
		NumValues:    int64(len(f.Values)),
	}
}

func summarizeVariable(v *Variable) VariableSummary {
	return VariableSummary{
		ID:            v.ID,
		Name:          v.Name,
		Field:         v.Field,
		ModifiedDate:  v.ModifiedDate,
		NumConditions: int64(len(v.Conditions)),
	}
}
