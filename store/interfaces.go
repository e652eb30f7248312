package store

import "context"

// FieldStore defines persistence operations for fields. Every call is
// scoped to the owning user.
type FieldStore interface {
	ListFields(ctx context.Context, uid int64) ([]Field, error)
	FieldSummaries(ctx context.Context, uid int64) (FieldSummaries, error)
	FieldSummary(ctx context.Context, uid, id int64) (FieldSummary, error)
	GetField(ctx context.Context, uid, id int64) (Field, error)
	GetFieldByName(ctx context.Context, uid int64, name string) (Field, error)
	CreateField(ctx context.Context, f *Field) error
	UpdateField(ctx context.Context, f *Field) error
	DeleteField(ctx context.Context, uid, id int64) error
}

// VariableStore defines persistence operations for variables.
type VariableStore interface {
	ListVariables(ctx context.Context, uid int64) ([]Variable, error)
	VariableSummaries(ctx context.Context, uid int64) (VariableSummaries, error)
	VariableSummary(ctx context.Context, uid, id int64) (VariableSummary, error)
	GetVariable(ctx context.Context, uid, id int64) (Variable, error)
	GetVariableByName(ctx context.Context, uid int64, name string) (Variable, error)
	CreateVariable(ctx context.Context, v *Variable) error
	UpdateVariable(ctx context.Context, v *Variable) error
	DeleteVariable(ctx context.Context, uid, id int64) error
}

// Store bundles every store the server needs.
type Store interface {
	FieldStore
	VariableStore
	APIKeyStore
	Close() error
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*PGStore)(nil)
)
