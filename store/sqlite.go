package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLiteStore is a SQLite-backed implementation of Store. It is the default
// driver.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// NewSQLiteStore opens dbPath and initializes the schema.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s, err := NewSQLiteStoreFromDB(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLiteStoreFromDB creates a SQLiteStore from an existing *sql.DB.
func NewSQLiteStoreFromDB(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db, now: func() time.Time { return time.Now().UTC() }}
	if err := s.createTables(); err != nil {
		return nil, err
	}
	return s, nil
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS fields (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		modified_date TEXT NOT NULL,
		UNIQUE (user_id, name)
	)`,
	`CREATE TABLE IF NOT EXISTS field_values (
		field_id INTEGER NOT NULL,
		position INTEGER NOT NULL,
		email TEXT NOT NULL,
		value TEXT NOT NULL,
		PRIMARY KEY (field_id, email)
	)`,
	`CREATE TABLE IF NOT EXISTS variables (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		field_id INTEGER,
		name TEXT NOT NULL,
		modified_date TEXT NOT NULL,
		UNIQUE (user_id, name)
	)`,
	`CREATE TABLE IF NOT EXISTS conditions (
		variable_id INTEGER NOT NULL,
		position INTEGER NOT NULL,
		condition TEXT NOT NULL,
		value TEXT NOT NULL,
		PRIMARY KEY (variable_id, condition)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_variables_field_id ON variables(field_id)`,
	`CREATE TABLE IF NOT EXISTS api_keys (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		key_hash TEXT NOT NULL UNIQUE,
		key_prefix TEXT NOT NULL,
		created_at TEXT NOT NULL,
		last_used_at TEXT
	)`,
}

func (s *SQLiteStore) createTables() error {
	for _, stmt := range sqliteSchema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// withTx runs fn inside a transaction, committing on success.
func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// --- fields ---

func (s *SQLiteStore) ListFields(ctx context.Context, uid int64) ([]Field, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, name, modified_date FROM fields WHERE user_id = ? ORDER BY id`, uid)
	if err != nil {
		return nil, fmt.Errorf("query fields: %w", err)
	}
	fields := []Field{}
	for rows.Next() {
		f, err := scanSQLiteField(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		fields = append(fields, f)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fields: %w", err)
	}
	// The single connection is free again once rows is closed.
	for i := range fields {
		if fields[i].Values, err = loadFieldValues(ctx, s.db, fields[i].ID); err != nil {
			return nil, err
		}
	}
	return fields, nil
}

func (s *SQLiteStore) FieldSummaries(ctx context.Context, uid int64) (FieldSummaries, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT f.id, f.name, f.modified_date,
			(SELECT COUNT(*) FROM field_values fv WHERE fv.field_id = f.id)
		FROM fields f WHERE f.user_id = ? ORDER BY f.id`, uid)
	if err != nil {
		return FieldSummaries{}, fmt.Errorf("query field summaries: %w", err)
	}
	defer rows.Close()

	fs := FieldSummaries{Fields: []FieldSummary{}}
	for rows.Next() {
		sum, err := scanSQLiteFieldSummary(rows)
		if err != nil {
			return FieldSummaries{}, err
		}
		fs.Fields = append(fs.Fields, sum)
	}
	if err := rows.Err(); err != nil {
		return FieldSummaries{}, fmt.Errorf("iterate field summaries: %w", err)
	}
	fs.Total = int64(len(fs.Fields))
	return fs, nil
}

func (s *SQLiteStore) FieldSummary(ctx context.Context, uid, id int64) (FieldSummary, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT f.id, f.name, f.modified_date,
			(SELECT COUNT(*) FROM field_values fv WHERE fv.field_id = f.id)
		FROM fields f WHERE f.user_id = ? AND f.id = ?`, uid, id)
	return scanSQLiteFieldSummary(row)
}

func (s *SQLiteStore) GetField(ctx context.Context, uid, id int64) (Field, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, modified_date FROM fields WHERE user_id = ? AND id = ?`, uid, id)
	return s.completeField(ctx, row)
}

func (s *SQLiteStore) GetFieldByName(ctx context.Context, uid int64, name string) (Field, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, modified_date FROM fields WHERE user_id = ? AND name = ?`, uid, Lower(name))
	return s.completeField(ctx, row)
}

func (s *SQLiteStore) completeField(ctx context.Context, row *sql.Row) (Field, error) {
	f, err := scanSQLiteField(row)
	if err != nil {
		return Field{}, err
	}
	f.Values, err = loadFieldValues(ctx, s.db, f.ID)
	if err != nil {
		return Field{}, err
	}
	return f, nil
}

func (s *SQLiteStore) CreateField(ctx context.Context, f *Field) error {
	if err := f.Validate(); err != nil {
		return err
	}
	f.ModifiedDate = s.now()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO fields (user_id, name, modified_date) VALUES (?, ?, ?)`,
			f.UserID, f.Name, f.ModifiedDate.Format(time.RFC3339Nano))
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("field %q: %w", f.Name, ErrDuplicate)
			}
			return fmt.Errorf("insert field: %w", err)
		}
		if f.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}
		return replaceFieldValues(ctx, tx, f.ID, f.Values)
	})
}

func (s *SQLiteStore) UpdateField(ctx context.Context, f *Field) error {
	if err := f.Validate(); err != nil {
		return err
	}
	f.ModifiedDate = s.now()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE fields SET name = ?, modified_date = ? WHERE id = ? AND user_id = ?`,
			f.Name, f.ModifiedDate.Format(time.RFC3339Nano), f.ID, f.UserID)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("field %q: %w", f.Name, ErrDuplicate)
			}
			return fmt.Errorf("update field: %w", err)
		}
		if err := requireOneRow(res); err != nil {
			return err
		}
		return replaceFieldValues(ctx, tx, f.ID, f.Values)
	})
}

func (s *SQLiteStore) DeleteField(ctx context.Context, uid, id int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var fieldName, varName string
		err := tx.QueryRowContext(ctx, `
			SELECT f.name, v.name FROM variables v JOIN fields f ON f.id = v.field_id
			WHERE f.id = ? AND f.user_id = ? LIMIT 1`, id, uid).Scan(&fieldName, &varName)
		switch {
		case err == nil:
			return fmt.Errorf("field %q referenced by variable %q: %w", fieldName, varName, ErrInUse)
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("check field references: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM fields WHERE id = ? AND user_id = ?`, id, uid)
		if err != nil {
			return fmt.Errorf("delete field: %w", err)
		}
		if err := requireOneRow(res); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM field_values WHERE field_id = ?`, id); err != nil {
			return fmt.Errorf("delete field values: %w", err)
		}
		return nil
	})
}

func loadFieldValues(ctx context.Context, q querier, fieldID int64) ([]FieldValue, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT email, value FROM field_values WHERE field_id = ? ORDER BY position`, fieldID)
	if err != nil {
		return nil, fmt.Errorf("query field values: %w", err)
	}
	defer rows.Close()
	values := []FieldValue{}
	for rows.Next() {
		var v FieldValue
		if err := rows.Scan(&v.Email, &v.Value); err != nil {
			return nil, fmt.Errorf("scan field value: %w", err)
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

func replaceFieldValues(ctx context.Context, q querier, fieldID int64, values []FieldValue) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM field_values WHERE field_id = ?`, fieldID); err != nil {
		return fmt.Errorf("clear field values: %w", err)
	}
	for i, v := range values {
		if _, err := q.ExecContext(ctx,
			`INSERT INTO field_values (field_id, position, email, value) VALUES (?, ?, ?, ?)`,
			fieldID, i, v.Email, v.Value); err != nil {
			return fmt.Errorf("insert field value: %w", err)
		}
	}
	return nil
}

// --- variables ---

const sqliteVariableColumns = `v.id, v.user_id, v.name, COALESCE(f.name, ''), v.modified_date`

func (s *SQLiteStore) ListVariables(ctx context.Context, uid int64) ([]Variable, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sqliteVariableColumns+`
		FROM variables v LEFT JOIN fields f ON f.id = v.field_id
		WHERE v.user_id = ? ORDER BY v.id`, uid)
	if err != nil {
		return nil, fmt.Errorf("query variables: %w", err)
	}
	vars := []Variable{}
	for rows.Next() {
		v, err := scanSQLiteVariable(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		vars = append(vars, v)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate variables: %w", err)
	}
	for i := range vars {
		if vars[i].Conditions, err = loadConditions(ctx, s.db, vars[i].ID); err != nil {
			return nil, err
		}
	}
	return vars, nil
}

func (s *SQLiteStore) VariableSummaries(ctx context.Context, uid int64) (VariableSummaries, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT v.id, v.name, COALESCE(f.name, ''), v.modified_date,
			(SELECT COUNT(*) FROM conditions c WHERE c.variable_id = v.id)
		FROM variables v LEFT JOIN fields f ON f.id = v.field_id
		WHERE v.user_id = ? ORDER BY v.id`, uid)
	if err != nil {
		return VariableSummaries{}, fmt.Errorf("query variable summaries: %w", err)
	}
	defer rows.Close()

	vs := VariableSummaries{Variables: []VariableSummary{}}
	for rows.Next() {
		sum, err := scanSQLiteVariableSummary(rows)
		if err != nil {
			return VariableSummaries{}, err
		}
		vs.Variables = append(vs.Variables, sum)
	}
	if err := rows.Err(); err != nil {
		return VariableSummaries{}, fmt.Errorf("iterate variable summaries: %w", err)
	}
	vs.Total = int64(len(vs.Variables))
	return vs, nil
}

func (s *SQLiteStore) VariableSummary(ctx context.Context, uid, id int64) (VariableSummary, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT v.id, v.name, COALESCE(f.name, ''), v.modified_date,
			(SELECT COUNT(*) FROM conditions c WHERE c.variable_id = v.id)
		FROM variables v LEFT JOIN fields f ON f.id = v.field_id
		WHERE v.user_id = ? AND v.id = ?`, uid, id)
	return scanSQLiteVariableSummary(row)
}

func (s *SQLiteStore) GetVariable(ctx context.Context, uid, id int64) (Variable, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteVariableColumns+`
		FROM variables v LEFT JOIN fields f ON f.id = v.field_id
		WHERE v.user_id = ? AND v.id = ?`, uid, id)
	return s.completeVariable(ctx, row)
}

func (s *SQLiteStore) GetVariableByName(ctx context.Context, uid int64, name string) (Variable, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteVariableColumns+`
		FROM variables v LEFT JOIN fields f ON f.id = v.field_id
		WHERE v.user_id = ? AND v.name = ?`, uid, Lower(name))
	return s.completeVariable(ctx, row)
}

func (s *SQLiteStore) completeVariable(ctx context.Context, row *sql.Row) (Variable, error) {
	v, err := scanSQLiteVariable(row)
	if err != nil {
		return Variable{}, err
	}
	v.Conditions, err = loadConditions(ctx, s.db, v.ID)
	if err != nil {
		return Variable{}, err
	}
	return v, nil
}

func (s *SQLiteStore) CreateVariable(ctx context.Context, v *Variable) error {
	if err := v.Validate(); err != nil {
		return err
	}
	v.ModifiedDate = s.now()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		fieldID, err := resolveFieldID(ctx, tx, v)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO variables (user_id, field_id, name, modified_date) VALUES (?, ?, ?, ?)`,
			v.UserID, fieldID, v.Name, v.ModifiedDate.Format(time.RFC3339Nano))
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("variable %q: %w", v.Name, ErrDuplicate)
			}
			return fmt.Errorf("insert variable: %w", err)
		}
		if v.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}
		return replaceConditions(ctx, tx, v.ID, v.Conditions)
	})
}

func (s *SQLiteStore) UpdateVariable(ctx context.Context, v *Variable) error {
	if err := v.Validate(); err != nil {
		return err
	}
	v.ModifiedDate = s.now()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		fieldID, err := resolveFieldID(ctx, tx, v)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE variables SET field_id = ?, name = ?, modified_date = ? WHERE id = ? AND user_id = ?`,
			fieldID, v.Name, v.ModifiedDate.Format(time.RFC3339Nano), v.ID, v.UserID)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("variable %q: %w", v.Name, ErrDuplicate)
			}
			return fmt.Errorf("update variable: %w", err)
		}
		if err := requireOneRow(res); err != nil {
			return err
		}
		return replaceConditions(ctx, tx, v.ID, v.Conditions)
	})
}

func (s *SQLiteStore) DeleteVariable(ctx context.Context, uid, id int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM variables WHERE id = ? AND user_id = ?`, id, uid)
		if err != nil {
			return fmt.Errorf("delete variable: %w", err)
		}
		if err := requireOneRow(res); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM conditions WHERE variable_id = ?`, id); err != nil {
			return fmt.Errorf("delete conditions: %w", err)
		}
		return nil
	})
}

// resolveFieldID returns the row id of a simple variable's field, or nil for
// a complex variable.
func resolveFieldID(ctx context.Context, q querier, v *Variable) (any, error) {
	if v.Type != VariableSimple {
		return nil, nil
	}
	var id int64
	err := q.QueryRowContext(ctx,
		`SELECT id FROM fields WHERE user_id = ? AND name = ?`, v.UserID, v.Field).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTargetFieldNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("resolve field: %w", err)
	}
	return id, nil
}

func loadConditions(ctx context.Context, q querier, variableID int64) ([]Condition, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT condition, value FROM conditions WHERE variable_id = ? ORDER BY position`, variableID)
	if err != nil {
		return nil, fmt.Errorf("query conditions: %w", err)
	}
	defer rows.Close()
	conds := []Condition{}
	for rows.Next() {
		var c Condition
		if err := rows.Scan(&c.Condition, &c.Value); err != nil {
			return nil, fmt.Errorf("scan condition: %w", err)
		}
		conds = append(conds, c)
	}
	return conds, rows.Err()
}

func replaceConditions(ctx context.Context, q querier, variableID int64, conds []Condition) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM conditions WHERE variable_id = ?`, variableID); err != nil {
		return fmt.Errorf("clear conditions: %w", err)
	}
	for i, c := range conds {
		if _, err := q.ExecContext(ctx,
			`INSERT INTO conditions (variable_id, position, condition, value) VALUES (?, ?, ?, ?)`,
			variableID, i, c.Condition, c.Value); err != nil {
			return fmt.Errorf("insert condition: %w", err)
		}
	}
	return nil
}

// --- API keys ---

func (s *SQLiteStore) CreateAPIKey(ctx context.Context, key *APIKey) (string, error) {
	rawKey, err := generateRawKey()
	if err != nil {
		return "", err
	}
	if err := s.EnsureAPIKey(ctx, key, rawKey); err != nil {
		return "", err
	}
	return rawKey, nil
}

func (s *SQLiteStore) EnsureAPIKey(ctx context.Context, key *APIKey, rawKey string) error {
	key.KeyHash = hashKey(rawKey)
	key.KeyPrefix = keyPrefix(rawKey)
	key.CreatedAt = s.now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO api_keys (user_id, name, key_hash, key_prefix, created_at)
		VALUES (?, ?, ?, ?, ?) ON CONFLICT (key_hash) DO NOTHING`,
		key.UserID, key.Name, key.KeyHash, key.KeyPrefix, key.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert api key: %w", err)
	}
	stored, err := scanSQLiteAPIKey(s.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, key_hash, key_prefix, created_at, last_used_at
		FROM api_keys WHERE key_hash = ?`, key.KeyHash))
	if err != nil {
		return err
	}
	*key = *stored
	return nil
}

func (s *SQLiteStore) ListAPIKeys(ctx context.Context, uid int64) ([]APIKey, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, name, key_hash, key_prefix, created_at, last_used_at
		FROM api_keys WHERE user_id = ? ORDER BY id`, uid)
	if err != nil {
		return nil, fmt.Errorf("query api keys: %w", err)
	}
	defer rows.Close()
	keys := []APIKey{}
	for rows.Next() {
		k, err := scanSQLiteAPIKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, *k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate api keys: %w", err)
	}
	return keys, nil
}

func (s *SQLiteStore) DeleteAPIKey(ctx context.Context, uid, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM api_keys WHERE id = ? AND user_id = ?`, id, uid)
	if err != nil {
		return fmt.Errorf("delete api key: %w", err)
	}
	return requireOneRow(res)
}

func (s *SQLiteStore) ValidateAPIKey(ctx context.Context, rawKey string) (*APIKey, error) {
	k, err := scanSQLiteAPIKey(s.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, key_hash, key_prefix, created_at, last_used_at
		FROM api_keys WHERE key_hash = ?`, hashKey(rawKey)))
	if err != nil {
		return nil, err
	}
	now := s.now()
	if _, err := s.db.ExecContext(ctx,
		`UPDATE api_keys SET last_used_at = ? WHERE id = ?`, now.Format(time.RFC3339Nano), k.ID); err != nil {
		return nil, fmt.Errorf("update last used: %w", err)
	}
	k.LastUsedAt = &now
	return k, nil
}

// --- scanning helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteField(row rowScanner) (Field, error) {
	var f Field
	var modified string
	if err := row.Scan(&f.ID, &f.UserID, &f.Name, &modified); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Field{}, ErrNotFound
		}
		return Field{}, fmt.Errorf("scan field: %w", err)
	}
	t, err := time.Parse(time.RFC3339Nano, modified)
	if err != nil {
		return Field{}, fmt.Errorf("parse modified_date: %w", err)
	}
	f.ModifiedDate = t
	return f, nil
}

func scanSQLiteFieldSummary(row rowScanner) (FieldSummary, error) {
	var fs FieldSummary
	var modified string
	if err := row.Scan(&fs.ID, &fs.Name, &modified, &fs.NumValues); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return FieldSummary{}, ErrNotFound
		}
		return FieldSummary{}, fmt.Errorf("scan field summary: %w", err)
	}
	t, err := time.Parse(time.RFC3339Nano, modified)
	if err != nil {
		return FieldSummary{}, fmt.Errorf("parse modified_date: %w", err)
	}
	fs.ModifiedDate = t
	return fs, nil
}

func scanSQLiteVariable(row rowScanner) (Variable, error) {
	var v Variable
	var modified string
	if err := row.Scan(&v.ID, &v.UserID, &v.Name, &v.Field, &modified); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Variable{}, ErrNotFound
		}
		return Variable{}, fmt.Errorf("scan variable: %w", err)
	}
	t, err := time.Parse(time.RFC3339Nano, modified)
	if err != nil {
		return Variable{}, fmt.Errorf("parse modified_date: %w", err)
	}
	v.ModifiedDate = t
	v.Type = typeForField(v.Field)
	return v, nil
}

func scanSQLiteVariableSummary(row rowScanner) (VariableSummary, error) {
	var vs VariableSummary
	var modified string
	if err := row.Scan(&vs.ID, &vs.Name, &vs.Field, &modified, &vs.NumConditions); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return VariableSummary{}, ErrNotFound
		}
		return VariableSummary{}, fmt.Errorf("scan variable summary: %w", err)
	}
	t, err := time.Parse(time.RFC3339Nano, modified)
	if err != nil {
		return VariableSummary{}, fmt.Errorf("parse modified_date: %w", err)
	}
	vs.ModifiedDate = t
	return vs, nil
}

func scanSQLiteAPIKey(row rowScanner) (*APIKey, error) {
	var k APIKey
	var created string
	var lastUsed sql.NullString
	if err := row.Scan(&k.ID, &k.UserID, &k.Name, &k.KeyHash, &k.KeyPrefix, &created, &lastUsed); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan api key: %w", err)
	}
	t, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	k.CreatedAt = t
	if lastUsed.Valid {
		lu, err := time.Parse(time.RFC3339Nano, lastUsed.String)
		if err != nil {
			return nil, fmt.Errorf("parse last_used_at: %w", err)
		}
		k.LastUsedAt = &lu
	}
	return &k, nil
}

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// isUniqueViolation checks if an error is a SQLite UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return false
}
