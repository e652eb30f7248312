package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

func (s *PGStore) ListFields(ctx context.Context, uid int64) ([]Field, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, name, modified_date FROM fields WHERE user_id = $1 ORDER BY id`, uid)
	if err != nil {
		return nil, fmt.Errorf("query fields: %w", err)
	}
	fields, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Field, error) {
		var f Field
		err := row.Scan(&f.ID, &f.UserID, &f.Name, &f.ModifiedDate)
		return f, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan fields: %w", err)
	}
	for i := range fields {
		if fields[i].Values, err = s.fieldValues(ctx, fields[i].ID); err != nil {
			return nil, err
		}
	}
	return fields, nil
}

const pgFieldSummarySelect = `
	SELECT f.id, f.name, f.modified_date,
		(SELECT COUNT(*) FROM field_values fv WHERE fv.field_id = f.id)
	FROM fields f`

func (s *PGStore) FieldSummaries(ctx context.Context, uid int64) (FieldSummaries, error) {
	rows, err := s.pool.Query(ctx, pgFieldSummarySelect+` WHERE f.user_id = $1 ORDER BY f.id`, uid)
	if err != nil {
		return FieldSummaries{}, fmt.Errorf("query field summaries: %w", err)
	}
	sums, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (FieldSummary, error) {
		var fs FieldSummary
		err := row.Scan(&fs.ID, &fs.Name, &fs.ModifiedDate, &fs.NumValues)
		return fs, err
	})
	if err != nil {
		return FieldSummaries{}, fmt.Errorf("scan field summaries: %w", err)
	}
	if sums == nil {
		sums = []FieldSummary{}
	}
	return FieldSummaries{Total: int64(len(sums)), Fields: sums}, nil
}

func (s *PGStore) FieldSummary(ctx context.Context, uid, id int64) (FieldSummary, error) {
	var fs FieldSummary
	err := s.pool.QueryRow(ctx, pgFieldSummarySelect+` WHERE f.user_id = $1 AND f.id = $2`, uid, id).
		Scan(&fs.ID, &fs.Name, &fs.ModifiedDate, &fs.NumValues)
	if err != nil {
		return FieldSummary{}, notFound(err, "get field summary")
	}
	return fs, nil
}

func (s *PGStore) GetField(ctx context.Context, uid, id int64) (Field, error) {
	return s.getField(ctx, `WHERE user_id = $1 AND id = $2`, uid, id)
}

func (s *PGStore) GetFieldByName(ctx context.Context, uid int64, name string) (Field, error) {
	return s.getField(ctx, `WHERE user_id = $1 AND name = $2`, uid, Lower(name))
}

func (s *PGStore) getField(ctx context.Context, where string, args ...any) (Field, error) {
	var f Field
	err := s.pool.QueryRow(ctx, `SELECT id, user_id, name, modified_date FROM fields `+where, args...).
		Scan(&f.ID, &f.UserID, &f.Name, &f.ModifiedDate)
	if err != nil {
		return Field{}, notFound(err, "get field")
	}
	if f.Values, err = s.fieldValues(ctx, f.ID); err != nil {
		return Field{}, err
	}
	return f, nil
}

func (s *PGStore) fieldValues(ctx context.Context, fieldID int64) ([]FieldValue, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT email, value FROM field_values WHERE field_id = $1 ORDER BY position`, fieldID)
	if err != nil {
		return nil, fmt.Errorf("query field values: %w", err)
	}
	values, err := pgx.CollectRows(rows, pgx.RowToStructByPos[FieldValue])
	if err != nil {
		return nil, fmt.Errorf("scan field values: %w", err)
	}
	if values == nil {
		values = []FieldValue{}
	}
	return values, nil
}

func (s *PGStore) CreateField(ctx context.Context, f *Field) error {
	if err := f.Validate(); err != nil {
		return err
	}
	f.ModifiedDate = s.now()
	return s.withTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO fields (user_id, name, modified_date) VALUES ($1, $2, $3) RETURNING id`,
			f.UserID, f.Name, f.ModifiedDate).Scan(&f.ID)
		if err != nil {
			if isDuplicateError(err) {
				return fmt.Errorf("field %q: %w", f.Name, ErrDuplicate)
			}
			return fmt.Errorf("insert field: %w", err)
		}
		return pgReplaceFieldValues(ctx, tx, f.ID, f.Values)
	})
}

func (s *PGStore) UpdateField(ctx context.Context, f *Field) error {
	if err := f.Validate(); err != nil {
		return err
	}
	f.ModifiedDate = s.now()
	return s.withTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE fields SET name = $1, modified_date = $2 WHERE id = $3 AND user_id = $4`,
			f.Name, f.ModifiedDate, f.ID, f.UserID)
		if err != nil {
			if isDuplicateError(err) {
				return fmt.Errorf("field %q: %w", f.Name, ErrDuplicate)
			}
			return fmt.Errorf("update field: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return pgReplaceFieldValues(ctx, tx, f.ID, f.Values)
	})
}

func (s *PGStore) DeleteField(ctx context.Context, uid, id int64) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		var fieldName, varName string
		err := tx.QueryRow(ctx, `
			SELECT f.name, v.name FROM variables v JOIN fields f ON f.id = v.field_id
			WHERE f.id = $1 AND f.user_id = $2 LIMIT 1`, id, uid).Scan(&fieldName, &varName)
		switch {
		case err == nil:
			return fmt.Errorf("field %q referenced by variable %q: %w", fieldName, varName, ErrInUse)
		case !errors.Is(err, pgx.ErrNoRows):
			return fmt.Errorf("check field references: %w", err)
		}
		tag, err := tx.Exec(ctx, `DELETE FROM fields WHERE id = $1 AND user_id = $2`, id, uid)
		if err != nil {
			return fmt.Errorf("delete field: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func pgReplaceFieldValues(ctx context.Context, tx pgx.Tx, fieldID int64, values []FieldValue) error {
	if _, err := tx.Exec(ctx, `DELETE FROM field_values WHERE field_id = $1`, fieldID); err != nil {
		return fmt.Errorf("clear field values: %w", err)
	}
	rows := make([][]any, len(values))
	for i, v := range values {
		rows[i] = []any{fieldID, i, v.Email, v.Value}
	}
	_, err := tx.CopyFrom(ctx, pgx.Identifier{"field_values"},
		[]string{"field_id", "position", "email", "value"}, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("copy field values: %w", err)
	}
	return nil
}
