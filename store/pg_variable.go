package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

const pgVariableSelect = `
	SELECT v.id, v.user_id, v.name, COALESCE(f.name, ''), v.modified_date
	FROM variables v LEFT JOIN fields f ON f.id = v.field_id`

const pgVariableSummarySelect = `
	SELECT v.id, v.name, COALESCE(f.name, ''), v.modified_date,
		(SELECT COUNT(*) FROM conditions c WHERE c.variable_id = v.id)
	FROM variables v LEFT JOIN fields f ON f.id = v.field_id`

func scanPGVariable(row pgx.Row) (Variable, error) {
	var v Variable
	if err := row.Scan(&v.ID, &v.UserID, &v.Name, &v.Field, &v.ModifiedDate); err != nil {
		return Variable{}, err
	}
	v.Type = typeForField(v.Field)
	return v, nil
}

func (s *PGStore) ListVariables(ctx context.Context, uid int64) ([]Variable, error) {
	rows, err := s.pool.Query(ctx, pgVariableSelect+` WHERE v.user_id = $1 ORDER BY v.id`, uid)
	if err != nil {
		return nil, fmt.Errorf("query variables: %w", err)
	}
	vars, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Variable, error) {
		return scanPGVariable(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan variables: %w", err)
	}
	for i := range vars {
		if vars[i].Conditions, err = s.conditions(ctx, vars[i].ID); err != nil {
			return nil, err
		}
	}
	return vars, nil
}

func (s *PGStore) VariableSummaries(ctx context.Context, uid int64) (VariableSummaries, error) {
	rows, err := s.pool.Query(ctx, pgVariableSummarySelect+` WHERE v.user_id = $1 ORDER BY v.id`, uid)
	if err != nil {
		return VariableSummaries{}, fmt.Errorf("query variable summaries: %w", err)
	}
	sums, err := pgx.CollectRows(rows, pgx.RowToStructByPos[VariableSummary])
	if err != nil {
		return VariableSummaries{}, fmt.Errorf("scan variable summaries: %w", err)
	}
	if sums == nil {
		sums = []VariableSummary{}
	}
	return VariableSummaries{Total: int64(len(sums)), Variables: sums}, nil
}

func (s *PGStore) VariableSummary(ctx context.Context, uid, id int64) (VariableSummary, error) {
	var vs VariableSummary
	err := s.pool.QueryRow(ctx, pgVariableSummarySelect+` WHERE v.user_id = $1 AND v.id = $2`, uid, id).
		Scan(&vs.ID, &vs.Name, &vs.Field, &vs.ModifiedDate, &vs.NumConditions)
	if err != nil {
		return VariableSummary{}, notFound(err, "get variable summary")
	}
	return vs, nil
}

func (s *PGStore) GetVariable(ctx context.Context, uid, id int64) (Variable, error) {
	return s.getVariable(ctx, ` WHERE v.user_id = $1 AND v.id = $2`, uid, id)
}

func (s *PGStore) GetVariableByName(ctx context.Context, uid int64, name string) (Variable, error) {
	return s.getVariable(ctx, ` WHERE v.user_id = $1 AND v.name = $2`, uid, Lower(name))
}

func (s *PGStore) getVariable(ctx context.Context, where string, args ...any) (Variable, error) {
	v, err := scanPGVariable(s.pool.QueryRow(ctx, pgVariableSelect+where, args...))
	if err != nil {
		return Variable{}, notFound(err, "get variable")
	}
	if v.Conditions, err = s.conditions(ctx, v.ID); err != nil {
		return Variable{}, err
	}
	return v, nil
}

func (s *PGStore) conditions(ctx context.Context, variableID int64) ([]Condition, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT condition, value FROM conditions WHERE variable_id = $1 ORDER BY position`, variableID)
	if err != nil {
		return nil, fmt.Errorf("query conditions: %w", err)
	}
	conds, err := pgx.CollectRows(rows, pgx.RowToStructByPos[Condition])
	if err != nil {
		return nil, fmt.Errorf("scan conditions: %w", err)
	}
	if conds == nil {
		conds = []Condition{}
	}
	return conds, nil
}

func (s *PGStore) CreateVariable(ctx context.Context, v *Variable) error {
	if err := v.Validate(); err != nil {
		return err
	}
	v.ModifiedDate = s.now()
	return s.withTx(ctx, func(tx pgx.Tx) error {
		fieldID, err := pgResolveFieldID(ctx, tx, v)
		if err != nil {
			return err
		}
		err = tx.QueryRow(ctx, `
			INSERT INTO variables (user_id, field_id, name, modified_date)
			VALUES ($1, $2, $3, $4) RETURNING id`,
			v.UserID, fieldID, v.Name, v.ModifiedDate).Scan(&v.ID)
		if err != nil {
			if isDuplicateError(err) {
				return fmt.Errorf("variable %q: %w", v.Name, ErrDuplicate)
			}
			return fmt.Errorf("insert variable: %w", err)
		}
		return pgReplaceConditions(ctx, tx, v.ID, v.Conditions)
	})
}

func (s *PGStore) UpdateVariable(ctx context.Context, v *Variable) error {
	if err := v.Validate(); err != nil {
		return err
	}
	v.ModifiedDate = s.now()
	return s.withTx(ctx, func(tx pgx.Tx) error {
		fieldID, err := pgResolveFieldID(ctx, tx, v)
		if err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `
			UPDATE variables SET field_id = $1, name = $2, modified_date = $3
			WHERE id = $4 AND user_id = $5`,
			fieldID, v.Name, v.ModifiedDate, v.ID, v.UserID)
		if err != nil {
			if isDuplicateError(err) {
				return fmt.Errorf("variable %q: %w", v.Name, ErrDuplicate)
			}
			return fmt.Errorf("update variable: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return pgReplaceConditions(ctx, tx, v.ID, v.Conditions)
	})
}

func (s *PGStore) DeleteVariable(ctx context.Context, uid, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM variables WHERE id = $1 AND user_id = $2`, id, uid)
	if err != nil {
		return fmt.Errorf("delete variable: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// pgResolveFieldID returns the row id of a simple variable's field, or nil
// for a complex variable.
func pgResolveFieldID(ctx context.Context, tx pgx.Tx, v *Variable) (*int64, error) {
	if v.Type != VariableSimple {
		return nil, nil
	}
	var id int64
	err := tx.QueryRow(ctx,
		`SELECT id FROM fields WHERE user_id = $1 AND name = $2`, v.UserID, v.Field).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTargetFieldNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("resolve field: %w", err)
	}
	return &id, nil
}

func pgReplaceConditions(ctx context.Context, tx pgx.Tx, variableID int64, conds []Condition) error {
	if _, err := tx.Exec(ctx, `DELETE FROM conditions WHERE variable_id = $1`, variableID); err != nil {
		return fmt.Errorf("clear conditions: %w", err)
	}
	rows := make([][]any, len(conds))
	for i, c := range conds {
		rows[i] = []any{variableID, i, c.Condition, c.Value}
	}
	_, err := tx.CopyFrom(ctx, pgx.Identifier{"conditions"},
		[]string{"variable_id", "position", "condition", "value"}, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("copy conditions: %w", err)
	}
	return nil
}
