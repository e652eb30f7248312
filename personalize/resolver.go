// Package personalize computes field and variable values for a campaign
// target and substitutes references in message text.
package personalize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/GoCodeAlone/phishvars/store"
)

// Store is the subset of the persistence layer the resolver reads.
type Store interface {
	ListFields(ctx context.Context, uid int64) ([]store.Field, error)
	GetVariableByName(ctx context.Context, uid int64, name string) (store.Variable, error)
}

const defaultProgramCacheSize = 512

// Resolver evaluates fields and variables for one target at a time. It is
// safe for concurrent use.
type Resolver struct {
	store    Store
	logger   *slog.Logger
	programs *lru.Cache[string, *vm.Program]
}

// Option configures a Resolver.
type Option func(*resolverOptions)

type resolverOptions struct {
	logger    *slog.Logger
	cacheSize int
}

// WithLogger sets the logger used for skipped conditions.
func WithLogger(l *slog.Logger) Option {
	return func(o *resolverOptions) { o.logger = l }
}

// WithProgramCacheSize bounds the number of compiled conditions kept.
func WithProgramCacheSize(n int) Option {
	return func(o *resolverOptions) { o.cacheSize = n }
}

// NewResolver creates a Resolver reading from s.
func NewResolver(s Store, opts ...Option) (*Resolver, error) {
	o := resolverOptions{logger: slog.Default(), cacheSize: defaultProgramCacheSize}
	for _, opt := range opts {
		opt(&o)
	}
	programs, err := lru.New[string, *vm.Program](o.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("program cache: %w", err)
	}
	return &Resolver{store: s, logger: o.logger, programs: programs}, nil
}

// Value returns the value of the field or variable called name for the
// target with the given email. Unknown names resolve to "".
func (r *Resolver) Value(ctx context.Context, uid int64, email, name string) (string, error) {
	t, err := r.newTarget(ctx, uid, email)
	if err != nil {
		return "", err
	}
	return t.resolve(ctx, name)
}

// Render replaces every {%name%} reference and {if(%name%){then}{else}}
// block in text with the target's values.
func (r *Resolver) Render(ctx context.Context, uid int64, email, text string) (string, error) {
	t, err := r.newTarget(ctx, uid, email)
	if err != nil {
		return "", err
	}
	return t.render(ctx, text, nil)
}

func (r *Resolver) program(cond string) (*vm.Program, error) {
	if p, ok := r.programs.Get(cond); ok {
		return p, nil
	}
	p, err := compileCondition(cond)
	if err != nil {
		return nil, err
	}
	r.programs.Add(cond, p)
	return p, nil
}

// target holds one recipient's field values and memoized references.
type target struct {
	r       *Resolver
	uid     int64
	email   string
	profile map[string]string
	env     map[string]any
	memo    map[string]string
}

func (r *Resolver) newTarget(ctx context.Context, uid int64, email string) (*target, error) {
	fields, err := r.store.ListFields(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("load fields: %w", err)
	}
	t := &target{
		r:       r,
		uid:     uid,
		email:   store.Lower(email),
		profile: make(map[string]string, len(fields)),
		env:     make(map[string]any, len(fields)),
		memo:    map[string]string{},
	}
	for _, f := range fields {
		value := ""
		for _, v := range f.Values {
			if v.Email == t.email {
				value = v.Value
				break
			}
		}
		t.profile[f.Name] = value
		t.env[f.Name] = value
	}
	return t, nil
}

// resolve prefers a non-empty field value and falls back to a variable.
func (t *target) resolve(ctx context.Context, name string) (string, error) {
	name = store.Lower(name)
	if v, ok := t.memo[name]; ok {
		return v, nil
	}
	value := t.profile[name]
	if value == "" {
		var err error
		value, err = t.variable(ctx, name)
		if err != nil {
			return "", err
		}
	}
	t.memo[name] = value
	return value, nil
}

func (t *target) variable(ctx context.Context, name string) (string, error) {
	v, err := t.r.store.GetVariableByName(ctx, t.uid, name)
	if errors.Is(err, store.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load variable %q: %w", name, err)
	}
	if v.Type == store.VariableSimple {
		fieldValue := t.profile[v.Field]
		for _, c := range v.Conditions {
			if c.Condition == fieldValue {
				return c.Value, nil
			}
		}
		return "", nil
	}
	for _, c := range v.Conditions {
		ok, err := t.match(c.Condition)
		if err != nil {
			t.r.logger.Warn("skipping condition",
				"variable", v.Name, "condition", c.Condition, "error", err)
			continue
		}
		if ok {
			return c.Value, nil
		}
	}
	return "", nil
}

func (t *target) match(cond string) (bool, error) {
	program, err := t.r.program(cond)
	if err != nil {
		return false, err
	}
	out, err := expr.Run(program, t.env)
	if err != nil {
		return false, fmt.Errorf("evaluate: %w", err)
	}
	ok, _ := out.(bool)
	return ok, nil
}
