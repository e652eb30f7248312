package console

import (
	"context"
	"io"
	"time"

	"github.com/GoCodeAlone/phishvars/client"
)

// Record is one child record: email/value for fields, condition/value for
// variables.
type Record struct {
	Key   string
	Value string
}

// Entity is a field or variable as edited in the console. Type and Field
// are only meaningful for variables.
type Entity struct {
	ID      int64
	Name    string
	Type    string
	Field   string
	Records []Record
}

// Item is one entry of a summary listing.
type Item struct {
	ID       int64
	Name     string
	Field    string
	Count    int64
	Modified time.Time
}

// Summary is the list controller's view of the backend summary.
type Summary struct {
	Total int64
	Items []Item
}

// Backend is the remote surface for one entity kind.
type Backend interface {
	Summaries(ctx context.Context) (Summary, error)
	Get(ctx context.Context, id int64) (Entity, error)
	Create(ctx context.Context, e Entity) (Entity, error)
	Update(ctx context.Context, e Entity) (Entity, error)
	Delete(ctx context.Context, id int64) error
	Import(ctx context.Context, filename string, r io.Reader) ([]Record, error)
}

// NewBackend adapts c to the Backend for kind.
func NewBackend(kind Kind, c *client.Client) Backend {
	if kind == Variables {
		return variableBackend{c: c}
	}
	return fieldBackend{c: c}
}

type fieldBackend struct{ c *client.Client }

func (b fieldBackend) Summaries(ctx context.Context) (Summary, error) {
	s, err := b.c.FieldSummaries(ctx)
	if err != nil {
		return Summary{}, err
	}
	out := Summary{Total: s.Total, Items: make([]Item, 0, len(s.Fields))}
	for _, f := range s.Fields {
		out.Items = append(out.Items, Item{ID: f.ID, Name: f.Name, Count: f.NumValues, Modified: f.ModifiedDate})
	}
	return out, nil
}

func (b fieldBackend) Get(ctx context.Context, id int64) (Entity, error) {
	f, err := b.c.GetField(ctx, id)
	if err != nil {
		return Entity{}, err
	}
	return fieldEntity(f), nil
}

func (b fieldBackend) Create(ctx context.Context, e Entity) (Entity, error) {
	f, err := b.c.CreateField(ctx, toField(e))
	if err != nil {
		return Entity{}, err
	}
	return fieldEntity(f), nil
}

func (b fieldBackend) Update(ctx context.Context, e Entity) (Entity, error) {
	f, err := b.c.UpdateField(ctx, toField(e))
	if err != nil {
		return Entity{}, err
	}
	return fieldEntity(f), nil
}

func (b fieldBackend) Delete(ctx context.Context, id int64) error {
	return b.c.DeleteField(ctx, id)
}

func (b fieldBackend) Import(ctx context.Context, filename string, r io.Reader) ([]Record, error) {
	values, err := b.c.ImportFieldValues(ctx, filename, r)
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(values))
	for _, v := range values {
		out = append(out, Record{Key: v.Email, Value: v.Value})
	}
	return out, nil
}

func fieldEntity(f *client.Field) Entity {
	e := Entity{ID: f.ID, Name: f.Name, Records: make([]Record, 0, len(f.Values))}
	for _, v := range f.Values {
		e.Records = append(e.Records, Record{Key: v.Email, Value: v.Value})
	}
	return e
}

func toField(e Entity) *client.Field {
	f := &client.Field{Name: e.Name, Values: make([]client.FieldValue, 0, len(e.Records))}
	if e.ID != NewEntityID {
		f.ID = e.ID
	}
	for _, r := range e.Records {
		f.Values = append(f.Values, client.FieldValue{Email: r.Key, Value: r.Value})
	}
	return f
}

type variableBackend struct{ c *client.Client }

func (b variableBackend) Summaries(ctx context.Context) (Summary, error) {
	s, err := b.c.VariableSummaries(ctx)
	if err != nil {
		return Summary{}, err
	}
	out := Summary{Total: s.Total, Items: make([]Item, 0, len(s.Variables))}
	for _, v := range s.Variables {
		out.Items = append(out.Items, Item{
			ID: v.ID, Name: v.Name, Field: v.Field, Count: v.NumConditions, Modified: v.ModifiedDate,
		})
	}
	return out, nil
}

func (b variableBackend) Get(ctx context.Context, id int64) (Entity, error) {
	v, err := b.c.GetVariable(ctx, id)
	if err != nil {
		return Entity{}, err
	}
	return variableEntity(v), nil
}

func (b variableBackend) Create(ctx context.Context, e Entity) (Entity, error) {
	v, err := b.c.CreateVariable(ctx, toVariable(e))
	if err != nil {
		return Entity{}, err
	}
	return variableEntity(v), nil
}

func (b variableBackend) Update(ctx context.Context, e Entity) (Entity, error) {
	v, err := b.c.UpdateVariable(ctx, toVariable(e))
	if err != nil {
		return Entity{}, err
	}
	return variableEntity(v), nil
}

func (b variableBackend) Delete(ctx context.Context, id int64) error {
	return b.c.DeleteVariable(ctx, id)
}

func (b variableBackend) Import(ctx context.Context, filename string, r io.Reader) ([]Record, error) {
	conds, err := b.c.ImportConditions(ctx, filename, r)
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(conds))
	for _, c := range conds {
		out = append(out, Record{Key: c.Condition, Value: c.Value})
	}
	return out, nil
}

func variableEntity(v *client.Variable) Entity {
	e := Entity{ID: v.ID, Name: v.Name, Type: v.Type, Field: v.Field, Records: make([]Record, 0, len(v.Conditions))}
	for _, c := range v.Conditions {
		e.Records = append(e.Records, Record{Key: c.Condition, Value: c.Value})
	}
	return e
}

func toVariable(e Entity) *client.Variable {
	v := &client.Variable{Name: e.Name, Type: e.Type, Field: e.Field, Conditions: make([]client.Condition, 0, len(e.Records))}
	if e.ID != NewEntityID {
		v.ID = e.ID
	}
	for _, r := range e.Records {
		v.Conditions = append(v.Conditions, client.Condition{Condition: r.Key, Value: r.Value})
	}
	return v
}
