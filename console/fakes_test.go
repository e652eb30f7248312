package console

import (
	"context"
	"errors"
	"io"

	"github.com/GoCodeAlone/phishvars/client"
)

type fakeBackend struct {
	summary   Summary
	entities  map[int64]Entity
	imported  []Record
	err       error
	deleteErr error

	calls   []string
	created []Entity
	updated []Entity
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{entities: map[int64]Entity{}}
}

func (b *fakeBackend) Summaries(context.Context) (Summary, error) {
	b.calls = append(b.calls, "summaries")
	return b.summary, b.err
}

func (b *fakeBackend) Get(_ context.Context, id int64) (Entity, error) {
	b.calls = append(b.calls, "get")
	if b.err != nil {
		return Entity{}, b.err
	}
	e, ok := b.entities[id]
	if !ok {
		return Entity{}, &client.APIError{StatusCode: 404, Message: "Field not found"}
	}
	return e, nil
}

func (b *fakeBackend) Create(_ context.Context, e Entity) (Entity, error) {
	b.calls = append(b.calls, "create")
	b.created = append(b.created, e)
	return e, b.err
}

func (b *fakeBackend) Update(_ context.Context, e Entity) (Entity, error) {
	b.calls = append(b.calls, "update")
	b.updated = append(b.updated, e)
	return e, b.err
}

func (b *fakeBackend) Delete(context.Context, int64) error {
	b.calls = append(b.calls, "delete")
	return b.deleteErr
}

func (b *fakeBackend) Import(_ context.Context, _ string, r io.Reader) ([]Record, error) {
	b.calls = append(b.calls, "import")
	if _, err := io.ReadAll(r); err != nil {
		return nil, err
	}
	return b.imported, b.err
}

type fakeView struct {
	state string
	rows  []Row
}

func (v *fakeView) ShowLoading()        { v.state = "loading" }
func (v *fakeView) ShowEmpty()          { v.state = "empty"; v.rows = nil }
func (v *fakeView) ShowRows(rows []Row) { v.state = "table"; v.rows = rows }

type note struct {
	kind, title, text string
}

type fakeNotifier struct {
	notes []note
}

func (n *fakeNotifier) Success(title, text string) {
	n.notes = append(n.notes, note{"success", title, text})
}

func (n *fakeNotifier) Error(message string) {
	n.notes = append(n.notes, note{"error", message, ""})
}

// fakeConfirmer answers every dialog with accept and records what it saw.
type fakeConfirmer struct {
	accept bool
	seen   []Confirmation
}

func (c *fakeConfirmer) Confirm(ctx context.Context, conf Confirmation) (bool, error) {
	c.seen = append(c.seen, conf)
	if !c.accept {
		return false, nil
	}
	if err := conf.PreConfirm(ctx); err != nil {
		return false, err
	}
	return true, nil
}

type countingLoader struct {
	loads int
	err   error
}

func (l *countingLoader) Load(context.Context) error {
	l.loads++
	return l.err
}

var errTransport = errors.New("connection refused")
