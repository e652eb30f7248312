package console

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"time"
)

// Row is one rendered line of the list view. Text cells are HTML escaped.
type Row struct {
	ID       int64
	Name     string
	Field    string // variables only
	Count    string
	Modified string
}

// ListView draws the entity list.
type ListView interface {
	// ShowLoading hides the table and the empty placeholder.
	ShowLoading()
	// ShowEmpty shows the "nothing here yet" placeholder.
	ShowEmpty()
	// ShowRows replaces the table contents and shows the table.
	ShowRows(rows []Row)
}

// ListController loads the summary of one entity kind into a ListView and
// handles row deletion. It keeps the last loaded items for id lookups.
type ListController struct {
	kind     Kind
	backend  Backend
	view     ListView
	notifier Notifier
	confirm  Confirmer
	location *time.Location

	items []Item
}

// ListOption configures a ListController.
type ListOption func(*ListController)

// WithLocation renders timestamps in loc instead of the local zone.
func WithLocation(loc *time.Location) ListOption {
	return func(c *ListController) { c.location = loc }
}

// NewListController creates a ListController.
func NewListController(kind Kind, backend Backend, view ListView, notifier Notifier, confirm Confirmer, opts ...ListOption) *ListController {
	c := &ListController{
		kind:     kind,
		backend:  backend,
		view:     view,
		notifier: notifier,
		confirm:  confirm,
		location: time.Local,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Items returns the entities from the last successful Load.
func (c *ListController) Items() []Item {
	return append([]Item(nil), c.items...)
}

// Load fetches the summary and redraws the view. On failure the view is
// left in its loading state and an error notification is shown.
func (c *ListController) Load(ctx context.Context) error {
	c.view.ShowLoading()
	s, err := c.backend.Summaries(ctx)
	if err != nil {
		c.notifier.Error(fmt.Sprintf("Error fetching %ss", c.kind.noun()))
		return err
	}
	if s.Total == 0 {
		c.items = nil
		c.view.ShowEmpty()
		return nil
	}
	c.items = s.Items
	rows := make([]Row, 0, len(s.Items))
	for _, it := range s.Items {
		row := Row{
			ID:       it.ID,
			Name:     html.EscapeString(it.Name),
			Count:    strconv.FormatInt(it.Count, 10),
			Modified: FormatTimestamp(it.Modified.In(c.location)),
		}
		if c.kind == Variables {
			row.Field = html.EscapeString(it.Field)
		}
		rows = append(rows, row)
	}
	c.view.ShowRows(rows)
	return nil
}

// Delete asks for confirmation and deletes the entity with id. Ids that
// are not in the last loaded list are ignored without a network call. A
// successful delete reloads the list.
func (c *ListController) Delete(ctx context.Context, id int64) error {
	var target *Item
	for i := range c.items {
		if c.items[i].ID == id {
			target = &c.items[i]
			break
		}
	}
	if target == nil {
		return nil
	}
	confirmed, err := c.confirm.Confirm(ctx, Confirmation{
		Title:        "Are you sure?",
		Text:         fmt.Sprintf("This will delete the %s. This can't be undone!", c.kind.noun()),
		ConfirmLabel: "Delete " + html.EscapeString(target.Name),
		PreConfirm: func(ctx context.Context) error {
			if err := c.backend.Delete(ctx, id); err != nil {
				return backendError(err)
			}
			return nil
		},
	})
	if err != nil || !confirmed {
		return err
	}
	c.notifier.Success(c.kind.title()+" Deleted!", fmt.Sprintf("This %s has been deleted!", c.kind.noun()))
	return c.Load(ctx)
}
