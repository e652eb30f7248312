package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/mail"
	"path"
	"strings"

	"github.com/GoCodeAlone/phishvars/csvio"
)

// Mode tells whether the editor creates a new entity or edits one.
type Mode int

const (
	ModeCreate Mode = iota
	ModeEdit
)

func (m Mode) String() string {
	if m == ModeEdit {
		return "edit"
	}
	return "create"
}

// State is everything a view needs to draw the editor chrome.
type State struct {
	Open          bool
	Mode          Mode
	Type          string // variables only
	FieldVisible  bool
	FieldRequired bool
}

// Loader reloads a list after a successful save.
type Loader interface {
	Load(ctx context.Context) error
}

// Editor is the create/edit modal for one entity kind. It is used by one
// session at a time.
type Editor struct {
	kind     Kind
	backend  Backend
	notifier Notifier
	list     Loader
	logger   *slog.Logger

	id    int64
	state State
	name  string
	field string
	table *Table
	err   string
}

// EditorOption configures an Editor.
type EditorOption func(*Editor)

// WithEditorLogger sets the logger for failures the editor does not
// surface itself.
func WithEditorLogger(l *slog.Logger) EditorOption {
	return func(e *Editor) { e.logger = l }
}

// NewEditor creates a closed editor. list may be nil.
func NewEditor(kind Kind, backend Backend, notifier Notifier, list Loader, opts ...EditorOption) *Editor {
	e := &Editor{
		kind:     kind,
		backend:  backend,
		notifier: notifier,
		list:     list,
		logger:   slog.Default(),
		id:       NewEntityID,
		table:    NewTable(kind),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Open starts a session. NewEntityID opens an empty create form; any other
// id loads that entity. When the load fails an error notification is
// shown and the editor stays open with whatever was filled in.
func (e *Editor) Open(ctx context.Context, id int64) error {
	e.Dismiss()
	e.id = id
	e.state = State{Open: true, Mode: ModeCreate}
	if id != NewEntityID {
		e.state.Mode = ModeEdit
	}
	if e.kind == Variables {
		e.applyType(TypeSimple)
	}
	if id == NewEntityID {
		return nil
	}

	ent, err := e.backend.Get(ctx, id)
	if err != nil {
		e.notifier.Error("Error fetching " + e.kind.noun())
		return err
	}
	e.name = ent.Name
	if e.kind == Variables {
		typ := ent.Type
		if typ == "" {
			typ = TypeSimple
			if ent.Field == "" {
				typ = TypeComplex
			}
		}
		e.applyType(typ)
		if typ == TypeSimple {
			e.field = ent.Field
		}
	}
	for _, r := range ent.Records {
		e.table.Insert(r.Key, r.Value)
	}
	return nil
}

// ID returns the id the editor was opened with.
func (e *Editor) ID() int64 { return e.id }

// State returns the current display state.
func (e *Editor) State() State { return e.state }

// Name returns the name input.
func (e *Editor) Name() string { return e.name }

// SetName sets the name input.
func (e *Editor) SetName(name string) { e.name = name }

// Field returns the field input of a variable.
func (e *Editor) Field() string { return e.field }

// SetField sets the field input. It is ignored while the input is hidden.
func (e *Editor) SetField(field string) {
	if e.state.FieldVisible {
		e.field = field
	}
}

// SetType switches a variable between simple and complex. Switching to
// complex clears and hides the field input.
func (e *Editor) SetType(typ string) error {
	if e.kind != Variables {
		return fmt.Errorf("%ss have no type", e.kind.noun())
	}
	if typ != TypeSimple && typ != TypeComplex {
		return fmt.Errorf("unknown variable type %q", typ)
	}
	e.applyType(typ)
	return nil
}

func (e *Editor) applyType(typ string) {
	e.state.Type = typ
	e.state.FieldVisible = typ == TypeSimple
	e.state.FieldRequired = typ == TypeSimple
	if typ == TypeComplex {
		e.field = ""
	}
}

// Rows returns the child-record table as displayed.
func (e *Editor) Rows() []Record { return e.table.Rows() }

// Error returns the inline error message, if any.
func (e *Editor) Error() string { return e.err }

func (e *Editor) fail(err error) error {
	e.err = err.Error()
	return err
}

// Validate checks the form before anything is sent.
func (e *Editor) Validate() error {
	e.err = ""
	if strings.TrimSpace(e.name) == "" {
		return e.fail(fmt.Errorf("%s name not specified", e.kind.title()))
	}
	if e.state.FieldRequired && strings.TrimSpace(e.field) == "" {
		return e.fail(errors.New("Simple variables need a target field")) //nolint:staticcheck // shown verbatim
	}
	return nil
}

// Save sends the form and every table row as one create or update. On
// success the list is reloaded and the editor closes; on failure the
// backend's message becomes the inline error and the editor stays open.
func (e *Editor) Save(ctx context.Context) error {
	if !e.state.Open {
		return ErrEditorClosed
	}
	if err := e.Validate(); err != nil {
		return err
	}
	payload := Entity{ID: NewEntityID, Name: e.name, Records: e.table.Records()}
	if e.state.Mode == ModeEdit {
		payload.ID = e.id
	}
	if e.kind == Variables {
		payload.Type = e.state.Type
		payload.Field = e.field
	}

	var err error
	verb := "added"
	if e.state.Mode == ModeEdit {
		verb = "updated"
		_, err = e.backend.Update(ctx, payload)
	} else {
		_, err = e.backend.Create(ctx, payload)
	}
	if err != nil {
		return e.fail(backendError(err))
	}

	e.notifier.Success(fmt.Sprintf("%s %s successfully!", e.kind.title(), verb), "")
	if e.list != nil {
		// The user was already notified by the list.
		if err := e.list.Load(ctx); err != nil {
			e.logger.DebugContext(ctx, "reload after save failed", "kind", string(e.kind), "error", err)
		}
	}
	e.Dismiss()
	return nil
}

// AddRecord inserts a manually entered row. Field emails must parse as
// addresses and are stored bare.
func (e *Editor) AddRecord(key, value string) error {
	e.err = ""
	key = strings.TrimSpace(key)
	if key == "" || value == "" {
		label := "Condition"
		if e.kind == Fields {
			label = "Email"
		}
		return e.fail(fmt.Errorf("%s and value are required", label))
	}
	if e.kind == Fields {
		addr, err := mail.ParseAddress(key)
		if err != nil {
			return e.fail(fmt.Errorf("Invalid email address %q", key)) //nolint:staticcheck // shown verbatim
		}
		key = addr.Address
	}
	e.table.Insert(key, value)
	return nil
}

// RemoveRow deletes the row at display position i.
func (e *Editor) RemoveRow(i int) error {
	return e.table.RemoveAt(i)
}

// Import uploads a CSV or TXT file and inserts every returned record
// through the same path as AddRecord's table insert. Other extensions are
// rejected without an upload.
func (e *Editor) Import(ctx context.Context, filename string, r io.Reader) error {
	e.err = ""
	if !acceptedUpload(filename) {
		return e.fail(ErrUnsupportedExtension)
	}
	records, err := e.backend.Import(ctx, filename, r)
	if err != nil {
		return e.fail(backendError(err))
	}
	for _, rec := range records {
		e.table.Insert(rec.Key, rec.Value)
	}
	return nil
}

func acceptedUpload(filename string) bool {
	ext := strings.TrimPrefix(path.Ext(filename), ".")
	return strings.EqualFold(ext, "csv") || strings.EqualFold(ext, "txt")
}

// TemplateFilename is the download name of the CSV template.
func (e *Editor) TemplateFilename() string {
	return csvio.TemplateFilename(csvio.Kind(e.kind))
}

// WriteTemplate writes the one-row CSV template. It makes no network call.
func (e *Editor) WriteTemplate(w io.Writer) error {
	return csvio.WriteTemplate(w, csvio.Kind(e.kind))
}

// Dismiss clears the form, the table and any inline error, and closes the
// editor.
func (e *Editor) Dismiss() {
	e.table.Clear()
	e.name = ""
	e.field = ""
	e.err = ""
	e.state.Open = false
}
