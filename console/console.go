// Package console implements the fields and variables admin screens
// independently of how they are drawn: a list controller, a modal editor
// and the child-record table the editor fills. Presentation is reached
// through the Notifier, Confirmer and ListView ports.
package console

import (
	"context"
	"errors"

	"github.com/GoCodeAlone/phishvars/client"
)

// NewEntityID is the id the editor is opened with to create an entity.
const NewEntityID int64 = -1

// Kind selects which entity a controller manages.
type Kind string

const (
	Fields    Kind = "field"
	Variables Kind = "variable"
)

// noun is the lowercase singular used in messages.
func (k Kind) noun() string { return string(k) }

// title is the capitalized singular used in messages.
func (k Kind) title() string {
	if k == Variables {
		return "Variable"
	}
	return "Field"
}

// Variable types.
const (
	TypeSimple  = "simple"
	TypeComplex = "complex"
)

// Notifier shows page-level messages.
type Notifier interface {
	Success(title, text string)
	Error(message string)
}

// Confirmation describes a blocking confirmation dialog.
type Confirmation struct {
	Title        string
	Text         string
	ConfirmLabel string
	// PreConfirm runs once the user confirms. A non-nil error is shown in
	// the dialog and the confirmation fails.
	PreConfirm func(ctx context.Context) error
}

// Confirmer shows confirmation dialogs. Confirm reports whether the user
// confirmed and PreConfirm succeeded. A cancelled dialog returns false and
// a nil error; a failed PreConfirm returns its error.
type Confirmer interface {
	Confirm(ctx context.Context, c Confirmation) (bool, error)
}

// Inline errors shown in the editor. They block the network call.
var (
	ErrUnsupportedExtension = errors.New("Unsupported file extension (use .csv or .txt)") //nolint:staticcheck // shown verbatim
	ErrRowOutOfRange        = errors.New("row index out of range")
	ErrEditorClosed         = errors.New("editor is not open")
)

// messageError shows the backend's message while keeping the cause.
type messageError struct {
	msg string
	err error
}

func (e *messageError) Error() string { return e.msg }
func (e *messageError) Unwrap() error { return e.err }

func backendError(err error) error {
	return &messageError{msg: client.ErrorMessage(err), err: err}
}
