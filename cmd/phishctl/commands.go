package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/GoCodeAlone/phishvars/client"
	"github.com/GoCodeAlone/phishvars/console"
)

const defaultURL = "http://localhost:3333"

const (
	fieldsKind    = console.Fields
	variablesKind = console.Variables
)

// errReported is returned once the failure was already shown through the
// notifier.
var errReported = errors.New("reported")

// app carries the terminal streams shared by every command.
type app struct {
	in     *bufio.Reader
	out    io.Writer
	errOut io.Writer
	getenv func(string) string
}

// connFlags registers the server connection flags on fs.
type connFlags struct {
	url, apiKey *string
	timeout     *time.Duration
}

func (a *app) connFlags(fs *flag.FlagSet) *connFlags {
	url := a.getenv("PHISHVARS_URL")
	if url == "" {
		url = defaultURL
	}
	return &connFlags{
		url:     fs.String("url", url, "Server base URL (env PHISHVARS_URL)"),
		apiKey:  fs.String("api-key", a.getenv("PHISHVARS_API_KEY"), "API key (env PHISHVARS_API_KEY)"),
		timeout: fs.Duration("timeout", 30*time.Second, "Request timeout"),
	}
}

func (c *connFlags) client() *client.Client {
	return client.New(*c.url, client.WithAPIKey(*c.apiKey), client.WithTimeout(*c.timeout))
}

// session wires the console controllers to the terminal.
type session struct {
	kind     console.Kind
	notifier *notifier
	view     *listView
	list     *console.ListController
	editor   *console.Editor
}

func (a *app) newSession(kind console.Kind, c *client.Client, assumeYes bool) *session {
	backend := console.NewBackend(kind, c)
	n := &notifier{out: a.out, errOut: a.errOut}
	view := &listView{out: a.out, kind: kind}
	confirm := &prompter{in: a.in, out: a.out, assumeYes: assumeYes}
	list := console.NewListController(kind, backend, view, n, confirm)
	return &session{
		kind:     kind,
		notifier: n,
		view:     view,
		list:     list,
		editor:   console.NewEditor(kind, backend, n, list),
	}
}

// reported converts err to errReported when the notifier already showed it.
func (s *session) reported(err error) error {
	if err != nil && s.notifier.failed {
		return errReported
	}
	return err
}

func (a *app) runEntity(kind console.Kind, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("missing subcommand (list, show, edit, delete, template)")
	}
	sub, rest := args[0], args[1:]
	switch sub {
	case "list":
		return a.entityList(kind, rest)
	case "show":
		return a.entityShow(kind, rest)
	case "edit", "create":
		return a.entityEdit(kind, sub == "create", rest)
	case "delete":
		return a.entityDelete(kind, rest)
	case "template":
		return a.entityTemplate(kind, rest)
	default:
		return fmt.Errorf("unknown %s subcommand: %s", kind, sub)
	}
}

func (a *app) entityList(kind console.Kind, args []string) error {
	fs := flag.NewFlagSet(string(kind)+"s list", flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	conn := a.connFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	s := a.newSession(kind, conn.client(), false)
	return s.reported(s.list.Load(context.Background()))
}

func (a *app) entityShow(kind console.Kind, args []string) error {
	fs := flag.NewFlagSet(string(kind)+"s show", flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	conn := a.connFlags(fs)
	id := fs.Int64("id", 0, "Id to show (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id <= 0 {
		return errors.New("-id is required")
	}
	s := a.newSession(kind, conn.client(), false)
	if err := s.editor.Open(context.Background(), *id); err != nil {
		return s.reported(err)
	}
	defer s.editor.Dismiss()

	fmt.Fprintf(a.out, "Name: %s\n", s.editor.Name())
	if kind == console.Variables {
		fmt.Fprintf(a.out, "Type: %s\n", s.editor.State().Type)
		if s.editor.State().FieldVisible {
			fmt.Fprintf(a.out, "Field: %s\n", s.editor.Field())
		}
	}
	printRecords(a.out, kind, s.editor.Rows())
	return nil
}

// pairFlags collects repeated -key/-value flags.
type pairFlags struct {
	keys, values []string
}

func (p *pairFlags) register(fs *flag.FlagSet, keyName string) {
	fs.Func("key", keyName+" of a row to add (repeatable, paired with -value)", func(s string) error {
		p.keys = append(p.keys, s)
		return nil
	})
	fs.Func("value", "Value of a row to add (repeatable)", func(s string) error {
		p.values = append(p.values, s)
		return nil
	})
}

// intList collects repeated integer flags.
type intList []int

func (l *intList) String() string { return fmt.Sprint([]int(*l)) }

func (l *intList) Set(s string) error {
	var n int
	if _, err := fmt.Sscan(s, &n); err != nil {
		return fmt.Errorf("invalid row index %q", s)
	}
	*l = append(*l, n)
	return nil
}

func (a *app) entityEdit(kind console.Kind, create bool, args []string) error {
	fs := flag.NewFlagSet(string(kind)+"s edit", flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	conn := a.connFlags(fs)
	id := fs.Int64("id", 0, "Id to edit; omit to create")
	name := fs.String("name", "", "New name")
	importFile := fs.String("import", "", "CSV or TXT file whose rows are added")
	var remove intList
	fs.Var(&remove, "remove", "Row index to remove before adding rows (repeatable)")
	var pairs pairFlags
	var typ, field *string
	if kind == console.Variables {
		pairs.register(fs, "Condition")
		typ = fs.String("type", "", "Variable type: simple or complex")
		field = fs.String("field", "", "Target field of a simple variable")
	} else {
		pairs.register(fs, "Email")
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if len(pairs.keys) != len(pairs.values) {
		return errors.New("every -key needs a matching -value")
	}
	if create || *id <= 0 {
		*id = console.NewEntityID
	}

	ctx := context.Background()
	s := a.newSession(kind, conn.client(), false)
	s.view.muted = true
	ed := s.editor
	if err := ed.Open(ctx, *id); err != nil {
		return s.reported(err)
	}
	defer ed.Dismiss()

	if *name != "" {
		ed.SetName(*name)
	}
	if typ != nil && *typ != "" {
		if err := ed.SetType(*typ); err != nil {
			return err
		}
	}
	if field != nil && *field != "" {
		if !ed.State().FieldVisible {
			fmt.Fprintf(a.errOut, "warning: -field %q ignored: complex variables have no target field\n", *field)
		}
		ed.SetField(*field)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(remove)))
	for _, i := range remove {
		if err := ed.RemoveRow(i); err != nil {
			return fmt.Errorf("remove row %d: %w", i, err)
		}
	}
	if *importFile != "" {
		f, err := os.Open(*importFile)
		if err != nil {
			return err
		}
		err = ed.Import(ctx, *importFile, f)
		f.Close()
		if err != nil {
			return err
		}
	}
	for i := range pairs.keys {
		if err := ed.AddRecord(pairs.keys[i], pairs.values[i]); err != nil {
			return err
		}
	}
	return ed.Save(ctx)
}

func (a *app) entityDelete(kind console.Kind, args []string) error {
	fs := flag.NewFlagSet(string(kind)+"s delete", flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	conn := a.connFlags(fs)
	id := fs.Int64("id", 0, "Id to delete (required)")
	yes := fs.Bool("yes", false, "Skip the confirmation prompt")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id <= 0 {
		return errors.New("-id is required")
	}

	ctx := context.Background()
	s := a.newSession(kind, conn.client(), *yes)
	s.view.muted = true
	if err := s.list.Load(ctx); err != nil {
		return s.reported(err)
	}
	found := false
	for _, it := range s.list.Items() {
		if it.ID == *id {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("no %s with id %d", kind, *id)
	}
	s.view.muted = false
	return s.reported(s.list.Delete(ctx, *id))
}

func (a *app) entityTemplate(kind console.Kind, args []string) error {
	fs := flag.NewFlagSet(string(kind)+"s template", flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	output := fs.String("o", "", "Output file (default: the template's download name, - for stdout)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	ed := console.NewEditor(kind, nil, nil, nil)
	if *output == "-" {
		return ed.WriteTemplate(a.out)
	}
	path := *output
	if path == "" {
		path = ed.TemplateFilename()
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := ed.WriteTemplate(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Wrote %s\n", path)
	return nil
}

func (a *app) runValue(args []string) error {
	fs := flag.NewFlagSet("value", flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	conn := a.connFlags(fs)
	name := fs.String("name", "", "Variable or field name (required)")
	email := fs.String("email", "", "Target email address (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *name == "" || *email == "" {
		return errors.New("-name and -email are required")
	}
	v, err := conn.client().Value(context.Background(), *name, *email)
	if err != nil {
		return errors.New(client.ErrorMessage(err))
	}
	fmt.Fprintln(a.out, v)
	return nil
}

func (a *app) runRender(args []string) error {
	fs := flag.NewFlagSet("render", flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	conn := a.connFlags(fs)
	email := fs.String("email", "", "Target email address (required)")
	text := fs.String("text", "", "Text to render; read from stdin when empty")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" {
		return errors.New("-email is required")
	}
	body := *text
	if body == "" {
		b, err := io.ReadAll(a.in)
		if err != nil {
			return err
		}
		body = strings.TrimRight(string(b), "\n")
	}
	out, err := conn.client().Render(context.Background(), *email, body)
	if err != nil {
		return errors.New(client.ErrorMessage(err))
	}
	fmt.Fprintln(a.out, out)
	return nil
}
