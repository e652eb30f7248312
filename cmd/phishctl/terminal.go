package main

import (
	"bufio"
	"context"
	"fmt"
	"html"
	"io"
	"strings"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"

	"github.com/GoCodeAlone/phishvars/console"
)

var (
	successStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("2"))
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("1"))
	headerStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	mutedStyle   = lipgloss.NewStyle().Faint(true)
)

// notifier prints console notifications. Errors go to errOut.
type notifier struct {
	out, errOut io.Writer
	failed      bool
}

func (n *notifier) Success(title, text string) {
	fmt.Fprintln(n.out, successStyle.Render(title))
	if text != "" {
		fmt.Fprintln(n.out, text)
	}
}

func (n *notifier) Error(message string) {
	n.failed = true
	fmt.Fprintln(n.errOut, errorStyle.Render(message))
}

// prompter asks y/N questions on in. With assumeYes set the prompt is
// skipped.
type prompter struct {
	in        *bufio.Reader
	out       io.Writer
	assumeYes bool
}

func (p *prompter) Confirm(ctx context.Context, c console.Confirmation) (bool, error) {
	if !p.assumeYes {
		fmt.Fprintln(p.out, c.Title)
		fmt.Fprintln(p.out, c.Text)
		fmt.Fprintf(p.out, "%s? [y/N] ", html.UnescapeString(c.ConfirmLabel))
		line, err := p.in.ReadString('\n')
		if err != nil && err != io.EOF {
			return false, err
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
		default:
			return false, nil
		}
	}
	if c.PreConfirm != nil {
		if err := c.PreConfirm(ctx); err != nil {
			return false, err
		}
	}
	return true, nil
}

// listView draws the entity list as a table. While muted nothing is
// printed.
type listView struct {
	out   io.Writer
	kind  console.Kind
	muted bool
}

func (v *listView) ShowLoading() {}

func (v *listView) ShowEmpty() {
	if v.muted {
		return
	}
	fmt.Fprintln(v.out, mutedStyle.Render(fmt.Sprintf("No %ss created yet. Let's create one!", v.kind)))
}

func (v *listView) ShowRows(rows []console.Row) {
	if v.muted {
		return
	}
	headers := []string{"ID", "Name", "Values", "Last Modified Date"}
	if v.kind == console.Variables {
		headers = []string{"ID", "Name", "Field", "Conditions", "Last Modified Date"}
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	for _, r := range rows {
		cells := []string{fmt.Sprint(r.ID), html.UnescapeString(r.Name)}
		if v.kind == console.Variables {
			cells = append(cells, html.UnescapeString(r.Field))
		}
		cells = append(cells, r.Count, r.Modified)
		t.Row(cells...)
	}
	fmt.Fprintln(v.out, t.String())
}

// printRecords prints an editor's rows, unescaped, as a two column table.
func printRecords(w io.Writer, kind console.Kind, records []console.Record) {
	key := "Email"
	if kind == console.Variables {
		key = "Condition"
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("#", key, "Value").
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	for i, r := range records {
		t.Row(fmt.Sprint(i), html.UnescapeString(r.Key), html.UnescapeString(r.Value))
	}
	fmt.Fprintln(w, t.String())
}
