package main

import (
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/phrazzld/tasknotify/internal/domain"
	"github.com/phrazzld/tasknotify/internal/mailqueue"
	"github.com/phrazzld/tasknotify/internal/platform/database"
	"github.com/phrazzld/tasknotify/internal/reminder"
)

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

func renderMigrations(w io.Writer, statuses []database.MigrationStatus) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Version", "Migration", "State"})
	for _, s := range statuses {
		state := "pending"
		if s.Applied {
			state = "applied"
		}
		t.AppendRow(table.Row{s.Version, s.Source, state})
	}
	t.Render()
}

func renderJobs(w io.Writer, jobs []*domain.EmailJob) {
	t := newTable(w)
	t.AppendHeader(table.Row{"ID", "Recipient", "Subject", "Status", "Attempts", "Created", "Last error"})
	for _, j := range jobs {
		t.AppendRow(table.Row{
			j.ID.String()[:8],
			j.ToEmail,
			truncate(j.Subject, 40),
			j.Status,
			j.Attempts,
			j.CreatedAt.Local().Format(time.DateTime),
			truncate(j.LastError, 40),
		})
	}
	t.AppendFooter(table.Row{"", "", "", "", "", "Total", len(jobs)})
	t.Render()
}

func renderDrain(w io.Writer, r mailqueue.DrainResult) {
	t := newTable(w)
	if r.NotConfigured {
		t.SetTitle("Email delivery is not configured; nothing sent")
	}
	t.AppendHeader(table.Row{"Released", "Claimed", "Sent", "Failed", "Exhausted", "Skipped", "Errors"})
	t.AppendRow(table.Row{r.Released, r.Claimed, r.Sent, r.Failed, r.Exhausted, r.Skipped, r.Errors})
	t.Render()
}

func renderScan(w io.Writer, r reminder.ScanResult) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Users", "Due soon", "Overdue", "Skipped", "Errors"})
	t.AppendRow(table.Row{r.Users, r.DueSoon, r.Overdue, r.Skipped, r.Errors})
	t.Render()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
