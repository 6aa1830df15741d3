package notify

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/phrazzld/tasknotify/internal/domain"
)

// genericLabel is used for notification types without a dedicated label.
const genericLabel = "Notification"

var typeLabels = map[domain.NotificationType]string{
	domain.NotificationTaskAssigned:    "Task Assigned",
	domain.NotificationMentioned:       "You Were Mentioned",
	domain.NotificationStatusChanged:   "Status Changed",
	domain.NotificationPriorityChanged: "Priority Changed",
	domain.NotificationDueSoon:         "Task Due Soon",
	domain.NotificationOverdue:         "Task Overdue",
	domain.NotificationCommentAdded:    "New Comment",
}

// TypeLabel returns the human-readable label for t.
func TypeLabel(t domain.NotificationType) string {
	if label, ok := typeLabels[t]; ok {
		return label
	}
	return genericLabel
}

// TemplateData is everything an email rendering depends on.
type TemplateData struct {
	Type      domain.NotificationType
	Title     string
	Content   string
	Task      *domain.TaskSummary
	ActorName string
	// TaskURL links to the task when the base URL is configured.
	TaskURL string
}

// Rendered is a rendered email.
type Rendered struct {
	Subject string
	HTML    string
	Text    string
}

type templateView struct {
	Label     string
	Title     string
	Content   string
	Task      *domain.TaskSummary
	DueDate   string
	ActorName string
	TaskURL   string
}

var (
	htmlTemplate = htmltemplate.Must(htmltemplate.New("email.html").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: sans-serif; color: #111827;">
<h2 style="margin-bottom: 4px;">{{.Label}}</h2>
<p style="font-size: 16px;"><strong>{{.Title}}</strong></p>
{{- if .Content}}
<p>{{.Content}}</p>
{{- end}}
{{- if .Task}}
<table style="border-collapse: collapse; margin: 12px 0;">
<tr><td style="padding: 2px 12px 2px 0; color: #6b7280;">Task</td><td>{{.Task.Title}}</td></tr>
{{- if .Task.Status}}
<tr><td style="padding: 2px 12px 2px 0; color: #6b7280;">Status</td><td>{{.Task.Status}}</td></tr>
{{- end}}
{{- if .Task.Priority}}
<tr><td style="padding: 2px 12px 2px 0; color: #6b7280;">Priority</td><td>{{.Task.Priority}}</td></tr>
{{- end}}
{{- if .DueDate}}
<tr><td style="padding: 2px 12px 2px 0; color: #6b7280;">Due</td><td>{{.DueDate}}</td></tr>
{{- end}}
</table>
{{- end}}
{{- if .ActorName}}
<p style="color: #6b7280;">By {{.ActorName}}</p>
{{- end}}
{{- if .TaskURL}}
<p><a href="{{.TaskURL}}">View task</a></p>
{{- end}}
</body>
</html>
`))

	textTemplate = texttemplate.Must(texttemplate.New("email.txt").Parse(`{{.Label}}

{{.Title}}
{{- if .Content}}

{{.Content}}
{{- end}}
{{- if .Task}}

Task: {{.Task.Title}}
{{- if .Task.Status}}
Status: {{.Task.Status}}
{{- end}}
{{- if .Task.Priority}}
Priority: {{.Task.Priority}}
{{- end}}
{{- if .DueDate}}
Due: {{.DueDate}}
{{- end}}
{{- end}}
{{- if .ActorName}}

By {{.ActorName}}
{{- end}}
{{- if .TaskURL}}

View task: {{.TaskURL}}
{{- end}}
`))
)

// RenderTemplate renders the subject, HTML body and plain text body of a
// notification email. It is deterministic and has no side effects. Unknown
// types render with the generic "Notification" label.
func RenderTemplate(data TemplateData) (Rendered, error) {
	view := templateView{
		Label:     TypeLabel(data.Type),
		Title:     data.Title,
		Content:   data.Content,
		Task:      data.Task,
		ActorName: data.ActorName,
		TaskURL:   data.TaskURL,
	}
	if data.Task != nil && data.Task.DueDate != nil {
		view.DueDate = data.Task.DueDate.UTC().Format(time.DateOnly)
	}

	var htmlBuf, textBuf bytes.Buffer
	if err := htmlTemplate.Execute(&htmlBuf, view); err != nil {
		return Rendered{}, fmt.Errorf("render html email: %w", err)
	}
	if err := textTemplate.Execute(&textBuf, view); err != nil {
		return Rendered{}, fmt.Errorf("render text email: %w", err)
	}

	return Rendered{
		Subject: subject(view.Label, data.Title),
		HTML:    htmlBuf.String(),
		Text:    strings.TrimSpace(textBuf.String()) + "\n",
	}, nil
}

func subject(label, title string) string {
	title = strings.Join(strings.Fields(title), " ")
	if title == "" {
		return label
	}
	return label + ": " + title
}

// TaskURL builds the link to a task, or "" without a base URL.
func TaskURL(baseURL string, task *domain.TaskSummary) string {
	if baseURL == "" || task == nil {
		return ""
	}
	return strings.TrimRight(baseURL, "/") + "/tasks/" + task.ID.String()
}
