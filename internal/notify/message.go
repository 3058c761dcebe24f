package notify

import (
	"bytes"
	"html/template"
	"strings"

	"github.com/momen-meetup/meetup/internal/contact"
	"github.com/momen-meetup/meetup/internal/settings"
)

var bodyTemplate = template.Must(template.New("contact").Funcs(template.FuncMap{
	"breaks": breakLines,
}).Parse(`<h2>New message from {{.Site}}</h2>
<p><strong>Name:</strong> {{.Name}}</p>
<p><strong>Email:</strong> {{.Email}}</p>
{{- if .Phone}}
<p><strong>Phone:</strong> {{.Phone}}</p>
{{- end}}
{{- if .Company}}
<p><strong>Company:</strong> {{.Company}}</p>
{{- end}}
{{- if .Service}}
<p><strong>Service:</strong> {{.Service}}</p>
{{- end}}
<p><strong>Message:</strong></p>
<p>{{breaks .Message}}</p>
`))

type bodyData struct {
	contact.Submission
	Site string
}

// Subject renders the notification subject line.
func Subject(sub contact.Submission) string {
	subject := "New message from " + sub.Name
	if sub.Service != "" {
		subject += " - " + sub.Service
	}
	return subject
}

// HTMLBody renders the notification body. Field values are escaped and line
// breaks in the message become <br>.
func HTMLBody(sub contact.Submission) (string, error) {
	var buf bytes.Buffer
	if errExec := bodyTemplate.Execute(&buf, bodyData{Submission: sub, Site: settings.SiteName}); errExec != nil {
		return "", errExec
	}
	return buf.String(), nil
}

func breakLines(text string) template.HTML {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	for i, line := range lines {
		lines[i] = template.HTMLEscapeString(line)
	}
	return template.HTML(strings.Join(lines, "<br>"))
}
