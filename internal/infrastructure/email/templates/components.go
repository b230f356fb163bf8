package templates

import (
	"bytes"
	"html/template"
)

type ResumeLinkProps struct {
	Name        string
	ResumeURL   string
	StepTitle   string
	PlanName    string
	ExpiresIn   string
	ButtonColor string
}

var resumeLinkTemplate = template.Must(template.New("resumeLink").Parse(`
<p style="margin: 0 0 16px;">Hola {{if .Name}}{{.Name}}{{else}}👋{{end}},</p>
<p style="margin: 0 0 16px;">Guardamos tu avance{{if .PlanName}} en la cotización del plan <strong>{{.PlanName}}</strong>{{end}}.
{{- if .StepTitle}} Te quedaste en el paso <strong>{{.StepTitle}}</strong>.{{end}}</p>
<table role="presentation" border="0" cellpadding="0" cellspacing="0" style="margin: 0 0 16px;">
  <tr>
    <td style="border-radius: 6px; background-color: {{.ButtonColor}};" bgcolor="{{.ButtonColor}}">
      <a href="{{.ResumeURL}}" target="_blank" style="display: inline-block; padding: 12px 24px; color: #ffffff; font-weight: bold; text-decoration: none;">Continuar mi cotización</a>
    </td>
  </tr>
</table>
<p style="margin: 0 0 16px; color: #5b6472; font-size: 14px;">El enlace es válido durante {{.ExpiresIn}} desde tu última actividad.</p>
<p style="margin: 0; color: #5b6472; font-size: 13px; word-break: break-all;">{{.ResumeURL}}</p>`))

// ResumeLinkContent renders the body of the "continue later" email.
func ResumeLinkContent(props ResumeLinkProps) (template.HTML, error) {
	if props.ButtonColor == "" {
		props.ButtonColor = "#0b3d91"
	}
	if props.ExpiresIn == "" {
		props.ExpiresIn = "24 horas"
	}
	var buf bytes.Buffer
	if err := resumeLinkTemplate.Execute(&buf, props); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}
