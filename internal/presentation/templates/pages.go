// Package templates renders the server-side pages of the portal
package templates

import (
	"bytes"
	"fmt"
	"html/template"
	"io"

	"github.com/goccy/go-json"

	"github.com/benjarmc/portal-pji-project-sub000/internal/application/services"
	"github.com/benjarmc/portal-pji-project-sub000/internal/domain/wizard"
)

var funcs = template.FuncMap{
	"money": func(v float64, currency string) string {
		if currency == "" {
			currency = "MXN"
		}
		return fmt.Sprintf("$%.2f %s", v, currency)
	},
	"stepIndex": func(s wizard.Step) int { return int(s) },
}

var pageTemplates = template.Must(template.New("pages").Funcs(funcs).Parse(
	`{{define "head"}}<!doctype html><html lang="es"><head><meta charset="utf-8">` +
		`<meta name="viewport" content="width=device-width, initial-scale=1">` +
		`<title>{{.Title}} | Protección Jurídica Inmobiliaria</title>` +
		`<link rel="stylesheet" href="/static/portal.css"></head><body>` +
		`<header class="site-header"><a href="/">PJI</a></header><main>{{end}}` +
		`{{define "foot"}}</main><footer class="site-footer">© Protección Jurídica Inmobiliaria</footer></body></html>{{end}}` +

		`{{define "landing"}}{{template "head" .}}` +
		`<section class="hero"><h1>Protege tu arrendamiento</h1>` +
		`<p>Cotiza tu póliza jurídica en minutos.</p></section>` +
		`{{if .Error}}<p class="notice">{{.Error}}</p>{{end}}` +
		`<section class="plans">{{range .Plans}}<article class="plan" id="plan-{{.ID}}">` +
		`<h2>{{.Name}}</h2><p class="price">{{money .Price .Currency}}</p>` +
		`{{if .DescriptionHTML}}<div class="description">{{.DescriptionHTML}}</div>{{end}}` +
		`{{if .Features}}<ul>{{range .Features}}<li>{{.}}</li>{{end}}</ul>{{end}}` +
		`<a class="button" href="/wizard?plan={{.ID}}">Cotizar</a></article>{{end}}</section>` +
		`{{template "foot" .}}{{end}}` +

		`{{define "wizard"}}{{template "head" .}}` +
		`<nav class="steps"><ol>{{range .View.Steps}}` +
		`<li class="{{if .Current}}current{{else if .Completed}}done{{end}}">` +
		`{{if and .Reachable (not .Current)}}<a href="/wizard?step={{stepIndex .Step}}">{{.Title}}</a>{{else}}{{.Title}}{{end}}</li>` +
		`{{end}}</ol></nav>` +
		`{{if .View.SyncError}}<p class="notice">Guardamos tu avance; lo sincronizaremos en breve.</p>{{end}}` +
		`<section id="wizard" data-component="{{.View.Component}}" data-step="{{stepIndex .View.Step}}">` +
		`<h1>{{.View.Title}}</h1>` +
		`{{with .View.State.SelectedPlan}}<p class="selected-plan">{{.PlanName}}{{if .Price}} · {{money .Price .Currency}}{{end}}</p>{{end}}` +
		`{{with .View.State.QuotationNumber}}<p class="quotation">Cotización {{.}}</p>{{end}}` +
		`<div id="step-root"></div>` +
		`{{if .View.CanGoBack}}<button type="button" data-action="prev">Anterior</button>{{end}}` +
		`</section>` +
		`<script id="wizard-state" type="application/json">{{.StateJSON}}</script>` +
		`<script src="/static/wizard.js" defer></script>` +
		`{{template "foot" .}}{{end}}` +

		`{{define "error"}}{{template "head" .}}<section class="error"><h1>{{.Title}}</h1><p>{{.Error}}</p>` +
		`<a class="button" href="/">Volver al inicio</a></section>{{template "foot" .}}{{end}}`,
))

// LandingPage lists the plans.
type LandingPage struct {
	Title string
	Plans []services.PlanView
	Error string
}

// WizardPage is the wizard shell around the current step.
type WizardPage struct {
	Title     string
	View      *services.FlowView
	StateJSON template.JS
}

// ErrorPage reports a page that could not be built.
type ErrorPage struct {
	Title string
	Error string
}

// NewWizardPage builds the wizard page, embedding the state for the
// client-side step components.
func NewWizardPage(view *services.FlowView) (*WizardPage, error) {
	raw, err := json.Marshal(view)
	if err != nil {
		return nil, fmt.Errorf("failed to encode wizard view: %w", err)
	}
	return &WizardPage{Title: view.Title, View: view, StateJSON: template.JS(raw)}, nil
}

// Render executes the named page. Output is buffered so a failing
// template never sends a partial page.
func Render(w io.Writer, name string, data any) error {
	var buf bytes.Buffer
	if err := pageTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		return fmt.Errorf("failed to render %s: %w", name, err)
	}
	_, err := buf.WriteTo(w)
	return err
}
