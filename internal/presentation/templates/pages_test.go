package templates

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/benjarmc/portal-pji-project-sub000/internal/application/services"
	"github.com/benjarmc/portal-pji-project-sub000/internal/domain/quoting"
	"github.com/benjarmc/portal-pji-project-sub000/internal/domain/wizard"
)

func TestRenderLanding(t *testing.T) {
	var buf bytes.Buffer
	err := Render(&buf, "landing", LandingPage{
		Title: "Inicio",
		Plans: []services.PlanView{{
			Plan:            quoting.Plan{ID: "p1", Name: "Premium", Price: 4900, Currency: "MXN", Features: []string{"Abogado"}},
			DescriptionHTML: "<p>Todo <em>incluido</em></p>",
		}},
	})
	require.NoError(t, err)
	out := buf.String()
	require.Contains(t, out, `href="/wizard?plan=p1"`)
	require.Contains(t, out, "$4900.00 MXN")
	require.Contains(t, out, "<em>incluido</em>")
}

func TestRenderWizardEscapesState(t *testing.T) {
	state := wizard.NewState("wiz_1", time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC))
	state.CurrentStep = wizard.StepMainData
	state.CompletedSteps = []wizard.Step{wizard.StepWelcome}
	state.StepData.Welcome = &wizard.PlanSelection{PlanID: "p1", PlanName: "</script><b>x</b>"}

	page, err := NewWizardPage(&services.FlowView{
		State:     state,
		Step:      wizard.StepMainData,
		Component: "main-data",
		Title:     "Datos principales",
		CanGoBack: true,
		Steps: []services.StepView{
			{Step: wizard.StepWelcome, Title: "Elige tu plan", Completed: true, Reachable: true},
			{Step: wizard.StepMainData, Title: "Datos principales", Current: true, Reachable: true},
		},
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, "wizard", page))
	out := buf.String()
	require.Contains(t, out, `href="/wizard?step=0"`)
	require.Contains(t, out, `data-step="1"`)
	require.Contains(t, out, `data-action="prev"`)
	require.NotContains(t, out, "</script><b>x</b>")
}

func TestRenderUnknownPage(t *testing.T) {
	var buf bytes.Buffer
	require.Error(t, Render(&buf, "missing", nil))
	require.Zero(t, buf.Len())
}
