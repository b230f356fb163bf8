package email

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRenderResumeLink(t *testing.T) {
	html, err := RenderResumeLink(ResumeLinkEmail{
		Name:      "Ana <script>",
		ResumeURL: "https://portal.example/wizard?session=01HX&step=2",
		StepTitle: "Pago",
		PlanName:  "Premium",
	}, "https://portal.example")
	require.NoError(t, err)
	require.Contains(t, html, "session=01HX")
	require.Contains(t, html, "<strong>Premium</strong>")
	require.Contains(t, html, "24 horas")
	require.NotContains(t, html, "<script>")
}

func TestNewServiceRequiresKey(t *testing.T) {
	_, err := NewService("", "a@b.mx", "PJI", "", nil)
	require.ErrorIs(t, err, ErrNotConfigured)
}
