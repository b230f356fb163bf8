package wizard

import (
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func TestNewStateDefaults(t *testing.T) {
	s := NewState("wiz_1", t0)
	require.Equal(t, "wiz_1", s.SessionID)
	require.Equal(t, StepWelcome, s.CurrentStep)
	require.Empty(t, s.CompletedSteps)
	require.Equal(t, StatusActive, s.Status)
	require.Equal(t, t0.UnixMilli(), s.LastActivity)
}

func TestExpired(t *testing.T) {
	s := NewState("wiz_1", t0)
	require.False(t, s.Expired(t0.Add(23*time.Hour), 24*time.Hour))
	require.True(t, s.Expired(t0.Add(25*time.Hour), 24*time.Hour))

	exp := t0.Add(time.Hour)
	s.ExpiresAt = &exp
	require.True(t, s.Expired(t0.Add(2*time.Hour), 24*time.Hour))
}

func TestApplyKeepsCompletedStepsMonotonic(t *testing.T) {
	s := NewState("wiz_1", t0)
	s.Apply(Patch{CompletedSteps: []Step{StepMainData, StepWelcome}}, t0)
	require.Equal(t, []Step{StepWelcome, StepMainData}, s.CompletedSteps)

	s.Apply(Patch{CompletedSteps: []Step{}}, t0)
	s.Apply(Patch{CompletedSteps: []Step{StepMainData, Step(42)}}, t0)
	require.Equal(t, []Step{StepWelcome, StepMainData}, s.CompletedSteps)

	s.AdoptServer(&State{SessionID: "wiz_1", CompletedSteps: []Step{StepPayment}, Status: StatusActive})
	require.Equal(t, []Step{StepWelcome, StepMainData, StepPayment}, s.CompletedSteps)
}

func TestApplyStampsActivity(t *testing.T) {
	s := NewState("wiz_1", t0)
	later := t0.Add(time.Minute)
	s.Apply(Patch{CurrentStep: Ptr(StepMainData)}, later)
	require.Equal(t, StepMainData, s.CurrentStep)
	require.Equal(t, later.UnixMilli(), s.Timestamp)
	require.Equal(t, later.UnixMilli(), s.LastActivity)
}

func TestAdoptServerOverwritesDerivedData(t *testing.T) {
	s := NewState("wiz_1", t0)
	s.Tokens = &Tokens{AccessToken: "a1", RefreshToken: "r1"}
	s.Apply(Patch{StepData: StepData{Welcome: &PlanSelection{PlanID: "local", PlanName: "Local"}}}, t0)

	server := &State{
		ID:          "srv-1",
		SessionID:   "wiz_1",
		CurrentStep: StepMainData,
		Status:      StatusActive,
		StepData:    StepData{Welcome: &PlanSelection{PlanID: "p-basic", PlanName: "Básico"}},
		QuotationID: "q1",
	}
	s.AdoptServer(server)

	require.Equal(t, "srv-1", s.ID)
	require.Equal(t, "p-basic", s.SelectedPlan().PlanID)
	require.Equal(t, "q1", s.QuotationID)
	require.Equal(t, "a1", s.Tokens.AccessToken)
	require.NotSame(t, server.StepData.Welcome, s.StepData.Welcome)
}

func TestDerivedAccessors(t *testing.T) {
	s := NewState("wiz_1", t0)
	require.Nil(t, s.SelectedPlan())
	require.Empty(t, s.QuotationNumber())
	require.Empty(t, s.PolicyNumber())

	s.StepData.MainData = &MainData{Name: "Ana", QuotationNumber: "COT-001"}
	s.StepData.Payment = &PaymentData{Status: "completed", PolicyNumber: "POL-9"}
	require.Equal(t, "COT-001", s.QuotationNumber())
	require.Equal(t, "Ana", s.Contact().Name)
	require.Equal(t, "POL-9", s.PolicyNumber())

	s.StepData.Finish = &FinishData{PolicyNumber: "POL-10"}
	require.Equal(t, "POL-10", s.PolicyNumber())
}

func TestStepDataJSONKeyedByIndex(t *testing.T) {
	d := StepData{
		Welcome: &PlanSelection{PlanID: "p1", PlanName: "Plus"},
		Payment: &PaymentData{PaymentID: "pay1", Status: "completed"},
	}
	raw, err := json.Marshal(d)
	require.NoError(t, err)

	var generic map[string]map[string]any
	require.NoError(t, json.Unmarshal(raw, &generic))
	require.Contains(t, generic, "0")
	require.Contains(t, generic, "2")
	require.Len(t, generic, 2)
	require.Equal(t, "p1", generic["0"]["planId"])

	var back StepData
	require.NoError(t, json.Unmarshal([]byte(`{"0":{"planId":"p1"},"4":{"tenant":{"firstName":"Eva"}},"9":{},"3":null}`), &back))
	require.Equal(t, "p1", back.Welcome.PlanID)
	require.Equal(t, "Eva", back.DataEntry.Tenant.FirstName)
	require.Nil(t, back.Validation)
}

func TestMergeDataEntryPerParty(t *testing.T) {
	var d StepData
	d.Merge(StepData{DataEntry: &DataEntryData{Tenant: &PartyData{FirstName: "Eva"}}})
	d.Merge(StepData{DataEntry: &DataEntryData{Owner: &PartyData{FirstName: "Luis"}}})
	require.Equal(t, "Eva", d.DataEntry.Tenant.FirstName)
	require.Equal(t, "Luis", d.DataEntry.Owner.FirstName)
	require.True(t, d.Has(StepDataEntry))
	require.False(t, d.IsEmpty())
	require.True(t, d.Only(StepWelcome).IsEmpty())
}

func TestCanGoBack(t *testing.T) {
	s := NewState("wiz_1", t0)
	require.False(t, s.CanGoBack())

	s.CurrentStep = StepPayment
	require.True(t, s.CanGoBack())

	s.StepData.Payment = &PaymentData{Status: "pending"}
	require.True(t, s.CanGoBack())

	s.StepData.Payment.Status = "completed"
	require.False(t, s.CanGoBack())

	s = NewState("wiz_2", t0)
	s.CurrentStep = StepMainData
	s.StepData.MainData = &MainData{QuotationEmailed: true}
	require.False(t, s.CanGoBack())

	s = NewState("wiz_3", t0)
	s.CurrentStep = StepFinish
	require.False(t, s.CanGoBack())
}

func TestCanVisit(t *testing.T) {
	s := NewState("wiz_1", t0)
	require.True(t, s.CanVisit(StepWelcome))
	require.False(t, s.CanVisit(StepMainData))

	s.CompleteSteps(StepWelcome, StepMainData)
	require.Equal(t, StepPayment, s.FirstIncomplete())
	require.True(t, s.CanVisit(StepMainData))
	require.True(t, s.CanVisit(StepPayment))
	require.False(t, s.CanVisit(StepValidation))
	require.False(t, s.CanVisit(Step(-1)))
}

func TestNextAndPrevStep(t *testing.T) {
	s := NewState("wiz_1", t0)
	next, err := s.NextStep()
	require.NoError(t, err)
	require.Equal(t, StepMainData, next)

	_, err = s.PrevStep()
	require.ErrorIs(t, err, ErrBackNotAllowed)

	s.CurrentStep = StepFinish
	_, err = s.NextStep()
	require.ErrorIs(t, err, ErrAlreadyFinished)
}

func TestParseStep(t *testing.T) {
	s, err := ParseStep(4)
	require.NoError(t, err)
	require.Equal(t, "data-entry", s.Component())

	_, err = ParseStep(7)
	require.ErrorIs(t, err, ErrStepOutOfRange)
}
