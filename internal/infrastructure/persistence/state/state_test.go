package state

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/require"

	"github.com/benjarmc/portal-pji-project-sub000/internal/domain/wizard"
	schema "github.com/benjarmc/portal-pji-project-sub000/internal/infrastructure/database"
	"github.com/benjarmc/portal-pji-project-sub000/internal/infrastructure/observability/logging"
	"github.com/benjarmc/portal-pji-project-sub000/internal/infrastructure/persistence/database"
)

const testKey = "00112233445566778899aabbccddeeff"

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func sampleState() *wizard.State {
	s := wizard.NewState("wiz_01abc", t0)
	s.ID = "srv-1"
	s.CurrentStep = wizard.StepPayment
	s.CompleteSteps(wizard.StepWelcome, wizard.StepMainData)
	s.StepData.Welcome = &wizard.PlanSelection{PlanID: "p1", PlanName: "Premium", Price: 4900}
	s.StepData.MainData = &wizard.MainData{Name: "Ana", Email: "ana@example.com", QuotationNumber: "COT-7"}
	s.Tokens = &wizard.Tokens{AccessToken: "access-1", RefreshToken: "refresh-1"}
	return s
}

func TestCodecSealsTokens(t *testing.T) {
	codec, err := NewCodec(testKey)
	require.NoError(t, err)

	data, err := codec.Encode(sampleState())
	require.NoError(t, err)
	require.NotContains(t, string(data), "access-1")

	got, err := codec.Decode(data)
	require.NoError(t, err)
	require.Equal(t, "wiz_01abc", got.SessionID)
	require.Equal(t, wizard.StepPayment, got.CurrentStep)
	require.Equal(t, []wizard.Step{wizard.StepWelcome, wizard.StepMainData}, got.CompletedSteps)
	require.Equal(t, "COT-7", got.QuotationNumber())
	require.Equal(t, "access-1", got.Tokens.AccessToken)
	require.Equal(t, "refresh-1", got.Tokens.RefreshToken)
}

func TestCodecWithoutKeyStoresTokensPlain(t *testing.T) {
	codec, err := NewCodec("")
	require.NoError(t, err)

	data, err := codec.Encode(sampleState())
	require.NoError(t, err)
	got, err := codec.Decode(data)
	require.NoError(t, err)
	require.Equal(t, "access-1", got.Tokens.AccessToken)
}

func TestCodecRejectsUnknownVersion(t *testing.T) {
	codec, err := NewCodec("")
	require.NoError(t, err)

	data, err := cbor.Marshal(map[int]any{0: 99})
	require.NoError(t, err)
	_, err = codec.Decode(data)
	require.ErrorIs(t, err, ErrUnsupportedBlob)
}

func TestMemoryRepository(t *testing.T) {
	codec, err := NewCodec("")
	require.NoError(t, err)
	repo := NewMemoryRepository(codec)
	exerciseRepository(t, repo)

	boom := errors.New("storage offline")
	repo.FailWith(boom)
	_, err = repo.Load(context.Background(), "k1")
	require.ErrorIs(t, err, boom)
}

func TestMemoryRepositoryDoesNotAlias(t *testing.T) {
	codec, err := NewCodec("")
	require.NoError(t, err)
	repo := NewMemoryRepository(codec)
	ctx := context.Background()

	s := sampleState()
	require.NoError(t, repo.Save(ctx, "k1", s))
	s.StepData.Welcome.PlanID = "mutated"

	got, err := repo.Load(ctx, "k1")
	require.NoError(t, err)
	require.Equal(t, "p1", got.SelectedPlan().PlanID)
}

func TestSQLRepository(t *testing.T) {
	ctx := context.Background()
	logger := logging.NewNopLogger()
	dsn := "file:" + filepath.Join(t.TempDir(), "state.db") + "?_busy_timeout=5000"

	db, err := database.NewConnectionWithLogger(ctx, "sqlite3", dsn, database.PoolConfig{MaxOpenConns: 1}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, schema.NewTableCreator().CreateSchema(ctx, db.DB))
	require.NoError(t, schema.NewTableCreator().CreateSchema(ctx, db.DB))

	codec, err := NewCodec(testKey)
	require.NoError(t, err)
	exerciseRepository(t, NewSQLRepository(db, codec, logger))
}

func exerciseRepository(t *testing.T, repo wizard.StateRepository) {
	t.Helper()
	ctx := context.Background()

	_, err := repo.Load(ctx, "k1")
	require.ErrorIs(t, err, wizard.ErrStateNotFound)

	s := sampleState()
	require.NoError(t, repo.Save(ctx, "k1", s))

	s.CurrentStep = wizard.StepValidation
	require.NoError(t, repo.Save(ctx, "k1", s))

	got, err := repo.Load(ctx, "k1")
	require.NoError(t, err)
	require.Equal(t, wizard.StepValidation, got.CurrentStep)
	require.Equal(t, "Premium", got.SelectedPlan().PlanName)

	stale := wizard.NewState("wiz_stale", t0.Add(-48*time.Hour))
	require.NoError(t, repo.Save(ctx, "k2", stale))

	removed, err := repo.PurgeIdle(ctx, t0.Add(-24*time.Hour))
	require.NoError(t, err)
	require.Equal(t, 1, removed)
	_, err = repo.Load(ctx, "k2")
	require.ErrorIs(t, err, wizard.ErrStateNotFound)

	require.NoError(t, repo.Delete(ctx, "k1"))
	_, err = repo.Load(ctx, "k1")
	require.ErrorIs(t, err, wizard.ErrStateNotFound)
}
