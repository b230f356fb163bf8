package state

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/benjarmc/portal-pji-project-sub000/internal/domain/wizard"
	"github.com/benjarmc/portal-pji-project-sub000/internal/infrastructure/persistence/database"
	"github.com/benjarmc/portal-pji-project-sub000/internal/infrastructure/observability/logging"
)

// SQLRepository is the SQL-based implementation of the StateRepository,
// used with sqlite3 locally and libsql remotely.
type SQLRepository struct {
	db     *database.DB
	codec  *Codec
	logger *logging.ChanneledLogger
}

// NewSQLRepository creates a new instance of the repository.
func NewSQLRepository(db *database.DB, codec *Codec, logger *logging.ChanneledLogger) *SQLRepository {
	return &SQLRepository{db: db, codec: codec, logger: logger}
}

// Load retrieves the state stored under key.
func (r *SQLRepository) Load(ctx context.Context, key string) (*wizard.State, error) {
	const query = `SELECT payload FROM wizard_states WHERE storage_key = ?`

	start := time.Now()
	var payload []byte
	err := r.db.QueryRowContext(ctx, query, key).Scan(&payload)
	database.CheckAndLogSlowQuery(r.logger, query, time.Since(start))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, wizard.ErrStateNotFound
	}
	if err != nil {
		r.logger.Database().Error("Failed to load wizard state", "error", err.Error(), "storageKey", logging.MaskID(key))
		return nil, err
	}
	return r.codec.Decode(payload)
}

// Save upserts the state stored under key.
func (r *SQLRepository) Save(ctx context.Context, key string, s *wizard.State) error {
	const query = `
		INSERT INTO wizard_states (storage_key, session_id, server_id, current_step, status, payload, last_activity, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(storage_key) DO UPDATE SET
			session_id = excluded.session_id,
			server_id = excluded.server_id,
			current_step = excluded.current_step,
			status = excluded.status,
			payload = excluded.payload,
			last_activity = excluded.last_activity,
			updated_at = excluded.updated_at`

	payload, err := r.codec.Encode(s)
	if err != nil {
		return err
	}

	start := time.Now()
	var serverID any
	if s.ID != "" {
		serverID = s.ID
	}
	_, err = r.db.ExecContext(ctx, query,
		key, s.SessionID, serverID, int(s.CurrentStep), string(s.Status), payload, s.LastActivity, time.Now().UTC())
	duration := time.Since(start)
	database.CheckAndLogSlowQuery(r.logger, query, duration)
	if err != nil {
		r.logger.Database().Error("Failed to save wizard state", "error", err.Error(), "storageKey", logging.MaskID(key))
		return err
	}
	r.logger.Database().Debug("Wizard state saved", "storageKey", logging.MaskID(key), "step", int(s.CurrentStep), "duration", duration)
	return nil
}

// Delete removes the state stored under key.
func (r *SQLRepository) Delete(ctx context.Context, key string) error {
	const query = `DELETE FROM wizard_states WHERE storage_key = ?`
	_, err := r.db.ExecContext(ctx, query, key)
	return err
}

// PurgeIdle deletes states idle since before cutoff.
func (r *SQLRepository) PurgeIdle(ctx context.Context, cutoff time.Time) (int, error) {
	const query = `DELETE FROM wizard_states WHERE last_activity < ?`

	start := time.Now()
	res, err := r.db.ExecContext(ctx, query, cutoff.UnixMilli())
	database.CheckAndLogSlowQuery(r.logger, "PURGE_"+query, time.Since(start))
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
