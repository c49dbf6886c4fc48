package postgres

import (
	"context"
	"errors"

	"hauntq/internal/models"
	"hauntq/internal/store"

	"github.com/jackc/pgx/v5"
)

const callStateColumns = `current_number, system_paused, to_char(last_reset_date, 'YYYY-MM-DD'), version, updated_at`

func (s *Store) LoadCallState(ctx context.Context) (models.CallState, bool, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+callStateColumns+` FROM call_state WHERE id = 1`)
	state, err := scanCallState(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.CallState{}, false, nil
		}
		return models.CallState{}, false, err
	}
	return state, true, nil
}

func (s *Store) SwapCallState(ctx context.Context, expectedVersion int64, next models.CallState) (models.CallState, error) {
	var row pgx.Row
	if expectedVersion == 0 {
		row = s.pool.QueryRow(ctx, `
			INSERT INTO call_state (id, current_number, system_paused, last_reset_date, version, updated_at)
			VALUES (1, $1, $2, $3::date, 1, $4)
			ON CONFLICT (id) DO NOTHING
			RETURNING `+callStateColumns,
			next.CurrentNumber, next.SystemPaused, next.LastResetDate, next.UpdatedAt)
	} else {
		row = s.pool.QueryRow(ctx, `
			UPDATE call_state
			SET current_number = $1,
				system_paused = $2,
				last_reset_date = $3::date,
				updated_at = $4,
				version = version + 1
			WHERE id = 1 AND version = $5
			RETURNING `+callStateColumns,
			next.CurrentNumber, next.SystemPaused, next.LastResetDate, next.UpdatedAt, expectedVersion)
	}
	state, err := scanCallState(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.CallState{}, store.ErrVersionConflict
		}
		return models.CallState{}, err
	}
	return state, nil
}

func scanCallState(row pgx.Row) (models.CallState, error) {
	var state models.CallState
	if err := row.Scan(&state.CurrentNumber, &state.SystemPaused, &state.LastResetDate, &state.Version, &state.UpdatedAt); err != nil {
		return models.CallState{}, err
	}
	return state, nil
}
