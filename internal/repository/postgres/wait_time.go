package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jwalitptl/checkin-kiosk/internal/model"
	"github.com/jwalitptl/checkin-kiosk/internal/repository"
)

type waitTimeRepository struct {
	BaseRepository
}

func NewWaitTimeRepository(base BaseRepository) repository.WaitTimeRepository {
	return &waitTimeRepository{base}
}

// Record folds one sample into the doctor's row in a single statement, so
// concurrent starts never lose an update.
func (r *waitTimeRepository) Record(ctx context.Context, doctorID, minutes int64) (_ *model.WaitTime, err error) {
	start := time.Now()
	defer func() { r.observe("wait_time.record", start, err) }()

	query := `
		INSERT INTO wait_times (doctor_id, minutes_waiting, total_patients, created_at, updated_at)
		VALUES ($1, $2, 1, NOW(), NOW())
		ON CONFLICT (doctor_id) DO UPDATE
		SET minutes_waiting = wait_times.minutes_waiting + EXCLUDED.minutes_waiting,
			total_patients = wait_times.total_patients + 1,
			updated_at = NOW()
		RETURNING doctor_id, minutes_waiting, total_patients, created_at, updated_at
	`

	var wt model.WaitTime
	if err = r.GetDB().GetContext(ctx, &wt, query, doctorID, minutes); err != nil {
		return nil, fmt.Errorf("failed to record wait time: %w", err)
	}
	return &wt, nil
}

func (r *waitTimeRepository) Get(ctx context.Context, doctorID int64) (_ *model.WaitTime, err error) {
	start := time.Now()
	defer func() { r.observe("wait_time.get", start, err) }()

	query := `
		SELECT doctor_id, minutes_waiting, total_patients, created_at, updated_at
		FROM wait_times
		WHERE doctor_id = $1
	`

	var wt model.WaitTime
	if err = r.GetDB().GetContext(ctx, &wt, query, doctorID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get wait time: %w", err)
	}
	return &wt, nil
}
