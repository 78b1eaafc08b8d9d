package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/melodia-health/melodia-api/internal/models"
	appErrors "github.com/melodia-health/melodia-api/pkg/errors"
)

// pqUniqueViolation is the PostgreSQL error code for unique constraint hits.
const pqUniqueViolation = "23505"

// ActivityRepository handles persistence for activity records and their
// derived scores.
type ActivityRepository struct {
	db *sqlx.DB
}

// NewActivityRepository constructs the repository.
func NewActivityRepository(db *sqlx.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

const activityColumns = `id, patient_id, kind, activity_type, activity_date, sequence, completed,
duration_minutes, notes, completed_at, created_at, updated_at`

// CompletedCountOn returns the number of same-kind records already stored
// for the patient on the given date.
func (r *ActivityRepository) CompletedCountOn(ctx context.Context, patientID string, date time.Time, kind models.ActivityKind) (int, error) {
	query := `SELECT COUNT(*) FROM activity_records
WHERE patient_id = $1 AND activity_date = $2 AND kind = $3`
	var count int
	if err := r.db.GetContext(ctx, &count, query, patientID, date, kind); err != nil {
		return 0, fmt.Errorf("count activities on date: %w", err)
	}
	return count, nil
}

// CompletedCountInRange returns completed records of the kind within
// [start, end] inclusive.
func (r *ActivityRepository) CompletedCountInRange(ctx context.Context, patientID string, start, end time.Time, kind models.ActivityKind) (int, error) {
	query := `SELECT COUNT(*) FROM activity_records
WHERE patient_id = $1 AND activity_date BETWEEN $2 AND $3 AND kind = $4 AND completed`
	var count int
	if err := r.db.GetContext(ctx, &count, query, patientID, start, end, kind); err != nil {
		return 0, fmt.Errorf("count activities in range: %w", err)
	}
	return count, nil
}

// InsertWithScore stores the activity record and, when score is non-nil,
// its derived score in a single transaction so the pair is all-or-nothing.
// A unique index on (patient_id, activity_date, kind, sequence) guards the
// same-day sequence; a concurrent claim of the same slot surfaces as
// ErrSequenceConflict so the caller can re-evaluate and retry.
func (r *ActivityRepository) InsertWithScore(ctx context.Context, record *models.ActivityRecord, score *models.Score) (*models.ActivityRecord, *models.Score, error) {
	now := time.Now().UTC()
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	record.CreatedAt = now
	record.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin insert activity: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	insertRecord := fmt.Sprintf(`INSERT INTO activity_records (%s)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
RETURNING %s`, activityColumns, activityColumns)
	var storedRecord models.ActivityRecord
	err = tx.GetContext(ctx, &storedRecord, insertRecord,
		record.ID, record.PatientID, record.Kind, record.ActivityType, record.ActivityDate,
		record.Sequence, record.Completed, record.DurationMinutes, record.Notes,
		record.CompletedAt, record.CreatedAt, record.UpdatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == pqUniqueViolation {
			return nil, nil, appErrors.ErrSequenceConflict
		}
		return nil, nil, fmt.Errorf("insert activity record: %w", err)
	}

	var storedScore *models.Score
	if score != nil {
		if score.ID == "" {
			score.ID = uuid.NewString()
		}
		score.ActivityID = storedRecord.ID
		score.CreatedAt = now

		insertScore := `INSERT INTO scores (id, activity_id, instrument_type, total_score, max_possible_score, percentage_score, breakdown, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id, activity_id, instrument_type, total_score, max_possible_score, percentage_score, breakdown, created_at`
		storedScore = &models.Score{}
		if err := tx.GetContext(ctx, storedScore, insertScore,
			score.ID, score.ActivityID, score.InstrumentType, score.TotalScore,
			score.MaxPossibleScore, score.PercentageScore, score.Breakdown, score.CreatedAt); err != nil {
			return nil, nil, fmt.Errorf("insert score: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit insert activity: %w", err)
	}
	committed = true
	return &storedRecord, storedScore, nil
}

// Complete marks a record completed and stores completion metadata. Raw
// submission fields stay immutable once the record is completed.
func (r *ActivityRepository) Complete(ctx context.Context, id string, durationMinutes *int, notes *string, completedAt time.Time) (*models.ActivityRecord, error) {
	query := fmt.Sprintf(`UPDATE activity_records
SET completed = TRUE, duration_minutes = $2, notes = $3, completed_at = $4, updated_at = $5
WHERE id = $1
RETURNING %s`, activityColumns)
	var stored models.ActivityRecord
	if err := r.db.GetContext(ctx, &stored, query, id, durationMinutes, notes, completedAt, time.Now().UTC()); err != nil {
		return nil, err
	}
	return &stored, nil
}

// FindByID loads one activity record.
func (r *ActivityRepository) FindByID(ctx context.Context, id string) (*models.ActivityRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM activity_records WHERE id = $1`, activityColumns)
	var record models.ActivityRecord
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		return nil, err
	}
	return &record, nil
}

// ScoreByActivity loads the score derived from an activity record.
func (r *ActivityRepository) ScoreByActivity(ctx context.Context, activityID string) (*models.Score, error) {
	query := `SELECT id, activity_id, instrument_type, total_score, max_possible_score, percentage_score, breakdown, created_at
FROM scores WHERE activity_id = $1`
	var score models.Score
	if err := r.db.GetContext(ctx, &score, query, activityID); err != nil {
		return nil, err
	}
	return &score, nil
}

// List returns activity records matching the provided filter.
func (r *ActivityRepository) List(ctx context.Context, filter models.ActivityFilter) ([]models.ActivityRecord, int, error) {
	where := []string{"patient_id = $1"}
	args := []interface{}{filter.PatientID}
	if filter.Kind != nil && filter.Kind.Valid() {
		where = append(where, fmt.Sprintf("kind = $%d", len(args)+1))
		args = append(args, *filter.Kind)
	}
	if filter.DateFrom != nil {
		where = append(where, fmt.Sprintf("activity_date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		where = append(where, fmt.Sprintf("activity_date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}
	if filter.Completed != nil {
		where = append(where, fmt.Sprintf("completed = $%d", len(args)+1))
		args = append(args, *filter.Completed)
	}
	whereClause := strings.Join(where, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s FROM activity_records
WHERE %s
ORDER BY activity_date DESC, sequence DESC
LIMIT %d OFFSET %d`, activityColumns, whereClause, size, offset)

	var rows []models.ActivityRecord
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list activities: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM activity_records WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count activities: %w", err)
	}
	return rows, total, nil
}
