package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/melodia-health/melodia-api/internal/models"
)

// ScheduleRepository handles persistence for patient activity schedules.
type ScheduleRepository struct {
	db *sqlx.DB
}

// NewScheduleRepository constructs the repository.
func NewScheduleRepository(db *sqlx.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

const scheduleColumns = `id, patient_id, start_date, end_date, total_weeks, active_weekdays,
session_frequency, session_frequency_unit, survey_frequency, survey_frequency_unit,
allowed_session_types, allowed_survey_types, total_expected_sessions, active, created_at, updated_at`

type scheduleRow struct {
	ID                    string         `db:"id"`
	PatientID             string         `db:"patient_id"`
	StartDate             time.Time      `db:"start_date"`
	EndDate               time.Time      `db:"end_date"`
	TotalWeeks            int            `db:"total_weeks"`
	ActiveWeekdays        pq.Int64Array  `db:"active_weekdays"`
	SessionFrequency      int            `db:"session_frequency"`
	SessionFrequencyUnit  string         `db:"session_frequency_unit"`
	SurveyFrequency       int            `db:"survey_frequency"`
	SurveyFrequencyUnit   string         `db:"survey_frequency_unit"`
	AllowedSessionTypes   pq.StringArray `db:"allowed_session_types"`
	AllowedSurveyTypes    pq.StringArray `db:"allowed_survey_types"`
	TotalExpectedSessions int            `db:"total_expected_sessions"`
	Active                bool           `db:"active"`
	CreatedAt             time.Time      `db:"created_at"`
	UpdatedAt             time.Time      `db:"updated_at"`
}

func (row scheduleRow) toModel() *models.Schedule {
	weekdays := make(models.WeekdaySet, 0, len(row.ActiveWeekdays))
	for _, d := range row.ActiveWeekdays {
		weekdays = append(weekdays, time.Weekday(d))
	}
	return &models.Schedule{
		ID:                    row.ID,
		PatientID:             row.PatientID,
		StartDate:             row.StartDate,
		EndDate:               row.EndDate,
		TotalWeeks:            row.TotalWeeks,
		ActiveWeekdays:        weekdays,
		SessionFrequency:      row.SessionFrequency,
		SessionFrequencyUnit:  models.FrequencyUnit(row.SessionFrequencyUnit),
		SurveyFrequency:       row.SurveyFrequency,
		SurveyFrequencyUnit:   models.FrequencyUnit(row.SurveyFrequencyUnit),
		AllowedSessionTypes:   []string(row.AllowedSessionTypes),
		AllowedSurveyTypes:    []string(row.AllowedSurveyTypes),
		TotalExpectedSessions: row.TotalExpectedSessions,
		Active:                row.Active,
		CreatedAt:             row.CreatedAt,
		UpdatedAt:             row.UpdatedAt,
	}
}

func weekdayArray(set models.WeekdaySet) pq.Int64Array {
	out := make(pq.Int64Array, 0, len(set))
	for _, d := range set.Normalized() {
		out = append(out, int64(d))
	}
	return out
}

// ActiveByPatient returns the patient's active schedule, or sql.ErrNoRows
// when the patient has none.
func (r *ScheduleRepository) ActiveByPatient(ctx context.Context, patientID string) (*models.Schedule, error) {
	query := fmt.Sprintf(`SELECT %s FROM schedules WHERE patient_id = $1 AND active ORDER BY created_at DESC LIMIT 1`, scheduleColumns)
	var row scheduleRow
	if err := r.db.GetContext(ctx, &row, query, patientID); err != nil {
		return nil, err
	}
	return row.toModel(), nil
}

// FindByID loads one schedule.
func (r *ScheduleRepository) FindByID(ctx context.Context, id string) (*models.Schedule, error) {
	query := fmt.Sprintf(`SELECT %s FROM schedules WHERE id = $1`, scheduleColumns)
	var row scheduleRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		return nil, err
	}
	return row.toModel(), nil
}

// ListByPatient returns all schedules for a patient, newest first.
func (r *ScheduleRepository) ListByPatient(ctx context.Context, patientID string) ([]models.Schedule, error) {
	query := fmt.Sprintf(`SELECT %s FROM schedules WHERE patient_id = $1 ORDER BY created_at DESC`, scheduleColumns)
	var rows []scheduleRow
	if err := r.db.SelectContext(ctx, &rows, query, patientID); err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	schedules := make([]models.Schedule, 0, len(rows))
	for _, row := range rows {
		schedules = append(schedules, *row.toModel())
	}
	return schedules, nil
}

// Insert stores a new schedule, deactivating any previously active schedule
// for the patient in the same transaction so at most one stays active.
func (r *ScheduleRepository) Insert(ctx context.Context, schedule *models.Schedule) (*models.Schedule, error) {
	now := time.Now().UTC()
	if schedule.ID == "" {
		schedule.ID = uuid.NewString()
	}
	schedule.CreatedAt = now
	schedule.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin insert schedule: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	if schedule.Active {
		if _, err := tx.ExecContext(ctx,
			`UPDATE schedules SET active = FALSE, updated_at = $2 WHERE patient_id = $1 AND active`,
			schedule.PatientID, now); err != nil {
			return nil, fmt.Errorf("deactivate previous schedule: %w", err)
		}
	}

	query := fmt.Sprintf(`INSERT INTO schedules (%s)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
RETURNING %s`, scheduleColumns, scheduleColumns)
	var row scheduleRow
	if err := tx.GetContext(ctx, &row, query,
		schedule.ID, schedule.PatientID, schedule.StartDate, schedule.EndDate, schedule.TotalWeeks,
		weekdayArray(schedule.ActiveWeekdays),
		schedule.SessionFrequency, string(schedule.SessionFrequencyUnit),
		schedule.SurveyFrequency, string(schedule.SurveyFrequencyUnit),
		pq.StringArray(schedule.AllowedSessionTypes), pq.StringArray(schedule.AllowedSurveyTypes),
		schedule.TotalExpectedSessions, schedule.Active, schedule.CreatedAt, schedule.UpdatedAt); err != nil {
		return nil, fmt.Errorf("insert schedule: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit insert schedule: %w", err)
	}
	committed = true
	return row.toModel(), nil
}

// Update mutates an existing schedule's prescription fields.
func (r *ScheduleRepository) Update(ctx context.Context, schedule *models.Schedule) (*models.Schedule, error) {
	query := fmt.Sprintf(`UPDATE schedules SET
start_date = $2, end_date = $3, total_weeks = $4, active_weekdays = $5,
session_frequency = $6, session_frequency_unit = $7,
survey_frequency = $8, survey_frequency_unit = $9,
allowed_session_types = $10, allowed_survey_types = $11,
total_expected_sessions = $12, updated_at = $13
WHERE id = $1
RETURNING %s`, scheduleColumns)
	var row scheduleRow
	if err := r.db.GetContext(ctx, &row, query,
		schedule.ID, schedule.StartDate, schedule.EndDate, schedule.TotalWeeks,
		weekdayArray(schedule.ActiveWeekdays),
		schedule.SessionFrequency, string(schedule.SessionFrequencyUnit),
		schedule.SurveyFrequency, string(schedule.SurveyFrequencyUnit),
		pq.StringArray(schedule.AllowedSessionTypes), pq.StringArray(schedule.AllowedSurveyTypes),
		schedule.TotalExpectedSessions, time.Now().UTC()); err != nil {
		return nil, err
	}
	return row.toModel(), nil
}

// Deactivate clears the active flag. Schedules are never physically removed.
func (r *ScheduleRepository) Deactivate(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE schedules SET active = FALSE, updated_at = $2 WHERE id = $1`, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("deactivate schedule: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("deactivate schedule: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("deactivate schedule %s: no rows affected", id)
	}
	return nil
}
