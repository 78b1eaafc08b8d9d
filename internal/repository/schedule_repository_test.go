package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/melodia-health/melodia-api/internal/models"
)

func newScheduleRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

var scheduleCols = []string{"id", "patient_id", "start_date", "end_date", "total_weeks", "active_weekdays", "session_frequency", "session_frequency_unit", "survey_frequency", "survey_frequency_unit", "allowed_session_types", "allowed_survey_types", "total_expected_sessions", "active", "created_at", "updated_at"}

func addScheduleRow(rows *sqlmock.Rows, id string, now time.Time) *sqlmock.Rows {
	return rows.AddRow(id, "patient-1", now, now.AddDate(0, 0, 55), 8,
		"{1,2,3,4,5}", 1, "daily", 1, "weekly", "{}", "{}", 40, true, now, now)
}

func TestScheduleRepositoryActiveByPatient(t *testing.T) {
	db, mock, cleanup := newScheduleRepoMock(t)
	defer cleanup()

	repo := NewScheduleRepository(db)
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, patient_id, start_date")).
		WithArgs("patient-1").
		WillReturnRows(addScheduleRow(sqlmock.NewRows(scheduleCols), "schedule-1", now))

	schedule, err := repo.ActiveByPatient(context.Background(), "patient-1")
	require.NoError(t, err)
	require.Equal(t, "schedule-1", schedule.ID)
	require.Equal(t, models.WeekdaySet{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}, schedule.ActiveWeekdays)
	require.Equal(t, models.FrequencyWeekly, schedule.SurveyFrequencyUnit)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepositoryActiveByPatientNoRows(t *testing.T) {
	db, mock, cleanup := newScheduleRepoMock(t)
	defer cleanup()

	repo := NewScheduleRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, patient_id, start_date")).
		WithArgs("patient-1").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.ActiveByPatient(context.Background(), "patient-1")
	require.True(t, errors.Is(err, sql.ErrNoRows))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepositoryInsertDeactivatesPrevious(t *testing.T) {
	db, mock, cleanup := newScheduleRepoMock(t)
	defer cleanup()

	repo := NewScheduleRepository(db)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE schedules SET active = FALSE")).
		WithArgs("patient-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO schedules")).
		WillReturnRows(addScheduleRow(sqlmock.NewRows(scheduleCols), "schedule-2", now))
	mock.ExpectCommit()

	schedule := &models.Schedule{
		PatientID:            "patient-1",
		StartDate:            now,
		EndDate:              now.AddDate(0, 0, 55),
		TotalWeeks:           8,
		ActiveWeekdays:       models.WeekdaySet{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
		SessionFrequency:     1,
		SessionFrequencyUnit: models.FrequencyDaily,
		SurveyFrequency:      1,
		SurveyFrequencyUnit:  models.FrequencyWeekly,
		Active:               true,
	}
	created, err := repo.Insert(context.Background(), schedule)
	require.NoError(t, err)
	require.Equal(t, "schedule-2", created.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepositoryDeactivateMissing(t *testing.T) {
	db, mock, cleanup := newScheduleRepoMock(t)
	defer cleanup()

	repo := NewScheduleRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE schedules SET active = FALSE")).
		WithArgs("missing", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Deactivate(context.Background(), "missing")
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepositoryListByPatient(t *testing.T) {
	db, mock, cleanup := newScheduleRepoMock(t)
	defer cleanup()

	repo := NewScheduleRepository(db)
	now := time.Now()
	rows := sqlmock.NewRows(scheduleCols)
	addScheduleRow(rows, "schedule-2", now)
	addScheduleRow(rows, "schedule-1", now.AddDate(0, 0, -60))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, patient_id, start_date")).
		WithArgs("patient-1").
		WillReturnRows(rows)

	schedules, err := repo.ListByPatient(context.Background(), "patient-1")
	require.NoError(t, err)
	require.Len(t, schedules, 2)
	require.NoError(t, mock.ExpectationsWereMet())
}

// ensure pq array scanning round-trips through the row mapper
func TestScheduleRowToModel(t *testing.T) {
	row := scheduleRow{
		ID:                  "schedule-1",
		ActiveWeekdays:      pq.Int64Array{1, 3, 5},
		AllowedSessionTypes: pq.StringArray{"listening"},
	}
	schedule := row.toModel()
	require.Equal(t, models.WeekdaySet{time.Monday, time.Wednesday, time.Friday}, schedule.ActiveWeekdays)
	require.Equal(t, []string{"listening"}, schedule.AllowedSessionTypes)
}
