package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/melodia-health/melodia-api/internal/models"
	"github.com/melodia-health/melodia-api/internal/service"
)

const testPatientID = "2b7cdb6e-4a3f-4cfe-9d3a-1f2a3b4c5d6e"

type fakeActivityRepo struct {
	count int
}

func (f *fakeActivityRepo) CompletedCountOn(context.Context, string, time.Time, models.ActivityKind) (int, error) {
	return f.count, nil
}

func (f *fakeActivityRepo) InsertWithScore(_ context.Context, record *models.ActivityRecord, score *models.Score) (*models.ActivityRecord, *models.Score, error) {
	stored := *record
	stored.ID = "activity-1"
	if score != nil {
		storedScore := *score
		storedScore.ID = "score-1"
		storedScore.ActivityID = stored.ID
		return &stored, &storedScore, nil
	}
	return &stored, nil, nil
}

func (f *fakeActivityRepo) Complete(context.Context, string, *int, *string, time.Time) (*models.ActivityRecord, error) {
	return nil, sql.ErrNoRows
}

func (f *fakeActivityRepo) FindByID(context.Context, string) (*models.ActivityRecord, error) {
	return nil, sql.ErrNoRows
}

func (f *fakeActivityRepo) ScoreByActivity(context.Context, string) (*models.Score, error) {
	return nil, sql.ErrNoRows
}

func (f *fakeActivityRepo) List(context.Context, models.ActivityFilter) ([]models.ActivityRecord, int, error) {
	return nil, 0, nil
}

type fakeScheduleLookup struct {
	schedule *models.Schedule
}

func (f *fakeScheduleLookup) ActiveByPatient(context.Context, string) (*models.Schedule, error) {
	if f.schedule == nil {
		return nil, sql.ErrNoRows
	}
	return f.schedule, nil
}

func limitedSchedule() *models.Schedule {
	return &models.Schedule{
		ID:                   "schedule-1",
		PatientID:            testPatientID,
		ActiveWeekdays:       models.WeekdaySet{time.Sunday, time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday},
		SessionFrequency:     1,
		SessionFrequencyUnit: models.FrequencyDaily,
		SurveyFrequency:      1,
		SurveyFrequencyUnit:  models.FrequencyDaily,
		Active:               true,
	}
}

func newSubmissionRouter(repo *fakeActivityRepo, schedules *fakeScheduleLookup) *gin.Engine {
	gin.SetMode(gin.TestMode)
	svc := service.NewSubmissionService(repo, schedules, nil, nil, 3, nil, zap.NewNop())
	h := NewSubmissionHandler(svc)
	r := gin.New()
	r.POST("/sessions", h.SubmitSession)
	r.POST("/surveys", h.SubmitSurvey)
	return r
}

func TestSubmitSessionEndpointCreated(t *testing.T) {
	r := newSubmissionRouter(&fakeActivityRepo{}, &fakeScheduleLookup{schedule: limitedSchedule()})

	body := `{"patient_id":"` + testPatientID + `","session_type":"listening","date":"2026-03-02"}`
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sessions", strings.NewReader(body)))

	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestSubmitSessionEndpointDailyLimit(t *testing.T) {
	r := newSubmissionRouter(&fakeActivityRepo{count: 1}, &fakeScheduleLookup{schedule: limitedSchedule()})

	body := `{"patient_id":"` + testPatientID + `","session_type":"listening","date":"2026-03-02"}`
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sessions", strings.NewReader(body)))

	assert.Equal(t, http.StatusConflict, rec.Code)
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "DAILY_LIMIT_REACHED", envelope.Error.Code)
}

func TestSubmitSessionEndpointBadPayload(t *testing.T) {
	r := newSubmissionRouter(&fakeActivityRepo{}, &fakeScheduleLookup{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sessions", strings.NewReader("{not-json")))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitSurveyEndpointReturnsScore(t *testing.T) {
	r := newSubmissionRouter(&fakeActivityRepo{}, &fakeScheduleLookup{schedule: limitedSchedule()})

	responses := strings.Repeat("2,", 24) + "2"
	body := `{"patient_id":"` + testPatientID + `","survey_type":"THI","date":"2026-03-02","responses":[` + responses + `]}`
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/surveys", strings.NewReader(body)))

	assert.Equal(t, http.StatusCreated, rec.Code)
	var envelope struct {
		Data struct {
			Score struct {
				TotalScore       int `json:"total_score"`
				MaxPossibleScore int `json:"max_possible_score"`
			} `json:"score"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, 50, envelope.Data.Score.TotalScore)
	assert.Equal(t, 100, envelope.Data.Score.MaxPossibleScore)
}
