package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/melodia-health/melodia-api/internal/models"
)

// AudiogramRepository handles persistence for audiometric test records.
type AudiogramRepository struct {
	db *sqlx.DB
}

// NewAudiogramRepository constructs the repository.
func NewAudiogramRepository(db *sqlx.DB) *AudiogramRepository {
	return &AudiogramRepository{db: db}
}

const audiogramColumns = `id, patient_id, test_date, ear, conduction,
hz_250, hz_500, hz_1000, hz_2000, hz_3000, hz_4000, hz_6000, hz_8000,
four_freq_avg, six_freq_avg, created_at, updated_at`

type audiogramRow struct {
	ID          string     `db:"id"`
	PatientID   string     `db:"patient_id"`
	TestDate    time.Time  `db:"test_date"`
	Ear         string     `db:"ear"`
	Conduction  string     `db:"conduction"`
	Hz250       *float64   `db:"hz_250"`
	Hz500       *float64   `db:"hz_500"`
	Hz1000      *float64   `db:"hz_1000"`
	Hz2000      *float64   `db:"hz_2000"`
	Hz3000      *float64   `db:"hz_3000"`
	Hz4000      *float64   `db:"hz_4000"`
	Hz6000      *float64   `db:"hz_6000"`
	Hz8000      *float64   `db:"hz_8000"`
	FourFreqAvg int        `db:"four_freq_avg"`
	SixFreqAvg  int        `db:"six_freq_avg"`
	CreatedAt   time.Time  `db:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"`
}

func (row audiogramRow) toModel() *models.AudiometricRecord {
	thresholds := map[int]float64{}
	set := func(hz int, value *float64) {
		if value != nil {
			thresholds[hz] = *value
		}
	}
	set(250, row.Hz250)
	set(500, row.Hz500)
	set(1000, row.Hz1000)
	set(2000, row.Hz2000)
	set(3000, row.Hz3000)
	set(4000, row.Hz4000)
	set(6000, row.Hz6000)
	set(8000, row.Hz8000)

	return &models.AudiometricRecord{
		ID:          row.ID,
		PatientID:   row.PatientID,
		TestDate:    row.TestDate,
		Ear:         models.EarSide(row.Ear),
		Conduction:  models.ConductionType(row.Conduction),
		Thresholds:  thresholds,
		FourFreqAvg: row.FourFreqAvg,
		SixFreqAvg:  row.SixFreqAvg,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
}

func thresholdArg(thresholds map[int]float64, hz int) *float64 {
	if value, ok := thresholds[hz]; ok {
		v := value
		return &v
	}
	return nil
}

// Upsert inserts or replaces the record for (patient, test date, ear,
// conduction). The derived averages are always written alongside the raw
// thresholds so they can never go stale.
func (r *AudiogramRepository) Upsert(ctx context.Context, record *models.AudiometricRecord) (*models.AudiometricRecord, error) {
	now := time.Now().UTC()
	if record.ID == "" {
		record.ID = uuid.NewString()
	}

	query := fmt.Sprintf(`INSERT INTO audiograms (%s)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
ON CONFLICT (patient_id, test_date, ear, conduction)
DO UPDATE SET
hz_250 = EXCLUDED.hz_250, hz_500 = EXCLUDED.hz_500, hz_1000 = EXCLUDED.hz_1000,
hz_2000 = EXCLUDED.hz_2000, hz_3000 = EXCLUDED.hz_3000, hz_4000 = EXCLUDED.hz_4000,
hz_6000 = EXCLUDED.hz_6000, hz_8000 = EXCLUDED.hz_8000,
four_freq_avg = EXCLUDED.four_freq_avg, six_freq_avg = EXCLUDED.six_freq_avg,
updated_at = EXCLUDED.updated_at
RETURNING %s`, audiogramColumns, audiogramColumns)

	var row audiogramRow
	if err := r.db.GetContext(ctx, &row, query,
		record.ID, record.PatientID, record.TestDate, string(record.Ear), string(record.Conduction),
		thresholdArg(record.Thresholds, 250), thresholdArg(record.Thresholds, 500),
		thresholdArg(record.Thresholds, 1000), thresholdArg(record.Thresholds, 2000),
		thresholdArg(record.Thresholds, 3000), thresholdArg(record.Thresholds, 4000),
		thresholdArg(record.Thresholds, 6000), thresholdArg(record.Thresholds, 8000),
		record.FourFreqAvg, record.SixFreqAvg, now, now); err != nil {
		return nil, fmt.Errorf("upsert audiogram: %w", err)
	}
	return row.toModel(), nil
}

// FindByID loads one audiometric record.
func (r *AudiogramRepository) FindByID(ctx context.Context, id string) (*models.AudiometricRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM audiograms WHERE id = $1`, audiogramColumns)
	var row audiogramRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		return nil, err
	}
	return row.toModel(), nil
}

// List returns audiometric records matching the provided filter, newest
// test date first.
func (r *AudiogramRepository) List(ctx context.Context, filter models.AudiogramFilter) ([]models.AudiometricRecord, error) {
	where := []string{"patient_id = $1"}
	args := []interface{}{filter.PatientID}
	if filter.Ear != nil && filter.Ear.Valid() {
		where = append(where, fmt.Sprintf("ear = $%d", len(args)+1))
		args = append(args, string(*filter.Ear))
	}
	if filter.Conduction != nil && filter.Conduction.Valid() {
		where = append(where, fmt.Sprintf("conduction = $%d", len(args)+1))
		args = append(args, string(*filter.Conduction))
	}
	if filter.DateFrom != nil {
		where = append(where, fmt.Sprintf("test_date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		where = append(where, fmt.Sprintf("test_date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}

	query := fmt.Sprintf(`SELECT %s FROM audiograms WHERE %s ORDER BY test_date DESC`,
		audiogramColumns, strings.Join(where, " AND "))
	var rows []audiogramRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list audiograms: %w", err)
	}
	records := make([]models.AudiometricRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, *row.toModel())
	}
	return records, nil
}
