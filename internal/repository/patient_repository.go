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

// PatientRepository handles persistence for program participants.
type PatientRepository struct {
	db *sqlx.DB
}

// NewPatientRepository constructs the repository.
func NewPatientRepository(db *sqlx.DB) *PatientRepository {
	return &PatientRepository{db: db}
}

// List returns patients matching the provided filter.
func (r *PatientRepository) List(ctx context.Context, filter models.PatientFilter) ([]models.Patient, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.Search != "" {
		where = append(where, fmt.Sprintf("full_name ILIKE $%d", len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}
	whereClause := strings.Join(where, " AND ")

	sortColumn := "enrolled_at"
	if filter.SortBy == "name" {
		sortColumn = "full_name"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT id, full_name, date_of_birth, diagnosis, enrolled_at, created_at, updated_at
FROM patients WHERE %s
ORDER BY %s %s
LIMIT %d OFFSET %d`, whereClause, sortColumn, order, size, offset)

	var rows []models.Patient
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list patients: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM patients WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count patients: %w", err)
	}
	return rows, total, nil
}

// FindByID loads one patient.
func (r *PatientRepository) FindByID(ctx context.Context, id string) (*models.Patient, error) {
	query := `SELECT id, full_name, date_of_birth, diagnosis, enrolled_at, created_at, updated_at
FROM patients WHERE id = $1`
	var patient models.Patient
	if err := r.db.GetContext(ctx, &patient, query, id); err != nil {
		return nil, err
	}
	return &patient, nil
}

// Insert stores a new patient.
func (r *PatientRepository) Insert(ctx context.Context, patient *models.Patient) (*models.Patient, error) {
	now := time.Now().UTC()
	if patient.ID == "" {
		patient.ID = uuid.NewString()
	}
	if patient.EnrolledAt.IsZero() {
		patient.EnrolledAt = now
	}
	patient.CreatedAt = now
	patient.UpdatedAt = now

	query := `INSERT INTO patients (id, full_name, date_of_birth, diagnosis, enrolled_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, full_name, date_of_birth, diagnosis, enrolled_at, created_at, updated_at`
	var stored models.Patient
	if err := r.db.GetContext(ctx, &stored, query, patient.ID, patient.FullName, patient.DateOfBirth, patient.Diagnosis, patient.EnrolledAt, patient.CreatedAt, patient.UpdatedAt); err != nil {
		return nil, fmt.Errorf("insert patient: %w", err)
	}
	return &stored, nil
}

// Update mutates patient demographic fields.
func (r *PatientRepository) Update(ctx context.Context, patient *models.Patient) (*models.Patient, error) {
	query := `UPDATE patients
SET full_name = $2, date_of_birth = $3, diagnosis = $4, updated_at = $5
WHERE id = $1
RETURNING id, full_name, date_of_birth, diagnosis, enrolled_at, created_at, updated_at`
	var stored models.Patient
	if err := r.db.GetContext(ctx, &stored, query, patient.ID, patient.FullName, patient.DateOfBirth, patient.Diagnosis, time.Now().UTC()); err != nil {
		return nil, err
	}
	return &stored, nil
}
