package models

import "time"

// EarSide identifies which ear a hearing test covers.
type EarSide string

const (
	EarLeft  EarSide = "left"
	EarRight EarSide = "right"
)

// Valid returns true when the side is a supported value.
func (e EarSide) Valid() bool {
	return e == EarLeft || e == EarRight
}

// ConductionType identifies the audiometric conduction pathway tested.
type ConductionType string

const (
	ConductionAir  ConductionType = "air"
	ConductionBone ConductionType = "bone"
)

// Valid returns true when the conduction type is a supported value.
func (c ConductionType) Valid() bool {
	return c == ConductionAir || c == ConductionBone
}

// AudiogramFrequencies lists the tested frequencies in Hz.
var AudiogramFrequencies = []int{250, 500, 1000, 2000, 3000, 4000, 6000, 8000}

// AudiometricRecord holds raw per-frequency hearing thresholds (dB HL) for
// one patient, test date, ear and conduction type, plus the two derived
// pure-tone averages. The averages are recomputed whenever any raw
// threshold changes.
type AudiometricRecord struct {
	ID         string          `json:"id"`
	PatientID  string          `json:"patient_id"`
	TestDate   time.Time       `json:"test_date"`
	Ear        EarSide         `json:"ear"`
	Conduction ConductionType  `json:"conduction"`
	Thresholds map[int]float64 `json:"thresholds"`
	FourFreqAvg int            `json:"four_freq_avg"`
	SixFreqAvg  int            `json:"six_freq_avg"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// AudiogramFilter defines query filters for listing audiometric records.
type AudiogramFilter struct {
	PatientID  string
	Ear        *EarSide
	Conduction *ConductionType
	DateFrom   *time.Time
	DateTo     *time.Time
}
