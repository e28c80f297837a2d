package models

import (
	"time"

	"gorm.io/gorm"
)

const DayLayout = "2006-01-02"

type Modality string

const (
	ModalityRF  Modality = "RF"
	ModalityCNN Modality = "CNN"
)

func (m Modality) Valid() bool {
	return m == ModalityRF || m == ModalityCNN
}

type Classification string

const (
	ClassNormal           Classification = "Normal"
	ClassMCI              Classification = "MCI"
	ClassMildDementia     Classification = "Mild Dementia"
	ClassModerateDementia Classification = "Moderate Dementia"
	ClassSevereDementia   Classification = "Severe Dementia"
	ClassDementia         Classification = "Dementia"
	ClassAlzheimers       Classification = "Alzheimers"
	ClassMCIDementia      Classification = "MCI + DEMENTIA"
)

func (c Classification) Valid() bool {
	switch c {
	case ClassNormal, ClassMCI, ClassMildDementia, ClassModerateDementia,
		ClassSevereDementia, ClassDementia, ClassAlzheimers, ClassMCIDementia:
		return true
	}
	return false
}

type Evaluation struct {
	ID                   uint            `gorm:"primaryKey;autoIncrement"                              json:"id"`
	PatientID            uint            `gorm:"not null;index;uniqueIndex:idx_evaluation_per_day"     json:"patient_id"`
	Modality             Modality        `gorm:"size:3;not null;uniqueIndex:idx_evaluation_per_day"    json:"modality"`
	EvaluationDay        string          `gorm:"size:10;not null;uniqueIndex:idx_evaluation_per_day"   json:"-"`
	ManualClassification *Classification `gorm:"size:20"                                               json:"manual_classification"`
	ModelClassification  *Classification `gorm:"size:20"                                               json:"model_classification"`
	ModelProbability     *float64        `json:"model_probability"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`

	Patient *Patient `gorm:"constraint:OnDelete:RESTRICT" json:"patient,omitempty"`
}

// BeforeSave keeps EvaluationDay in step with CreatedAt so the
// idx_evaluation_per_day index allows one evaluation per patient, modality
// and UTC calendar day.
func (e *Evaluation) BeforeSave(tx *gorm.DB) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = tx.NowFunc()
	}
	e.CreatedAt = e.CreatedAt.UTC()
	e.EvaluationDay = e.CreatedAt.Format(DayLayout)
	return nil
}

type ClinicData struct {
	ID                 uint      `gorm:"primaryKey"           json:"id"`
	EvaluationID       uint      `gorm:"uniqueIndex;not null" json:"evaluation_id"`
	MMSE               *int      `json:"mmse"`
	MoCA               *int      `json:"moca"`
	ClockDrawingTest   *int      `json:"clock_drawing_test"`
	Sodium             *float64  `json:"sodium"`
	Potassium          *float64  `json:"potassium"`
	Creatinine         *float64  `json:"creatinine"`
	Hemoglobin         *float64  `json:"hemoglobin"`
	CReactiveProtein   *float64  `json:"c_reactive_protein"`
	VitaminB12         *float64  `json:"vitamin_b12"`
	VitaminD           *float64  `json:"vitamin_d"`
	UricAcid           *float64  `json:"uric_acid"`
	GlycatedHemoglobin *float64  `json:"glycated_hemoglobin"`
	ThyrotropicHormone *float64  `json:"thyrotropic_hormone"`
	ADL                *float64  `json:"adl"`
	IADL               *float64  `json:"iadl"`
	Berg               *float64  `json:"berg"`
	BMI                *float64  `json:"bmi"`
	Stress             *bool     `json:"stress"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

func (ClinicData) TableName() string { return "clinic_data" }

type ClinicResults struct {
	ID           uint      `gorm:"primaryKey"           json:"id"`
	EvaluationID uint      `gorm:"uniqueIndex;not null" json:"evaluation_id"`
	Description  *string   `json:"description"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (ClinicResults) TableName() string { return "clinic_results" }

type MRIImage struct {
	ID           uint      `gorm:"primaryKey"           json:"id"`
	EvaluationID uint      `gorm:"uniqueIndex;not null" json:"evaluation_id"`
	URL          string    `gorm:"size:255;not null"    json:"url"`
	ObjectKey    string    `gorm:"size:255;not null"    json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (MRIImage) TableName() string { return "mri_images" }
