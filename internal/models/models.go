package models

import (
	"time"
)

type User struct {
	ID         uint      `gorm:"primaryKey;autoIncrement"      json:"id"`
	Name       string    `gorm:"size:50;not null"              json:"name"`
	LastName   string    `gorm:"size:50;not null"              json:"last_name"`
	Email      string    `gorm:"size:100;uniqueIndex;not null" json:"email"`
	Password   string    `gorm:"size:100;not null"             json:"-"`
	Speciality *string   `gorm:"size:100"                      json:"speciality"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type RefreshToken struct {
	ID        uint      `gorm:"primaryKey"              json:"id"`
	UserID    uint      `gorm:"index;not null"          json:"user_id"`
	Token     string    `gorm:"index;not null"          json:"-"`
	JTI       string    `gorm:"uniqueIndex;not null"    json:"jti"`
	Revoked   bool      `gorm:"not null;default:false"  json:"revoked"`
	UserAgent string    `json:"user_agent"`
	IPAddress string    `json:"ip_address"`
	ExpiresAt time.Time `gorm:"not null"                json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

type PasswordResetCode struct {
	ID        uint      `gorm:"primaryKey"             json:"id"`
	UserID    uint      `gorm:"index;not null"         json:"user_id"`
	Code      string    `gorm:"size:4;index;not null"  json:"-"`
	ExpiresAt time.Time `gorm:"not null"               json:"expires_at"`
	Used      bool      `gorm:"not null;default:false" json:"used"`
	CreatedAt time.Time `json:"created_at"`

	// RecoveryJTI is the jti of the recovery token issued for this code;
	// SpentAt is set once that token has changed the password.
	RecoveryJTI *string    `gorm:"size:36;uniqueIndex" json:"-"`
	SpentAt     *time.Time `json:"-"`
}

type Sex string

const (
	SexFemale Sex = "FEMALE"
	SexMale   Sex = "MALE"
)

func (s Sex) Valid() bool {
	return s == SexFemale || s == SexMale
}

type Patient struct {
	ID           uint      `gorm:"primaryKey;autoIncrement"                         json:"id"`
	DNI          string    `gorm:"size:20;not null;uniqueIndex:idx_patient_owner_dni" json:"dni"`
	Name         string    `gorm:"size:50;not null"                                 json:"name"`
	LastName     string    `gorm:"size:50;not null"                                 json:"last_name"`
	Sex          Sex       `gorm:"size:6;not null"                                  json:"sex"`
	Age          *int      `json:"age"`
	AgeEducation *int      `json:"age_education"`
	UserID       uint      `gorm:"not null;index;uniqueIndex:idx_patient_owner_dni" json:"user_id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Comorbidities struct {
	ID             uint    `gorm:"primaryKey"           json:"id"`
	PatientID      uint    `gorm:"uniqueIndex;not null" json:"patient_id"`
	Hypertension   *bool   `json:"hypertension"`
	Diabetes       *bool   `json:"diabetes"`
	Dyslipidemia   *bool   `json:"dyslipidemia"`
	HeartDisease   *bool   `json:"heart_disease"`
	Stroke         *bool   `json:"stroke"`
	Depression     *bool   `json:"depression"`
	Hypothyroidism *bool   `json:"hypothyroidism"`
	Smoking        *bool   `json:"smoking"`
	Alcohol        *bool   `json:"alcohol"`
	Notes          *string `json:"notes"`
}

func (Comorbidities) TableName() string { return "comorbidities" }

// All lists every persisted model in dependency order for AutoMigrate.
func All() []any {
	return []any{
		&User{},
		&RefreshToken{},
		&PasswordResetCode{},
		&Patient{},
		&Comorbidities{},
		&Evaluation{},
		&ClinicData{},
		&ClinicResults{},
		&MRIImage{},
	}
}
