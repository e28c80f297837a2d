package transport

import (
	"time"

	"github.com/intellicog/records/internal/models"
)

type LoginRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type RefreshResponse struct {
	Message     string `json:"message"`
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type RegisterRequest struct {
	Name           string  `json:"name"`
	LastName       string  `json:"last_name"`
	Email          string  `json:"email"`
	Password       string  `json:"password"`
	VerifyPassword string  `json:"verify_password"`
	Speciality     *string `json:"speciality"`
}

type RecoverRequest struct {
	Email string `json:"email"`
}

type RecoverConfirmRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type RecoveryTokenResponse struct {
	Token string `json:"token"`
}

type ChangePasswordWithTokenRequest struct {
	Token             string `json:"token"`
	NewPassword       string `json:"new_password"`
	VerifyNewPassword string `json:"verify_new_password"`
}

type UserUpdateRequest struct {
	UserPatch
	Password string `json:"password"`
}

type ChangePasswordRequest struct {
	OldPassword       string `json:"old_password"`
	NewPassword       string `json:"new_password"`
	VerifyNewPassword string `json:"verify_new_password"`
}

type SupportRequest struct {
	Subject string `json:"subject"`
	Message string `json:"message"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type CreatePatientRequest struct {
	DNI          string     `json:"dni"`
	Name         string     `json:"name"`
	LastName     string     `json:"last_name"`
	Sex          models.Sex `json:"sex"`
	Age          *int       `json:"age"`
	AgeEducation *int       `json:"age_education"`
}

type CreateEvaluationRequest struct {
	Modality             models.Modality        `json:"modality"`
	ManualClassification *models.Classification `json:"manual_classification"`
	ModelClassification  *models.Classification `json:"model_classification"`
	ModelProbability     *float64               `json:"model_probability"`
	CreatedAt            *time.Time             `json:"created_at"`
}

type EvaluationListQuery struct {
	PatientName string `query:"patient_name"`
	DNI         string `query:"dni"`
	Modality    string `query:"modality"`
	Skip        int    `query:"skip"`
	Limit       int    `query:"limit"`
}
