package transport

import (
	"strings"

	"github.com/intellicog/records/internal/models"
)

type UserPatch struct {
	Name       *string `json:"name"`
	LastName   *string `json:"last_name"`
	Speciality *string `json:"speciality"`
}

func (p UserPatch) Apply(u *models.User) {
	setIf(&u.Name, p.Name)
	setIf(&u.LastName, p.LastName)
	if p.Speciality != nil {
		u.Speciality = p.Speciality
	}
}

type PatientPatch struct {
	DNI          *string     `json:"dni"`
	Name         *string     `json:"name"`
	LastName     *string     `json:"last_name"`
	Sex          *models.Sex `json:"sex"`
	Age          *int        `json:"age"`
	AgeEducation *int        `json:"age_education"`
}

// Trimmed returns a copy with surrounding whitespace removed from the
// identifying fields.
func (p PatientPatch) Trimmed() PatientPatch {
	p.DNI = trimPtr(p.DNI)
	p.Name = trimPtr(p.Name)
	p.LastName = trimPtr(p.LastName)
	return p
}

func (p PatientPatch) Apply(pt *models.Patient) {
	setIf(&pt.DNI, p.DNI)
	setIf(&pt.Name, p.Name)
	setIf(&pt.LastName, p.LastName)
	setIf(&pt.Sex, p.Sex)
	setPtr(&pt.Age, p.Age)
	setPtr(&pt.AgeEducation, p.AgeEducation)
}

type ComorbiditiesPatch struct {
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

func (p ComorbiditiesPatch) Apply(c *models.Comorbidities) {
	setPtr(&c.Hypertension, p.Hypertension)
	setPtr(&c.Diabetes, p.Diabetes)
	setPtr(&c.Dyslipidemia, p.Dyslipidemia)
	setPtr(&c.HeartDisease, p.HeartDisease)
	setPtr(&c.Stroke, p.Stroke)
	setPtr(&c.Depression, p.Depression)
	setPtr(&c.Hypothyroidism, p.Hypothyroidism)
	setPtr(&c.Smoking, p.Smoking)
	setPtr(&c.Alcohol, p.Alcohol)
	setPtr(&c.Notes, p.Notes)
}

type EvaluationPatch struct {
	Modality             *models.Modality       `json:"modality"`
	ManualClassification *models.Classification `json:"manual_classification"`
	ModelClassification  *models.Classification `json:"model_classification"`
	ModelProbability     *float64               `json:"model_probability"`
}

func (p EvaluationPatch) Apply(e *models.Evaluation) {
	setIf(&e.Modality, p.Modality)
	setPtr(&e.ManualClassification, p.ManualClassification)
	setPtr(&e.ModelClassification, p.ModelClassification)
	setPtr(&e.ModelProbability, p.ModelProbability)
}

type ClinicDataPatch struct {
	MMSE               *int     `json:"mmse"`
	MoCA               *int     `json:"moca"`
	ClockDrawingTest   *int     `json:"clock_drawing_test"`
	Sodium             *float64 `json:"sodium"`
	Potassium          *float64 `json:"potassium"`
	Creatinine         *float64 `json:"creatinine"`
	Hemoglobin         *float64 `json:"hemoglobin"`
	CReactiveProtein   *float64 `json:"c_reactive_protein"`
	VitaminB12         *float64 `json:"vitamin_b12"`
	VitaminD           *float64 `json:"vitamin_d"`
	UricAcid           *float64 `json:"uric_acid"`
	GlycatedHemoglobin *float64 `json:"glycated_hemoglobin"`
	ThyrotropicHormone *float64 `json:"thyrotropic_hormone"`
	ADL                *float64 `json:"adl"`
	IADL               *float64 `json:"iadl"`
	Berg               *float64 `json:"berg"`
	BMI                *float64 `json:"bmi"`
	Stress             *bool    `json:"stress"`
}

func (p ClinicDataPatch) Apply(c *models.ClinicData) {
	setPtr(&c.MMSE, p.MMSE)
	setPtr(&c.MoCA, p.MoCA)
	setPtr(&c.ClockDrawingTest, p.ClockDrawingTest)
	setPtr(&c.Sodium, p.Sodium)
	setPtr(&c.Potassium, p.Potassium)
	setPtr(&c.Creatinine, p.Creatinine)
	setPtr(&c.Hemoglobin, p.Hemoglobin)
	setPtr(&c.CReactiveProtein, p.CReactiveProtein)
	setPtr(&c.VitaminB12, p.VitaminB12)
	setPtr(&c.VitaminD, p.VitaminD)
	setPtr(&c.UricAcid, p.UricAcid)
	setPtr(&c.GlycatedHemoglobin, p.GlycatedHemoglobin)
	setPtr(&c.ThyrotropicHormone, p.ThyrotropicHormone)
	setPtr(&c.ADL, p.ADL)
	setPtr(&c.IADL, p.IADL)
	setPtr(&c.Berg, p.Berg)
	setPtr(&c.BMI, p.BMI)
	setPtr(&c.Stress, p.Stress)
}

type ClinicResultsPatch struct {
	Description *string `json:"description"`
}

func (p ClinicResultsPatch) Apply(c *models.ClinicResults) {
	setPtr(&c.Description, p.Description)
}

func trimPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func setPtr[T any](dst **T, v *T) {
	if v != nil {
		val := *v
		*dst = &val
	}
}
