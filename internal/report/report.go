// Package report renders the printable evaluation history of a patient.
package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/intellicog/records/internal/models"
)

var classificationLabels = map[models.Classification]string{
	models.ClassNormal:           "Normal",
	models.ClassMCI:              "Deterioro Cognitivo Leve",
	models.ClassMildDementia:     "Demencia Leve",
	models.ClassModerateDementia: "Demencia Moderada",
	models.ClassSevereDementia:   "Demencia Severa",
	models.ClassDementia:         "Demencia",
	models.ClassAlzheimers:       "Alzheimer",
	models.ClassMCIDementia:      "Deterioro Cognitivo Leve o Demencia",
}

func ModalityLabel(m models.Modality) string {
	switch m {
	case models.ModalityRF:
		return "Datos Clínicos"
	case models.ModalityCNN:
		return "Resonancia Magnética"
	}
	return string(m)
}

func ClassificationLabel(c *models.Classification) string {
	if c == nil {
		return ""
	}
	if l, ok := classificationLabels[*c]; ok {
		return l
	}
	return string(*c)
}

func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("01/02/2006")
}

func FormatProbability(p *float64) string {
	if p == nil {
		return ""
	}
	return fmt.Sprintf("%.1f %%", *p*100)
}

var columns = []struct {
	title string
	width float64
}{
	{"#", 10},
	{"Fecha", 25},
	{"Modalidad", 35},
	{"Clasificación manual", 40},
	{"Clasificación modelo", 40},
	{"Probabilidad modelo", 30},
}

// Render builds an A4 PDF listing evaluations in the given order.
func Render(patient models.Patient, evaluations []models.Evaluation) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("Reporte de Evaluaciones", true)
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	pdf.SetTextColor(0x21, 0x76, 0xae)
	pdf.SetFont("Arial", "B", 20)
	pdf.Cell(0, 10, "Intellicog")
	pdf.Ln(12)

	pdf.SetTextColor(0x3a, 0x60, 0x73)
	pdf.SetFont("Arial", "", 10)
	pdf.MultiCell(0, 5, tr("Intellicog es la plataforma inteligente para el análisis y seguimiento de evaluaciones cognitivas."), "", "L", false)
	pdf.Ln(4)

	pdf.SetTextColor(0x22, 0x3a, 0x5e)
	pdf.SetFillColor(0xe3, 0xf0, 0xfa)
	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(0, 7, tr(fmt.Sprintf("Paciente: %s %s", patient.Name, patient.LastName)), "", 1, "L", true, 0, "")
	pdf.CellFormat(0, 7, tr("DNI: "+patient.DNI), "", 1, "L", true, 0, "")
	pdf.Ln(6)

	pdf.SetTextColor(0x21, 0x76, 0xae)
	pdf.SetFont("Arial", "B", 14)
	pdf.Cell(0, 8, "Evaluaciones Realizadas")
	pdf.Ln(10)

	pdf.SetFont("Arial", "B", 9)
	pdf.SetFillColor(0x21, 0x76, 0xae)
	pdf.SetTextColor(0xff, 0xff, 0xff)
	pdf.SetDrawColor(0xb3, 0xc6, 0xe0)
	for _, c := range columns {
		pdf.CellFormat(c.width, 7, tr(c.title), "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	pdf.SetTextColor(0x22, 0x3a, 0x5e)
	for i, ev := range evaluations {
		if i%2 == 0 {
			pdf.SetFillColor(0xe3, 0xf0, 0xfa)
		} else {
			pdf.SetFillColor(0xf0, 0xf6, 0xfb)
		}
		row := []string{
			fmt.Sprintf("%d", i+1),
			FormatDate(ev.CreatedAt),
			ModalityLabel(ev.Modality),
			ClassificationLabel(ev.ManualClassification),
			ClassificationLabel(ev.ModelClassification),
			FormatProbability(ev.ModelProbability),
		}
		for j, c := range columns {
			pdf.CellFormat(c.width, 6, tr(row[j]), "1", 0, "L", true, 0, "")
		}
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
