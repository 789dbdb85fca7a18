// Package document renders KPI review documents and publishes them to storage.
package document

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/john2100013/kpi-review/internal/models"
	"github.com/john2100013/kpi-review/internal/service/rating"
)

// ReviewDocument is everything printed on a review PDF.
type ReviewDocument struct {
	KPI         models.KPI
	Review      models.KPIReview
	Employee    models.User
	Manager     models.User
	Score       rating.Score
	GeneratedAt time.Time
}

// Generator renders a review document.
type Generator interface {
	Generate(ctx context.Context, doc *ReviewDocument) ([]byte, error)
}

// PDFGenerator renders review documents with gofpdf.
type PDFGenerator struct{}

// NewPDFGenerator creates a PDF generator.
func NewPDFGenerator() *PDFGenerator {
	return &PDFGenerator{}
}

// Generate renders doc as an A4 PDF.
func (g *PDFGenerator) Generate(ctx context.Context, doc *ReviewDocument) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, tr("KPI Review: "+doc.KPI.Title))
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 11)
	line := func(label, value string) {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(45, 7, tr(label), "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 11)
		pdf.CellFormat(0, 7, tr(value), "", 1, "L", false, 0, "")
	}
	line("Employee", fmt.Sprintf("%s (%s)", doc.Employee.Name, doc.Employee.PayrollNumber))
	line("Manager", doc.Manager.Name)
	line("Period", period(&doc.KPI))
	line("Review status", doc.Review.ReviewStatus)
	pdf.Ln(4)

	// Items table
	widths := []float64{60, 20, 25, 25, 60}
	headers := []string{"Item", "Weight", "Self", "Manager", "Comment"}
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(230, 230, 230)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	for _, item := range doc.KPI.Items {
		manager := ratingText(item.ManagerRating)
		if item.IsQualitative && item.QualitativeRating != "" {
			manager = item.QualitativeRating
		}
		cells := []string{
			item.Title,
			item.Weight,
			ratingText(item.EmployeeRating),
			manager,
			item.ManagerComment,
		}
		for i, c := range cells {
			pdf.CellFormat(widths[i], 7, tr(truncate(c, 40)), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, fmt.Sprintf("Final score: %.2f (total weight %.2f)", doc.Score.Final, doc.Score.TotalWeight))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "", 10)
	if doc.Review.EmployeeComment != "" {
		pdf.MultiCell(0, 6, tr("Employee comment: "+doc.Review.EmployeeComment), "", "L", false)
	}
	if doc.Review.ManagerComment != "" {
		pdf.MultiCell(0, 6, tr("Manager comment: "+doc.Review.ManagerComment), "", "L", false)
	}
	pdf.Ln(4)

	line("Employee signed", signedAt(doc.Review.EmployeeSubmittedAt))
	line("Manager signed", signedAt(doc.Review.ManagerReviewedAt))
	line("Generated", doc.GeneratedAt.Format("2006-01-02 15:04"))

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render review pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func period(kpi *models.KPI) string {
	if kpi.PeriodType == models.PeriodQuarterly {
		return fmt.Sprintf("%s %d", kpi.Quarter, kpi.Year)
	}
	return fmt.Sprintf("Annual %d", kpi.Year)
}

func ratingText(r *float64) string {
	if r == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *r)
}

func signedAt(t *time.Time) string {
	if t == nil {
		return "not signed"
	}
	return t.Format("2006-01-02 15:04")
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}
