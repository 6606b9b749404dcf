package requests

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// RenderSlip writes a one-page PDF confirming an approved vacation request.
func RenderSlip(organisation string, r Request, issuedAt time.Time) ([]byte, error) {
	if r.Kind != KindVacation || r.StartDate == nil || r.EndDate == nil {
		return nil, fmt.Errorf("slip needs a vacation request with dates")
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Vacation confirmation", false)
	pdf.SetCreator(organisation, false)
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, organisation)
	pdf.Ln(10)
	pdf.SetFont("Helvetica", "B", 13)
	pdf.Cell(0, 10, "Vacation confirmation")
	pdf.Ln(12)
	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 8, fmt.Sprintf("Employee: %s", r.EmployeeName))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Request: %s", r.ID))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Period: %s to %s", r.StartDate.Format("2006-01-02"), r.EndDate.Format("2006-01-02")))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Days: %d", r.Days))
	pdf.Ln(7)
	if r.Reason != "" {
		pdf.MultiCell(0, 7, fmt.Sprintf("Reason: %s", r.Reason), "", "L", false)
	}
	if r.ApprovedAt != nil {
		pdf.Cell(0, 8, fmt.Sprintf("Approved: %s", r.ApprovedAt.UTC().Format(time.RFC3339)))
		pdf.Ln(7)
	}
	if r.Response != "" {
		pdf.MultiCell(0, 7, fmt.Sprintf("Note: %s", r.Response), "", "L", false)
	}
	pdf.Ln(6)
	pdf.SetFont("Helvetica", "I", 9)
	pdf.Cell(0, 6, fmt.Sprintf("Issued %s", issuedAt.UTC().Format(time.RFC3339)))

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func SlipFilename(r Request) string {
	return fmt.Sprintf("vacation-%s.pdf", r.ID)
}
