package ticketing

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/phpdave11/gofpdf"

	"github.com/Praveen-Yadav-74/wander-sphere-sub001/internal/models"
)

// BuildTicketPDF renders an e-ticket for a confirmed booking. trip may be nil
// when only the durable record is at hand; trip details then render as "-".
// Rendering never affects booking state.
func BuildTicketPDF(record *models.BookingRecord, trip *models.Trip) ([]byte, string, error) {
	if record == nil || record.ConfirmationCode == "" {
		return nil, "", fmt.Errorf("no booking record to render")
	}

	route := "-"
	departure := "-"
	operator := "-"
	if trip != nil {
		route = fmt.Sprintf("%s -> %s", trip.Origin, trip.Destination)
		departure = trip.DepartureTime.Format("2006-01-02 15:04")
		operator = trip.Operator
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("E-Ticket", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "E-TICKET")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 12)
	lines := []string{
		fmt.Sprintf("Confirmation : %s", record.ConfirmationCode),
		fmt.Sprintf("Operator     : %s", operator),
		fmt.Sprintf("Route        : %s", route),
		fmt.Sprintf("Departure    : %s", departure),
		fmt.Sprintf("Seats        : %s", strings.Join(record.SeatIDs, ", ")),
		fmt.Sprintf("Amount Paid  : %s %.2f", record.Currency, float64(record.AmountCharged)/100),
		fmt.Sprintf("Payment Ref  : %s", record.PaymentID),
		fmt.Sprintf("Issued       : %s", record.IssuedAt.Format("2006-01-02 15:04")),
	}
	for _, line := range lines {
		pdf.Cell(0, 7, line)
		pdf.Ln(7)
	}

	if len(record.Passengers) > 0 {
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "B", 12)
		pdf.Cell(0, 7, "Passengers")
		pdf.Ln(8)

		pdf.SetFont("Helvetica", "", 11)
		for i, p := range record.Passengers {
			seat := "-"
			if i < len(record.SeatIDs) {
				seat = record.SeatIDs[i]
			}
			pdf.Cell(0, 6, fmt.Sprintf("%d. %s (%d, %s)  Seat %s", i+1, p.Name, p.Age, p.Gender, seat))
			pdf.Ln(6)
		}
	}

	pdf.Ln(6)
	pdf.SetFont("Helvetica", "I", 10)
	pdf.MultiCell(0, 6, "Carry a valid photo ID for every passenger. This ticket admits only the seats listed above.", "", "", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, "", fmt.Errorf("render ticket: %w", err)
	}

	filename := fmt.Sprintf("ETICKET_%s.pdf", record.ConfirmationCode)
	return buf.Bytes(), filename, nil
}
