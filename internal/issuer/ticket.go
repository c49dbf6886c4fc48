package issuer

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"hauntq/internal/models"

	"github.com/phpdave11/gofpdf"
	"github.com/skip2/go-qrcode"
)

// The core PDF fonts have no CJK glyphs, so printed tickets use these labels.
var printableAge = map[string]string{
	models.AgeGeneral:    "General",
	models.AgeUniversity: "University",
	models.AgeHighSchool: "High school or younger",
}

// TicketPayload is the string encoded in a ticket's QR code, scanned at the
// entrance to look the reservation up by id.
func TicketPayload(r models.Reservation) string {
	return strings.Join([]string{
		"hauntq",
		strconv.FormatInt(r.ID, 10),
		strconv.Itoa(r.TicketNo),
		strconv.FormatInt(r.CreatedAt.Unix(), 10),
	}, "|")
}

func TicketQR(r models.Reservation, size int) ([]byte, error) {
	if size <= 0 {
		size = 256
	}
	return qrcode.Encode(TicketPayload(r), qrcode.Medium, size)
}

// TerminalQR renders the ticket QR with half-block characters, two modules
// per character row.
func TerminalQR(r models.Reservation) (string, error) {
	code, err := qrcode.New(TicketPayload(r), qrcode.Medium)
	if err != nil {
		return "", err
	}
	bitmap := code.Bitmap()
	var b strings.Builder
	for y := 0; y < len(bitmap); y += 2 {
		for x := range bitmap[y] {
			top := bitmap[y][x]
			bottom := y+1 < len(bitmap) && bitmap[y+1][x]
			switch {
			case top && bottom:
				b.WriteRune('█')
			case top:
				b.WriteRune('▀')
			case bottom:
				b.WriteRune('▄')
			default:
				b.WriteRune(' ')
			}
		}
		b.WriteByte('\n')
	}
	return b.String(), nil
}

// WriteTicketPDF renders a printable A6 ticket with the QR code.
func WriteTicketPDF(w io.Writer, r models.Reservation, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}
	png, err := TicketQR(r, 256)
	if err != nil {
		return err
	}

	pdf := gofpdf.New("P", "mm", "A6", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 14)
	pdf.Cell(0, 8, "Haunted House Queue Ticket")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "B", 36)
	pdf.CellFormat(0, 16, fmt.Sprintf("#%d", r.TicketNo), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "", 11)
	age, ok := printableAge[r.Age]
	if !ok {
		age = "-"
	}
	for _, line := range []string{
		fmt.Sprintf("Party size: %d", r.Count),
		"Age group: " + age,
		"Issued: " + r.CreatedAt.In(loc).Format("2006-01-02 15:04"),
		"Reservation: " + strconv.FormatInt(r.ID, 10),
	} {
		pdf.Cell(0, 6, line)
		pdf.Ln(6)
	}

	options := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("qr", options, bytes.NewReader(png))
	pdf.ImageOptions("qr", 27, 85, 50, 50, false, options, 0, "")

	return pdf.Output(w)
}
