package tickets

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"hauntq/internal/models"

	"github.com/xuri/excelize/v2"
)

const (
	reservationsSheet = "Reservations"
	summarySheet      = "Summary"

	ContentTypeCSV  = "text/csv; charset=utf-8"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var (
	header        = []string{"id", "ticketNo", "email", "count", "age", "status", "channel", "createdAt", "calledAt"}
	summaryHeader = []string{"metric", "key", "value"}
)

func row(reservation models.Reservation, loc *time.Location) []string {
	calledAt := ""
	if reservation.CalledAt != nil {
		calledAt = reservation.CalledAt.In(loc).Format(time.RFC3339)
	}
	return []string{
		strconv.FormatInt(reservation.ID, 10),
		strconv.Itoa(reservation.TicketNo),
		reservation.Email,
		strconv.Itoa(reservation.Count),
		reservation.Age,
		reservation.Status,
		reservation.Channel,
		reservation.CreatedAt.In(loc).Format(time.RFC3339),
		calledAt,
	}
}

func WriteCSV(w io.Writer, reservations []models.Reservation, loc *time.Location) error {
	if loc == nil {
		loc = time.Local
	}
	writer := csv.NewWriter(w)
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, reservation := range reservations {
		if err := writer.Write(row(reservation, loc)); err != nil {
			return err
		}
	}

	// A blank line separates the rows from the summary block.
	if err := writer.Write(nil); err != nil {
		return err
	}
	if err := writer.Write(summaryHeader); err != nil {
		return err
	}
	for _, line := range summaryRows(Summarize(reservations, loc)) {
		if err := writer.Write([]string{line.metric, line.key, strconv.Itoa(line.value)}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteXLSX renders the reservations sheet followed by a summary sheet.
func WriteXLSX(w io.Writer, reservations []models.Reservation, loc *time.Location) error {
	if loc == nil {
		loc = time.Local
	}
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", reservationsSheet); err != nil {
		return err
	}
	if err := setRow(f, reservationsSheet, 1, toCells(header)); err != nil {
		return err
	}
	for i, reservation := range reservations {
		cells := []interface{}{
			reservation.ID,
			reservation.TicketNo,
			reservation.Email,
			reservation.Count,
			reservation.Age,
			reservation.Status,
			reservation.Channel,
			reservation.CreatedAt.In(loc).Format(time.RFC3339),
		}
		if reservation.CalledAt != nil {
			cells = append(cells, reservation.CalledAt.In(loc).Format(time.RFC3339))
		} else {
			cells = append(cells, "")
		}
		if err := setRow(f, reservationsSheet, i+2, cells); err != nil {
			return err
		}
	}

	if _, err := f.NewSheet(summarySheet); err != nil {
		return err
	}
	rows := [][]interface{}{toCells(summaryHeader)}
	for _, line := range summaryRows(Summarize(reservations, loc)) {
		rows = append(rows, []interface{}{line.metric, line.key, line.value})
	}
	for i, cells := range rows {
		if err := setRow(f, summarySheet, i+1, cells); err != nil {
			return err
		}
	}

	_, err := f.WriteTo(w)
	return err
}

type summaryRow struct {
	metric string
	key    string
	value  int
}

// summaryRows flattens a Summary into metric/key/value rows. Hours with no
// reservations are omitted.
func summaryRows(summary Summary) []summaryRow {
	rows := []summaryRow{
		{"total", "reservations", summary.Reservations},
		{"total", "visitors", summary.Visitors},
	}
	for _, age := range models.AgeGroups {
		rows = append(rows, summaryRow{"age", age, summary.ByAge[age]})
	}
	for _, status := range models.Statuses {
		rows = append(rows, summaryRow{"status", status, summary.ByStatus[status]})
	}
	for hour, count := range summary.ByHour {
		if count == 0 {
			continue
		}
		rows = append(rows, summaryRow{"hour", fmt.Sprintf("%02d:00", hour), count})
	}
	return rows
}

func setRow(f *excelize.File, sheet string, rowNo int, cells []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNo)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &cells)
}

func toCells(values []string) []interface{} {
	cells := make([]interface{}, len(values))
	for i, value := range values {
		cells[i] = value
	}
	return cells
}
