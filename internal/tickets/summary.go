package tickets

import (
	"time"

	"hauntq/internal/models"
)

type Summary struct {
	Reservations int            `json:"reservations"`
	Visitors     int            `json:"visitors"`
	ByAge        map[string]int `json:"byAge"`
	ByStatus     map[string]int `json:"byStatus"`
	ByHour       [24]int        `json:"byHour"`
}

// Summarize counts reservations per age group, status and creation hour.
// Hours are taken in loc.
func Summarize(reservations []models.Reservation, loc *time.Location) Summary {
	if loc == nil {
		loc = time.Local
	}
	summary := Summary{
		ByAge:    make(map[string]int, len(models.AgeGroups)),
		ByStatus: make(map[string]int, len(models.Statuses)),
	}
	for _, age := range models.AgeGroups {
		summary.ByAge[age] = 0
	}
	for _, status := range models.Statuses {
		summary.ByStatus[status] = 0
	}
	for _, reservation := range reservations {
		summary.Reservations++
		summary.Visitors += reservation.Count
		summary.ByAge[reservation.Age]++
		summary.ByStatus[reservation.Status]++
		summary.ByHour[reservation.CreatedAt.In(loc).Hour()]++
	}
	return summary
}
