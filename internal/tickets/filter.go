// Package tickets backs the admin reservations table: filtering, summary
// statistics and spreadsheet exports.
package tickets

import (
	"net/url"
	"strconv"
	"strings"

	"hauntq/internal/models"
)

// Filter narrows a reservation list. Query is a case-insensitive substring
// match on id, email and party size; Age and Status match exactly.
type Filter struct {
	Query  string
	Age    string
	Status string
}

func FilterFromQuery(values url.Values) Filter {
	return Filter{
		Query:  strings.TrimSpace(values.Get("q")),
		Age:    strings.TrimSpace(values.Get("age")),
		Status: strings.TrimSpace(values.Get("status")),
	}
}

func (f Filter) IsZero() bool {
	return f.Query == "" && f.Age == "" && f.Status == ""
}

func (f Filter) Match(reservation models.Reservation) bool {
	if f.Age != "" && reservation.Age != f.Age {
		return false
	}
	if f.Status != "" && reservation.Status != f.Status {
		return false
	}
	if f.Query == "" {
		return true
	}
	needle := strings.ToLower(f.Query)
	fields := []string{
		strconv.FormatInt(reservation.ID, 10),
		strings.ToLower(reservation.Email),
		strconv.Itoa(reservation.Count),
	}
	for _, field := range fields {
		if strings.Contains(field, needle) {
			return true
		}
	}
	return false
}

func Apply(reservations []models.Reservation, filter Filter) []models.Reservation {
	if filter.IsZero() {
		return reservations
	}
	out := make([]models.Reservation, 0, len(reservations))
	for _, reservation := range reservations {
		if filter.Match(reservation) {
			out = append(out, reservation)
		}
	}
	return out
}
