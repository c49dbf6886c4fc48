// Package mailto builds mail-client compose links for ticket holders. No mail
// is sent by the service.
package mailto

import (
	"fmt"
	"net/url"
	"strings"

	"hauntq/internal/models"
)

const (
	defaultSubject = "【お化け屋敷】まもなくご案内です"
	defaultBody    = "整理券番号 %d 番のお客様\n\nまもなくご案内いたします。受付までお越しください。\n現在の呼出番号: %d"
)

type Template struct {
	Subject string
	// Body is a format string receiving the ticket number and the current number.
	Body string
}

func DefaultTemplate() Template {
	return Template{Subject: defaultSubject, Body: defaultBody}
}

type Link struct {
	ReservationID int64  `json:"reservationId"`
	TicketNo      int    `json:"ticketNo"`
	Email         string `json:"email"`
	Href          string `json:"href"`
}

// Build returns the compose link for one reservation.
func (t Template) Build(reservation models.Reservation, currentNumber int) Link {
	subject := t.Subject
	if subject == "" {
		subject = defaultSubject
	}
	body := t.Body
	if body == "" {
		body = defaultBody
	}
	query := "subject=" + escape(subject) + "&body=" + escape(fmt.Sprintf(body, reservation.TicketNo, currentNumber))
	href := (&url.URL{Scheme: "mailto", Opaque: reservation.Email, RawQuery: query}).String()
	return Link{
		ReservationID: reservation.ID,
		TicketNo:      reservation.TicketNo,
		Email:         reservation.Email,
		Href:          href,
	}
}

func (t Template) BuildAll(reservations []models.Reservation, currentNumber int) []Link {
	links := make([]Link, 0, len(reservations))
	for _, reservation := range reservations {
		if reservation.Email == "" {
			continue
		}
		links = append(links, t.Build(reservation, currentNumber))
	}
	return links
}

// escape percent-encodes for RFC 6068; mail clients do not decode '+'.
func escape(value string) string {
	return strings.ReplaceAll(url.QueryEscape(value), "+", "%20")
}
