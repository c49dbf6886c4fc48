package mailto

import (
	"net/url"
	"strings"
	"testing"

	"hauntq/internal/models"
)

func TestBuildLink(t *testing.T) {
	link := DefaultTemplate().Build(models.Reservation{ID: 7, TicketNo: 12, Email: "guest@example.com"}, 10)

	if !strings.HasPrefix(link.Href, "mailto:guest@example.com?") {
		t.Fatalf("unexpected href: %s", link.Href)
	}
	if strings.Contains(link.Href, "+") {
		t.Fatalf("expected spaces encoded as %%20, got %s", link.Href)
	}
	parsed, err := url.Parse(link.Href)
	if err != nil {
		t.Fatalf("parse href: %v", err)
	}
	query, err := url.ParseQuery(parsed.RawQuery)
	if err != nil {
		t.Fatalf("parse query: %v", err)
	}
	if query.Get("subject") != defaultSubject {
		t.Fatalf("unexpected subject: %q", query.Get("subject"))
	}
	body := query.Get("body")
	if !strings.Contains(body, "12") || !strings.Contains(body, "10") {
		t.Fatalf("expected ticket and current number in body, got %q", body)
	}
	if link.ReservationID != 7 || link.TicketNo != 12 {
		t.Fatalf("unexpected link metadata: %+v", link)
	}
}

func TestBuildAllSkipsMissingEmail(t *testing.T) {
	links := Template{Subject: "Now calling", Body: "Ticket %d (now %d)"}.BuildAll([]models.Reservation{
		{ID: 1, TicketNo: 3, Email: "a@example.com"},
		{ID: 2, TicketNo: 4},
		{ID: 3, TicketNo: 5, Email: "c@example.com"},
	}, 3)
	if len(links) != 2 {
		t.Fatalf("expected 2 links, got %d", len(links))
	}
	if !strings.Contains(links[1].Href, "Ticket%205%20%28now%203%29") {
		t.Fatalf("unexpected body encoding: %s", links[1].Href)
	}
}
