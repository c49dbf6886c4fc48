package main

import (
	"bytes"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"hauntq/internal/callstate"
	"hauntq/internal/httpapi"
	"hauntq/internal/logging"
	"hauntq/internal/store/memory"
)

func newService(t *testing.T) *httptest.Server {
	t.Helper()
	auth, err := httpapi.NewAuthenticator(httpapi.AuthOptions{Secret: "test-secret", Password: "letmein"})
	if err != nil {
		t.Fatalf("authenticator: %v", err)
	}
	calls := callstate.NewService(memory.NewStore(), callstate.Options{Location: time.FixedZone("JST", 9*60*60)})
	handler := httpapi.NewHandler(memory.NewStore(), calls, auth, httpapi.Options{Logger: logging.Discard()})
	server := httptest.NewServer(httpapi.AuthMiddleware(auth, handler.Routes()))
	t.Cleanup(server.Close)
	return server
}

func TestRunIssuesTicket(t *testing.T) {
	server := newService(t)
	var out bytes.Buffer
	args := []string{"--url", server.URL, "--email", "guest@example.com", "--count", "3", "--age", "大学生"}
	for i := 0; i < 2; i++ {
		out.Reset()
		if err := run(args, &out); err != nil {
			t.Fatalf("run: %v", err)
		}
	}
	text := out.String()
	if !strings.Contains(text, "Ticket #2 issued") {
		t.Fatalf("expected second ticket, got:\n%s", text)
	}
	if !strings.Contains(text, "1 parties ahead") {
		t.Fatalf("expected parties ahead line, got:\n%s", text)
	}
}

func TestRunRejectsInvalidInput(t *testing.T) {
	server := newService(t)
	var out bytes.Buffer
	err := run([]string{"--url", server.URL, "--email", "not-an-email"}, &out)
	if err == nil || !strings.Contains(err.Error(), "validation_error") {
		t.Fatalf("expected validation error, got %v", err)
	}
	if err := run([]string{"--url", server.URL}, &out); err == nil {
		t.Fatalf("expected missing email error")
	}
}

func TestRunWritesTicketPDFAndQR(t *testing.T) {
	server := newService(t)
	path := filepath.Join(t.TempDir(), "ticket.pdf")
	var out bytes.Buffer
	if err := run([]string{"--url", server.URL, "--email", "guest@example.com", "--qr", "--pdf", path}, &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.ContainsRune(out.String(), '█') {
		t.Fatalf("expected terminal QR in output")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read pdf: %v", err)
	}
	if !bytes.HasPrefix(raw, []byte("%PDF-")) {
		t.Fatalf("expected PDF file")
	}
}
