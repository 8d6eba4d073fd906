package notifications

import (
	"strings"
	"testing"

	"tivrox-backend/internal/bookings"
)

func sampleBooking() bookings.Booking {
	platform := "Both"
	return bookings.Booking{
		ID:                 "7d1c6a2e-1111-4c1e-9a57-5f3d1c0b2a10",
		FullName:           "Ravi Kumar",
		Email:              "ravi@example.com",
		Phone:              "+91-9876543210",
		Service:            "Mobile App Development",
		ProjectDescription: "Food delivery app",
		Platform:           &platform,
		Status:             bookings.StatusNew,
		CreatedAt:          "2025-03-04T10:00:00.000000Z",
		IPAddress:          "203.0.113.7",
	}
}

func TestBuildAdminMessage(t *testing.T) {
	msg, err := buildAdminMessage("admin@tivrox.example", sampleBooking())
	if err != nil {
		t.Fatalf("build error: %v", err)
	}
	if msg.Subject != "New Consultation Request - Mobile App Development" {
		t.Fatalf("unexpected subject %q", msg.Subject)
	}
	for _, want := range []string{
		"Booking ID: 7d1c6a2e-1111-4c1e-9a57-5f3d1c0b2a10",
		"Name: Ravi Kumar",
		"Project Deadline: Not specified",
		"Project Description: Food delivery app\nPlatform: Both\n\nSubmitted at: 2025-03-04T10:00:00.000000Z",
		"IP Address: 203.0.113.7",
	} {
		if !strings.Contains(msg.Text, want) {
			t.Fatalf("admin body missing %q:\n%s", want, msg.Text)
		}
	}
	if strings.Contains(msg.Text, "Website Type") || strings.Contains(msg.Text, "Video Type") {
		t.Fatalf("absent service fields must be omitted:\n%s", msg.Text)
	}
}

func TestBuildAdminMessageUnknownIP(t *testing.T) {
	b := sampleBooking()
	b.IPAddress = ""
	msg, _ := buildAdminMessage("admin@tivrox.example", b)
	if !strings.Contains(msg.Text, "IP Address: Unknown") {
		t.Fatalf("expected Unknown ip:\n%s", msg.Text)
	}
}

func TestBuildClientMessage(t *testing.T) {
	b := sampleBooking()
	deadline := "2025-06-01"
	b.ProjectDeadline = &deadline

	msg, err := buildClientMessage(b)
	if err != nil {
		t.Fatalf("build error: %v", err)
	}
	if msg.To != "ravi@example.com" || msg.ToName != "Ravi Kumar" {
		t.Fatalf("unexpected recipient %q %q", msg.To, msg.ToName)
	}
	for _, want := range []string{"Dear Ravi Kumar,", "within 24 hours", "- Project Deadline: 2025-06-01", "- Booking ID: " + b.ID} {
		if !strings.Contains(msg.Text, want) {
			t.Fatalf("client body missing %q:\n%s", want, msg.Text)
		}
	}
	if strings.Contains(msg.Text, b.IPAddress) {
		t.Fatalf("client email must not include the ip address")
	}
}

func TestTemplatesDoNotEscapeText(t *testing.T) {
	b := sampleBooking()
	b.FullName = "O'Brien & Sons"
	msg, _ := buildClientMessage(b)
	if !strings.Contains(msg.Text, "Dear O'Brien & Sons,") {
		t.Fatalf("plain-text body was escaped:\n%s", msg.Text)
	}
}
