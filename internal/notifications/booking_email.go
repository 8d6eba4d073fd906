package notifications

import (
	"bytes"
	"text/template"

	"tivrox-backend/internal/bookings"
)

const bookingAdminTemplate = `New consultation request received:

Booking ID: {{.ID}}
Name: {{.FullName}}
Email: {{.Email}}
Phone: {{.Phone}}
Service: {{.Service}}
Project Deadline: {{or .ProjectDeadline "Not specified"}}
Project Description: {{.ProjectDescription}}
{{- with .WebsiteType}}
Website Type: {{.}}{{end}}
{{- with .Platform}}
Platform: {{.}}{{end}}
{{- with .VideoType}}
Video Type: {{.}}{{end}}
{{- with .DesignType}}
Design Type: {{.}}{{end}}

Submitted at: {{.CreatedAt}}
IP Address: {{or .IPAddress "Unknown"}}
`

const bookingClientTemplate = `Dear {{.FullName}},

Thank you for submitting your consultation request for {{.Service}}.

We have received your request and our team will review it shortly. You can expect to hear back from us within 24 hours.

Your Booking Details:
- Service: {{.Service}}
- Project Deadline: {{or .ProjectDeadline "Not specified"}}
- Booking ID: {{.ID}}

If you have any questions or need immediate assistance, please feel free to reach out to us.

Best regards,
TIVROX Team
`

const bookingTelegramTemplate = `New booking {{.ID}}
{{.FullName}} <{{.Email}}>, {{.Phone}}
Service: {{.Service}}`

var (
	bookingAdminTmpl    = template.Must(template.New("booking_admin").Parse(bookingAdminTemplate))
	bookingClientTmpl   = template.Must(template.New("booking_client").Parse(bookingClientTemplate))
	bookingTelegramTmpl = template.Must(template.New("booking_telegram").Parse(bookingTelegramTemplate))
)

// bookingView flattens optional fields so templates can test them directly.
type bookingView struct {
	ID                 string
	FullName           string
	Email              string
	Phone              string
	Service            string
	ProjectDeadline    string
	ProjectDescription string
	WebsiteType        string
	Platform           string
	VideoType          string
	DesignType         string
	CreatedAt          string
	IPAddress          string
}

func newBookingView(b bookings.Booking) bookingView {
	return bookingView{
		ID:                 b.ID,
		FullName:           b.FullName,
		Email:              b.Email,
		Phone:              b.Phone,
		Service:            b.Service,
		ProjectDeadline:    value(b.ProjectDeadline),
		ProjectDescription: b.ProjectDescription,
		WebsiteType:        value(b.WebsiteType),
		Platform:           value(b.Platform),
		VideoType:          value(b.VideoType),
		DesignType:         value(b.DesignType),
		CreatedAt:          b.CreatedAt,
		IPAddress:          b.IPAddress,
	}
}

func value(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func render(tmpl *template.Template, b bookings.Booking) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, newBookingView(b)); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func buildAdminMessage(to string, b bookings.Booking) (Message, error) {
	body, err := render(bookingAdminTmpl, b)
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      to,
		Subject: "New Consultation Request - " + b.Service,
		Text:    body,
	}, nil
}

func buildClientMessage(b bookings.Booking) (Message, error) {
	body, err := render(bookingClientTmpl, b)
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      b.Email,
		ToName:  b.FullName,
		Subject: "Consultation Request Received - TIVROX",
		Text:    body,
	}, nil
}

func buildTelegramText(b bookings.Booking) (string, error) {
	return render(bookingTelegramTmpl, b)
}
