package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"log"
	"net/smtp"

	"github.com/example/tourdesk/internal/config"
)

const mailTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><title>{{.Subject}}</title></head>
<body style="margin: 0; padding: 0; font-family: Arial, sans-serif; background-color: #f5f5f5;">
  <div style="max-width: 600px; margin: 0 auto; background-color: #ffffff;">
    <div style="background: linear-gradient(to right, #3b82f6, #4f46e5); color: white; padding: 20px; text-align: center;">
      <h1 style="margin: 0;">Tourdesk</h1>
      <p style="margin: 10px 0 0 0;">{{.Subject}}</p>
    </div>
    <div style="padding: 30px; color: #333;">
      <p style="font-size: 16px;">Dear {{.Trip.Name}},</p>
      <p>{{.Lead}}</p>
      <div style="background-color: #f8f9fa; padding: 20px; border-radius: 5px; margin: 20px 0;">
        <p><strong>Trip Details:</strong></p>
        <ul style="list-style: none; padding: 0;">
          <li style="margin-bottom: 10px;">Tour Type: {{.Trip.TourType}}</li>
          <li style="margin-bottom: 10px;">Starting Point: {{.Trip.From}}</li>
          <li style="margin-bottom: 10px;">Destination: {{.Trip.To}}</li>
          <li style="margin-bottom: 10px;">Departure Time: {{.Trip.DepartureTime.Format "Mon, 02 Jan 2006 15:04"}}</li>
        </ul>
      </div>
      <p>Please arrive five minutes before your scheduled departure time. Your guide will be waiting at the starting location.</p>
    </div>
  </div>
</body>
</html>`

var mailTmpl = template.Must(template.New("mail").Parse(mailTemplate))

// Mailer sends participant email over SMTP.
type Mailer struct {
	cfg  config.SMTPConfig
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewMailer returns a mailer for the given SMTP settings.
func NewMailer(cfg config.SMTPConfig) *Mailer {
	return &Mailer{cfg: cfg, send: smtp.SendMail}
}

func (m *Mailer) TripConfirmation(trip Trip) {
	m.deliver("Booking Confirmation", "Thank you for booking a guided tour. Your booking has been confirmed with the following details:", trip)
}

func (m *Mailer) TripActivated(trip Trip) {
	m.deliver("Your Tour Is Departing", "Your guide has been dispatched. Your tour is starting with the following details:", trip)
}

// ToursExpired is an ops concern; the mailer only talks to participants.
func (m *Mailer) ToursExpired(count int) {}

func (m *Mailer) deliver(subject, lead string, trip Trip) {
	if trip.Email == "" {
		log.Printf("notify: no email address for %q, skipping %s", trip.Name, subject)
		return
	}

	body, err := m.render(subject, lead, trip)
	if err != nil {
		log.Printf("notify: render mail for %s: %v", trip.Email, err)
		return
	}

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	var auth smtp.Auth
	if m.cfg.User != "" {
		auth = smtp.PlainAuth("", m.cfg.User, m.cfg.Password, m.cfg.Host)
	}
	if err := m.send(addr, auth, m.cfg.From, []string{trip.Email}, body); err != nil {
		log.Printf("notify: send mail to %s: %v", trip.Email, err)
	}
}

func (m *Mailer) render(subject, lead string, trip Trip) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", m.cfg.From)
	fmt.Fprintf(&buf, "To: %s\r\n", trip.Email)
	fmt.Fprintf(&buf, "Subject: %s\r\n", subject)
	buf.WriteString("MIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n")

	err := mailTmpl.Execute(&buf, struct {
		Subject string
		Lead    string
		Trip    Trip
	}{subject, lead, trip})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
