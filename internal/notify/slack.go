package notify

import (
	"fmt"
	"log"

	slackapi "github.com/slack-go/slack"

	"github.com/example/tourdesk/internal/config"
)

// SlackNotifier posts dispatch events to an ops channel via incoming
// webhook. Participant-facing channels stay on email; this is for the
// operators watching the guide fleet.
type SlackNotifier struct {
	cfg  config.SlackConfig
	post func(url string, msg *slackapi.WebhookMessage) error
}

// NewSlackNotifier returns a notifier for the given webhook settings.
func NewSlackNotifier(cfg config.SlackConfig) *SlackNotifier {
	return &SlackNotifier{cfg: cfg, post: slackapi.PostWebhook}
}

func (s *SlackNotifier) TripConfirmation(trip Trip) {}

func (s *SlackNotifier) TripActivated(trip Trip) {
	s.deliver(fmt.Sprintf("Tour departing: %s → %s at %s (%s, %s)",
		trip.From, trip.To, trip.DepartureTime.Format("15:04"), trip.TourType, trip.Name))
}

func (s *SlackNotifier) ToursExpired(count int) {
	if count == 0 {
		return
	}
	s.deliver(fmt.Sprintf("Maintenance sweep expired %d tour(s) past their departure time", count))
}

func (s *SlackNotifier) deliver(text string) {
	msg := &slackapi.WebhookMessage{
		Channel: s.cfg.Channel,
		Text:    text,
	}
	if err := s.post(s.cfg.WebhookURL, msg); err != nil {
		log.Printf("notify: slack webhook: %v", err)
	}
}
