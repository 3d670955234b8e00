// Package aws sends stock alerts through SNS and SES.
package aws

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotConfigured  = errors.New("NOTIFIER_NOT_CONFIGURED")
	ErrNoChannel      = errors.New("NO_NOTIFICATION_CHANNEL")
	ErrAllSendsFailed = errors.New("NOTIFICATION_SEND_FAILED")
)

// Sender is one delivery channel.
type Sender interface {
	Channel() string
	Send(ctx context.Context, subject, body string) (string, error)
}

// Delivery records what one channel did with an alert.
type Delivery struct {
	Channel   string
	MessageID string
	Err       error
}

// Notifier fans an alert out to every configured channel.
type Notifier struct {
	senders []Sender
}

func NewNotifier(senders ...Sender) *Notifier {
	return &Notifier{senders: senders}
}

func (n *Notifier) Channels() []string {
	out := make([]string, len(n.senders))
	for i, s := range n.senders {
		out[i] = s.Channel()
	}
	return out
}

// Notify sends through every channel. It fails only when no channel is
// configured or all of them fail; partial failures are reported per delivery.
func (n *Notifier) Notify(ctx context.Context, subject, body string) ([]Delivery, error) {
	if len(n.senders) == 0 {
		return nil, ErrNoChannel
	}

	deliveries := make([]Delivery, 0, len(n.senders))
	var failures []string
	for _, s := range n.senders {
		id, err := s.Send(ctx, subject, body)
		deliveries = append(deliveries, Delivery{Channel: s.Channel(), MessageID: id, Err: err})
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", s.Channel(), err))
		}
	}
	if len(failures) == len(n.senders) {
		return deliveries, fmt.Errorf("%w: %s", ErrAllSendsFailed, strings.Join(failures, "; "))
	}
	return deliveries, nil
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
