package service

import "github.com/sahaj-pos/core/internal/domain"

// Publisher fans events out to subscribed terminals. Implementations must
// never block and never fail the mutation that triggered the event;
// satisfied by *ws.Hub.
type Publisher interface {
	Publish(ev domain.Event)
}

// NopPublisher discards events. Used when no hub is wired, and in tests that
// don't assert on broadcasts.
type NopPublisher struct{}

func (NopPublisher) Publish(domain.Event) {}
