package session

import (
	"context"
	"log"
	"time"
)

// Sweeper periodically reaps idle sessions. A single ticker covers every
// session instead of one timer per session.
type Sweeper struct {
	manager  *Manager
	interval time.Duration
	ttl      time.Duration

	// onExpire, when set, receives the sessions torn down by each sweep so
	// the transport can notify still-connected clients.
	onExpire func([]*EndedSession)
}

// NewSweeper creates a sweeper over the given manager.
func NewSweeper(manager *Manager, interval, ttl time.Duration, onExpire func([]*EndedSession)) *Sweeper {
	return &Sweeper{
		manager:  manager,
		interval: interval,
		ttl:      ttl,
		onExpire: onExpire,
	}
}

// Run sweeps on every tick until the context is canceled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ended := s.manager.Sweep(time.Now(), s.ttl)
			if len(ended) > 0 {
				log.Printf("Swept %d expired sessions", len(ended))
				if s.onExpire != nil {
					s.onExpire(ended)
				}
			}
		}
	}
}
