// Package atmosphere generates ambient world messages on a jittered timer.
package atmosphere

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/rockfordlhotka/Mordecai/internal/config"
	"github.com/rockfordlhotka/Mordecai/internal/game/message"
)

// Messages is the fixed pool of ambient strings. One is chosen uniformly at
// random per cycle.
var Messages = [8]string{
	"Thunder rumbles somewhere far to the west.",
	"A cold wind rattles the shutters and moves on.",
	"Rain begins to patter softly against the rooftops.",
	"An owl calls once, then falls silent.",
	"The ground trembles faintly beneath your feet.",
	"Clouds drift across the moon, dimming the light.",
	"A distant bell tolls the hour.",
	"The smell of woodsmoke drifts past on the breeze.",
}

// PresenceReader reports who is online. The scheduler uses only this public
// contract, never internal registry state.
type PresenceReader interface {
	ListOnlinePlayerNames() []string
}

// AmbientDeliverer accepts system-wide ambient messages.
type AmbientDeliverer interface {
	DeliverAmbient(msg message.Message)
}

// Scheduler runs a background loop that periodically delivers an ambient
// message when at least one player is online. The loop survives isolated
// failures with a fixed backoff and exits only when its context is cancelled.
type Scheduler struct {
	logger      *zap.Logger
	cfg         config.AtmosphereConfig
	presence    PresenceReader
	broadcaster AmbientDeliverer
}

// NewScheduler creates a Scheduler.
//
// Precondition: logger, presence, and broadcaster must be non-nil;
// cfg must satisfy config validation (base > jitter >= 0, backoff > 0).
func NewScheduler(logger *zap.Logger, cfg config.AtmosphereConfig, presence PresenceReader, broadcaster AmbientDeliverer) *Scheduler {
	return &Scheduler{
		logger:      logger,
		cfg:         cfg,
		presence:    presence,
		broadcaster: broadcaster,
	}
}

// Run executes the scheduler loop until ctx is cancelled. No message is
// generated after cancellation is observed.
func (s *Scheduler) Run(ctx context.Context) {
	interval := s.nextInterval()
	if s.cfg.FirstInterval > 0 {
		interval = s.cfg.FirstInterval
	}

	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("atmosphere scheduler stopped")
			return
		case <-timer.C:
			if err := s.emit(); err != nil {
				s.logger.Error("atmosphere generation failed, backing off",
					zap.Duration("backoff", s.cfg.FailureBackoff),
					zap.Error(err),
				)
				timer.Reset(s.cfg.FailureBackoff)
				continue
			}
			timer.Reset(s.nextInterval())
		}
	}
}

// emit performs one generation cycle. A panic in a collaborator is converted
// to an error so the loop can back off and continue.
func (s *Scheduler) emit() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("atmosphere cycle panicked: %v", r)
		}
	}()

	if len(s.presence.ListOnlinePlayerNames()) == 0 {
		return nil
	}

	content := Messages[rand.IntN(len(Messages))]
	s.broadcaster.DeliverAmbient(message.New(message.KindAtmosphere, message.AuthorNature, content))
	s.logger.Debug("ambient message delivered", zap.String("content", content))
	return nil
}

// nextInterval returns the base interval varied uniformly by up to ±jitter,
// inclusive on both ends.
func (s *Scheduler) nextInterval() time.Duration {
	if s.cfg.Jitter <= 0 {
		return s.cfg.BaseInterval
	}
	spread := 2*int64(s.cfg.Jitter) + 1
	return s.cfg.BaseInterval - s.cfg.Jitter + time.Duration(rand.Int64N(spread))
}
