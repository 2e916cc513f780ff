// Package supervisor keeps the consumer pipeline alive. The consumer surfaces
// unrecoverable run errors instead of retrying forever; this package owns the
// restart policy so crash loops back off instead of hammering the brokers.
package supervisor

import (
	"context"
	"math/rand"
	"sync"
	"time"

	domrepo "IndiStream/internal/domain/repository"
	"IndiStream/pkg/logger"
)

// Consumer is the supervised unit: a blocking run loop plus lag introspection.
// Run returning nil means a deliberate stop; any error triggers a restart.
type Consumer interface {
	Run(ctx context.Context) error
	Lag() int64
}

type Config struct {
	// Restart delays are drawn uniformly from [0, min(cap, base*2^attempt)],
	// the full-jitter schedule. Base defaults to 1s, cap to 30s.
	BackoffBase time.Duration
	BackoffCap  time.Duration

	// A run that stayed up at least this long resets the attempt counter, so
	// a crash after hours of service restarts quickly again. Default 1m.
	StableReset time.Duration

	// Lag polling feeds the consumer lag gauge; crossing the warn threshold
	// logs. Zero interval disables polling.
	LagPollInterval  time.Duration
	LagWarnThreshold int64

	// Topic labels the lag gauge.
	Topic string
}

// Status is a point-in-time view for the ops endpoint.
type Status struct {
	Running   bool   `json:"running"`
	Restarts  int    `json:"restarts"`
	LastError string `json:"last_error,omitempty"`
	Lag       int64  `json:"consumer_lag"`
}

type Supervisor struct {
	cfg      Config
	consumer Consumer
	metrics  domrepo.Metrics
	log      *logger.Logger

	mu       sync.Mutex
	running  bool
	restarts int
	lastErr  error
}

func New(consumer Consumer, cfg Config, metrics domrepo.Metrics, log *logger.Logger) *Supervisor {
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = time.Second
	}
	if cfg.BackoffCap < cfg.BackoffBase {
		cfg.BackoffCap = 30 * time.Second
	}
	if cfg.StableReset <= 0 {
		cfg.StableReset = time.Minute
	}
	return &Supervisor{cfg: cfg, consumer: consumer, metrics: metrics, log: log}
}

// Run supervises the consumer until ctx is canceled or the consumer stops
// cleanly on its own. It never returns the consumer's error; the whole point
// is to absorb failures and keep the pipeline up.
func (s *Supervisor) Run(ctx context.Context) error {
	if s.cfg.LagPollInterval > 0 {
		go s.pollLag(ctx)
	}

	attempt := 0
	for {
		started := time.Now()
		s.setRunning(true)
		err := s.consumer.Run(ctx)
		s.setRunning(false)

		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			return nil
		}

		attempt = nextAttempt(attempt, time.Since(started), s.cfg.StableReset)
		delay := fullJitter(s.cfg.BackoffBase, s.cfg.BackoffCap, attempt)

		s.mu.Lock()
		s.restarts++
		s.lastErr = err
		restarts := s.restarts
		s.mu.Unlock()

		s.log.Error("pipeline run failed, restarting",
			logger.Int("attempt", attempt),
			logger.Int("total_restarts", restarts),
			logger.Duration("delay", delay),
			logger.Error(err))

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}
}

// Status reports restart history and current lag.
func (s *Supervisor) Status() Status {
	lag := s.consumer.Lag()

	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		Running:  s.running,
		Restarts: s.restarts,
		Lag:      lag,
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}

func (s *Supervisor) setRunning(v bool) {
	s.mu.Lock()
	s.running = v
	s.mu.Unlock()
}

func (s *Supervisor) pollLag(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.LagPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		lag := s.consumer.Lag()
		s.metrics.SetConsumerLag(s.cfg.Topic, lag)
		if s.cfg.LagWarnThreshold > 0 && lag > s.cfg.LagWarnThreshold {
			s.log.Warn("consumer lag above threshold",
				logger.String("topic", s.cfg.Topic),
				logger.Int64("lag", lag),
				logger.Int64("threshold", s.cfg.LagWarnThreshold))
		}
	}
}

// nextAttempt advances the crash counter, starting over after a stable run.
func nextAttempt(prev int, uptime, stableReset time.Duration) int {
	if uptime >= stableReset {
		return 1
	}
	return prev + 1
}

// fullJitter draws uniformly from [0, min(cap, base*2^(attempt-1))]. The full
// range, not just the top half: simultaneous restarts across instances spread
// out instead of synchronizing.
func fullJitter(base, max time.Duration, attempt int) time.Duration {
	ceiling := base << uint(attempt-1)
	if ceiling > max || ceiling < base {
		ceiling = max
	}
	return time.Duration(rand.Int63n(int64(ceiling) + 1))
}
