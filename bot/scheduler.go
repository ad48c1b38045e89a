package bot

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	sweepInterval    = 60 * time.Second
	rolloverInterval = 10 * time.Minute
	presenceInterval = 30 * time.Minute
)

// BotProvider defines the methods the scheduler needs from the Bot.
type BotProvider interface {
	SweepConfirmations() int
	RolloverUsage(ctx context.Context) bool
	UpdatePresence() error
}

// Scheduler manages all scheduled tasks.
type Scheduler struct {
	bot  BotProvider
	log  *zap.Logger
	done chan struct{}
	wg   sync.WaitGroup

	sweepEvery    time.Duration
	rolloverEvery time.Duration
	presenceEvery time.Duration
}

// NewScheduler creates a new scheduler.
func NewScheduler(bot BotProvider, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		bot:           bot,
		log:           log.Named("scheduler"),
		done:          make(chan struct{}),
		sweepEvery:    sweepInterval,
		rolloverEvery: rolloverInterval,
		presenceEvery: presenceInterval,
	}
}

// Start begins all scheduled tasks.
func (s *Scheduler) Start() {
	s.wg.Add(3)
	go s.every(s.sweepEvery, s.sweep)
	go s.every(s.rolloverEvery, s.rollover)
	go s.every(s.presenceEvery, s.presence)
}

// Stop terminates all scheduled tasks and waits for them.
func (s *Scheduler) Stop() {
	s.log.Info("stopping scheduler")
	close(s.done)
	s.wg.Wait()
	s.log.Info("scheduler stopped")
}

func (s *Scheduler) every(d time.Duration, job func()) {
	defer s.wg.Done()
	ticker := time.NewTicker(d)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			job()
		case <-s.done:
			return
		}
	}
}

func (s *Scheduler) sweep() {
	n := s.bot.SweepConfirmations()
	if n > 0 {
		s.log.Debug("swept expired confirmations", zap.Int("removed", n))
	}
}

func (s *Scheduler) rollover() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if s.bot.RolloverUsage(ctx) {
		s.log.Info("usage counters rolled over to a new day")
	}
}

func (s *Scheduler) presence() {
	if err := s.bot.UpdatePresence(); err != nil {
		s.log.Warn("failed to update presence", zap.Error(err))
	}
}
