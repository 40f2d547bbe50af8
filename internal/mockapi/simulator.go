package mockapi

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nshruti113/netguard-dashboard/internal/detection"
	"github.com/nshruti113/netguard-dashboard/internal/logging"
	"github.com/nshruti113/netguard-dashboard/internal/models"
)

type SimulatorOptions struct {
	FlowsPerTick int
	// Chance in percent that a tick carries the next attack of the sequence
	AttackPercent int
	// Owner is the user id stamped on generated alerts
	Owner string
	Seed  int64
}

// Simulator feeds the store with generated traffic and the alerts the
// detector raises on it.
type Simulator struct {
	store    *Store
	gen      *Generator
	detector *detection.Detector
	opts     SimulatorOptions
	log      *logrus.Entry

	mu   sync.Mutex
	dice *rand.Rand
	next int
}

// TickResult reports what one tick added
type TickResult struct {
	Attack string
	Flows  int
	Alerts []models.Alert
}

func NewSimulator(store *Store, opts SimulatorOptions) *Simulator {
	if opts.Seed == 0 {
		opts.Seed = time.Now().UnixNano()
	}
	return &Simulator{
		store:    store,
		gen:      NewGenerator(opts.Seed),
		detector: detection.NewDetector(),
		opts:     opts,
		log:      logging.GetLogger().WithField("component", "simulator"),
		dice:     rand.New(rand.NewSource(opts.Seed + 1)),
	}
}

// Tick generates one batch of normal traffic, possibly with an attack
func (s *Simulator) Tick(now time.Time) TickResult {
	s.mu.Lock()
	attack := ""
	if s.opts.AttackPercent > 0 && s.dice.Intn(100) < s.opts.AttackPercent {
		attack = AttackSequence[s.next%len(AttackSequence)]
		s.next++
	}
	s.mu.Unlock()
	return s.Inject(attack, now)
}

// Inject runs a tick with the given attack scenario; empty means none
func (s *Simulator) Inject(attack string, now time.Time) TickResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch := make([]models.NetworkFlow, 0, s.opts.FlowsPerTick)
	for i := 0; i < s.opts.FlowsPerTick; i++ {
		batch = append(batch, s.gen.NormalFlow(now))
	}
	if attack != "" {
		batch = append(batch, s.gen.Attack(attack, now)...)
		s.log.WithField("attack", attack).Info("Injecting attack traffic")
	}
	s.store.AddFlows(batch...)

	result := TickResult{Attack: attack, Flows: len(batch)}
	if attack == "" {
		s.detector.Learn(batch)
		return result
	}

	for _, f := range s.detector.Analyze(batch) {
		a := f.Alert(s.opts.Owner)
		result.Alerts = append(result.Alerts, a)
		s.log.WithFields(logrus.Fields{
			"attack_type": f.AttackType,
			"confidence":  f.Confidence,
			"sources":     len(f.Sources),
		}).Warn("Attack detected: " + f.Description)
	}
	s.store.AddAlerts(result.Alerts...)
	return result
}

// Run ticks until ctx is done
func (s *Simulator) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.WithFields(logrus.Fields{
		"interval":       interval,
		"flows_per_tick": s.opts.FlowsPerTick,
		"attack_percent": s.opts.AttackPercent,
	}).Info("Traffic simulator started")

	for {
		select {
		case <-ctx.Done():
			s.log.Info("Traffic simulator stopped")
			return
		case now := <-ticker.C:
			r := s.Tick(now.UTC())
			s.log.WithFields(logrus.Fields{
				"flows":  r.Flows,
				"alerts": len(r.Alerts),
			}).Debug("Tick")
		}
	}
}
