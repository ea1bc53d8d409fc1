package server

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/gorhill/cronexpr"
	"github.com/redis/go-redis/v9"

	"github.com/influo/discovery/internal/discovery"
)

// Sweeper evicts stale generated batches from the discovery cache on a cron
// schedule. The redis lock keeps a multi-instance deployment down to one
// sweep per due window; without redis the sweeper still runs locally.
type Sweeper struct {
	Cache    *discovery.DiscoveryCache
	Rdb      *redis.Client
	CronSpec string
	BatchTTL time.Duration
	Stop     chan struct{}
	Logger   *log.Logger

	instanceID string
	lastRun    *time.Time
}

func (s *Sweeper) Start() {
	if s.Logger == nil {
		s.Logger = log.New(log.Writer(), "[SWEEP] ", log.LstdFlags)
	}
	s.instanceID = uuid.NewString()
	ticker := time.NewTicker(time.Minute)
	go func() {
		for {
			select {
			case <-s.Stop:
				ticker.Stop()
				return
			case <-ticker.C:
				s.tick()
			}
		}
	}()
}

func (s *Sweeper) tick() {
	if !isDue(s.CronSpec, s.lastRun) {
		return
	}
	ctx := context.Background()
	if s.Rdb != nil {
		ok, err := s.Rdb.SetNX(ctx, "discovery:sweep:lock", s.instanceID, 2*time.Minute).Result()
		if err != nil {
			s.Logger.Printf("sweep lock error: %v", err)
			return
		}
		if !ok {
			return
		}
		defer s.Rdb.Del(ctx, "discovery:sweep:lock")
	}

	now := time.Now()
	s.lastRun = &now
	if n := s.Cache.Sweep(s.BatchTTL); n > 0 {
		s.Logger.Printf("evicted %d stale batches", n)
	}
}

// isDue determines whether the sweep should run now given the last run time.
// Supports "@daily", "@hourly", and standard 5-field cron expressions.
func isDue(cronSpec string, last *time.Time) bool {
	now := time.Now()
	switch cronSpec {
	case "@daily":
		if last == nil {
			return true
		}
		return now.Sub(*last) >= 24*time.Hour
	case "@hourly":
		if last == nil {
			return true
		}
		return now.Sub(*last) >= time.Hour
	default:
		expr, err := cronexpr.Parse(cronSpec)
		if err != nil {
			if last == nil {
				return true
			}
			return now.Sub(*last) >= time.Hour
		}
		if last == nil {
			return true
		}
		return !expr.Next(*last).After(now)
	}
}
