package table

import (
	"sort"
	"time"

	"github.com/robfig/cron/v3"
)

// SweepConfig carries the sweeper thresholds (spec §4.1 defaults).
type SweepConfig struct {
	DescriptorAge time.Duration
	RequestAge    time.Duration
	DescriptorCap int
	RequestCap    int
	Interval      time.Duration
}

// DefaultSweepConfig returns the spec-mandated defaults: descriptor age 5
// minutes, request age 10 minutes, descriptor cap 10000, request cap 1000,
// sweep interval 1 minute.
func DefaultSweepConfig() SweepConfig {
	return SweepConfig{
		DescriptorAge: 5 * time.Minute,
		RequestAge:    10 * time.Minute,
		DescriptorCap: 10000,
		RequestCap:    1000,
		Interval:      time.Minute,
	}
}

// Sweep removes zero-refcount entries older than the descriptor age
// threshold, request entries older than the request age threshold, and if
// population exceeds the configured caps, additionally removes the oldest
// zero-refcount entries until under the cap.
func (t *Table) Sweep(cfg SweepConfig) {
	t.mu.Lock()
	now := time.Now()

	type aged struct {
		rid     int32
		created time.Time
	}
	var descriptors, requests []aged

	for rid, e := range t.entries {
		if e.refs > 0 {
			continue
		}
		age := now.Sub(e.created)
		if e.kind == KindRequest {
			if age > cfg.RequestAge {
				delete(t.entries, rid)
				continue
			}
			requests = append(requests, aged{rid, e.created})
			continue
		}
		if age > cfg.DescriptorAge {
			delete(t.entries, rid)
			continue
		}
		descriptors = append(descriptors, aged{rid, e.created})
	}

	if cfg.DescriptorCap > 0 && len(descriptors) > cfg.DescriptorCap {
		sort.Slice(descriptors, func(i, j int) bool { return descriptors[i].created.Before(descriptors[j].created) })
		excess := len(descriptors) - cfg.DescriptorCap
		for i := 0; i < excess; i++ {
			delete(t.entries, descriptors[i].rid)
		}
	}
	if cfg.RequestCap > 0 && len(requests) > cfg.RequestCap {
		sort.Slice(requests, func(i, j int) bool { return requests[i].created.Before(requests[j].created) })
		excess := len(requests) - cfg.RequestCap
		for i := 0; i < excess; i++ {
			delete(t.entries, requests[i].rid)
		}
	}

	t.mu.Unlock()
}

// Sweeper drives periodic Table.Sweep calls on a cron schedule.
type Sweeper struct {
	table   *Table
	cfg     SweepConfig
	cron    *cron.Cron
	OnSweep func(reclaimed int)
}

// NewSweeper returns a Sweeper bound to t. Call Start to begin ticking.
func NewSweeper(t *Table, cfg SweepConfig) *Sweeper {
	return &Sweeper{table: t, cfg: cfg, cron: cron.New()}
}

// Start schedules the periodic sweep at cfg.Interval using a simple
// "@every" cron spec.
func (s *Sweeper) Start() error {
	spec := "@every " + s.cfg.Interval.String()
	_, err := s.cron.AddFunc(spec, func() {
		before := s.table.Len()
		s.table.Sweep(s.cfg)
		if s.OnSweep != nil {
			s.OnSweep(before - s.table.Len())
		}
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop halts the periodic sweep, waiting for any in-flight tick to finish.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
