// Package cron drives scheduled engine invocations.
package cron

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"watchpost/engine"
)

type Scheduler struct {
	cron   *cron.Cron
	runner *engine.Runner

	// CycleTimeout caps one scheduled invocation. Zero means unbounded,
	// matching manual runs.
	CycleTimeout time.Duration
}

func New(runner *engine.Runner) *Scheduler {
	return &Scheduler{cron: cron.New(), runner: runner}
}

// Schedule registers the engine run under a cron spec (e.g. "@every 1m").
func (s *Scheduler) Schedule(spec string) error {
	_, err := s.cron.AddFunc(spec, s.runOnce)
	return err
}

func (s *Scheduler) runOnce() {
	ctx := context.Background()
	if s.CycleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.CycleTimeout)
		defer cancel()
	}

	start := time.Now()
	sum, err := s.runner.Run(ctx, engine.Filter{})
	if err != nil {
		log.Printf("cron: scheduled run failed: %v", err)
		return
	}
	log.Printf("cron: ran %d checks in %s (%d ok, %d warning, %d failed, %d skipped, %d alerts, %d suppressed)",
		sum.Total, time.Since(start).Round(time.Millisecond),
		sum.Success, sum.Warning, sum.Failed, sum.Skipped,
		sum.AlertsCreated, sum.AlertsSuppressed)
}

func (s *Scheduler) Start() {
	s.cron.Start()
	log.Println("cron: scheduler started")
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("cron: scheduler stopped")
}
