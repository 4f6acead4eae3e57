package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mhaustein/ipamd/internal/log"
	"github.com/mhaustein/ipamd/internal/model"
	"github.com/mhaustein/ipamd/internal/registry"
	"github.com/mhaustein/ipamd/internal/report"
	"github.com/mhaustein/ipamd/internal/storage"
)

// Scheduler periodically sweeps the inventory: it snapshots every VLAN's
// utilization for trend history and warns about zones with overdue
// firewall checks.
type Scheduler struct {
	cron     *cron.Cron
	pool     *Pool
	store    storage.Store
	registry *registry.Registry
	reporter *report.Reporter
	schedule string
}

// NewScheduler creates a scheduler that runs the audit sweep on the
// given cron schedule (standard 5-field syntax, e.g. "0 * * * *").
func NewScheduler(store storage.Store, reg *registry.Registry, reporter *report.Reporter, pool *Pool, schedule string) *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		pool:     pool,
		store:    store,
		registry: reg,
		reporter: reporter,
		schedule: schedule,
	}
}

// Start registers the sweep and starts the cron loop.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.Sweep); err != nil {
		return fmt.Errorf("invalid audit schedule %q: %w", s.schedule, err)
	}
	s.cron.Start()
	log.Info("Audit scheduler started", "schedule", s.schedule)
	return nil
}

// Stop stops the cron loop and waits for a running sweep to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Audit scheduler stopped")
}

// Sweep snapshots utilization for every active VLAN and logs zones whose
// firewall check is overdue. Snapshot jobs fan out over the worker pool;
// a failing VLAN never blocks the others.
func (s *Scheduler) Sweep() {
	started := time.Now()

	vlans, err := s.store.ListVLANs(nil)
	if err != nil {
		log.Error("Audit sweep failed to list vlans", "error", err)
		return
	}

	for _, v := range vlans {
		vlanID, vlanTag := v.ID, v.Tag
		err := s.pool.Submit(Job{
			ID: fmt.Sprintf("utilization-snapshot-%d", vlanTag),
			Handler: func(ctx context.Context) error {
				return s.snapshotVLAN(vlanID, vlanTag)
			},
		})
		if err != nil {
			log.Warn("Audit sweep could not submit snapshot job", "vlan_tag", vlanTag, "error", err)
		}
	}

	rep, err := s.reporter.Compliance(time.Now().UTC())
	if err != nil {
		log.Error("Audit sweep failed to build compliance report", "error", err)
		return
	}
	for _, e := range rep.Entries {
		if !e.Overdue {
			continue
		}
		log.Warn("Zone firewall check overdue",
			"zone", e.ZoneName,
			"classification", e.Classification,
			"overdue_days", e.OverdueDays)
	}

	log.Info("Audit sweep completed",
		"vlans", len(vlans),
		"overdue_zones", rep.OverdueZones,
		"duration", time.Since(started))
}

func (s *Scheduler) snapshotVLAN(vlanID string, vlanTag int) error {
	u, err := s.registry.Utilization(vlanID)
	if err != nil {
		return fmt.Errorf("computing utilization for vlan %d: %w", vlanTag, err)
	}

	return s.store.SaveUtilizationSnapshot(&model.UtilizationSnapshot{
		VLANID:          vlanID,
		VLANTag:         vlanTag,
		AssignableCount: u.AssignableCount,
		AssignedCount:   u.AssignedCount,
		Percentage:      u.Percentage,
		TakenAt:         time.Now().UTC(),
	})
}
