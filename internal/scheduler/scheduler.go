package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/screenfund/backend/internal/config"
	"github.com/screenfund/backend/internal/services"
)

// Scheduler drives the periodic engines: matching passes, allocation
// grace sweeps, waitlist expiry, campaign expiry and payout sweeps.
// Each loop runs independently so a slow settlement sweep never delays
// a matching pass.
type Scheduler struct {
	cfg       config.Config
	log       *slog.Logger
	matching  *services.MatchingService
	allocs    *services.AllocationService
	waitlist  *services.WaitlistService
	campaigns *services.CampaignService
	settle    *services.SettlementService
}

func New(cfg config.Config, log *slog.Logger,
	matching *services.MatchingService,
	allocs *services.AllocationService,
	waitlist *services.WaitlistService,
	campaigns *services.CampaignService,
	settle *services.SettlementService,
) *Scheduler {
	return &Scheduler{
		cfg: cfg, log: log,
		matching: matching, allocs: allocs, waitlist: waitlist,
		campaigns: campaigns, settle: settle,
	}
}

// Run blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	go s.every(ctx, s.cfg.MatchInterval, "matching_pass", func(ctx context.Context) error {
		results, err := s.matching.RunPass(ctx)
		if err == nil && len(results) > 0 {
			s.log.Info("matching pass", "matched", len(results))
		}
		return err
	})

	// Grace sweep interval is a fraction of the window itself so an
	// allocation never lingers long past its deadline.
	go s.every(ctx, sweepInterval(s.cfg.GraceWindow), "allocation_grace_sweep", func(ctx context.Context) error {
		n, err := s.allocs.ExpireStale(ctx, s.cfg.GraceWindow)
		if err == nil && n > 0 {
			s.log.Info("allocations expired", "count", n)
		}
		return err
	})

	go s.every(ctx, sweepInterval(s.cfg.WaitlistTTL), "waitlist_expiry_sweep", func(ctx context.Context) error {
		n, err := s.waitlist.ExpireStale(ctx, s.cfg.WaitlistTTL)
		if err == nil && n > 0 {
			s.log.Info("waitlist entries expired", "count", n)
		}
		return err
	})

	go s.every(ctx, time.Hour, "campaign_expiry_sweep", func(ctx context.Context) error {
		n, err := s.campaigns.ExpireCampaigns(ctx)
		if err == nil && n > 0 {
			s.log.Info("campaigns expired", "count", n)
		}
		return err
	})

	go s.every(ctx, s.cfg.SettleInterval, "settlement_sweep", func(ctx context.Context) error {
		return s.settle.SweepAll(ctx)
	})

	<-ctx.Done()
}

func (s *Scheduler) every(ctx context.Context, interval time.Duration, name string, fn func(context.Context) error) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := fn(ctx); err != nil && ctx.Err() == nil {
				s.log.Error(name, "err", err)
			}
		}
	}
}

// sweepInterval caps how often TTL sweeps run: a tenth of the window,
// clamped between one minute and one hour.
func sweepInterval(window time.Duration) time.Duration {
	iv := window / 10
	if iv < time.Minute {
		return time.Minute
	}
	if iv > time.Hour {
		return time.Hour
	}
	return iv
}
