/*
scheduler.go - Automated overdue installment scanner

PURPOSE:
  Periodically counts unpaid installments past their due date and
  publishes the figure via structured logs and the metrics gauge.
  Gives operators a standing view of portfolio delinquency without
  polling the API.

DESIGN:
  - cron-driven, schedule configurable via standard cron expression
  - each run counts overdue installments as of the engine's clock
  - failures are logged and retried on the next tick

USAGE:
  scanner := NewOverdueScanner(lendsvc, log, m, "@hourly")
  if err := scanner.Start(); err != nil { ... }
  // ... later
  scanner.Stop()

SEE ALSO:
  - lending/service.go: CountOverdueInstallments
  - metrics/metrics.go: overdue gauge
*/
package api

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/warp/loan-engine/lending"
	"github.com/warp/loan-engine/metrics"
)

// OverdueScanner runs a periodic sweep over unpaid installments.
type OverdueScanner struct {
	lending  *lending.Service
	log      *logrus.Logger
	metrics  *metrics.Metrics
	schedule string

	cron *cron.Cron
}

// NewOverdueScanner creates a scanner on the given cron schedule
// (e.g. "@hourly" or "0 * * * *").
func NewOverdueScanner(lendsvc *lending.Service, log *logrus.Logger, m *metrics.Metrics, schedule string) *OverdueScanner {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &OverdueScanner{
		lending:  lendsvc,
		log:      log,
		metrics:  m,
		schedule: schedule,
	}
}

// Start registers the sweep job and begins the cron loop. The first
// sweep runs immediately so the gauge is populated at startup.
func (s *OverdueScanner) Start() error {
	s.cron = cron.New()
	if _, err := s.cron.AddFunc(s.schedule, s.sweep); err != nil {
		return err
	}
	s.cron.Start()
	s.log.WithField("schedule", s.schedule).Info("overdue scanner started")

	go s.sweep()
	return nil
}

// Stop halts the cron loop. Does not wait for an in-flight sweep.
func (s *OverdueScanner) Stop() {
	if s.cron != nil {
		s.cron.Stop()
		s.log.Info("overdue scanner stopped")
	}
}

func (s *OverdueScanner) sweep() {
	count, err := s.lending.CountOverdueInstallments(context.Background())
	if err != nil {
		s.log.WithError(err).Warn("overdue sweep failed")
		return
	}

	s.metrics.SetOverdueInstallments(count)
	s.log.WithField("overdue_installments", count).Info("overdue sweep complete")
}
