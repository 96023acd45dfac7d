package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"courtbooking/internal/db"
	"courtbooking/internal/mq"
	"courtbooking/internal/repository"

	"github.com/robfig/cron/v3"
)

type JobService struct {
	Repo   repository.ReservationCompleter
	Events EventPublisher
	Now    func() time.Time
}

func NewJobService(repo repository.ReservationCompleter, events EventPublisher) *JobService {
	return &JobService{Repo: repo, Events: events, Now: time.Now}
}

// CompleteEndedReservations moves confirmed reservations whose end time has
// passed to completed.
func (s *JobService) CompleteEndedReservations(ctx context.Context) (int64, error) {
	now := s.Now().UTC()
	ids, err := s.Repo.EndedReservationIDs(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("cron job: failed to get ended reservations: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	n, err := s.Repo.UpdateReservationStatuses(ctx, ids, db.StatusCompleted, now)
	if err != nil {
		return 0, fmt.Errorf("cron job: failed to update reservation statuses: %w", err)
	}
	slog.Info("cron job: reservations completed", "count", n)
	for _, id := range ids {
		if err := s.Events.Publish(ctx, mq.EventBookingCompleted, id, map[string]string{"reservationId": id}); err != nil {
			slog.Warn("event publish failed", "event", mq.EventBookingCompleted, "correlation_id", id, "error", err)
		}
	}
	return n, nil
}

// Schedule registers the completion job on c with a cron schedule such as
// "@every 5m".
func (s *JobService) Schedule(c *cron.Cron, schedule string) error {
	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := s.CompleteEndedReservations(ctx); err != nil {
			slog.Error("cron job failed", "error", err)
		}
	})
	return err
}
