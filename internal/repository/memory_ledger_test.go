package repository

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"courtbooking/internal/db"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

func slot(court string, fromMin, toMin int) *db.Reservation {
	return &db.Reservation{
		UserID:    "u",
		VenueID:   "v",
		CourtID:   court,
		StartTime: base.Add(time.Duration(fromMin) * time.Minute),
		EndTime:   base.Add(time.Duration(toMin) * time.Minute),
		Status:    db.StatusConfirmed,
	}
}

func TestMemoryLedger_OverlapRules(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name     string
		existing *db.Reservation
		incoming *db.Reservation
		wantErr  error
	}{
		{"touching after", slot("c1", 0, 60), slot("c1", 60, 120), nil},
		{"touching before", slot("c1", 60, 120), slot("c1", 0, 60), nil},
		{"partial overlap", slot("c1", 0, 60), slot("c1", 30, 90), ErrSlotConflict},
		{"contained", slot("c1", 0, 120), slot("c1", 30, 60), ErrSlotConflict},
		{"identical", slot("c1", 0, 60), slot("c1", 0, 60), ErrSlotConflict},
		{"other court", slot("c1", 0, 60), slot("c2", 0, 60), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewMemoryLedger()
			require.NoError(t, l.CommitReservation(ctx, tt.existing))
			err := l.CommitReservation(ctx, tt.incoming)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMemoryLedger_CancelledDoesNotBlock(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()
	first := slot("c1", 0, 60)
	require.NoError(t, l.CommitReservation(ctx, first))
	require.NoError(t, l.TransitionStatus(ctx, first.ID, db.StatusConfirmed, db.StatusCancelled, base))

	assert.NoError(t, l.CommitReservation(ctx, slot("c1", 0, 60)))
	assert.ErrorIs(t, l.TransitionStatus(ctx, first.ID, db.StatusConfirmed, db.StatusCancelled, base), ErrStatusChanged)
}

func TestMemoryLedger_ConcurrentCommitsOneWinner(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()
	const n = 50

	var wins, conflicts atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			// Every candidate overlaps every other one.
			r := slot("c1", i%30, 60+i%30)
			r.UserID = fmt.Sprintf("user-%d", i)
			switch err := l.CommitReservation(ctx, r); err {
			case nil:
				wins.Add(1)
			case ErrSlotConflict:
				conflicts.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(n-1), conflicts.Load())
	got, err := l.FindOverlapping(ctx, "c1", base, base.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestMemoryLedger_PaidCommitIsAtomic(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()
	pay := func() *db.PaymentRecord {
		return &db.PaymentRecord{Provider: db.ProviderStripe, CorrelationID: "pi_1", Status: db.PaymentSucceeded}
	}

	first := slot("c1", 0, 60)
	require.NoError(t, l.CommitPaidReservation(ctx, first, pay()))

	// Same correlation on a free slot: nothing is written.
	err := l.CommitPaidReservation(ctx, slot("c1", 120, 180), pay())
	assert.ErrorIs(t, err, ErrDuplicatePayment)
	got, _ := l.FindOverlapping(ctx, "c1", base.Add(2*time.Hour), base.Add(3*time.Hour))
	assert.Empty(t, got)

	// Conflicting slot with a new correlation: no payment row.
	p2 := &db.PaymentRecord{Provider: db.ProviderStripe, CorrelationID: "pi_2"}
	assert.ErrorIs(t, l.CommitPaidReservation(ctx, slot("c1", 30, 90), p2), ErrSlotConflict)
	_, err = l.GetPaymentByCorrelation(ctx, db.ProviderStripe, "pi_2")
	assert.ErrorIs(t, err, ErrNotFound)

	rec, err := l.GetPaymentByCorrelation(ctx, db.ProviderStripe, "pi_1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, rec.ReservationID)
}

func TestMemoryLedger_IncidentsAreKeyedByCorrelation(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()
	inc := &db.PaymentIncident{Provider: db.ProviderRazorpay, CorrelationID: "order_1", Status: db.IncidentOpen}

	stored, created, err := l.SaveIncident(ctx, inc)
	require.NoError(t, err)
	assert.True(t, created)

	again, created, err := l.SaveIncident(ctx, &db.PaymentIncident{Provider: db.ProviderRazorpay, CorrelationID: "order_1"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, stored.ID, again.ID)

	require.NoError(t, l.MarkIncidentRefunded(ctx, stored.ID))
	assert.ErrorIs(t, l.MarkIncidentRefunded(ctx, stored.ID), ErrStatusChanged)

	open, err := l.ListIncidents(ctx, db.IncidentOpen)
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestMemoryLedger_CompletesEnded(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()
	past := slot("c1", 0, 60)
	future := slot("c1", 600, 660)
	require.NoError(t, l.CommitReservation(ctx, past))
	require.NoError(t, l.CommitReservation(ctx, future))

	now := base.Add(2 * time.Hour)
	ids, err := l.EndedReservationIDs(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, []string{past.ID}, ids)

	n, err := l.UpdateReservationStatuses(ctx, ids, db.StatusCompleted, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := l.GetReservation(ctx, past.ID)
	require.NoError(t, err)
	assert.Equal(t, db.StatusCompleted, got.Status)
}
