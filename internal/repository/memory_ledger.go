package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"courtbooking/internal/db"

	"github.com/google/uuid"
)

// MemoryLedger keeps everything in process. The overlap check and the insert
// for a court run under that court's mutex, so commits on different courts
// do not wait on each other.
type MemoryLedger struct {
	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	mu           sync.RWMutex
	reservations map[string]*db.Reservation
	byCourt      map[string][]string
	payments     map[string]*db.PaymentRecord // provider|correlation
	orders       map[string]*db.PaymentOrder
	incidents    map[string]*db.PaymentIncident
	incidentKeys map[string]string // provider|correlation -> id
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		locks:        make(map[string]*sync.Mutex),
		reservations: make(map[string]*db.Reservation),
		byCourt:      make(map[string][]string),
		payments:     make(map[string]*db.PaymentRecord),
		orders:       make(map[string]*db.PaymentOrder),
		incidents:    make(map[string]*db.PaymentIncident),
		incidentKeys: make(map[string]string),
	}
}

func correlationKey(provider, correlationID string) string {
	return provider + "|" + correlationID
}

func (m *MemoryLedger) courtLock(courtID string) *sync.Mutex {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()
	l, ok := m.locks[courtID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[courtID] = l
	}
	return l
}

// conflictsLocked reports a confirmed overlap on the court. Callers hold mu.
func (m *MemoryLedger) conflictsLocked(courtID string, start, end time.Time) bool {
	for _, id := range m.byCourt[courtID] {
		r := m.reservations[id]
		if r.Status == db.StatusConfirmed && r.Overlaps(start, end) {
			return true
		}
	}
	return false
}

func (m *MemoryLedger) CommitReservation(ctx context.Context, res *db.Reservation) error {
	return m.CommitPaidReservation(ctx, res, nil)
}

func (m *MemoryLedger) CommitPaidReservation(ctx context.Context, res *db.Reservation, pay *db.PaymentRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l := m.courtLock(res.CourtID)
	l.Lock()
	defer l.Unlock()

	m.mu.RLock()
	conflict := m.conflictsLocked(res.CourtID, res.StartTime, res.EndTime)
	m.mu.RUnlock()
	if conflict {
		return ErrSlotConflict
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if pay != nil {
		if _, dup := m.payments[correlationKey(pay.Provider, pay.CorrelationID)]; dup {
			return ErrDuplicatePayment
		}
	}
	if res.ID == "" {
		res.ID = uuid.NewString()
	}
	stored := *res
	m.reservations[res.ID] = &stored
	m.byCourt[res.CourtID] = append(m.byCourt[res.CourtID], res.ID)
	if pay != nil {
		if pay.ID == "" {
			pay.ID = uuid.NewString()
		}
		pay.ReservationID = res.ID
		p := *pay
		m.payments[correlationKey(pay.Provider, pay.CorrelationID)] = &p
	}
	return nil
}

func (m *MemoryLedger) FindOverlapping(_ context.Context, courtID string, start, end time.Time) ([]db.Reservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []db.Reservation
	for _, id := range m.byCourt[courtID] {
		r := m.reservations[id]
		if r.Status == db.StatusConfirmed && r.Overlaps(start, end) {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (m *MemoryLedger) GetReservation(_ context.Context, id string) (*db.Reservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.reservations[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *r
	return &out, nil
}

func (m *MemoryLedger) ListReservationsByUser(_ context.Context, userID, status string) ([]db.Reservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []db.Reservation
	for _, r := range m.reservations {
		if r.UserID == userID && (status == "" || r.Status == status) {
			out = append(out, *r)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (m *MemoryLedger) ListReservations(_ context.Context, f ReservationFilter) ([]db.Reservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []db.Reservation
	for _, r := range m.reservations {
		if f.CourtID != "" && r.CourtID != f.CourtID {
			continue
		}
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		if f.Date != "" && r.StartTime.UTC().Format("2006-01-02") != f.Date {
			continue
		}
		out = append(out, *r)
	}
	sortNewestFirst(out)
	return out, nil
}

func sortNewestFirst(rs []db.Reservation) {
	sort.Slice(rs, func(i, j int) bool { return rs[i].StartTime.After(rs[j].StartTime) })
}

func (m *MemoryLedger) TransitionStatus(_ context.Context, id, from, to string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reservations[id]
	if !ok || r.Status != from {
		return ErrStatusChanged
	}
	r.Status = to
	r.UpdatedAt = at
	return nil
}

func (m *MemoryLedger) EndedReservationIDs(_ context.Context, now time.Time) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []string
	for id, r := range m.reservations {
		if r.Status == db.StatusConfirmed && r.EndTime.Before(now) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *MemoryLedger) UpdateReservationStatuses(_ context.Context, ids []string, newStatus string, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, id := range ids {
		if r, ok := m.reservations[id]; ok && r.Status == db.StatusConfirmed {
			r.Status = newStatus
			r.UpdatedAt = at
			n++
		}
	}
	return n, nil
}

func (m *MemoryLedger) GetPaymentByCorrelation(_ context.Context, provider, correlationID string) (*db.PaymentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.payments[correlationKey(provider, correlationID)]
	if !ok {
		return nil, ErrNotFound
	}
	out := *p
	return &out, nil
}

func (m *MemoryLedger) SaveOrder(_ context.Context, o *db.PaymentOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *o
	m.orders[o.OrderID] = &stored
	return nil
}

func (m *MemoryLedger) GetOrder(_ context.Context, orderID string) (*db.PaymentOrder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[orderID]
	if !ok {
		return nil, ErrNotFound
	}
	out := *o
	return &out, nil
}

func (m *MemoryLedger) SaveIncident(_ context.Context, inc *db.PaymentIncident) (*db.PaymentIncident, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := correlationKey(inc.Provider, inc.CorrelationID)
	if id, ok := m.incidentKeys[key]; ok {
		out := *m.incidents[id]
		return &out, false, nil
	}
	if inc.ID == "" {
		inc.ID = uuid.NewString()
	}
	stored := *inc
	m.incidents[inc.ID] = &stored
	m.incidentKeys[key] = inc.ID
	return inc, true, nil
}

func (m *MemoryLedger) GetIncident(_ context.Context, id string) (*db.PaymentIncident, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inc, ok := m.incidents[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *inc
	return &out, nil
}

func (m *MemoryLedger) GetIncidentByCorrelation(ctx context.Context, provider, correlationID string) (*db.PaymentIncident, error) {
	m.mu.RLock()
	id, ok := m.incidentKeys[correlationKey(provider, correlationID)]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return m.GetIncident(ctx, id)
}

func (m *MemoryLedger) ListIncidents(_ context.Context, status string) ([]db.PaymentIncident, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []db.PaymentIncident
	for _, inc := range m.incidents {
		if status == "" || inc.Status == status {
			out = append(out, *inc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryLedger) MarkIncidentRefunded(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inc, ok := m.incidents[id]
	if !ok || inc.Status != db.IncidentOpen {
		return ErrStatusChanged
	}
	inc.Status = db.IncidentRefunded
	return nil
}
