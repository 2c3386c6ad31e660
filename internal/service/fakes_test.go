package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/interfix/helpdesk/internal/directory"
	"github.com/interfix/helpdesk/internal/domain"
	"github.com/interfix/helpdesk/internal/events"
	"github.com/interfix/helpdesk/internal/repository"
)

var testNow = time.Date(2025, 5, 6, 12, 0, 0, 0, time.UTC)

type fakeTickets struct {
	mu      sync.Mutex
	nextID  int64
	tickets map[int64]domain.Ticket
	filters []repository.TicketFilter
}

func newFakeTickets() *fakeTickets {
	return &fakeTickets{tickets: map[int64]domain.Ticket{}}
}

func (f *fakeTickets) Create(_ context.Context, t *domain.Ticket) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	t.ID = f.nextID
	if t.CreatedAt.IsZero() {
		t.CreatedAt = testNow
	}
	t.UpdatedAt = testNow
	f.tickets[t.ID] = *t
	return nil
}

func (f *fakeTickets) Update(_ context.Context, t *domain.Ticket) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.tickets[t.ID]; !ok {
		return pgx.ErrNoRows
	}
	f.tickets[t.ID] = *t
	return nil
}

func (f *fakeTickets) GetByID(_ context.Context, id int64) (*domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &t, nil
}

func (f *fakeTickets) GetByExternalKey(_ context.Context, key string) (*domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tickets {
		if t.ExternalKey == key {
			return &t, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeTickets) ListWithFilter(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filters = append(f.filters, filter)
	out := make([]domain.Ticket, 0, len(f.tickets))
	for id := int64(1); id <= f.nextID; id++ {
		if t, ok := f.tickets[id]; ok {
			out = append(out, t)
		}
	}
	return out, int64(len(out)), nil
}

func (f *fakeTickets) Stats(_ context.Context) (*domain.TicketStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stats := &domain.TicketStats{ByStatus: map[domain.TicketStatus]int64{}, ByPriority: map[domain.TicketPriority]int64{}}
	for _, t := range f.tickets {
		stats.Total++
		stats.ByStatus[t.Status]++
		stats.ByPriority[t.Priority]++
	}
	return stats, nil
}

type fakeUsers struct {
	mu    sync.Mutex
	users map[int64]domain.User
}

func newFakeUsers(users ...domain.User) *fakeUsers {
	f := &fakeUsers{users: map[int64]domain.User{}}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeUsers) Create(_ context.Context, u *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u.ID = int64(len(f.users) + 100)
	f.users[u.ID] = *u
	return nil
}

func (f *fakeUsers) Update(_ context.Context, u *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[u.ID] = *u
	return nil
}

func (f *fakeUsers) GetByID(_ context.Context, id int64) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &u, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, pgx.ErrNoRows
}

type fakeContestations struct {
	mu      sync.Mutex
	nextID  int64
	records map[int64]domain.ContestationRecord
}

func newFakeContestations() *fakeContestations {
	return &fakeContestations{records: map[int64]domain.ContestationRecord{}}
}

func (f *fakeContestations) Create(_ context.Context, c *domain.ContestationRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	c.ID = f.nextID
	c.CreatedAt = testNow
	f.records[c.ID] = *c
	return nil
}

func (f *fakeContestations) Update(_ context.Context, c *domain.ContestationRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.records[c.ID]; !ok {
		return pgx.ErrNoRows
	}
	f.records[c.ID] = *c
	return nil
}

func (f *fakeContestations) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.records[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(f.records, id)
	return nil
}

func (f *fakeContestations) GetByID(_ context.Context, id int64) (*domain.ContestationRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.records[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &c, nil
}

func (f *fakeContestations) ListByTicket(_ context.Context, ticketID int64) ([]domain.ContestationRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.ContestationRecord
	for id := f.nextID; id >= 1; id-- {
		if c, ok := f.records[id]; ok && c.TicketID == ticketID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeContestations) List(_ context.Context, limit, offset int) ([]domain.ContestationRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.ContestationRecord
	for id := f.nextID; id >= 1; id-- {
		if c, ok := f.records[id]; ok {
			out = append(out, c)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeResolver map[string]int64

func (f fakeResolver) ResolveID(_ context.Context, email string) (int64, error) {
	if id, ok := f[email]; ok {
		return id, nil
	}
	return 0, directory.ErrNotFound
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) subscribe(d events.Dispatcher, types ...events.EventType) {
	for _, t := range types {
		d.Subscribe(t, func(_ context.Context, ev events.Event) error {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.events = append(r.events, ev)
			return nil
		})
	}
}

func (r *recorder) all() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Event(nil), r.events...)
}

func ptr[T any](v T) *T { return &v }
