package memory

import (
	"cmp"
	"context"
	"slices"

	"github.com/spec-kit/clinic-crm/internal/domain"
	"github.com/spec-kit/clinic-crm/internal/repository"
)

func sortBy[T any, K cmp.Ordered](items []T, key func(T) K) {
	slices.SortFunc(items, func(a, b T) int { return cmp.Compare(key(a), key(b)) })
}

func page[T any](items []T, limit, offset int) []T {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	end := min(offset+limit, len(items))
	return items[offset:end]
}

type pharmacyRepo struct {
	s  *Store
	tx bool
}

func (r pharmacyRepo) Create(_ context.Context, record *domain.PharmacyRecord) error {
	defer r.s.lockWrite(r.tx)()
	now := r.s.now()
	record.ID = r.s.nextID()
	record.CreatedAt, record.UpdatedAt = now, now
	r.s.data.pharmacy[record.ID] = *record
	return nil
}

func (r pharmacyRepo) Update(_ context.Context, record *domain.PharmacyRecord) error {
	defer r.s.lockWrite(r.tx)()
	existing, ok := r.s.data.pharmacy[record.ID]
	if !ok {
		return repository.ErrNotFound
	}
	record.CreatedAt = existing.CreatedAt
	record.UpdatedAt = r.s.now()
	r.s.data.pharmacy[record.ID] = *record
	return nil
}

func (r pharmacyRepo) Delete(_ context.Context, id int64) error {
	defer r.s.lockWrite(r.tx)()
	if _, ok := r.s.data.pharmacy[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.data.pharmacy, id)
	return nil
}

func (r pharmacyRepo) GetByID(_ context.Context, id int64) (*domain.PharmacyRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	record, ok := r.s.data.pharmacy[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &record, nil
}

// GetByIDForUpdate needs no row lock here: WithinTx already serializes writers.
func (r pharmacyRepo) GetByIDForUpdate(ctx context.Context, id int64) (*domain.PharmacyRecord, error) {
	return r.GetByID(ctx, id)
}

func (r pharmacyRepo) List(_ context.Context, limit, offset int) ([]domain.PharmacyRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	records := make([]domain.PharmacyRecord, 0, len(r.s.data.pharmacy))
	for _, record := range r.s.data.pharmacy {
		records = append(records, record)
	}
	sortBy(records, func(p domain.PharmacyRecord) int64 { return -p.ID })
	return page(records, limit, offset), nil
}

type appointmentRepo struct {
	s  *Store
	tx bool
}

func (r appointmentRepo) Create(_ context.Context, appt *domain.Appointment) error {
	defer r.s.lockWrite(r.tx)()
	now := r.s.now()
	appt.ID = r.s.nextID()
	appt.CreatedAt, appt.UpdatedAt = now, now
	r.s.data.appts[appt.ID] = *appt
	return nil
}

func (r appointmentRepo) Update(_ context.Context, appt *domain.Appointment) error {
	defer r.s.lockWrite(r.tx)()
	existing, ok := r.s.data.appts[appt.ID]
	if !ok {
		return repository.ErrNotFound
	}
	appt.CreatedAt = existing.CreatedAt
	appt.UpdatedAt = r.s.now()
	r.s.data.appts[appt.ID] = *appt
	return nil
}

func (r appointmentRepo) Delete(_ context.Context, id int64) error {
	defer r.s.lockWrite(r.tx)()
	if _, ok := r.s.data.appts[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.data.appts, id)
	return nil
}

func (r appointmentRepo) GetByID(_ context.Context, id int64) (*domain.Appointment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	appt, ok := r.s.data.appts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &appt, nil
}

func (r appointmentRepo) GetByIDForUpdate(ctx context.Context, id int64) (*domain.Appointment, error) {
	return r.GetByID(ctx, id)
}

func (r appointmentRepo) List(_ context.Context, limit, offset int) ([]domain.Appointment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	appts := make([]domain.Appointment, 0, len(r.s.data.appts))
	for _, appt := range r.s.data.appts {
		appts = append(appts, appt)
	}
	slices.SortFunc(appts, func(a, b domain.Appointment) int {
		if c := b.ScheduledAt.Compare(a.ScheduledAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return page(appts, limit, offset), nil
}

type incentiveRepo struct {
	s  *Store
	tx bool
}

func (r incentiveRepo) GetBySource(_ context.Context, ref domain.SourceRef) (*domain.Incentive, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	inc, ok := r.s.data.incentives[ref]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &inc, nil
}

func (r incentiveRepo) Upsert(_ context.Context, inc *domain.Incentive) error {
	defer r.s.lockWrite(r.tx)()
	now := r.s.now()
	ref := inc.Ref()
	if existing, ok := r.s.data.incentives[ref]; ok {
		inc.ID = existing.ID
		inc.CreatedAt = existing.CreatedAt
	} else {
		inc.ID = r.s.nextID()
		inc.CreatedAt = now
	}
	inc.UpdatedAt = now
	r.s.data.incentives[ref] = *inc
	return nil
}

func (r incentiveRepo) DeleteBySource(_ context.Context, ref domain.SourceRef) (bool, error) {
	defer r.s.lockWrite(r.tx)()
	if _, ok := r.s.data.incentives[ref]; !ok {
		return false, nil
	}
	delete(r.s.data.incentives, ref)
	return true, nil
}
