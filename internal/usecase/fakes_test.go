package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/SameeraMS/BusTracking-Backend/internal/core/domain"
	"github.com/SameeraMS/BusTracking-Backend/internal/repository"
)

// fakeSessionRepo is an in-memory port.SessionRepository.
type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]domain.Session
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]domain.Session)}
}

func (r *fakeSessionRepo) Create(_ context.Context, session domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.ID] = session
	return nil
}

func (r *fakeSessionRepo) Get(_ context.Context, sessionID string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[sessionID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := session
	return &copy, nil
}

func (r *fakeSessionRepo) GetByDevice(_ context.Context, deviceID string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *domain.Session
	for _, session := range r.sessions {
		if session.DeviceID != deviceID {
			continue
		}
		if latest == nil || session.CreatedAt.After(latest.CreatedAt) {
			copy := session
			latest = &copy
		}
	}
	if latest == nil {
		return nil, repository.ErrNotFound
	}
	return latest, nil
}

func (r *fakeSessionRepo) GetActiveByDriver(_ context.Context, driverID string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, session := range r.sessions {
		if session.DriverID == driverID && session.IsActive {
			copy := session
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeSessionRepo) Touch(_ context.Context, sessionID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[sessionID]
	if !ok {
		return repository.ErrNotFound
	}
	session.Touch(at)
	r.sessions[sessionID] = session
	return nil
}

func (r *fakeSessionRepo) RecordLocation(_ context.Context, sessionID string, point domain.GeoPoint, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[sessionID]
	if !ok {
		return repository.ErrNotFound
	}
	session.RecordLocation(point, at)
	r.sessions[sessionID] = session
	return nil
}

func (r *fakeSessionRepo) Deactivate(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[sessionID]
	if !ok {
		return repository.ErrNotFound
	}
	session.IsActive = false
	r.sessions[sessionID] = session
	return nil
}

func (r *fakeSessionRepo) DeactivateExpired(_ context.Context, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for id, session := range r.sessions {
		if session.IsActive && session.Expired(now) {
			session.IsActive = false
			r.sessions[id] = session
			count++
		}
	}
	return count, nil
}

func (r *fakeSessionRepo) ListActive(_ context.Context) ([]domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Session
	for _, session := range r.sessions {
		if session.IsActive {
			out = append(out, session)
		}
	}
	return out, nil
}

func (r *fakeSessionRepo) ListStale(_ context.Context, cutoff time.Time) ([]domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Session
	for _, session := range r.sessions {
		if !session.IsActive {
			continue
		}
		if session.LastLocationUpdate != nil && session.LastLocationUpdate.Before(cutoff) {
			out = append(out, session)
		}
	}
	return out, nil
}

// fakeLocationRepo is an in-memory port.LocationRepository that records
// insert order for ordering assertions.
type fakeLocationRepo struct {
	mu          sync.Mutex
	byDriver    map[string][]domain.LocationFix
	insertOrder []time.Time
	insertGate  chan struct{}
	insertErr   error
}

func newFakeLocationRepo() *fakeLocationRepo {
	return &fakeLocationRepo{byDriver: make(map[string][]domain.LocationFix)}
}

func (r *fakeLocationRepo) Insert(_ context.Context, fix domain.LocationFix) error {
	if r.insertGate != nil {
		<-r.insertGate
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		return r.insertErr
	}
	r.byDriver[fix.DriverID] = append(r.byDriver[fix.DriverID], fix)
	r.insertOrder = append(r.insertOrder, fix.Timestamp)
	return nil
}

func (r *fakeLocationRepo) Latest(_ context.Context, driverID string) (*domain.LocationFix, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fixes := r.byDriver[driverID]
	if len(fixes) == 0 {
		return nil, repository.ErrNotFound
	}
	latest := fixes[0]
	for _, fix := range fixes[1:] {
		if fix.Timestamp.After(latest.Timestamp) {
			latest = fix
		}
	}
	return &latest, nil
}

func (r *fakeLocationRepo) History(_ context.Context, driverID string, limit int) ([]domain.LocationFix, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fixes := append([]domain.LocationFix(nil), r.byDriver[driverID]...)
	sort.Slice(fixes, func(i, j int) bool { return fixes[i].Timestamp.Before(fixes[j].Timestamp) })
	if limit > 0 && len(fixes) > limit {
		fixes = fixes[len(fixes)-limit:]
	}
	return fixes, nil
}

func (r *fakeLocationRepo) LatestPerDriver(_ context.Context, cutoff time.Time, statuses []domain.FixStatus) ([]domain.LocationFix, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	allowed := make(map[domain.FixStatus]bool, len(statuses))
	for _, s := range statuses {
		allowed[s] = true
	}
	var out []domain.LocationFix
	for driverID := range r.byDriver {
		fixes := r.byDriver[driverID]
		if len(fixes) == 0 {
			continue
		}
		latest := fixes[0]
		for _, fix := range fixes[1:] {
			if fix.Timestamp.After(latest.Timestamp) {
				latest = fix
			}
		}
		if latest.Timestamp.After(cutoff) && allowed[latest.Status] {
			out = append(out, latest)
		}
	}
	return out, nil
}

func (r *fakeLocationRepo) LatestByBus(_ context.Context, busID string) (*domain.LocationFix, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *domain.LocationFix
	for _, fixes := range r.byDriver {
		for i := range fixes {
			fix := fixes[i]
			if fix.BusID != busID {
				continue
			}
			if latest == nil || fix.Timestamp.After(latest.Timestamp) {
				latest = &fix
			}
		}
	}
	if latest == nil {
		return nil, repository.ErrNotFound
	}
	return latest, nil
}

func (r *fakeLocationRepo) LatestPerDriverOnRoute(_ context.Context, routeID string) ([]domain.LocationFix, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.LocationFix
	for driverID := range r.byDriver {
		fixes := r.byDriver[driverID]
		var latest *domain.LocationFix
		for i := range fixes {
			fix := fixes[i]
			if fix.RouteID != routeID {
				continue
			}
			if latest == nil || fix.Timestamp.After(latest.Timestamp) {
				latest = &fix
			}
		}
		if latest != nil {
			out = append(out, *latest)
		}
	}
	return out, nil
}

func (r *fakeLocationRepo) TrimHistory(_ context.Context, driverID string, keep int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fixes := r.byDriver[driverID]
	if len(fixes) <= keep {
		return 0, nil
	}
	sort.Slice(fixes, func(i, j int) bool { return fixes[i].Timestamp.Before(fixes[j].Timestamp) })
	trimmed := len(fixes) - keep
	r.byDriver[driverID] = append([]domain.LocationFix(nil), fixes[trimmed:]...)
	return trimmed, nil
}

func (r *fakeLocationRepo) DeleteOlderThan(_ context.Context, cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0
	for driverID, fixes := range r.byDriver {
		var kept []domain.LocationFix
		for _, fix := range fixes {
			if fix.Timestamp.Before(cutoff) {
				total++
				continue
			}
			kept = append(kept, fix)
		}
		r.byDriver[driverID] = kept
	}
	return total, nil
}

func (r *fakeLocationRepo) MarkStatus(_ context.Context, driverID string, at time.Time, status domain.FixStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	fixes := r.byDriver[driverID]
	for i := range fixes {
		if fixes[i].Timestamp.Equal(at) {
			fixes[i].Status = status
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *fakeLocationRepo) count(driverID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byDriver[driverID])
}

// fakeDriverRepo is an in-memory port.DriverRepository.
type fakeDriverRepo struct {
	mu      sync.Mutex
	drivers map[string]domain.Driver
}

func newFakeDriverRepo() *fakeDriverRepo {
	return &fakeDriverRepo{drivers: make(map[string]domain.Driver)}
}

func (r *fakeDriverRepo) Create(_ context.Context, driver domain.Driver) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drivers[driver.ID] = driver
	return nil
}

func (r *fakeDriverRepo) Get(_ context.Context, driverID string) (*domain.Driver, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	driver, ok := r.drivers[driverID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := driver
	return &copy, nil
}

func (r *fakeDriverRepo) GetByPhone(_ context.Context, phone string) (*domain.Driver, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, driver := range r.drivers {
		if driver.Phone == phone {
			copy := driver
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeDriverRepo) GetByBus(_ context.Context, busID string) (*domain.Driver, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, driver := range r.drivers {
		if driver.BusID == busID {
			copy := driver
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeDriverRepo) ListByRoute(_ context.Context, routeID string) ([]domain.Driver, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Driver
	for _, driver := range r.drivers {
		if driver.RouteID == routeID {
			out = append(out, driver)
		}
	}
	return out, nil
}

func (r *fakeDriverRepo) List(_ context.Context) ([]domain.Driver, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Driver, 0, len(r.drivers))
	for _, driver := range r.drivers {
		out = append(out, driver)
	}
	return out, nil
}

func (r *fakeDriverRepo) UpdateDevice(_ context.Context, driverID, deviceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	driver, ok := r.drivers[driverID]
	if !ok {
		return repository.ErrNotFound
	}
	driver.DeviceID = deviceID
	r.drivers[driverID] = driver
	return nil
}

func (r *fakeDriverRepo) UpdateActivity(_ context.Context, driverID string, active bool, lastSeen time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	driver, ok := r.drivers[driverID]
	if !ok {
		return repository.ErrNotFound
	}
	driver.IsActive = active
	driver.LastSeen = lastSeen
	r.drivers[driverID] = driver
	return nil
}

func (r *fakeDriverRepo) Delete(_ context.Context, driverID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.drivers[driverID]; !ok {
		return repository.ErrNotFound
	}
	delete(r.drivers, driverID)
	return nil
}

// fakeCache is an in-memory port.CurrentLocationCache.
type fakeCache struct {
	mu    sync.Mutex
	fixes map[string]domain.LocationFix
}

func newFakeCache() *fakeCache {
	return &fakeCache{fixes: make(map[string]domain.LocationFix)}
}

func (c *fakeCache) Set(_ context.Context, fix domain.LocationFix) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fixes[fix.DriverID] = fix
	return nil
}

func (c *fakeCache) Get(_ context.Context, driverID string) (*domain.LocationFix, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fix, ok := c.fixes[driverID]
	if !ok {
		return nil, false, nil
	}
	copy := fix
	return &copy, true, nil
}

func (c *fakeCache) Delete(_ context.Context, driverID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.fixes, driverID)
	return nil
}

// recordingPublisher captures domain events.
type recordingPublisher struct {
	mu        sync.Mutex
	created   []domain.SessionCreatedEvent
	ended     []domain.SessionEndedEvent
	offline   []domain.DriverOfflineEvent
	committed []domain.LocationCommittedEvent
}

func (p *recordingPublisher) PublishSessionCreated(_ context.Context, event domain.SessionCreatedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.created = append(p.created, event)
	return nil
}

func (p *recordingPublisher) PublishSessionEnded(_ context.Context, event domain.SessionEndedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ended = append(p.ended, event)
	return nil
}

func (p *recordingPublisher) PublishDriverOffline(_ context.Context, event domain.DriverOfflineEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.offline = append(p.offline, event)
	return nil
}

func (p *recordingPublisher) PublishLocationCommitted(_ context.Context, event domain.LocationCommittedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.committed = append(p.committed, event)
	return nil
}

// recordingBroadcaster captures hub publishes.
type recordingBroadcaster struct {
	mu       sync.Mutex
	fixes    []domain.LocationFix
	statuses []domain.FixStatus
}

func (b *recordingBroadcaster) PublishLocationUpdate(fix domain.LocationFix) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fixes = append(b.fixes, fix)
}

func (b *recordingBroadcaster) PublishStatusChange(_ string, status domain.FixStatus, _, _ string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.statuses = append(b.statuses, status)
}
