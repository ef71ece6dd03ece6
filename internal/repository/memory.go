package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"org_membership/internal/models"
)

// MemoryStore keeps everything in process. It backs the "memory" database
// driver for local runs and the service tests.
type MemoryStore struct {
	txMu sync.Mutex // held by a transaction and by writes outside one
	mu   sync.RWMutex
	data *memoryData
	now  func() time.Time
}

type memoryData struct {
	users       map[string]models.User
	emails      map[string]string // email -> user id
	orgs        map[string]models.Organisation
	memberships []models.Membership
	audit       []models.AuditLog
	nextAuditID int64
}

func NewMemory() *MemoryStore {
	return &MemoryStore{
		data: &memoryData{
			users:  make(map[string]models.User),
			emails: make(map[string]string),
			orgs:   make(map[string]models.Organisation),
		},
		now: time.Now,
	}
}

func (s *MemoryStore) Users() UserRepository                 { return memoryUsers{s: s} }
func (s *MemoryStore) Organisations() OrganisationRepository { return memoryOrganisations{s: s} }
func (s *MemoryStore) AuditLogs() AuditRepository            { return memoryAudit{s: s} }

// Transaction snapshots the data and restores it if fn fails. Writes made
// through s while fn runs wait for it to finish, so a rollback only undoes
// fn's own writes.
func (s *MemoryStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snapshot := s.data.clone()
	s.mu.RUnlock()

	if err := fn(memoryTx{s: s}); err != nil {
		s.mu.Lock()
		s.data = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

// lockWrite takes the data lock for a write. Outside a transaction it first
// takes txMu.
func (s *MemoryStore) lockWrite(inTx bool) (unlock func()) {
	if !inTx {
		s.txMu.Lock()
	}
	s.mu.Lock()
	return func() {
		s.mu.Unlock()
		if !inTx {
			s.txMu.Unlock()
		}
	}
}

// memoryTx is the Store handed to a transaction body.
type memoryTx struct{ s *MemoryStore }

func (t memoryTx) Users() UserRepository                 { return memoryUsers{s: t.s, tx: true} }
func (t memoryTx) Organisations() OrganisationRepository { return memoryOrganisations{s: t.s, tx: true} }
func (t memoryTx) AuditLogs() AuditRepository            { return memoryAudit{s: t.s, tx: true} }

// Transaction inside a transaction joins the outer one.
func (t memoryTx) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return fn(t)
}

func (d *memoryData) clone() *memoryData {
	c := &memoryData{
		users:       make(map[string]models.User, len(d.users)),
		emails:      make(map[string]string, len(d.emails)),
		orgs:        make(map[string]models.Organisation, len(d.orgs)),
		memberships: append([]models.Membership(nil), d.memberships...),
		audit:       append([]models.AuditLog(nil), d.audit...),
		nextAuditID: d.nextAuditID,
	}
	for k, v := range d.users {
		c.users[k] = v
	}
	for k, v := range d.emails {
		c.emails[k] = v
	}
	for k, v := range d.orgs {
		c.orgs[k] = v
	}
	return c
}

func (d *memoryData) isMember(orgID, userID string) bool {
	for _, m := range d.memberships {
		if m.OrgID == orgID && m.UserID == userID {
			return true
		}
	}
	return false
}

type memoryUsers struct {
	s  *MemoryStore
	tx bool
}

func (r memoryUsers) Create(ctx context.Context, u *models.User) error {
	defer r.s.lockWrite(r.tx)()

	if _, taken := r.s.data.emails[u.Email]; taken {
		return ErrDuplicate
	}
	if u.UserID == "" {
		u.UserID = models.NewID()
	}
	if _, taken := r.s.data.users[u.UserID]; taken {
		return ErrDuplicate
	}
	now := r.s.now()
	u.CreatedAt, u.UpdatedAt = now, now
	r.s.data.users[u.UserID] = *u
	r.s.data.emails[u.Email] = u.UserID
	return nil
}

func (r memoryUsers) GetByID(ctx context.Context, userID string) (*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	u, ok := r.s.data.users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (r memoryUsers) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	id, ok := r.s.data.emails[email]
	if !ok {
		return nil, ErrNotFound
	}
	u := r.s.data.users[id]
	return &u, nil
}

func (r memoryUsers) EmailExists(ctx context.Context, email string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	_, ok := r.s.data.emails[email]
	return ok, nil
}

type memoryOrganisations struct {
	s  *MemoryStore
	tx bool
}

func (r memoryOrganisations) Create(ctx context.Context, o *models.Organisation) error {
	defer r.s.lockWrite(r.tx)()

	if o.OrgID == "" {
		o.OrgID = models.NewID()
	}
	if _, taken := r.s.data.orgs[o.OrgID]; taken {
		return ErrDuplicate
	}
	now := r.s.now()
	o.CreatedAt, o.UpdatedAt = now, now
	r.s.data.orgs[o.OrgID] = *o
	return nil
}

func (r memoryOrganisations) GetByID(ctx context.Context, orgID string) (*models.Organisation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	o, ok := r.s.data.orgs[orgID]
	if !ok {
		return nil, ErrNotFound
	}
	return &o, nil
}

func (r memoryOrganisations) ListForUser(ctx context.Context, userID string) ([]models.Organisation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	orgs := make([]models.Organisation, 0)
	for _, m := range r.s.data.memberships {
		if m.UserID == userID {
			orgs = append(orgs, r.s.data.orgs[m.OrgID])
		}
	}
	return orgs, nil
}

func (r memoryOrganisations) AddMember(ctx context.Context, orgID, userID string) error {
	defer r.s.lockWrite(r.tx)()

	if _, ok := r.s.data.orgs[orgID]; !ok {
		return ErrNotFound
	}
	if _, ok := r.s.data.users[userID]; !ok {
		return ErrNotFound
	}
	if r.s.data.isMember(orgID, userID) {
		return nil
	}
	r.s.data.memberships = append(r.s.data.memberships, models.Membership{
		OrgID:     orgID,
		UserID:    userID,
		CreatedAt: r.s.now(),
	})
	return nil
}

func (r memoryOrganisations) IsMember(ctx context.Context, orgID, userID string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	return r.s.data.isMember(orgID, userID), nil
}

func (r memoryOrganisations) SharesOrganisation(ctx context.Context, userA, userB string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	orgsOfA := make(map[string]struct{})
	for _, m := range r.s.data.memberships {
		if m.UserID == userA {
			orgsOfA[m.OrgID] = struct{}{}
		}
	}
	for _, m := range r.s.data.memberships {
		if m.UserID != userB {
			continue
		}
		if _, ok := orgsOfA[m.OrgID]; ok {
			return true, nil
		}
	}
	return false, nil
}

type memoryAudit struct {
	s  *MemoryStore
	tx bool
}

func (r memoryAudit) Record(ctx context.Context, entry *models.AuditLog) error {
	defer r.s.lockWrite(r.tx)()

	r.s.data.nextAuditID++
	entry.ID = r.s.data.nextAuditID
	entry.CreatedAt = r.s.now()
	r.s.data.audit = append(r.s.data.audit, *entry)
	return nil
}

func (r memoryAudit) ListForOrganisation(ctx context.Context, orgID string, afterID int64, limit int) ([]models.AuditLog, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	logs := make([]models.AuditLog, 0)
	for _, l := range r.s.data.audit {
		if l.OrgID != orgID {
			continue
		}
		if afterID > 0 && l.ID >= afterID {
			continue
		}
		logs = append(logs, l)
	}
	sort.Slice(logs, func(i, j int) bool { return logs[i].ID > logs[j].ID })
	if limit > 0 && len(logs) > limit {
		logs = logs[:limit]
	}
	return logs, nil
}
