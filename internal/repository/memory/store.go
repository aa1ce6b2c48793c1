// Package memory is an in-process implementation of repository.Backend. Entities live in
// id-keyed tables and many-to-many relations in separate join tables, so nothing holds a
// pointer to anything else.
package memory

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/spec-kit/clinic-crm/internal/domain"
	"github.com/spec-kit/clinic-crm/internal/repository"
)

type set map[int64]struct{}

type tables struct {
	identities  map[int64]domain.Identity
	emails      map[string]int64
	roles       map[int64]domain.Role
	permissions map[int64]domain.Permission
	tokens      map[int64]domain.Token
	pharmacy    map[int64]domain.PharmacyRecord
	appts       map[int64]domain.Appointment
	incentives  map[domain.SourceRef]domain.Incentive

	rolePermissions     map[int64]set
	identityRoles       map[int64]set
	identityPermissions map[int64]set

	seq int64
}

func newTables() tables {
	return tables{
		identities:          map[int64]domain.Identity{},
		emails:              map[string]int64{},
		roles:               map[int64]domain.Role{},
		permissions:         map[int64]domain.Permission{},
		tokens:              map[int64]domain.Token{},
		pharmacy:            map[int64]domain.PharmacyRecord{},
		appts:               map[int64]domain.Appointment{},
		incentives:          map[domain.SourceRef]domain.Incentive{},
		rolePermissions:     map[int64]set{},
		identityRoles:       map[int64]set{},
		identityPermissions: map[int64]set{},
	}
}

func cloneJoin(src map[int64]set) map[int64]set {
	out := make(map[int64]set, len(src))
	for k, v := range src {
		out[k] = maps.Clone(v)
	}
	return out
}

func (t tables) clone() tables {
	return tables{
		identities:          maps.Clone(t.identities),
		emails:              maps.Clone(t.emails),
		roles:               maps.Clone(t.roles),
		permissions:         maps.Clone(t.permissions),
		tokens:              maps.Clone(t.tokens),
		pharmacy:            maps.Clone(t.pharmacy),
		appts:               maps.Clone(t.appts),
		incentives:          maps.Clone(t.incentives),
		rolePermissions:     cloneJoin(t.rolePermissions),
		identityRoles:       cloneJoin(t.identityRoles),
		identityPermissions: cloneJoin(t.identityPermissions),
		seq:                 t.seq,
	}
}

// Store implements repository.Backend in memory. Transactions hold txMu for their whole
// run and writes outside a transaction take it too, so a rollback only ever discards the
// transaction's own writes.
type Store struct {
	mu   sync.Mutex
	txMu sync.Mutex
	data tables
	now  func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{data: newTables(), now: time.Now}
}

// WithClock overrides the timestamp source; used by tests.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

var _ repository.Backend = (*Store)(nil)

func (s *Store) nextID() int64 {
	s.data.seq++
	return s.data.seq
}

// lockWrite takes the locks of one write and returns their release. Inside a
// transaction txMu is already held.
func (s *Store) lockWrite(inTx bool) func() {
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

func (s *Store) Identities() repository.IdentityRepository      { return identityRepo{s: s} }
func (s *Store) Tokens() repository.TokenRepository             { return tokenRepo{s: s} }
func (s *Store) Permissions() repository.PermissionRepository   { return permissionRepo{s: s} }
func (s *Store) Pharmacy() repository.PharmacyRepository        { return pharmacyRepo{s: s} }
func (s *Store) Appointments() repository.AppointmentRepository { return appointmentRepo{s: s} }
func (s *Store) Incentives() repository.IncentiveRepository     { return incentiveRepo{s: s} }

// WithinTx serializes transactions and restores the previous state when fn fails.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, store repository.Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	tx := txStore{s: s}
	return s.guarded(func() error { return fn(ctx, tx) })
}

// Savepoint outside a transaction behaves like one.
func (s *Store) Savepoint(_ context.Context, fn func(repository.Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	tx := txStore{s: s}
	return s.guarded(func() error { return fn(tx) })
}

// guarded runs fn with txMu held and restores the state captured before it on failure.
func (s *Store) guarded(fn func() error) error {
	s.mu.Lock()
	snapshot := s.data.clone()
	s.mu.Unlock()

	if err := fn(); err != nil {
		s.mu.Lock()
		s.data = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

// txStore is the view of the store inside a transaction.
type txStore struct {
	s *Store
}

var _ repository.Store = txStore{}

func (t txStore) Identities() repository.IdentityRepository { return identityRepo{s: t.s, tx: true} }
func (t txStore) Tokens() repository.TokenRepository        { return tokenRepo{s: t.s, tx: true} }
func (t txStore) Permissions() repository.PermissionRepository {
	return permissionRepo{s: t.s, tx: true}
}
func (t txStore) Pharmacy() repository.PharmacyRepository { return pharmacyRepo{s: t.s, tx: true} }
func (t txStore) Appointments() repository.AppointmentRepository {
	return appointmentRepo{s: t.s, tx: true}
}
func (t txStore) Incentives() repository.IncentiveRepository { return incentiveRepo{s: t.s, tx: true} }

func (t txStore) Savepoint(_ context.Context, fn func(repository.Store) error) error {
	return t.s.guarded(func() error { return fn(t) })
}

type identityRepo struct {
	s  *Store
	tx bool
}

func (r identityRepo) Create(_ context.Context, identity *domain.Identity) error {
	defer r.s.lockWrite(r.tx)()
	if _, exists := r.s.data.emails[identity.Email]; exists {
		return repository.ErrDuplicate
	}
	now := r.s.now()
	identity.ID = r.s.nextID()
	identity.CreatedAt, identity.UpdatedAt = now, now
	r.s.data.identities[identity.ID] = *identity
	r.s.data.emails[identity.Email] = identity.ID
	return nil
}

func (r identityRepo) GetByID(_ context.Context, id int64) (*domain.Identity, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	identity, ok := r.s.data.identities[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &identity, nil
}

func (r identityRepo) GetByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	r.s.mu.Lock()
	id, ok := r.s.data.emails[email]
	r.s.mu.Unlock()
	if !ok {
		return nil, repository.ErrNotFound
	}
	return r.GetByID(ctx, id)
}

type tokenRepo struct {
	s  *Store
	tx bool
}

func (r tokenRepo) Create(_ context.Context, token *domain.Token) error {
	defer r.s.lockWrite(r.tx)()
	token.ID = r.s.nextID()
	if token.CreatedAt.IsZero() {
		token.CreatedAt = r.s.now()
	}
	stored := *token
	stored.Abilities = append([]string(nil), token.Abilities...)
	r.s.data.tokens[token.ID] = stored
	return nil
}

func (r tokenRepo) GetByID(_ context.Context, id int64) (*domain.Token, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	token, ok := r.s.data.tokens[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &token, nil
}

func (r tokenRepo) GetByHash(_ context.Context, hash string) (*domain.Token, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, token := range r.s.data.tokens {
		if token.Hash == hash {
			return &token, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r tokenRepo) Touch(_ context.Context, id int64, at time.Time) error {
	defer r.s.lockWrite(r.tx)()
	if token, ok := r.s.data.tokens[id]; ok {
		token.LastUsedAt = &at
		r.s.data.tokens[id] = token
	}
	return nil
}

func (r tokenRepo) DeleteByIdentity(_ context.Context, identityID int64) (int64, error) {
	defer r.s.lockWrite(r.tx)()
	var deleted int64
	for id, token := range r.s.data.tokens {
		if token.IdentityID == identityID {
			delete(r.s.data.tokens, id)
			deleted++
		}
	}
	return deleted, nil
}

type permissionRepo struct {
	s  *Store
	tx bool
}

func (r permissionRepo) CreateRole(_ context.Context, role *domain.Role) error {
	defer r.s.lockWrite(r.tx)()
	if role.GuardName == "" {
		role.GuardName = domain.DefaultGuard
	}
	for _, existing := range r.s.data.roles {
		if existing.Name == role.Name && existing.GuardName == role.GuardName {
			return repository.ErrDuplicate
		}
	}
	role.ID = r.s.nextID()
	role.CreatedAt = r.s.now()
	r.s.data.roles[role.ID] = *role
	return nil
}

func (r permissionRepo) CreatePermission(_ context.Context, perm *domain.Permission) error {
	defer r.s.lockWrite(r.tx)()
	if perm.GuardName == "" {
		perm.GuardName = domain.DefaultGuard
	}
	for _, existing := range r.s.data.permissions {
		if existing.Name == perm.Name && existing.GuardName == perm.GuardName {
			return repository.ErrDuplicate
		}
	}
	perm.ID = r.s.nextID()
	perm.CreatedAt = r.s.now()
	r.s.data.permissions[perm.ID] = *perm
	return nil
}

func link(join map[int64]set, from, to int64) {
	if join[from] == nil {
		join[from] = set{}
	}
	join[from][to] = struct{}{}
}

func (r permissionRepo) AttachPermission(_ context.Context, roleID, permissionID int64) error {
	defer r.s.lockWrite(r.tx)()
	if _, ok := r.s.data.roles[roleID]; !ok {
		return repository.ErrNotFound
	}
	if _, ok := r.s.data.permissions[permissionID]; !ok {
		return repository.ErrNotFound
	}
	link(r.s.data.rolePermissions, roleID, permissionID)
	return nil
}

func (r permissionRepo) AssignRole(_ context.Context, identityID, roleID int64) error {
	defer r.s.lockWrite(r.tx)()
	if _, ok := r.s.data.identities[identityID]; !ok {
		return repository.ErrNotFound
	}
	if _, ok := r.s.data.roles[roleID]; !ok {
		return repository.ErrNotFound
	}
	link(r.s.data.identityRoles, identityID, roleID)
	return nil
}

func (r permissionRepo) GivePermission(_ context.Context, identityID, permissionID int64) error {
	defer r.s.lockWrite(r.tx)()
	if _, ok := r.s.data.identities[identityID]; !ok {
		return repository.ErrNotFound
	}
	if _, ok := r.s.data.permissions[permissionID]; !ok {
		return repository.ErrNotFound
	}
	link(r.s.data.identityPermissions, identityID, permissionID)
	return nil
}

func (r permissionRepo) RolesForIdentity(_ context.Context, identityID int64) ([]domain.Role, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var roles []domain.Role
	for roleID := range r.s.data.identityRoles[identityID] {
		roles = append(roles, r.s.data.roles[roleID])
	}
	sortBy(roles, func(role domain.Role) string { return role.Name })
	return roles, nil
}

func (r permissionRepo) EffectivePermissions(_ context.Context, identityID int64) ([]domain.Permission, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ids := set{}
	for roleID := range r.s.data.identityRoles[identityID] {
		for permID := range r.s.data.rolePermissions[roleID] {
			ids[permID] = struct{}{}
		}
	}
	for permID := range r.s.data.identityPermissions[identityID] {
		ids[permID] = struct{}{}
	}
	perms := make([]domain.Permission, 0, len(ids))
	for permID := range ids {
		perms = append(perms, r.s.data.permissions[permID])
	}
	sortBy(perms, func(p domain.Permission) int64 { return p.ID })
	return perms, nil
}
