package store

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// accountsDB is the reserved database holding the shared users table.
// The dot keeps it outside the tenant alphabet, so no pharmacy name can
// ever resolve to this handle: NormalizeTenant rejects dots.
const accountsDB = "accounts.sys"

// handle wraps one live SQLite database. The mutex serializes units of
// work so overlapping callers are sequenced deterministically instead of
// interleaving on the single connection. closed flips under the mutex
// when the handle is discarded, so a caller that resolved the handle
// before a concurrent close notices instead of touching a closed
// database.
type handle struct {
	mu     sync.Mutex
	db     *sqlx.DB
	closed bool
}

// Manager owns one lazily-created embedded database per pharmacy,
// stored as <dataDir>/<tenant>.db, plus the shared accounts database.
type Manager struct {
	dataDir string

	mu      sync.Mutex
	handles map[string]*handle
}

// NewManager creates a Manager rooted at dataDir, creating the
// directory if needed.
func NewManager(dataDir string) (*Manager, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, err
	}
	return &Manager{dataDir: dataDir, handles: make(map[string]*handle)}, nil
}

// Open ensures a live database exists for the pharmacy and that its
// schema is initialized. Safe to call repeatedly and from concurrent
// callers; only one underlying database is ever created per tenant.
func (m *Manager) Open(tenant string) error {
	tenant, err := NormalizeTenant(tenant)
	if err != nil {
		return err
	}
	_, err = m.obtain(tenant, func(db *sqlx.DB) error {
		return ensureSchema(db, tenant)
	})
	return err
}

// obtain returns the registered handle for name, creating and
// initializing it under the registry lock if absent.
func (m *Manager) obtain(name string, init func(*sqlx.DB) error) (*handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if h, ok := m.handles[name]; ok {
		return h, nil
	}

	db, err := sqlx.Connect("sqlite", filepath.Join(m.dataDir, name+".db"))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if init != nil {
		if err := init(db); err != nil {
			if closeErr := db.Close(); closeErr != nil {
				log.Printf("closing database for %s after failed init: %v", name, closeErr)
			}
			return nil, err
		}
	}

	h := &handle{db: db}
	m.handles[name] = h
	return h, nil
}

// Do runs a unit of work against the pharmacy's database. The handle's
// lock is held for the duration, so the unit of work has the single
// connection to itself and never observes a closed database. The lock is
// released on every exit path; a failing unit of work surfaces its error
// to the caller after cleanup.
func (m *Manager) Do(ctx context.Context, tenant string, work func(ctx context.Context, db *sqlx.DB) error) error {
	tenant, err := NormalizeTenant(tenant)
	if err != nil {
		return err
	}
	return m.runOn(ctx, tenant, func(db *sqlx.DB) error {
		return ensureSchema(db, tenant)
	}, work)
}

// doAccounts is Do for the shared accounts database.
func (m *Manager) doAccounts(ctx context.Context, work func(ctx context.Context, db *sqlx.DB) error) error {
	return m.runOn(ctx, accountsDB, ensureAccountsSchema, work)
}

// runOn resolves the handle and executes the unit of work, retrying if
// a concurrent Close discarded the handle between the lookup and the
// lock; the retry re-opens the database through obtain.
func (m *Manager) runOn(ctx context.Context, name string, init func(*sqlx.DB) error, work func(ctx context.Context, db *sqlx.DB) error) error {
	for {
		h, err := m.obtain(name, init)
		if err != nil {
			return err
		}
		ran, err := h.run(ctx, work)
		if ran {
			return err
		}
	}
}

// run executes the unit of work under the handle's lock. ran is false
// when the handle was closed before the lock was won, in which case the
// work was not invoked.
func (h *handle) run(ctx context.Context, work func(ctx context.Context, db *sqlx.DB) error) (ran bool, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false, nil
	}
	return true, work(ctx, h.db)
}

// Close discards the pharmacy's database handle, closing the underlying
// connection. Close failures are logged, not propagated; the handle is
// dropped either way.
func (m *Manager) Close(tenant string) {
	tenant, err := NormalizeTenant(tenant)
	if err != nil {
		return
	}
	m.closeHandle(tenant)
}

// CloseAll closes every open database; called on shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	names := make([]string, 0, len(m.handles))
	for name := range m.handles {
		names = append(names, name)
	}
	m.mu.Unlock()

	for _, name := range names {
		m.closeHandle(name)
	}
}

func (m *Manager) closeHandle(name string) {
	m.mu.Lock()
	h, ok := m.handles[name]
	delete(m.handles, name)
	m.mu.Unlock()
	if !ok {
		return
	}

	// Wait for an in-flight unit of work before closing under it.
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	if err := h.db.Close(); err != nil {
		log.Printf("closing database for %s: %v", name, err)
	}
}
