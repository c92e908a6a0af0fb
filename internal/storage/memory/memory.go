// Package memory provides an in-process implementation of storage.Store.
//
// Writes inside WithTx go to a private copy of the data that replaces the
// committed state only when the callback succeeds, so readers never see a
// partial transaction. Foreign keys, uniqueness and cascades mirror the
// SQLite schema. Faults can be injected per operation to exercise rollback
// paths in tests.
package memory

import (
	"context"
	"sync"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
)

// Ensure Store implements storage.Store
var _ storage.Store = (*Store)(nil)

// Op names a store operation for fault injection and call counting.
type Op string

const (
	OpCreateExpense     Op = "CreateExpense"
	OpCreateSplits      Op = "CreateSplits"
	OpGetExpense        Op = "GetExpense"
	OpListExpenses      Op = "ListExpensesByGroup"
	OpDeleteExpense     Op = "DeleteExpense"
	OpCreateGroup       Op = "CreateGroup"
	OpGetGroup          Op = "GetGroup"
	OpListGroupsByUser  Op = "ListGroupsByUser"
	OpUpdateGroup       Op = "UpdateGroup"
	OpDeleteGroup       Op = "DeleteGroup"
	OpAddGroupMembers   Op = "AddGroupMembers"
	OpRemoveGroupMember Op = "RemoveGroupMember"
	OpIsGroupMember     Op = "IsGroupMember"
	OpCreateUser        Op = "CreateUser"
	OpGetUserByEmail    Op = "GetUserByEmail"
	OpGetUserByID       Op = "GetUserByID"
	OpGetUsersByIDs     Op = "GetUsersByIDs"
	OpWithTx            Op = "WithTx"
)

// shared is the state common to a store and the transactions it opens.
type shared struct {
	mu        sync.RWMutex // guards committed
	writeMu   sync.Mutex   // serializes transactions
	committed *dataset

	hookMu sync.Mutex
	faults map[Op]error
	calls  map[Op]int
}

// Store is an in-memory storage.Store. The zero value is not usable; call New.
type Store struct {
	shared *shared
	tx     *dataset // non-nil when bound to a transaction
}

// New returns an empty store.
func New() *Store {
	return &Store{
		shared: &shared{
			committed: newDataset(),
			faults:    make(map[Op]error),
			calls:     make(map[Op]int),
		},
	}
}

// FailOn makes every later call of op return err until ClearFaults.
func (s *Store) FailOn(op Op, err error) {
	s.shared.hookMu.Lock()
	defer s.shared.hookMu.Unlock()
	s.shared.faults[op] = err
}

// ClearFaults removes all injected faults.
func (s *Store) ClearFaults() {
	s.shared.hookMu.Lock()
	defer s.shared.hookMu.Unlock()
	s.shared.faults = make(map[Op]error)
}

// Calls reports how many times op has been invoked, including failed calls.
func (s *Store) Calls(op Op) int {
	s.shared.hookMu.Lock()
	defer s.shared.hookMu.Unlock()
	return s.shared.calls[op]
}

// TotalCalls reports the number of store invocations of any kind.
func (s *Store) TotalCalls() int {
	s.shared.hookMu.Lock()
	defer s.shared.hookMu.Unlock()
	total := 0
	for _, n := range s.shared.calls {
		total += n
	}
	return total
}

// enter records the call and returns the injected fault, if any.
func (s *Store) enter(ctx context.Context, op Op) error {
	s.shared.hookMu.Lock()
	s.shared.calls[op]++
	fault := s.shared.faults[op]
	s.shared.hookMu.Unlock()

	if fault != nil {
		return fault
	}
	return ctx.Err()
}

// WithTx runs fn against a private copy of the data and publishes it on success.
func (s *Store) WithTx(ctx context.Context, fn func(tx storage.Store) error) error {
	if err := s.enter(ctx, OpWithTx); err != nil {
		return err
	}
	if s.tx != nil {
		return fn(s)
	}

	s.shared.writeMu.Lock()
	defer s.shared.writeMu.Unlock()

	s.shared.mu.RLock()
	working := s.shared.committed.clone()
	s.shared.mu.RUnlock()

	if err := fn(&Store{shared: s.shared, tx: working}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.shared.mu.Lock()
	s.shared.committed = working
	s.shared.mu.Unlock()
	return nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

// read runs fn against the data visible to s.
func (s *Store) read(fn func(d *dataset) error) error {
	if s.tx != nil {
		return fn(s.tx)
	}
	s.shared.mu.RLock()
	defer s.shared.mu.RUnlock()
	return fn(s.shared.committed)
}

// write runs fn in s's transaction, or in a transaction of its own so a
// failing multi-row write leaves nothing behind.
func (s *Store) write(ctx context.Context, fn func(d *dataset) error) error {
	if s.tx != nil {
		return fn(s.tx)
	}

	s.shared.writeMu.Lock()
	defer s.shared.writeMu.Unlock()

	s.shared.mu.RLock()
	working := s.shared.committed.clone()
	s.shared.mu.RUnlock()

	if err := fn(working); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.shared.mu.Lock()
	s.shared.committed = working
	s.shared.mu.Unlock()
	return nil
}

// dataset is one consistent snapshot of every table.
type dataset struct {
	users        map[string]*models.User
	usersByEmail map[string]string
	groups       map[string]*models.Group // Members kept in join order
	joinedAt     map[string]map[string]int64
	expenses     map[string]*models.Expense // headers only
	splits       map[string][]models.ExpenseSplit
}

func newDataset() *dataset {
	return &dataset{
		users:        make(map[string]*models.User),
		usersByEmail: make(map[string]string),
		groups:       make(map[string]*models.Group),
		joinedAt:     make(map[string]map[string]int64),
		expenses:     make(map[string]*models.Expense),
		splits:       make(map[string][]models.ExpenseSplit),
	}
}

func (d *dataset) clone() *dataset {
	c := newDataset()
	for id, u := range d.users {
		c.users[id] = copyUser(u)
	}
	for email, id := range d.usersByEmail {
		c.usersByEmail[email] = id
	}
	for id, g := range d.groups {
		c.groups[id] = copyGroup(g)
	}
	for groupID, members := range d.joinedAt {
		m := make(map[string]int64, len(members))
		for userID, at := range members {
			m[userID] = at
		}
		c.joinedAt[groupID] = m
	}
	for id, e := range d.expenses {
		c.expenses[id] = copyExpense(e)
	}
	for id, splits := range d.splits {
		c.splits[id] = append([]models.ExpenseSplit(nil), splits...)
	}
	return c
}

func copyUser(u *models.User) *models.User {
	c := *u
	return &c
}

func copyGroup(g *models.Group) *models.Group {
	c := *g
	c.Members = append([]string(nil), g.Members...)
	return &c
}

func copyExpense(e *models.Expense) *models.Expense {
	c := *e
	if e.ExpenseDate != nil {
		date := *e.ExpenseDate
		c.ExpenseDate = &date
	}
	c.Splits = nil
	c.Payer = nil
	c.Group = nil
	return &c
}
