// Package memory provides an in-memory implementation of the core persistence
// store used for tests and ephemeral environments.
package memory

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"time"

	"heredity/pkg/domain"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interface.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Family aliases domain.Family for in-memory persistence operations.
	Family = domain.Family
	// Person aliases domain.Person.
	Person = domain.Person
	// Report aliases domain.Report.
	Report = domain.Report
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
)

type memoryState struct {
	families map[string]Family
	people   map[string]Person
	reports  map[string]Report
}

// Snapshot captures a point-in-time clone of the store state.
type Snapshot struct {
	Families map[string]Family `json:"families"`
	People   map[string]Person `json:"people"`
	Reports  map[string]Report `json:"reports"`
}

func newMemoryState() memoryState {
	return memoryState{
		families: make(map[string]Family),
		people:   make(map[string]Person),
		reports:  make(map[string]Report),
	}
}

func (s memoryState) clone() memoryState {
	cloned := newMemoryState()
	for k, v := range s.families {
		cloned.families[k] = cloneFamily(v)
	}
	for k, v := range s.people {
		cloned.people[k] = clonePerson(v)
	}
	for k, v := range s.reports {
		cloned.reports[k] = cloneReport(v)
	}
	return cloned
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	cloned := state.clone()
	return Snapshot{Families: cloned.families, People: cloned.people, Reports: cloned.reports}
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	state := memoryState{families: s.Families, people: s.People, reports: s.Reports}
	if state.families == nil {
		state.families = make(map[string]Family)
	}
	if state.people == nil {
		state.people = make(map[string]Person)
	}
	if state.reports == nil {
		state.reports = make(map[string]Report)
	}
	return state.clone()
}

func cloneFamily(f Family) Family {
	if f.Description != nil {
		desc := *f.Description
		f.Description = &desc
	}
	return f
}

func clonePerson(p Person) Person {
	if p.ParentIDs != nil {
		p.ParentIDs = append([]string(nil), p.ParentIDs...)
	}
	return p
}

func cloneReport(r Report) Report {
	if r.Distributions != nil {
		dists := make(domain.Distributions, len(r.Distributions))
		for id, d := range r.Distributions {
			if d == nil {
				continue
			}
			cp := *d
			dists[id] = &cp
		}
		r.Distributions = dists
	}
	return r
}

// Store provides an in-memory transactional store for the core domain.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
	nowFn  func() time.Time
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) newID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b[:])
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(snapshot)
}

// RulesEngine exposes the currently configured engine for integration points like plugins.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// SetNowFunc overrides the clock used to stamp records.
func (s *Store) SetNowFunc(now func() time.Time) {
	if now == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nowFn = now
}

type transaction struct {
	store   *Store
	state   memoryState
	changes []Change
	now     time.Time
}

type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

func (v transactionView) ListFamilies() []Family {
	out := make([]Family, 0, len(v.state.families))
	for _, f := range v.state.families {
		out = append(out, cloneFamily(f))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (v transactionView) ListPeople() []Person {
	out := make([]Person, 0, len(v.state.people))
	for _, p := range v.state.people {
		out = append(out, clonePerson(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (v transactionView) ListReports() []Report {
	out := make([]Report, 0, len(v.state.reports))
	for _, r := range v.state.reports {
		out = append(out, cloneReport(r))
	}
	sortReports(out)
	return out
}

func (v transactionView) FindFamily(id string) (Family, bool) {
	f, ok := v.state.families[id]
	if !ok {
		return Family{}, false
	}
	return cloneFamily(f), true
}

func (v transactionView) FindPerson(id string) (Person, bool) {
	p, ok := v.state.people[id]
	if !ok {
		return Person{}, false
	}
	return clonePerson(p), true
}

func (v transactionView) FindReport(id string) (Report, bool) {
	r, ok := v.state.reports[id]
	if !ok {
		return Report{}, false
	}
	return cloneReport(r), true
}

func (v transactionView) Pedigree(familyID string) (domain.Pedigree, bool) {
	if _, ok := v.state.families[familyID]; !ok {
		return nil, false
	}
	pedigree := make(domain.Pedigree)
	for id, p := range v.state.people {
		if p.FamilyID == familyID {
			pedigree[id] = clonePerson(p)
		}
	}
	return pedigree, true
}

func sortReports(reports []Report) {
	sort.Slice(reports, func(i, j int) bool {
		if reports[i].CreatedAt.Equal(reports[j].CreatedAt) {
			return reports[i].ID < reports[j].ID
		}
		return reports[i].CreatedAt.Before(reports[j].CreatedAt)
	})
}

// RunInTransaction executes fn within a transactional copy of the store state.
// Registered rules run against the resulting state before it is committed.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	snapshot := s.state.clone()
	s.mu.RUnlock()

	return fn(newTransactionView(&snapshot))
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

// FindFamily exposes family lookup within the transaction scope.
func (tx *transaction) FindFamily(id string) (Family, bool) {
	return transactionView{state: &tx.state}.FindFamily(id)
}

// FindPerson exposes person lookup within the transaction scope.
func (tx *transaction) FindPerson(id string) (Person, bool) {
	return transactionView{state: &tx.state}.FindPerson(id)
}

// CreateFamily stores a new family.
func (tx *transaction) CreateFamily(f Family) (Family, error) {
	if f.ID == "" {
		f.ID = tx.store.newID()
	}
	if _, exists := tx.state.families[f.ID]; exists {
		return Family{}, fmt.Errorf("family %q already exists", f.ID)
	}
	f.CreatedAt = tx.now
	f.UpdatedAt = tx.now
	tx.state.families[f.ID] = cloneFamily(f)
	tx.recordChange(Change{Entity: domain.EntityFamily, Action: domain.ActionCreate, After: cloneFamily(f)})
	return cloneFamily(f), nil
}

// UpdateFamily mutates a family using the provided mutator function.
func (tx *transaction) UpdateFamily(id string, mutator func(*Family) error) (Family, error) {
	current, ok := tx.state.families[id]
	if !ok {
		return Family{}, domain.ErrNotFound{Entity: domain.EntityFamily, ID: id}
	}
	before := cloneFamily(current)
	if err := mutator(&current); err != nil {
		return Family{}, err
	}
	current.ID = id
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	tx.state.families[id] = cloneFamily(current)
	tx.recordChange(Change{Entity: domain.EntityFamily, Action: domain.ActionUpdate, Before: before, After: cloneFamily(current)})
	return cloneFamily(current), nil
}

// DeleteFamily removes a family and its reports. Families with members
// cannot be deleted.
func (tx *transaction) DeleteFamily(id string) error {
	current, ok := tx.state.families[id]
	if !ok {
		return domain.ErrNotFound{Entity: domain.EntityFamily, ID: id}
	}
	for _, p := range tx.state.people {
		if p.FamilyID == id {
			return fmt.Errorf("family %q still referenced by person %q", id, p.ID)
		}
	}
	for reportID, r := range tx.state.reports {
		if r.FamilyID == id {
			delete(tx.state.reports, reportID)
			tx.recordChange(Change{Entity: domain.EntityReport, Action: domain.ActionDelete, Before: cloneReport(r)})
		}
	}
	delete(tx.state.families, id)
	tx.recordChange(Change{Entity: domain.EntityFamily, Action: domain.ActionDelete, Before: cloneFamily(current)})
	return nil
}

// CreatePerson stores a new person.
func (tx *transaction) CreatePerson(p Person) (Person, error) {
	if p.ID == "" {
		p.ID = tx.store.newID()
	}
	if _, exists := tx.state.people[p.ID]; exists {
		return Person{}, fmt.Errorf("person %q already exists", p.ID)
	}
	p.CreatedAt = tx.now
	p.UpdatedAt = tx.now
	tx.state.people[p.ID] = clonePerson(p)
	tx.recordChange(Change{Entity: domain.EntityPerson, Action: domain.ActionCreate, After: clonePerson(p)})
	return clonePerson(p), nil
}

// UpdatePerson mutates a person using the provided mutator function.
func (tx *transaction) UpdatePerson(id string, mutator func(*Person) error) (Person, error) {
	current, ok := tx.state.people[id]
	if !ok {
		return Person{}, domain.ErrNotFound{Entity: domain.EntityPerson, ID: id}
	}
	before := clonePerson(current)
	if err := mutator(&current); err != nil {
		return Person{}, err
	}
	current.ID = id
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	tx.state.people[id] = clonePerson(current)
	tx.recordChange(Change{Entity: domain.EntityPerson, Action: domain.ActionUpdate, Before: before, After: clonePerson(current)})
	return clonePerson(current), nil
}

// DeletePerson removes a person who is nobody's parent.
func (tx *transaction) DeletePerson(id string) error {
	current, ok := tx.state.people[id]
	if !ok {
		return domain.ErrNotFound{Entity: domain.EntityPerson, ID: id}
	}
	for _, p := range tx.state.people {
		for _, parentID := range p.ParentIDs {
			if parentID == id {
				return fmt.Errorf("person %q still referenced as parent by %q", id, p.ID)
			}
		}
	}
	delete(tx.state.people, id)
	tx.recordChange(Change{Entity: domain.EntityPerson, Action: domain.ActionDelete, Before: clonePerson(current)})
	return nil
}

// SaveReport stores a new inference report.
func (tx *transaction) SaveReport(r Report) (Report, error) {
	if r.ID == "" {
		r.ID = tx.store.newID()
	}
	if _, exists := tx.state.reports[r.ID]; exists {
		return Report{}, fmt.Errorf("report %q already exists", r.ID)
	}
	if _, ok := tx.state.families[r.FamilyID]; !ok {
		return Report{}, domain.ErrNotFound{Entity: domain.EntityFamily, ID: r.FamilyID}
	}
	r.CreatedAt = tx.now
	r.UpdatedAt = tx.now
	tx.state.reports[r.ID] = cloneReport(r)
	tx.recordChange(Change{Entity: domain.EntityReport, Action: domain.ActionCreate, After: cloneReport(r)})
	return cloneReport(r), nil
}

// DeleteReport removes a report.
func (tx *transaction) DeleteReport(id string) error {
	current, ok := tx.state.reports[id]
	if !ok {
		return domain.ErrNotFound{Entity: domain.EntityReport, ID: id}
	}
	delete(tx.state.reports, id)
	tx.recordChange(Change{Entity: domain.EntityReport, Action: domain.ActionDelete, Before: cloneReport(current)})
	return nil
}

// GetFamily returns a family by id.
func (s *Store) GetFamily(id string) (Family, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return transactionView{state: &s.state}.FindFamily(id)
}

// ListFamilies returns all families ordered by id.
func (s *Store) ListFamilies() []Family {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return transactionView{state: &s.state}.ListFamilies()
}

// GetPerson returns a person by id.
func (s *Store) GetPerson(id string) (Person, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return transactionView{state: &s.state}.FindPerson(id)
}

// ListPeople returns all people ordered by id.
func (s *Store) ListPeople() []Person {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return transactionView{state: &s.state}.ListPeople()
}

// GetReport returns a report by id.
func (s *Store) GetReport(id string) (Report, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return transactionView{state: &s.state}.FindReport(id)
}

// ListReports returns all reports ordered by creation time.
func (s *Store) ListReports() []Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return transactionView{state: &s.state}.ListReports()
}
