package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"sync"
	"time"

	"github.com/google/uuid"

	"heredity/internal/blob"
	"heredity/internal/enumerate"
	"heredity/internal/report"
	"heredity/pkg/domain"
)

// ErrNoBlobStore is returned by ExportReport when the service was built
// without WithBlobStore.
var ErrNoBlobStore = errors.New("no blob store configured")

// Service exposes transactional family and person management, inference runs
// and report export.
type Service struct {
	store     PersistentStore
	clock     Clock
	logger    Logger
	audit     AuditRecorder
	metrics   MetricsRecorder
	tracer    Tracer
	tables    domain.PopulationTables
	inference enumerate.Options
	blobs     blob.Store

	mu      sync.Mutex
	plugins map[string]PluginMetadata
}

type engineProvider interface {
	RulesEngine() *RulesEngine
}

type clockSetter interface {
	SetNowFunc(func() time.Time)
}

// NewService constructs a service backed by the supplied store.
func NewService(store PersistentStore, opts ...ServiceOption) *Service {
	o := defaultServiceOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.clockSet {
		if setter, ok := store.(clockSetter); ok {
			setter.SetNowFunc(o.clock.Now)
		}
	}
	return &Service{
		store:     store,
		clock:     o.clock,
		logger:    o.logger,
		audit:     o.audit,
		metrics:   o.metrics,
		tracer:    o.tracer,
		tables:    o.tables,
		inference: o.inference,
		blobs:     o.blobs,
		plugins:   make(map[string]PluginMetadata),
	}
}

// NewInMemoryService creates a service over a fresh in-memory store. A nil
// engine gets the default rule set.
func NewInMemoryService(engine *RulesEngine, opts ...ServiceOption) *Service {
	if engine == nil {
		engine = NewDefaultRulesEngine()
	}
	return NewService(NewMemoryStore(engine), opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() PersistentStore {
	return s.store
}

type auditTarget struct {
	entity domain.EntityType
	action domain.Action
}

var auditedOperations = map[string]auditTarget{
	"create_family":   {EntityFamily, domain.ActionCreate},
	"update_family":   {EntityFamily, domain.ActionUpdate},
	"delete_family":   {EntityFamily, domain.ActionDelete},
	"add_person":      {EntityPerson, domain.ActionCreate},
	"update_person":   {EntityPerson, domain.ActionUpdate},
	"delete_person":   {EntityPerson, domain.ActionDelete},
	"import_pedigree": {EntityFamily, domain.ActionCreate},
	"run_inference":   {EntityReport, domain.ActionCreate},
	"delete_report":   {EntityReport, domain.ActionDelete},
}

// observe runs fn inside a span and reports its outcome to metrics, the
// logger and, for mutations, the audit recorder. fn returns the id of the
// entity it touched.
func (s *Service) observe(ctx context.Context, op, entityID string, fn func(context.Context) (string, Result, error)) (Result, error) {
	ctx, span := s.tracer.Start(ctx, op)
	start := time.Now()
	id, res, err := fn(ctx)
	duration := time.Since(start)
	span.End(err)
	if id == "" {
		id = entityID
	}

	s.metrics.Observe(ctx, op, err == nil, duration)
	if err != nil {
		s.logger.Error("operation failed", "operation", op, "entity_id", id, "error", err, "duration", duration)
	} else {
		s.logger.Debug("operation completed", "operation", op, "entity_id", id, "duration", duration)
	}
	for _, v := range res.Violations {
		if v.Severity == domain.SeverityBlock {
			continue
		}
		s.logger.Warn("rule violation", "operation", op, "rule", v.Rule, "severity", v.Severity, "entity", v.Entity, "entity_id", v.EntityID, "message", v.Message)
	}

	if target, ok := auditedOperations[op]; ok {
		entry := AuditEntry{
			Operation: op,
			Entity:    target.entity,
			Action:    target.action,
			EntityID:  id,
			Status:    AuditStatusSuccess,
			Duration:  duration,
			Timestamp: s.clock.Now(),
		}
		if err != nil {
			entry.Status = AuditStatusError
			entry.Error = err.Error()
		}
		s.audit.Record(ctx, entry)
	}
	return res, err
}

// CreateFamily persists a new family.
func (s *Service) CreateFamily(ctx context.Context, family Family) (Family, Result, error) {
	var created Family
	res, err := s.observe(ctx, "create_family", family.ID, func(ctx context.Context) (string, Result, error) {
		res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			created, err = tx.CreateFamily(family)
			return err
		})
		return created.ID, res, err
	})
	return created, res, err
}

// UpdateFamily mutates a family using the provided mutator.
func (s *Service) UpdateFamily(ctx context.Context, id string, mutator func(*Family) error) (Family, Result, error) {
	var updated Family
	res, err := s.observe(ctx, "update_family", id, func(ctx context.Context) (string, Result, error) {
		res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			updated, err = tx.UpdateFamily(id, mutator)
			return err
		})
		return id, res, err
	})
	return updated, res, err
}

// DeleteFamily removes an empty family together with its reports.
func (s *Service) DeleteFamily(ctx context.Context, id string) (Result, error) {
	return s.observe(ctx, "delete_family", id, func(ctx context.Context) (string, Result, error) {
		res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
			return tx.DeleteFamily(id)
		})
		return id, res, err
	})
}

// AddPerson adds a person to an existing family.
func (s *Service) AddPerson(ctx context.Context, person Person) (Person, Result, error) {
	var created Person
	res, err := s.observe(ctx, "add_person", person.ID, func(ctx context.Context) (string, Result, error) {
		res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
			if _, ok := tx.FindFamily(person.FamilyID); !ok {
				return domain.ErrNotFound{Entity: EntityFamily, ID: person.FamilyID}
			}
			var err error
			created, err = tx.CreatePerson(person)
			return err
		})
		return created.ID, res, err
	})
	return created, res, err
}

// UpdatePerson mutates a person using the provided mutator.
func (s *Service) UpdatePerson(ctx context.Context, id string, mutator func(*Person) error) (Person, Result, error) {
	var updated Person
	res, err := s.observe(ctx, "update_person", id, func(ctx context.Context) (string, Result, error) {
		res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			updated, err = tx.UpdatePerson(id, mutator)
			return err
		})
		return id, res, err
	})
	return updated, res, err
}

// DeletePerson removes a person who is nobody's parent.
func (s *Service) DeletePerson(ctx context.Context, id string) (Result, error) {
	return s.observe(ctx, "delete_person", id, func(ctx context.Context) (string, Result, error) {
		res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
			return tx.DeletePerson(id)
		})
		return id, res, err
	})
}

// ImportPedigree creates a family named familyName holding people in a
// single transaction. The ids of people and their ParentIDs are local keys;
// each is stored as "<familyID>:<key>".
func (s *Service) ImportPedigree(ctx context.Context, familyName string, people []Person) (Family, []Person, Result, error) {
	var (
		family  Family
		created []Person
	)
	res, err := s.observe(ctx, "import_pedigree", "", func(ctx context.Context) (string, Result, error) {
		if err := validateImport(people); err != nil {
			return "", Result{}, err
		}
		res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			family, err = tx.CreateFamily(Family{Name: familyName})
			if err != nil {
				return err
			}
			created = make([]Person, 0, len(people))
			for _, p := range people {
				p.ID = importedID(family.ID, p.ID)
				p.FamilyID = family.ID
				parents := make([]string, len(p.ParentIDs))
				for i, parentID := range p.ParentIDs {
					parents[i] = importedID(family.ID, parentID)
				}
				p.ParentIDs = parents
				stored, err := tx.CreatePerson(p)
				if err != nil {
					return err
				}
				created = append(created, stored)
			}
			return nil
		})
		if err != nil {
			created = nil
		}
		return family.ID, res, err
	})
	return family, created, res, err
}

func validateImport(people []Person) error {
	seen := make(map[string]struct{}, len(people))
	for _, p := range people {
		if p.ID == "" {
			return domain.InvalidPedigreeError{PersonID: p.Name, Reason: "has no id"}
		}
		if _, dup := seen[p.ID]; dup {
			return domain.InvalidPedigreeError{PersonID: p.ID, Reason: "appears more than once"}
		}
		seen[p.ID] = struct{}{}
	}
	return domain.NewPedigree(people).Validate()
}

func importedID(familyID, key string) string {
	return familyID + ":" + key
}

// Pedigree returns the people of a family keyed by id.
func (s *Service) Pedigree(ctx context.Context, familyID string) (domain.Pedigree, error) {
	var pedigree domain.Pedigree
	_, err := s.observe(ctx, "pedigree", familyID, func(ctx context.Context) (string, Result, error) {
		return familyID, Result{}, s.store.View(ctx, func(view TransactionView) error {
			p, ok := view.Pedigree(familyID)
			if !ok {
				return domain.ErrNotFound{Entity: EntityFamily, ID: familyID}
			}
			pedigree = p
			return nil
		})
	})
	return pedigree, err
}

// RunInference computes the posterior gene and trait distributions of every
// member of a family and stores them as a report.
func (s *Service) RunInference(ctx context.Context, familyID string) (Report, error) {
	var saved Report
	_, err := s.observe(ctx, "run_inference", "", func(ctx context.Context) (string, Result, error) {
		var pedigree domain.Pedigree
		err := s.store.View(ctx, func(view TransactionView) error {
			p, ok := view.Pedigree(familyID)
			if !ok {
				return domain.ErrNotFound{Entity: EntityFamily, ID: familyID}
			}
			pedigree = p
			return nil
		})
		if err != nil {
			return "", Result{}, err
		}

		out, err := enumerate.Infer(ctx, pedigree, s.tables, s.inference)
		if err != nil {
			return "", Result{}, fmt.Errorf("infer family %s: %w", familyID, err)
		}
		if rec, ok := s.metrics.(InferenceRecorder); ok {
			rec.ObserveInference(ctx, out.Worlds)
		}
		s.logger.Info("inference completed", "family_id", familyID, "people", len(pedigree), "evidence", pedigree.Evidence(), "worlds", out.Worlds)

		res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			saved, err = tx.SaveReport(Report{
				Base:          domain.Base{ID: uuid.NewString()},
				FamilyID:      familyID,
				Tables:        s.tables,
				Distributions: out.Distributions,
				Worlds:        out.Worlds,
				Evidence:      pedigree.Evidence(),
			})
			return err
		})
		return saved.ID, res, err
	})
	return saved, err
}

// Report returns a stored report.
func (s *Service) Report(ctx context.Context, id string) (Report, error) {
	var found Report
	_, err := s.observe(ctx, "get_report", id, func(context.Context) (string, Result, error) {
		r, ok := s.store.GetReport(id)
		if !ok {
			return id, Result{}, domain.ErrNotFound{Entity: EntityReport, ID: id}
		}
		found = r
		return id, Result{}, nil
	})
	return found, err
}

// ListReports returns the reports of a family in creation order, or every
// report when familyID is empty.
func (s *Service) ListReports(ctx context.Context, familyID string) ([]Report, error) {
	var out []Report
	_, err := s.observe(ctx, "list_reports", familyID, func(ctx context.Context) (string, Result, error) {
		return familyID, Result{}, s.store.View(ctx, func(view TransactionView) error {
			if familyID != "" {
				if _, ok := view.FindFamily(familyID); !ok {
					return domain.ErrNotFound{Entity: EntityFamily, ID: familyID}
				}
			}
			for _, r := range view.ListReports() {
				if familyID == "" || r.FamilyID == familyID {
					out = append(out, r)
				}
			}
			return nil
		})
	})
	return out, err
}

// DeleteReport removes a stored report. Exported copies are left in place.
func (s *Service) DeleteReport(ctx context.Context, id string) (Result, error) {
	return s.observe(ctx, "delete_report", id, func(ctx context.Context) (string, Result, error) {
		res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
			return tx.DeleteReport(id)
		})
		return id, res, err
	})
}

// ExportReport writes a report as JSON to the blob store under
// reports/<family>/<report>.json. Reports are immutable, so exporting twice
// returns the existing blob.
func (s *Service) ExportReport(ctx context.Context, reportID string) (blob.Info, error) {
	var info blob.Info
	_, err := s.observe(ctx, "export_report", reportID, func(ctx context.Context) (string, Result, error) {
		if s.blobs == nil {
			return reportID, Result{}, ErrNoBlobStore
		}
		var (
			r        Report
			pedigree domain.Pedigree
		)
		err := s.store.View(ctx, func(view TransactionView) error {
			found, ok := view.FindReport(reportID)
			if !ok {
				return domain.ErrNotFound{Entity: EntityReport, ID: reportID}
			}
			r = found
			pedigree, _ = view.Pedigree(found.FamilyID)
			return nil
		})
		if err != nil {
			return reportID, Result{}, err
		}

		var buf bytes.Buffer
		if err := report.WriteJSON(&buf, report.New(r, pedigree)); err != nil {
			return reportID, Result{}, fmt.Errorf("encode report %s: %w", reportID, err)
		}
		key := ReportKey(r)
		info, err = s.blobs.Put(ctx, key, &buf, blob.PutOptions{
			ContentType: "application/json",
			Metadata:    map[string]string{"family_id": r.FamilyID, "report_id": r.ID},
		})
		if errors.Is(err, blob.ErrExists) {
			info, err = s.blobs.Head(ctx, key)
		}
		if err != nil {
			return reportID, Result{}, fmt.Errorf("export report %s: %w", reportID, err)
		}
		s.logger.Info("report exported", "report_id", reportID, "key", info.Key, "driver", s.blobs.Driver(), "size", info.Size)
		return reportID, Result{}, nil
	})
	return info, err
}

// ReportKey returns the blob key ExportReport writes r to.
func ReportKey(r Report) string {
	return path.Join("reports", r.FamilyID, r.ID+".json")
}

// InstallPlugin registers a plugin, wiring its rules into the store's engine.
func (s *Service) InstallPlugin(plugin Plugin) (PluginMetadata, error) {
	if plugin == nil {
		return PluginMetadata{}, fmt.Errorf("plugin cannot be nil")
	}
	provider, ok := s.store.(engineProvider)
	if !ok || provider.RulesEngine() == nil {
		return PluginMetadata{}, fmt.Errorf("store does not expose a rules engine")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.plugins[plugin.Name()]; ok {
		return PluginMetadata{}, fmt.Errorf("plugin %s already registered", plugin.Name())
	}

	registry := NewPluginRegistry()
	if err := plugin.Register(registry); err != nil {
		return PluginMetadata{}, err
	}

	meta := PluginMetadata{Name: plugin.Name(), Version: plugin.Version()}
	engine := provider.RulesEngine()
	for _, rule := range registry.Rules() {
		engine.Register(rule)
		meta.Rules = append(meta.Rules, rule.Name())
	}
	s.plugins[plugin.Name()] = meta
	s.logger.Info("plugin installed", "plugin", meta.Name, "version", meta.Version, "rules", len(meta.Rules))
	return meta, nil
}

// RegisteredPlugins returns metadata describing installed plugins, sorted by name.
func (s *Service) RegisteredPlugins() []PluginMetadata {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]PluginMetadata, 0, len(s.plugins))
	for _, meta := range s.plugins {
		out = append(out, meta)
	}
	sortPlugins(out)
	return out
}
