package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"testing"

	"heredity/internal/infra/persistence/postgres/testutil"
	"heredity/pkg/domain"
)

func openStub(t *testing.T) (*testutil.StubConn, func()) {
	t.Helper()
	db, conn := testutil.NewStubDB()
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	return conn, restore
}

func TestNewStoreCreatesStateTable(t *testing.T) {
	conn, restore := openStub(t)
	defer restore()

	if _, err := NewStore(context.Background(), "", domain.NewRulesEngine()); err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if len(conn.Execs) == 0 || !strings.Contains(conn.Execs[0], "CREATE TABLE IF NOT EXISTS state") {
		t.Fatalf("expected state table DDL, got %v", conn.Execs)
	}
}

func TestRunInTransactionPersistsBuckets(t *testing.T) {
	conn, restore := openStub(t)
	defer restore()

	store, err := NewStore(context.Background(), "ignored", domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		fam, err := tx.CreateFamily(domain.Family{Base: domain.Base{ID: "fam"}, Name: "weasley"})
		if err != nil {
			return err
		}
		_, err = tx.CreatePerson(domain.Person{Base: domain.Base{ID: "ron"}, Name: "Ron", FamilyID: fam.ID})
		return err
	})
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}
	for _, bucket := range buckets {
		if _, ok := conn.Rows[bucket]; !ok {
			t.Fatalf("expected bucket %s to be persisted", bucket)
		}
	}
	var people map[string]domain.Person
	if err := json.Unmarshal(conn.Rows["people"], &people); err != nil {
		t.Fatalf("decode people: %v", err)
	}
	if people["ron"].FamilyID != "fam" {
		t.Fatalf("unexpected persisted people %+v", people)
	}

	reloaded, err := NewStore(context.Background(), "ignored", domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if _, ok := reloaded.GetPerson("ron"); !ok {
		t.Fatalf("expected person hydrated from snapshot")
	}
}

func TestPersistFailuresSurface(t *testing.T) {
	conn, restore := openStub(t)
	defer restore()

	store, err := NewStore(context.Background(), "ignored", nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	conn.FailCommit = true
	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateFamily(domain.Family{Name: "x"})
		return err
	})
	if err == nil || !strings.Contains(err.Error(), "commit") {
		t.Fatalf("expected commit failure, got %v", err)
	}
}

func TestNewStoreErrors(t *testing.T) {
	cases := map[string]func(*testutil.StubConn){
		"ping":  func(c *testutil.StubConn) { c.FailPing = true },
		"exec":  func(c *testutil.StubConn) { c.FailExec = true },
		"query": func(c *testutil.StubConn) { c.FailQuery = true },
		"decode": func(c *testutil.StubConn) {
			c.Rows["people"] = []byte("{not json")
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			conn, restore := openStub(t)
			defer restore()
			mutate(conn)
			if _, err := NewStore(context.Background(), "ignored", nil); err == nil {
				t.Fatalf("expected %s failure", name)
			}
		})
	}
}
