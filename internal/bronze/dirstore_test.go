package bronze

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/lodestone-data/lodestone/internal/log"
)

const ordersYAML = `name: orders_api
source_type: api
description: Orders from the commerce API
enabled: true
tags:
  domain: sales
extract:
  load_type: incremental
  base_url: https://api.example.com/orders
target:
  catalog: main
  schema: bronze
  table: orders
  cdc:
    enabled: true
    mode: upsert
    primary_keys:
      - order_id
schedule:
  cron_expression: "0 2 * * *"
`

const customersYAML = `name: customers_db
source_type: jdbc
enabled: false
extract:
  table: dbo.customers
target:
  catalog: main
  table: customers
`

func writeSources(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
			t.Fatalf("writing fixture %s: %v", name, err)
		}
	}
	return dir
}

func TestDirStore_ListSources(t *testing.T) {
	dir := writeSources(t, map[string]string{
		"orders_api.yaml":   ordersYAML,
		"customers_db.yaml": customersYAML,
		"broken.yaml":       "::: not yaml :::",
		"notes.txt":         "ignored",
	})
	store := NewDirStore(dir, log.NewNop())

	sources, err := store.ListSources(context.Background())
	if err != nil {
		t.Fatalf("ListSources: %v", err)
	}
	if len(sources) != 2 {
		t.Fatalf("got %d sources, want 2 (broken and non-yaml skipped)", len(sources))
	}

	// Sorted by file name: customers_db before orders_api.
	customers := sources[0]
	if customers.Name != "customers_db" {
		t.Fatalf("first source = %s, want customers_db", customers.Name)
	}
	if customers.Enabled {
		t.Error("customers_db should be disabled")
	}
	if customers.CDCMode != CDCModeAppend {
		t.Errorf("CDCMode = %s, want default append", customers.CDCMode)
	}
	if customers.LoadType != LoadTypeFull {
		t.Errorf("LoadType = %s, want default full", customers.LoadType)
	}
	if customers.TargetTable != "main.bronze.customers" {
		t.Errorf("TargetTable = %s, want main.bronze.customers (schema defaults)", customers.TargetTable)
	}

	orders := sources[1]
	if orders.Type != SourceTypeAPI || orders.CDCMode != CDCModeUpsert || orders.LoadType != LoadTypeIncremental {
		t.Errorf("orders summary = %+v", orders)
	}
	if orders.Schedule != "0 2 * * *" {
		t.Errorf("Schedule = %q", orders.Schedule)
	}
	if orders.Tags["domain"] != "sales" {
		t.Errorf("Tags = %v", orders.Tags)
	}
}

func TestDirStore_ListSources_MissingDir(t *testing.T) {
	store := NewDirStore(filepath.Join(t.TempDir(), "nope"), log.NewNop())

	sources, err := store.ListSources(context.Background())
	if err != nil {
		t.Fatalf("missing dir should not error, got %v", err)
	}
	if len(sources) != 0 {
		t.Errorf("got %d sources, want 0", len(sources))
	}
}

func TestDirStore_GetSource(t *testing.T) {
	dir := writeSources(t, map[string]string{"orders_api.yaml": ordersYAML})
	store := NewDirStore(dir, log.NewNop())

	detail, err := store.GetSource(context.Background(), "orders_api")
	if err != nil {
		t.Fatalf("GetSource: %v", err)
	}
	if detail.RawYAML != ordersYAML {
		t.Error("RawYAML must be preserved verbatim")
	}
	if detail.Target.Catalog != "main" || detail.Target.CDC.Mode != CDCModeUpsert {
		t.Errorf("detail target = %+v", detail.Target)
	}
	if len(detail.Target.CDC.PrimaryKeys) != 1 || detail.Target.CDC.PrimaryKeys[0] != "order_id" {
		t.Errorf("primary keys = %v", detail.Target.CDC.PrimaryKeys)
	}
}

func TestDirStore_GetSource_NotFound(t *testing.T) {
	dir := writeSources(t, map[string]string{"orders_api.yaml": ordersYAML})
	store := NewDirStore(dir, log.NewNop())

	_, err := store.GetSource(context.Background(), "missing")
	if !errors.Is(err, ErrSourceNotFound) {
		t.Errorf("err = %v, want ErrSourceNotFound", err)
	}
}

func TestDirStore_GetSource_NameFallsBackToFileStem(t *testing.T) {
	dir := writeSources(t, map[string]string{
		"events.yaml": "source_type: stream\ntarget:\n  catalog: main\n  table: events\n",
	})
	store := NewDirStore(dir, log.NewNop())

	detail, err := store.GetSource(context.Background(), "events")
	if err != nil {
		t.Fatalf("GetSource: %v", err)
	}
	if detail.Name != "events" {
		t.Errorf("Name = %s, want events", detail.Name)
	}
}
