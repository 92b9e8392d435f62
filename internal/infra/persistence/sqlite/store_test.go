package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"crisprcore/pkg/domain"
)

func seedTables() domain.Tables {
	return domain.Tables{
		Regions:         []domain.Region{{ID: "1", Sequence: "GGATTTAGAGCTTTTTTT", CategoryCode: 1}, {ID: "2", Sequence: "ACGT", CategoryCode: 3}},
		LocusRegions:    []domain.LocusRegionLink{{RegionID: "1", LocusID: "10", Start: 0, Length: 18}},
		Loci:            []domain.Locus{{ID: "10", SequenceID: "500", EvidenceLevel: domain.IntPtr(4), Orientation: 1, PotentialOrientation: 1}},
		Classifications: []domain.ClassificationRecord{{SequenceID: "500"}},
		SequenceStrains: []domain.SequenceStrain{{SequenceID: "500", StrainID: "7"}},
		Schema:          domain.Schema{domain.TableRegion: {"region_id"}},
	}
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "crispr.db")
	store, err := NewStore(ctx, path)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if _, err := store.LoadTables(ctx); !errors.Is(err, domain.ErrNoTables) {
		t.Fatalf("expected ErrNoTables on a fresh database, got %v", err)
	}
	if err := store.SaveTables(ctx, seedTables()); err != nil {
		t.Fatalf("save: %v", err)
	}
	if store.Path() != path || store.DB() == nil {
		t.Fatalf("unexpected accessors")
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewStore(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.Close() }()
	got, err := reopened.LoadTables(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got.Regions) != 2 || got.Regions[0].Sequence != "GGATTTAGAGCTTTTTTT" {
		t.Fatalf("unexpected regions %+v", got.Regions)
	}
	if got.Loci[0].EvidenceLevel == nil || *got.Loci[0].EvidenceLevel != 4 {
		t.Fatalf("evidence level lost: %+v", got.Loci[0])
	}
	if got.Classifications[0].ClassLabel != nil {
		t.Fatalf("null label must survive the round trip")
	}
	if !got.Schema.HasColumn(domain.TableRegion, "region_id") || got.Schema.HasColumn(domain.TableLocus, domain.ColumnEvidenceLevel) {
		t.Fatalf("schema lost: %+v", got.Schema)
	}
}

func TestSaveOverwritesBuckets(t *testing.T) {
	ctx := context.Background()
	store, err := NewStore(ctx, filepath.Join(t.TempDir(), "crispr.db"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer func() { _ = store.Close() }()
	if err := store.SaveTables(ctx, seedTables()); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.SaveTables(ctx, domain.Tables{Regions: []domain.Region{{ID: "9", Sequence: "C", CategoryCode: 3}}}); err != nil {
		t.Fatalf("second save: %v", err)
	}
	var count int
	if err := store.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM state`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 6 {
		t.Fatalf("expected one row per bucket, got %d", count)
	}
	got, _ := store.LoadTables(ctx)
	if len(got.Regions) != 1 || len(got.Loci) != 0 {
		t.Fatalf("expected second snapshot only, got %+v", got)
	}
}

func TestSaveCancelled(t *testing.T) {
	store, err := NewStore(context.Background(), filepath.Join(t.TempDir(), "crispr.db"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer func() { _ = store.Close() }()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := store.SaveTables(ctx, seedTables()); err == nil {
		t.Fatalf("expected error on cancelled context")
	}
	if store.Saved() {
		t.Fatalf("failed save must not update the snapshot")
	}
}
