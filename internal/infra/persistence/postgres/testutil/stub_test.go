package testutil

import (
	"context"
	"testing"
)

func TestStubDBCommitsOnlyOnCommit(t *testing.T) {
	ctx := context.Background()
	db, conn := NewStubDB()
	defer func() { _ = db.Close() }()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO state(bucket,payload) VALUES($1,$2)", "regions", []byte(`[]`)); err != nil {
		t.Fatalf("exec: %v", err)
	}
	if _, ok := conn.Bucket("regions"); ok {
		t.Fatalf("write visible before commit")
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if p, ok := conn.Bucket("regions"); !ok || string(p) != "[]" {
		t.Fatalf("expected committed bucket, got %q %v", p, ok)
	}

	conn.Seed("loci", []byte(`null`))
	rows, err := db.QueryContext(ctx, "SELECT bucket, payload FROM state")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	defer func() { _ = rows.Close() }()
	var buckets []string
	for rows.Next() {
		var b string
		var p []byte
		if err := rows.Scan(&b, &p); err != nil {
			t.Fatalf("scan: %v", err)
		}
		buckets = append(buckets, b)
	}
	if len(buckets) != 2 || buckets[0] != "regions" || buckets[1] != "loci" {
		t.Fatalf("unexpected buckets %v", buckets)
	}
}

func TestStubDBRollbackDiscards(t *testing.T) {
	ctx := context.Background()
	db, conn := NewStubDB()
	defer func() { _ = db.Close() }()
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO state(bucket,payload) VALUES($1,$2)", "regions", []byte(`[]`)); err != nil {
		t.Fatalf("exec: %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if _, ok := conn.Bucket("regions"); ok {
		t.Fatalf("rolled back write must not persist")
	}
}
