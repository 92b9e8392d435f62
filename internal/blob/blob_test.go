package blob

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func TestOpenDrivers(t *testing.T) {
	ctx := context.Background()
	fsStore, err := Open(ctx, Config{FSRoot: filepath.Join(t.TempDir(), "blobs")})
	if err != nil || fsStore.Driver() != DriverFilesystem {
		t.Fatalf("default driver should be fs: %v", err)
	}
	mem, err := Open(ctx, Config{Driver: DriverMemory})
	if err != nil || mem.Driver() != DriverMemory {
		t.Fatalf("memory driver: %v", err)
	}
	if _, err := Open(ctx, Config{Driver: DriverS3}); err == nil {
		t.Fatalf("s3 without bucket must fail")
	}
	if _, err := Open(ctx, Config{Driver: "ftp"}); err == nil {
		t.Fatalf("unknown driver must fail")
	}
}

func TestKeys(t *testing.T) {
	if got := RunKey("abc", ArtifactMatureRNAs); got != "runs/abc/crRNAs.fasta" {
		t.Fatalf("unexpected run key %s", got)
	}
	if got := TableKey("e1", "crisprlocus"); got != "tables/e1/crisprlocus.json" {
		t.Fatalf("unexpected table key %s", got)
	}
}

func TestPutBytesReadAllAcrossBackends(t *testing.T) {
	ctx := context.Background()
	fsStore, err := NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("fs: %v", err)
	}
	for _, s := range []Store{NewMemory(), fsStore, NewMockS3ForTests()} {
		key := RunKey("r1", ArtifactRepeats)
		if _, err := PutBytes(ctx, s, key, []byte(">sequence_1|subtype:Undetermined\nGGAT\n"), ContentTypeFASTA, nil); err != nil {
			t.Fatalf("%s put: %v", s.Driver(), err)
		}
		data, err := ReadAll(ctx, s, key)
		if err != nil {
			t.Fatalf("%s read: %v", s.Driver(), err)
		}
		if string(data) != ">sequence_1|subtype:Undetermined\nGGAT\n" {
			t.Fatalf("%s unexpected data %q", s.Driver(), data)
		}
		if _, err := PutBytes(ctx, s, key, []byte("x"), ContentTypeFASTA, nil); !errors.Is(err, ErrExists) {
			t.Fatalf("%s expected ErrExists, got %v", s.Driver(), err)
		}
		if _, err := ReadAll(ctx, s, RunKey("r1", "missing")); !errors.Is(err, ErrNotFound) {
			t.Fatalf("%s expected ErrNotFound, got %v", s.Driver(), err)
		}
	}
}
