package memory

import (
	"encoding/json"
	"fmt"
)

// Bucket names used by the snapshotting backends, one per record collection.
const (
	BucketRegions         = "regions"
	BucketLocusRegions    = "locus_regions"
	BucketLoci            = "loci"
	BucketClassifications = "classifications"
	BucketSequenceStrains = "sequence_strains"
	BucketSchema          = "schema"
)

// Buckets lists every bucket in persistence order.
var Buckets = []string{
	BucketRegions,
	BucketLocusRegions,
	BucketLoci,
	BucketClassifications,
	BucketSequenceStrains,
	BucketSchema,
}

func target(snapshot *Snapshot, bucket string) (any, bool) {
	switch bucket {
	case BucketRegions:
		return &snapshot.Regions, true
	case BucketLocusRegions:
		return &snapshot.LocusRegions, true
	case BucketLoci:
		return &snapshot.Loci, true
	case BucketClassifications:
		return &snapshot.Classifications, true
	case BucketSequenceStrains:
		return &snapshot.SequenceStrains, true
	case BucketSchema:
		return &snapshot.Schema, true
	}
	return nil, false
}

// EncodeBucket marshals one collection of the snapshot.
func EncodeBucket(snapshot Snapshot, bucket string) ([]byte, error) {
	v, ok := target(&snapshot, bucket)
	if !ok {
		return nil, fmt.Errorf("unknown bucket %s", bucket)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", bucket, err)
	}
	return data, nil
}

// DecodeBucket unmarshals payload into the matching collection of snapshot.
// Unknown buckets and empty payloads are ignored.
func DecodeBucket(snapshot *Snapshot, bucket string, payload []byte) error {
	v, ok := target(snapshot, bucket)
	if !ok || len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("decode %s: %w", bucket, err)
	}
	return nil
}
