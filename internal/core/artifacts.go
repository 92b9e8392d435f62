package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"crisprcore/internal/blob"
)

// RunArtifact is one stored run artifact with its content.
type RunArtifact struct {
	Info blob.Info
	Data []byte
}

func validRunPart(kind, v string) error {
	if v == "" || v == "." || v == ".." || strings.ContainsAny(v, `/\`) {
		return fmt.Errorf("invalid %s %q", kind, v)
	}
	return nil
}

func runPrefix(runID string) string { return blob.RunKey(runID, "") + "/" }

// ListRun returns the artifacts stored for runID in key order. A run without
// artifacts is reported as blob.ErrNotFound.
func (s *Service) ListRun(ctx context.Context, runID string) ([]blob.Info, error) {
	var list []blob.Info
	err := s.instrument(ctx, OpArtifacts, func(ctx context.Context) error {
		var err error
		list, err = s.listRun(ctx, runID)
		return err
	})
	return list, err
}

func (s *Service) listRun(ctx context.Context, runID string) ([]blob.Info, error) {
	if err := validRunPart("run id", runID); err != nil {
		return nil, err
	}
	list, err := s.blobs.List(ctx, runPrefix(runID))
	if err != nil {
		return nil, fmt.Errorf("list run %s: %w", runID, err)
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("run %s: %w", runID, blob.ErrNotFound)
	}
	return list, nil
}

// ReadRunArtifact fetches one artifact of a run.
func (s *Service) ReadRunArtifact(ctx context.Context, runID, name string) (RunArtifact, error) {
	var out RunArtifact
	err := s.instrument(ctx, OpArtifacts, func(ctx context.Context) error {
		if err := validRunPart("run id", runID); err != nil {
			return err
		}
		if err := validRunPart("artifact name", name); err != nil {
			return err
		}
		key := blob.RunKey(runID, name)
		info, err := s.blobs.Head(ctx, key)
		if err != nil {
			return fmt.Errorf("artifact %s: %w", key, err)
		}
		data, err := blob.ReadAll(ctx, s.blobs, key)
		if err != nil {
			return fmt.Errorf("artifact %s: %w", key, err)
		}
		out = RunArtifact{Info: info, Data: data}
		return nil
	})
	return out, err
}

// RunArtifactURL returns a GET URL for one artifact of a run. Backends that
// cannot sign URLs return blob.ErrUnsupported.
func (s *Service) RunArtifactURL(ctx context.Context, runID, name string, expiry time.Duration) (string, error) {
	var url string
	err := s.instrument(ctx, OpArtifacts, func(ctx context.Context) error {
		if err := validRunPart("run id", runID); err != nil {
			return err
		}
		if err := validRunPart("artifact name", name); err != nil {
			return err
		}
		key := blob.RunKey(runID, name)
		if _, err := s.blobs.Head(ctx, key); err != nil {
			return fmt.Errorf("artifact %s: %w", key, err)
		}
		var err error
		url, err = s.blobs.PresignURL(ctx, key, blob.SignedURLOptions{Method: "GET", Expiry: expiry})
		if err != nil {
			return fmt.Errorf("sign %s: %w", key, err)
		}
		return nil
	})
	return url, err
}

// DeleteRun removes every artifact of a run and returns the removed keys.
func (s *Service) DeleteRun(ctx context.Context, runID string) ([]string, error) {
	var removed []string
	err := s.instrument(ctx, OpDeleteRun, func(ctx context.Context) error {
		list, err := s.listRun(ctx, runID)
		if err != nil {
			return err
		}
		for _, info := range list {
			ok, err := s.blobs.Delete(ctx, info.Key)
			if err != nil {
				return fmt.Errorf("delete %s: %w", info.Key, err)
			}
			if ok {
				removed = append(removed, info.Key)
			}
		}
		s.opts.logger.Info("run artifacts deleted", "run_id", runID, "artifacts", len(removed))
		return nil
	})
	return removed, err
}
