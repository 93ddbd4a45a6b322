package store

import "github.com/rcl-research/rcl/internal/model"

// Ensure NopStore implements model.RunStore.
var _ model.RunStore = (*NopStore)(nil)

// NopStore is a no-op store used in dry-run mode. Runs are given an ID but
// never written, so GetRun always misses.
type NopStore struct{}

func NewNopStore() *NopStore { return &NopStore{} }

func (s *NopStore) SaveRun(run *model.Run) error {
	if run.ID == "" {
		run.ID = "dry-run"
	}
	return nil
}

func (s *NopStore) GetRun(id string) (*model.Run, error) { return nil, ErrRunNotFound }
func (s *NopStore) ListRuns(limit int) ([]model.Run, error) { return nil, nil }
