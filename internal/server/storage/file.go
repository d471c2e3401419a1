package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kamikazebr/sentinel/pkg/models"
	"github.com/kamikazebr/sentinel/pkg/utils"
)

// FilePersister keeps the snapshot as one indented JSON file. Saves go
// through a temp file and an atomic rename.
type FilePersister struct {
	path string
}

func NewFilePersister(path string) (*FilePersister, error) {
	if path == "" {
		return nil, fmt.Errorf("state path is required")
	}
	if err := utils.MkdirAllWithOwnership(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	return &FilePersister{path: path}, nil
}

func (p *FilePersister) Path() string {
	return p.path
}

func (p *FilePersister) Load(ctx context.Context) (*models.StateSnapshot, bool, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read state file: %w", err)
	}

	var snapshot models.StateSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, false, fmt.Errorf("failed to parse state file %s: %w", p.path, err)
	}
	return &snapshot, true, nil
}

func (p *FilePersister) Save(ctx context.Context, snapshot *models.StateSnapshot) error {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	return utils.WriteFileAtomic(p.path, data, 0600)
}
