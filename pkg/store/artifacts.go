package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/richard-senior/matchpredictor/internal/logger"
	"github.com/richard-senior/matchpredictor/pkg/predictor"
)

// HeadCurrent names the head that serving uses
const HeadCurrent = "current"

// Artifact is one committed model snapshot, keyed by its content version
type Artifact struct {
	Version      string    `json:"version" column:"version" dbtype:"TEXT" primary:"true"`
	RunID        string    `json:"runId" column:"run_id" dbtype:"TEXT"`
	CreatedAt    time.Time `json:"createdAt" column:"created_at" dbtype:"TIMESTAMP" index:"true"`
	TrainingRows int       `json:"trainingRows" column:"training_rows" dbtype:"INTEGER DEFAULT 0"`
	Payload      string    `json:"-" column:"payload" dbtype:"TEXT NOT NULL"`
	Active       bool      `json:"active" persist:"false"`
}

func (a *Artifact) GetTableName() string { return "model_artifacts" }

func (a *Artifact) GetPrimaryKey() map[string]interface{} {
	return map[string]interface{}{"version": a.Version}
}

func (a *Artifact) SetPrimaryKey(pk map[string]interface{}) error {
	v, ok := pk["version"].(string)
	if !ok {
		return fmt.Errorf("primary key 'version' missing")
	}
	a.Version = v
	return nil
}

func (a *Artifact) BeforeSave() error {
	if a.Version == "" {
		return fmt.Errorf("artifact version cannot be empty")
	}
	if a.Payload == "" {
		return fmt.Errorf("artifact %s has no payload", a.Version)
	}
	return nil
}

func (a *Artifact) AfterSave() error    { return nil }
func (a *Artifact) BeforeDelete() error { return nil }
func (a *Artifact) AfterDelete() error  { return nil }

// Head points a name at an artifact version
type Head struct {
	Name      string    `column:"name" dbtype:"TEXT" primary:"true"`
	Version   string    `column:"version" dbtype:"TEXT NOT NULL"`
	UpdatedAt time.Time `column:"updated_at" dbtype:"TIMESTAMP"`
}

func (h *Head) GetTableName() string { return "model_head" }

func (h *Head) GetPrimaryKey() map[string]interface{} {
	return map[string]interface{}{"name": h.Name}
}

func (h *Head) SetPrimaryKey(pk map[string]interface{}) error {
	v, ok := pk["name"].(string)
	if !ok {
		return fmt.Errorf("primary key 'name' missing")
	}
	h.Name = v
	return nil
}

func (h *Head) BeforeSave() error {
	if h.Name == "" || h.Version == "" {
		return fmt.Errorf("head needs a name and a version")
	}
	return nil
}

func (h *Head) AfterSave() error    { return nil }
func (h *Head) BeforeDelete() error { return nil }
func (h *Head) AfterDelete() error  { return nil }

// ArtifactStore keeps every trained snapshot and the head pointing at the one in use
type ArtifactStore struct {
	store *Store
	now   func() time.Time
}

func NewArtifactStore(s *Store) *ArtifactStore {
	return &ArtifactStore{store: s, now: time.Now}
}

// Commit stores the snapshot if its version is new and moves the current head to it,
// both in one transaction
func (a *ArtifactStore) Commit(s *predictor.Snapshot) error {
	if s == nil || s.Version == "" {
		return fmt.Errorf("cannot commit an unversioned snapshot")
	}
	data, err := s.Encode()
	if err != nil {
		return err
	}
	artifact := &Artifact{
		Version:      s.Version,
		RunID:        s.RunID,
		CreatedAt:    s.CreatedAt.UTC(),
		TrainingRows: s.TrainingRows,
		Payload:      string(data),
	}

	err = a.store.Transaction(func(tx *Session) error {
		exists, err := tx.Exists(artifact)
		if err != nil {
			return err
		}
		if exists {
			logger.Info("Model already stored, moving head only", s.ShortVersion())
		} else if err := tx.Insert(artifact); err != nil {
			return err
		}
		return tx.Save(&Head{Name: HeadCurrent, Version: s.Version, UpdatedAt: a.now().UTC()})
	})
	if err != nil {
		return fmt.Errorf("failed to commit model %s: %w", s.ShortVersion(), err)
	}
	logger.Info("Committed model", s.ShortVersion())
	return nil
}

// HeadVersion returns the version the current head points at
func (a *ArtifactStore) HeadVersion() (string, error) {
	h := &Head{}
	if err := a.store.FindByPrimaryKey(h, map[string]interface{}{"name": HeadCurrent}); err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", &predictor.ModelNotFoundError{Err: errors.New("no model has been committed")}
		}
		return "", err
	}
	return h.Version, nil
}

// Head loads the snapshot the current head points at
func (a *ArtifactStore) Head() (*predictor.Snapshot, error) {
	version, err := a.HeadVersion()
	if err != nil {
		return nil, err
	}
	return a.Load(version)
}

// Load decodes a stored snapshot. Missing or damaged artifacts yield a ModelNotFoundError.
func (a *ArtifactStore) Load(version string) (*predictor.Snapshot, error) {
	artifact := &Artifact{}
	if err := a.store.FindByPrimaryKey(artifact, map[string]interface{}{"version": version}); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, &predictor.ModelNotFoundError{Err: fmt.Errorf("model version %s not found", version)}
		}
		return nil, err
	}
	s, err := predictor.DecodeSnapshot([]byte(artifact.Payload))
	if err != nil {
		return nil, err
	}
	if s.Version != version {
		return nil, &predictor.ModelNotFoundError{Err: fmt.Errorf("artifact %s holds model %s", version, s.Version)}
	}
	return s, nil
}

// List returns the stored artifacts newest first, payloads omitted
func (a *ArtifactStore) List() ([]*Artifact, error) {
	results, err := a.store.FindAll(&Artifact{}, "created_at DESC, version")
	if err != nil {
		return nil, err
	}
	head, err := a.HeadVersion()
	if err != nil && !errors.Is(err, predictor.ErrModelNotFound) {
		return nil, err
	}
	artifacts := make([]*Artifact, 0, len(results))
	for _, r := range results {
		artifact := r.(*Artifact)
		artifact.Payload = ""
		artifact.Active = artifact.Version == head
		artifacts = append(artifacts, artifact)
	}
	return artifacts, nil
}

// Activate moves the current head to an existing version and returns its snapshot
func (a *ArtifactStore) Activate(version string) (*predictor.Snapshot, error) {
	s, err := a.Load(version)
	if err != nil {
		return nil, err
	}
	if err := a.store.Save(&Head{Name: HeadCurrent, Version: version, UpdatedAt: a.now().UTC()}); err != nil {
		return nil, fmt.Errorf("failed to activate model %s: %w", s.ShortVersion(), err)
	}
	logger.Info("Activated model", s.ShortVersion())
	return s, nil
}
