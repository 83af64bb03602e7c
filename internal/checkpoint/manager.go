package checkpoint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Sumatoshi-tech/lazygrain/pkg/dataset"
	"github.com/Sumatoshi-tech/lazygrain/pkg/persist"
)

// Sentinel errors for checkpoint validation.
var (
	ErrPipelineMismatch = errors.New("pipeline name mismatch")
	ErrStageMismatch    = errors.New("pipeline stage mismatch")
)

// DefaultDir returns the default checkpoint directory (~/.lazygrain/checkpoints).
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}

	return filepath.Join(home, ".lazygrain", "checkpoints")
}

// PipelineHash computes a short hash of the pipeline name for use as a
// checkpoint directory name.
func PipelineHash(pipelineName string) string {
	h := sha256.Sum256([]byte(pipelineName))

	return hex.EncodeToString(h[:8]) // First 8 bytes = 16 hex chars.
}

// Default retention values.
const (
	DefaultMaxAge  = 7 * 24 * time.Hour // 7 days.
	DefaultMaxSize = 1 << 30            // 1GB.
)

// Directory permissions for checkpoints.
const dirPerm = 0o750

const metadataFilename = "checkpoint.json"

// Manager saves and restores the dataset.State of every stage in a
// pipeline (spec §5: "state() returns a nested dictionary... set_state()
// restores exactly the position the dictionary was captured at").
type Manager struct {
	BaseDir      string
	PipelineName string
	Codec        Codec
	MaxAge       time.Duration
	MaxSize      int64
}

// NewManager creates a new checkpoint manager. codec defaults to a plain
// GobCodec when nil; pass persist.NewLZ4GobCodec() for pipelines whose
// packed-array state makes plain gob disproportionately large.
func NewManager(baseDir, pipelineName string, codec Codec) *Manager {
	if codec == nil {
		codec = NewGobCodec()
	}

	return &Manager{
		BaseDir:      baseDir,
		PipelineName: pipelineName,
		Codec:        codec,
		MaxAge:       DefaultMaxAge,
		MaxSize:      DefaultMaxSize,
	}
}

// CheckpointDir returns the directory for this pipeline's checkpoint.
func (m *Manager) CheckpointDir() string {
	return filepath.Join(m.BaseDir, PipelineHash(m.PipelineName))
}

// MetadataPath returns the path to the metadata file.
func (m *Manager) MetadataPath() string {
	return filepath.Join(m.CheckpointDir(), metadataFilename)
}

// Exists returns true if a valid checkpoint exists.
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.MetadataPath())

	return err == nil
}

// Clear removes the checkpoint for the current pipeline.
func (m *Manager) Clear() error {
	cpDir := m.CheckpointDir()

	_, statErr := os.Stat(cpDir)
	if os.IsNotExist(statErr) {
		return nil
	}

	if err := os.RemoveAll(cpDir); err != nil {
		return fmt.Errorf("remove checkpoint dir: %w", err)
	}

	return nil
}

func stageBasename(i int) string {
	return fmt.Sprintf("stage_%d", i)
}

// Save snapshots every stage in stages, in order, and writes a metadata
// file recording stageNames and a per-stage checksum.
func (m *Manager) Save(stages []Checkpointable, stageNames []string) error {
	cpDir := m.CheckpointDir()

	if err := os.MkdirAll(cpDir, dirPerm); err != nil {
		return fmt.Errorf("create checkpoint dir: %w", err)
	}

	checksums := make(map[string]string, len(stages))

	for i, stage := range stages {
		state, err := stage.State()
		if err != nil {
			return fmt.Errorf("snapshot state for stage %d: %w", i, err)
		}

		persister := persist.NewPersister[dataset.State](stageBasename(i), m.Codec)

		if err := persister.Save(cpDir, func() *dataset.State { return &state }); err != nil {
			return fmt.Errorf("save state for stage %d: %w", i, err)
		}

		checksums[stageBasename(i)] = checksumState(state)
	}

	meta := Metadata{
		Version:      MetadataVersion,
		PipelineName: m.PipelineName,
		PipelineHash: PipelineHash(m.PipelineName),
		CreatedAt:    time.Now().UTC().Format(time.RFC3339),
		Stages:       stageNames,
		Checksums:    checksums,
	}

	metaData, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	if err := os.WriteFile(m.MetadataPath(), metaData, 0o600); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}

	return nil
}

// LoadMetadata loads the checkpoint metadata.
func (m *Manager) LoadMetadata() (*Metadata, error) {
	data, err := os.ReadFile(m.MetadataPath())
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}

	var meta Metadata

	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}

	return &meta, nil
}

// Load restores every stage in stages, in order, from the checkpoint.
func (m *Manager) Load(stages []Checkpointable) error {
	cpDir := m.CheckpointDir()

	for i, stage := range stages {
		persister := persist.NewPersister[dataset.State](stageBasename(i), m.Codec)

		var restoreErr error

		err := persister.Load(cpDir, func(state *dataset.State) {
			restoreErr = stage.SetState(*state)
		})
		if err != nil {
			return fmt.Errorf("load state for stage %d: %w", i, err)
		}

		if restoreErr != nil {
			return fmt.Errorf("restore state for stage %d: %w", i, restoreErr)
		}
	}

	return nil
}

// Validate checks that a checkpoint's recorded pipeline name and stage
// list match the pipeline attempting to resume from it.
func (m *Manager) Validate(stageNames []string) error {
	meta, err := m.LoadMetadata()
	if err != nil {
		return err
	}

	if meta.PipelineName != m.PipelineName {
		return fmt.Errorf("%w: checkpoint has %q, got %q", ErrPipelineMismatch, meta.PipelineName, m.PipelineName)
	}

	if !stringSlicesEqual(meta.Stages, stageNames) {
		return fmt.Errorf("%w: checkpoint has %v, got %v", ErrStageMismatch, meta.Stages, stageNames)
	}

	return nil
}

func checksumState(state dataset.State) string {
	data, err := json.Marshal(state)
	if err != nil {
		return ""
	}

	h := sha256.Sum256(data)

	return hex.EncodeToString(h[:])
}

func stringSlicesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}
