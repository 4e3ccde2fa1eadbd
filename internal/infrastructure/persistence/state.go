// Package persistence serializes enough network state to reattach to a
// running network.
package persistence

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/paritytech/zombienet-sdk/internal/domain"
	"github.com/paritytech/zombienet-sdk/internal/infrastructure/filesystem"
)

// StateFileName is the persisted network state under base_dir.
const StateFileName = "zombie.json"

// State is the schema of zombie.json.
type State struct {
	NetworkID  string           `json:"network_id"`
	Provider   string           `json:"provider"`
	BaseDir    string           `json:"base_dir"`
	Nodes      []NodeState      `json:"nodes"`
	Parachains []ParachainState `json:"parachains"`
	Relay      RelayState       `json:"relay"`
}

// NodeState is one persisted node record.
type NodeState struct {
	Name      string         `json:"name"`
	ParaID    uint32         `json:"para_id,omitempty"`
	Role      string         `json:"role"`
	Endpoints domain.PortSet `json:"endpoints"`
	Host      string         `json:"host"`
	Multiaddr string         `json:"multiaddr"`
	BasePath  string         `json:"base_path"`
	Command   []string       `json:"command"`
	LogPath   string         `json:"log_path,omitempty"`
}

// ParachainState is one persisted parachain record.
type ParachainState struct {
	ID            uint32 `json:"id"`
	Strategy      string `json:"strategy"`
	ChainSpecPath string `json:"chain_spec_path,omitempty"`
}

// RelayState is the persisted relay chain record.
type RelayState struct {
	Chain         string `json:"chain"`
	ChainSpecPath string `json:"chain_spec_path"`
}

// StateRepository persists State under a base dir.
type StateRepository struct {
	fs filesystem.FileSystem
}

// NewStateRepository creates a repository on the given filesystem.
func NewStateRepository(fs filesystem.FileSystem) *StateRepository {
	return &StateRepository{fs: fs}
}

// Path returns the state file path for a base dir.
func (r *StateRepository) Path(baseDir string) string {
	return filepath.Join(baseDir, StateFileName)
}

// Save writes the state file.
func (r *StateRepository) Save(state *State) error {
	if state == nil {
		return fmt.Errorf("state is nil")
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal network state: %w", err)
	}
	if err := r.fs.WriteFile(r.Path(state.BaseDir), data, 0o644); err != nil {
		return fmt.Errorf("failed to write network state: %w", err)
	}
	return nil
}

// Load reads a state file from an explicit path.
func (r *StateRepository) Load(path string) (*State, error) {
	data, err := r.fs.ReadFile(path)
	if err != nil {
		return nil, &NotFoundError{Path: path}
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse network state: %w", err)
	}
	return &state, nil
}
