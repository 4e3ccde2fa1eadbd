package chainspec

import (
	"encoding/hex"
	"fmt"

	"github.com/paritytech/zombienet-sdk/internal/domain"
)

// CodeStorageKey is the well-known :code storage key in raw specs.
const CodeStorageKey = "0x3a636f6465"

// ApplyWasmOverride replaces the :code entry of a raw spec with the contents
// of a wasm file. Raw-only by contract: plain specs carry no storage keys.
func (e *Engine) ApplyWasmOverride(artifact *domain.ChainSpecArtifact, wasmPath string) error {
	if !artifact.Raw {
		return fmt.Errorf("wasm override requires a raw chain spec")
	}

	wasm, err := e.fs.ReadFile(wasmPath)
	if err != nil {
		return fmt.Errorf("failed to read wasm override: %w", err)
	}

	tree, err := e.readTree(artifact.RawPath)
	if err != nil {
		return err
	}

	top, ok := getPath(tree, "genesis/raw/top")
	if !ok {
		return fmt.Errorf("raw spec has no genesis/raw/top section")
	}
	topMap, ok := top.(map[string]any)
	if !ok {
		return fmt.Errorf("genesis/raw/top is not an object")
	}
	topMap[CodeStorageKey] = "0x" + hex.EncodeToString(wasm)

	return e.writeTree(artifact.RawPath, tree)
}

// ApplyRawOverride merges an inline or file-backed JSON patch into the raw
// spec.
func (e *Engine) ApplyRawOverride(artifact *domain.ChainSpecArtifact, inline []byte, filePath string) error {
	if !artifact.Raw {
		return fmt.Errorf("raw override requires a raw chain spec")
	}

	patch := inline
	if filePath != "" {
		var err error
		patch, err = e.fs.ReadFile(filePath)
		if err != nil {
			return fmt.Errorf("failed to read raw override file: %w", err)
		}
	}
	if len(patch) == 0 {
		return nil
	}

	base, err := e.fs.ReadFile(artifact.RawPath)
	if err != nil {
		return err
	}
	merged, err := MergeJSON(base, patch)
	if err != nil {
		return fmt.Errorf("raw override merge failed: %w", err)
	}
	return e.fs.WriteFile(artifact.RawPath, merged, 0o644)
}
