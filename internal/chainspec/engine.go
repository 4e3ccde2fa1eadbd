package chainspec

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/paritytech/zombienet-sdk/internal/domain"
	"github.com/paritytech/zombienet-sdk/internal/infrastructure/filesystem"
	"github.com/paritytech/zombienet-sdk/internal/infrastructure/process"
	"github.com/paritytech/zombienet-sdk/pkg/log"
)

// ParaGenesis is a parachain's exported genesis material, inserted into the
// relay spec for in-genesis registration or submitted via extrinsic later.
type ParaGenesis struct {
	ID   uint32
	Head string
	Wasm string
	// OnboardAsParachain selects parachain (true) or parathread onboarding.
	OnboardAsParachain bool
}

// Engine drives the per-chain spec pipeline.
type Engine struct {
	fs      filesystem.FileSystem
	exec    process.Invoker
	baseDir string
	logger  zerolog.Logger
}

// NewEngine creates an engine writing artifacts under baseDir.
func NewEngine(fs filesystem.FileSystem, exec process.Invoker, baseDir string) *Engine {
	return &Engine{
		fs:      fs,
		exec:    exec,
		baseDir: baseDir,
		logger:  log.WithComponent("chainspec"),
	}
}

// BuildRelay produces the relay chain's patched plain spec and its raw form.
// paras must contain the genesis material of every in-genesis parachain.
func (e *Engine) BuildRelay(ctx context.Context, spec *domain.NetworkSpec, paras []*ParaGenesis) (*domain.ChainSpecArtifact, error) {
	relay := &spec.Relaychain
	artifact := &domain.ChainSpecArtifact{
		Chain:     relay.Chain,
		PlainPath: filepath.Join(e.baseDir, relay.Chain+".json"),
		RawPath:   filepath.Join(e.baseDir, relay.Chain+"-raw.json"),
	}

	if err := e.resolveSource(ctx, relay.Chain, relay.ChainSpecSource, relay.DefaultCommand, artifact.PlainPath); err != nil {
		return nil, domain.WrapError(domain.ErrGeneratorFailed, "", relay.Chain, err)
	}

	tree, err := e.readTree(artifact.PlainPath)
	if err != nil {
		return nil, domain.WrapError(domain.ErrParseFailed, "", relay.Chain, err)
	}

	if err := PatchRelay(tree, spec, paras); err != nil {
		return nil, domain.WrapError(domain.ErrPatchFailed, "", relay.Chain, err)
	}

	if err := e.writeTree(artifact.PlainPath, tree); err != nil {
		return nil, domain.WrapError(domain.ErrGeneratorFailed, "", relay.Chain, err)
	}

	if err := e.rawConvert(ctx, relay.DefaultCommand, artifact); err != nil {
		return nil, domain.WrapError(domain.ErrGeneratorFailed, "", relay.Chain, err)
	}

	if relay.RawSpecOverridePath != "" {
		if err := e.ApplyRawOverride(artifact, nil, relay.RawSpecOverridePath); err != nil {
			return nil, domain.WrapError(domain.ErrPatchFailed, "", relay.Chain, err)
		}
	}

	e.logger.Info().Str("chain", relay.Chain).Msg("relay chain spec built")
	return artifact, nil
}

// BuildParachain produces a parachain's spec and exports its genesis head and
// wasm. Non-cumulus parachains have no chain spec of their own; only the
// genesis material is produced.
func (e *Engine) BuildParachain(ctx context.Context, relayChain string, para *domain.ParachainSpec, settings *domain.GlobalSettings) (*domain.ChainSpecArtifact, *ParaGenesis, error) {
	chainName := para.Chain
	if chainName == "" {
		chainName = fmt.Sprintf("%s-%d", relayChain, para.ID)
	}

	var artifact *domain.ChainSpecArtifact
	command := para.DefaultCommand
	if command == "" && len(para.Collators) > 0 {
		command = para.Collators[0].Command
	}

	if para.CumulusBased {
		artifact = &domain.ChainSpecArtifact{
			Chain:     chainName,
			PlainPath: filepath.Join(e.baseDir, fmt.Sprintf("para-%d.json", para.ID)),
			RawPath:   filepath.Join(e.baseDir, fmt.Sprintf("para-%d-raw.json", para.ID)),
		}

		if err := e.resolveSource(ctx, chainName, para.ChainSpecSource, command, artifact.PlainPath); err != nil {
			return nil, nil, domain.WrapError(domain.ErrGeneratorFailed, "", chainName, err)
		}

		tree, err := e.readTree(artifact.PlainPath)
		if err != nil {
			return nil, nil, domain.WrapError(domain.ErrParseFailed, "", chainName, err)
		}

		if err := PatchParachain(tree, relayChain, para, settings); err != nil {
			return nil, nil, domain.WrapError(domain.ErrPatchFailed, "", chainName, err)
		}

		if err := e.writeTree(artifact.PlainPath, tree); err != nil {
			return nil, nil, domain.WrapError(domain.ErrGeneratorFailed, "", chainName, err)
		}

		if err := e.rawConvert(ctx, command, artifact); err != nil {
			return nil, nil, domain.WrapError(domain.ErrGeneratorFailed, "", chainName, err)
		}

		if para.WasmOverridePath != "" {
			if err := e.ApplyWasmOverride(artifact, para.WasmOverridePath); err != nil {
				return nil, nil, domain.WrapError(domain.ErrPatchFailed, "", chainName, err)
			}
		}
		if para.RawSpecOverridePath != "" {
			if err := e.ApplyRawOverride(artifact, nil, para.RawSpecOverridePath); err != nil {
				return nil, nil, domain.WrapError(domain.ErrPatchFailed, "", chainName, err)
			}
		}
	}

	genesis, err := e.exportGenesis(ctx, command, para, artifact)
	if err != nil {
		return artifact, nil, domain.WrapError(domain.ErrGeneratorFailed, "", chainName, err)
	}

	e.logger.Info().Str("chain", chainName).Uint32("para_id", para.ID).Msg("parachain spec built")
	return artifact, genesis, nil
}

// NodeSpecCopy takes a per-node copy of the chain spec so later mutation of
// one node's copy cannot leak into another's.
func (e *Engine) NodeSpecCopy(artifact *domain.ChainSpecArtifact, nodeName string) (string, error) {
	dst := filepath.Join(e.baseDir, "nodes", nodeName, filepath.Base(artifact.CurrentPath()))
	if err := e.fs.Copy(artifact.CurrentPath(), dst); err != nil {
		return "", fmt.Errorf("failed to copy chain spec for %s: %w", nodeName, err)
	}
	return dst, nil
}

func (e *Engine) readTree(path string) (map[string]any, error) {
	data, err := e.fs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read chain spec: %w", err)
	}
	var tree map[string]any
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("failed to parse chain spec: %w", err)
	}
	return tree, nil
}

func (e *Engine) writeTree(path string, tree map[string]any) error {
	data, err := json.MarshalIndent(tree, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal chain spec: %w", err)
	}
	return e.fs.WriteFile(path, data, 0o644)
}
