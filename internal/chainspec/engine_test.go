package chainspec

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paritytech/zombienet-sdk/internal/domain"
	"github.com/paritytech/zombienet-sdk/internal/infrastructure/filesystem"
	"github.com/paritytech/zombienet-sdk/internal/infrastructure/process"
)

// fakeExecutor returns canned output per subcommand.
type fakeExecutor struct {
	outputs map[string][]byte
	runs    []process.Spec
}

func (f *fakeExecutor) Capture(_ context.Context, spec process.Spec) ([]byte, error) {
	f.runs = append(f.runs, spec)
	key := spec.Program
	if len(spec.Args) > 0 {
		key += " " + spec.Args[0]
		if spec.Args[0] == "build-spec" && contains(spec.Args, "--raw") {
			key += " --raw"
		}
	}
	out, ok := f.outputs[key]
	if !ok {
		return nil, fmt.Errorf("no canned output for %q", key)
	}
	return out, nil
}

func contains(args []string, want string) bool {
	for _, a := range args {
		if a == want {
			return true
		}
	}
	return false
}

func plainSpecJSON(t *testing.T) []byte {
	t.Helper()
	data, err := json.Marshal(relayTree())
	require.NoError(t, err)
	return data
}

func TestEngine_BuildRelay(t *testing.T) {
	fs := filesystem.NewMemoryFileSystem()
	exec := &fakeExecutor{outputs: map[string][]byte{
		"polkadot build-spec":       plainSpecJSON(t),
		"polkadot build-spec --raw": []byte(`{"genesis":{"raw":{"top":{"0x3a636f6465":"0x00"}}}}`),
	}}
	engine := NewEngine(fs, exec, "/specs")

	spec := relaySpec(t)
	spec.Relaychain.DefaultCommand = "polkadot"

	artifact, err := engine.BuildRelay(context.Background(), spec, nil)
	require.NoError(t, err)

	assert.True(t, artifact.Raw)
	assert.Equal(t, "/specs/rococo-local-raw.json", artifact.CurrentPath())
	assert.True(t, fs.Exists(artifact.PlainPath))
	assert.True(t, fs.Exists(artifact.RawPath))

	// The patched plain spec carries the derived authorities.
	data, err := fs.ReadFile(artifact.PlainPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), spec.Relaychain.Nodes[0].Accounts.Sr.Address)
}

func TestEngine_BuildRelay_GeneratorFailure(t *testing.T) {
	fs := filesystem.NewMemoryFileSystem()
	engine := NewEngine(fs, &fakeExecutor{outputs: map[string][]byte{}}, "/specs")

	spec := relaySpec(t)
	spec.Relaychain.DefaultCommand = "missing-binary"

	_, err := engine.BuildRelay(context.Background(), spec, nil)
	require.Error(t, err)
	assert.Equal(t, domain.ErrGeneratorFailed, domain.KindOf(err))
}

func TestEngine_PreExistingSource(t *testing.T) {
	fs := filesystem.NewMemoryFileSystem()
	require.NoError(t, fs.WriteFile("/input/my-spec.json", plainSpecJSON(t), 0o644))

	exec := &fakeExecutor{outputs: map[string][]byte{
		"polkadot build-spec --raw": []byte(`{"genesis":{"raw":{"top":{}}}}`),
	}}
	engine := NewEngine(fs, exec, "/specs")

	spec := relaySpec(t)
	spec.Relaychain.DefaultCommand = "polkadot"
	spec.Relaychain.ChainSpecSource = domain.ChainSpecSource{
		Kind:     domain.SpecSourcePreExisting,
		Location: "/input/my-spec.json",
	}

	_, err := engine.BuildRelay(context.Background(), spec, nil)
	require.NoError(t, err)
}

func TestEngine_BuildParachain(t *testing.T) {
	fs := filesystem.NewMemoryFileSystem()
	paraSpec := map[string]any{
		"genesis": map[string]any{
			"runtime": map[string]any{
				"balances": map[string]any{"balances": []any{}},
			},
		},
	}
	paraJSON, err := json.Marshal(paraSpec)
	require.NoError(t, err)

	exec := &fakeExecutor{outputs: map[string][]byte{
		"polkadot-parachain build-spec":           paraJSON,
		"polkadot-parachain build-spec --raw":     []byte(`{"genesis":{"raw":{"top":{}}}}`),
		"polkadot-parachain export-genesis-state": []byte("0xhead\n"),
		"polkadot-parachain export-genesis-wasm":  []byte("0xwasm\n"),
	}}
	engine := NewEngine(fs, exec, "/specs")

	accounts := relaySpec(t).Relaychain.Nodes[0].Accounts
	para := &domain.ParachainSpec{
		ID:                 1000,
		CumulusBased:       true,
		OnboardAsParachain: true,
		DefaultCommand:     "polkadot-parachain",
		Collators: []*domain.NodeSpec{
			{Name: "col1", Role: domain.RoleCollator, Accounts: accounts},
		},
	}
	settings := &domain.GlobalSettings{TokenDecimals: 12}

	artifact, genesis, err := engine.BuildParachain(context.Background(), "rococo-local", para, settings)
	require.NoError(t, err)
	require.NotNil(t, artifact)
	require.NotNil(t, genesis)

	assert.Equal(t, uint32(1000), genesis.ID)
	assert.Equal(t, "0xhead", genesis.Head)
	assert.Equal(t, "0xwasm", genesis.Wasm)
	assert.True(t, genesis.OnboardAsParachain)

	// Genesis export results are cached: a second build must not re-run the
	// export subcommands.
	before := len(exec.runs)
	_, _, err = engine.BuildParachain(context.Background(), "rococo-local", para, settings)
	require.NoError(t, err)
	exports := 0
	for _, spec := range exec.runs[before:] {
		if strings.HasPrefix(spec.Args[0], "export-genesis") {
			exports++
		}
	}
	assert.Zero(t, exports)
}

func TestEngine_NodeSpecCopy(t *testing.T) {
	fs := filesystem.NewMemoryFileSystem()
	engine := NewEngine(fs, &fakeExecutor{}, "/specs")

	require.NoError(t, fs.WriteFile("/specs/rococo-local-raw.json", []byte("{}"), 0o644))
	artifact := &domain.ChainSpecArtifact{
		Chain:   "rococo-local",
		RawPath: "/specs/rococo-local-raw.json",
		Raw:     true,
	}

	path, err := engine.NodeSpecCopy(artifact, "alice")
	require.NoError(t, err)
	assert.Equal(t, "/specs/nodes/alice/rococo-local-raw.json", path)
	assert.True(t, fs.Exists(path))
}

func TestEngine_InjectKeys(t *testing.T) {
	fs := filesystem.NewMemoryFileSystem()
	engine := NewEngine(fs, &fakeExecutor{}, "/specs")

	spec := relaySpec(t)
	node := spec.Relaychain.Nodes[0]

	require.NoError(t, engine.InjectKeys("/data/alice/keystore", node))

	files := fs.List()
	require.Len(t, files, len(DefaultKeyTypes))

	granPrefix := "/data/alice/keystore/" + hex.EncodeToString([]byte("gran"))
	found := false
	for _, f := range files {
		if strings.HasPrefix(f, granPrefix) {
			found = true
			data, err := fs.ReadFile(f)
			require.NoError(t, err)
			assert.Equal(t, fmt.Sprintf("%q", node.Accounts.Ed.URI), string(data))
			assert.Contains(t, f, node.Accounts.Ed.Public)
		}
	}
	assert.True(t, found, "grandpa key not injected")
}

func TestEngine_ApplyWasmOverride(t *testing.T) {
	fs := filesystem.NewMemoryFileSystem()
	engine := NewEngine(fs, &fakeExecutor{}, "/specs")

	require.NoError(t, fs.WriteFile("/specs/raw.json",
		[]byte(`{"genesis":{"raw":{"top":{"0x3a636f6465":"0x00"}}}}`), 0o644))
	require.NoError(t, fs.WriteFile("/runtime.wasm", []byte{0xde, 0xad}, 0o644))

	artifact := &domain.ChainSpecArtifact{Chain: "x", RawPath: "/specs/raw.json", Raw: true}
	require.NoError(t, engine.ApplyWasmOverride(artifact, "/runtime.wasm"))

	data, err := fs.ReadFile("/specs/raw.json")
	require.NoError(t, err)
	assert.Contains(t, string(data), "0xdead")

	// Plain specs reject wasm overrides.
	artifact.Raw = false
	require.Error(t, engine.ApplyWasmOverride(artifact, "/runtime.wasm"))
}
