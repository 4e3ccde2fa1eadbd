package chainspec

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/paritytech/zombienet-sdk/internal/domain"
	"github.com/paritytech/zombienet-sdk/internal/infrastructure/process"
)

// OutputToken in a command template names a file the command writes its spec
// to; without it, stdout is captured.
const OutputToken = "{{OUTPUT}}"

// resolveSource materializes the plain chain spec at outPath.
func (e *Engine) resolveSource(ctx context.Context, chain string, src domain.ChainSpecSource, defaultCommand, outPath string) error {
	switch src.Kind {
	case domain.SpecSourcePreExisting:
		return e.fetchPreExisting(ctx, src.Location, outPath)
	case domain.SpecSourceCommand:
		return e.runTemplate(ctx, chain, src.Template, outPath)
	case domain.SpecSourceRuntime:
		return e.runSpecBuilder(ctx, src, outPath)
	case domain.SpecSourceAuto, "":
		if defaultCommand == "" {
			return fmt.Errorf("no command available to build spec for chain %q", chain)
		}
		out, err := e.exec.Capture(ctx, process.Spec{
			Program: defaultCommand,
			Args:    []string{"build-spec", "--chain", chain, "--disable-default-bootnode"},
		})
		if err != nil {
			return fmt.Errorf("build-spec failed for %q: %w (output: %s)", chain, err, tail(out))
		}
		return e.fs.WriteFile(outPath, out, 0o644)
	}
	return fmt.Errorf("unknown chain spec source %q", src.Kind)
}

func (e *Engine) fetchPreExisting(ctx context.Context, location, outPath string) error {
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
		if err != nil {
			return err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return fmt.Errorf("failed to fetch chain spec from %s: %w", location, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("chain spec fetch from %s returned %d", location, resp.StatusCode)
		}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		return e.fs.WriteFile(outPath, data, 0o644)
	}

	if !e.fs.Exists(location) {
		return fmt.Errorf("chain spec file %s does not exist", location)
	}
	return e.fs.Copy(location, outPath)
}

// runTemplate executes a user command template with {chain} substituted.
// When the template names {{OUTPUT}}, the spec is read from that file instead
// of stdout.
func (e *Engine) runTemplate(ctx context.Context, chain, template, outPath string) error {
	cmdline := strings.ReplaceAll(template, "{chain}", chain)

	outputFile := ""
	if strings.Contains(cmdline, OutputToken) {
		outputFile = filepath.Join(e.baseDir, chain+"-cmd-output.json")
		cmdline = strings.ReplaceAll(cmdline, OutputToken, outputFile)
	}

	out, err := e.exec.Capture(ctx, process.Spec{
		Program: "sh",
		Args:    []string{"-c", cmdline},
	})
	if err != nil {
		return fmt.Errorf("spec command %q failed: %w (output: %s)", cmdline, err, tail(out))
	}

	if outputFile != "" {
		return e.fs.Copy(outputFile, outPath)
	}
	return e.fs.WriteFile(outPath, out, 0o644)
}

// runSpecBuilder invokes the chain-spec builder with a wasm runtime.
func (e *Engine) runSpecBuilder(ctx context.Context, src domain.ChainSpecSource, outPath string) error {
	args := []string{"create", "--chain-spec-path", outPath, "--runtime", src.RuntimeRef}
	if src.Preset != "" {
		args = append(args, "named-preset", src.Preset)
	} else {
		args = append(args, "default")
	}

	out, err := e.exec.Capture(ctx, process.Spec{Program: "chain-spec-builder", Args: args})
	if err != nil {
		return fmt.Errorf("chain-spec-builder failed: %w (output: %s)", err, tail(out))
	}
	return nil
}

// rawConvert produces the raw form of the patched plain spec.
func (e *Engine) rawConvert(ctx context.Context, command string, artifact *domain.ChainSpecArtifact) error {
	if command == "" {
		return fmt.Errorf("no command available for raw conversion of %q", artifact.Chain)
	}
	out, err := e.exec.Capture(ctx, process.Spec{
		Program: command,
		Args:    []string{"build-spec", "--chain", artifact.PlainPath, "--raw", "--disable-default-bootnode"},
	})
	if err != nil {
		return fmt.Errorf("raw conversion failed for %q: %w (output: %s)", artifact.Chain, err, tail(out))
	}
	if err := e.fs.WriteFile(artifact.RawPath, out, 0o644); err != nil {
		return err
	}
	artifact.Raw = true
	return nil
}

// exportGenesis obtains the parachain's genesis head and wasm, via the user
// generators when configured or the binary's export subcommands otherwise.
// Results are cached by content hash of the inputs.
func (e *Engine) exportGenesis(ctx context.Context, command string, para *domain.ParachainSpec, artifact *domain.ChainSpecArtifact) (*ParaGenesis, error) {
	genesis := &ParaGenesis{ID: para.ID, OnboardAsParachain: para.OnboardAsParachain}

	specArg := []string{}
	cacheSeed := fmt.Sprintf("%d|%s", para.ID, command)
	if artifact != nil {
		specArg = []string{"--chain", artifact.CurrentPath()}
		data, err := e.fs.ReadFile(artifact.CurrentPath())
		if err != nil {
			return nil, err
		}
		sum := sha256.Sum256(data)
		cacheSeed += "|" + hex.EncodeToString(sum[:])
	}

	head, err := e.cachedRun(ctx, cacheSeed+"|state", para.GenesisStateGenerator, command,
		append([]string{"export-genesis-state"}, specArg...))
	if err != nil {
		return nil, fmt.Errorf("genesis state export for para %d: %w", para.ID, err)
	}
	genesis.Head = strings.TrimSpace(head)

	wasm, err := e.cachedRun(ctx, cacheSeed+"|wasm", para.GenesisWasmGenerator, command,
		append([]string{"export-genesis-wasm"}, specArg...))
	if err != nil {
		return nil, fmt.Errorf("genesis wasm export for para %d: %w", para.ID, err)
	}
	genesis.Wasm = strings.TrimSpace(wasm)

	return genesis, nil
}

// cachedRun executes a generator (user template or builtin subcommand) with a
// content-hash cache under the artifact directory.
func (e *Engine) cachedRun(ctx context.Context, seed, userTemplate, command string, builtinArgs []string) (string, error) {
	key := seed + "|" + userTemplate
	sum := sha256.Sum256([]byte(key))
	cachePath := filepath.Join(e.baseDir, "cache", hex.EncodeToString(sum[:16]))

	if cached, err := e.fs.ReadFile(cachePath); err == nil {
		return string(cached), nil
	}

	var out []byte
	var err error
	if userTemplate != "" {
		out, err = e.exec.Capture(ctx, process.Spec{Program: "sh", Args: []string{"-c", userTemplate}})
	} else {
		if command == "" {
			return "", fmt.Errorf("no generator command available")
		}
		out, err = e.exec.Capture(ctx, process.Spec{Program: command, Args: builtinArgs})
	}
	if err != nil {
		return "", fmt.Errorf("generator failed: %w (output: %s)", err, tail(out))
	}

	if err := e.fs.WriteFile(cachePath, out, 0o644); err != nil {
		return "", err
	}
	return string(out), nil
}

// tail keeps error output readable.
func tail(out []byte) string {
	const max = 512
	s := strings.TrimSpace(string(out))
	if len(s) > max {
		return "..." + s[len(s)-max:]
	}
	return s
}
