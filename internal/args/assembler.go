// Package args assembles node command lines from the framework-managed flag
// set and user-supplied arguments.
package args

import (
	"fmt"
	"strings"

	"github.com/paritytech/zombienet-sdk/internal/domain"
)

// RemovalPrefix marks a user argument that suppresses a framework flag.
const RemovalPrefix = "-:"

// Options carries everything needed to build one node's command line.
type Options struct {
	Node *domain.NodeSpec
	// ChainSpecPath is the spec file the node consumes (per-node copy).
	ChainSpecPath string
	BasePath      string
	// Containerized toggles the flags only remote providers need.
	Containerized bool
	// InsecureValidatorFlag is set when the binary advertises
	// --insecure-validator-i-know-what-i-do.
	InsecureValidatorFlag bool
	// Bootnodes lists resolved multiaddresses to dial; empty means none known.
	Bootnodes []string
	// Cumulus embedded relay node settings; used when Node.ParaID != 0 and the
	// parachain is cumulus-based.
	Cumulus *CumulusOptions
}

// CumulusOptions configures the embedded relay-chain full node of a collator.
type CumulusOptions struct {
	RelayChainSpecPath string
	RelayBasePath      string
	RelayP2PPort       uint16
	RelayPrometheusPort uint16
}

// flag is one framework-managed argument.
type flag struct {
	name  string
	value string
	// bare flags render without "=value".
	bare bool
}

func (f flag) render() string {
	if f.bare {
		return f.name
	}
	return f.name + "=" + f.value
}

// Assemble produces the final command line (excluding the binary itself).
func Assemble(opts Options) ([]string, error) {
	node := opts.Node
	if node == nil {
		return nil, fmt.Errorf("assemble: nil node")
	}

	removed, userArgs := splitRemovals(node.Args)

	framework := frameworkFlags(opts)
	conditional := conditionalFlags(opts)
	portGroup := portFlags(opts)

	frameworkNames := map[string]bool{}
	for _, f := range framework {
		frameworkNames[f.name] = true
	}

	// A framework-managed flag filters out the user's same-named flag unless
	// the user removed it first with -:.
	userFlags := map[string]bool{}
	kept := make([]string, 0, len(userArgs))
	for _, a := range userArgs {
		name := flagName(a)
		if frameworkNames[name] && !removed[name] {
			continue
		}
		userFlags[name] = true
		kept = append(kept, a)
	}
	userArgs = kept

	out := make([]string, 0, len(framework)+len(conditional)+len(portGroup)+len(userArgs))
	for _, groups := range [][]flag{framework, conditional, portGroup} {
		for _, f := range groups {
			if removed[f.name] {
				continue
			}
			// User-supplied same-named flags win over conditional and port flags.
			if userFlags[f.name] {
				continue
			}
			out = append(out, f.render())
		}
	}
	out = append(out, userArgs...)

	if opts.Cumulus != nil {
		out = append(out, "--")
		out = append(out, cumulusRelayArgs(opts)...)
		out = append(out, node.FullNodeArgs...)
	}

	return out, nil
}

// frameworkFlags are always set and shadow any user flag of the same name.
func frameworkFlags(opts Options) []flag {
	node := opts.Node
	flags := []flag{
		{name: "--chain", value: opts.ChainSpecPath},
		{name: "--name", value: node.Name},
		{name: "--rpc-cors", value: "all"},
		{name: "--rpc-methods", value: "unsafe"},
		{name: "--node-key", value: node.NodeKey},
	}
	if node.ParaID != 0 && opts.Cumulus != nil {
		flags = append(flags, flag{name: "--parachain-id", value: fmt.Sprintf("%d", node.ParaID)})
	}
	return flags
}

func conditionalFlags(opts Options) []flag {
	node := opts.Node
	var flags []flag

	relayValidator := node.Role == domain.RoleValidator && node.ParaID == 0
	if relayValidator {
		flags = append(flags, flag{name: "--validator", bare: true})
		if opts.InsecureValidatorFlag {
			flags = append(flags, flag{name: "--insecure-validator-i-know-what-i-do", bare: true})
		}
	}
	flags = append(flags, flag{name: "--prometheus-external", bare: true})
	if opts.Containerized {
		flags = append(flags, flag{name: "--unsafe-rpc-external", bare: true})
	}
	if len(opts.Bootnodes) > 0 {
		flags = append(flags, flag{name: "--bootnodes", value: strings.Join(opts.Bootnodes, " ")})
	}
	if node.ParaID == 0 {
		flags = append(flags, flag{name: "--no-telemetry", bare: true})
	}
	if node.ParaID != 0 && node.Role == domain.RoleCollator && opts.Cumulus != nil && node.IsCumulusValidator {
		flags = append(flags, flag{name: "--collator", bare: true})
	}
	return flags
}

func portFlags(opts Options) []flag {
	node := opts.Node
	return []flag{
		{name: "--prometheus-port", value: fmt.Sprintf("%d", node.Ports.Prometheus)},
		{name: "--rpc-port", value: fmt.Sprintf("%d", node.Ports.RPC)},
		{name: "--listen-addr", value: fmt.Sprintf("/ip4/0.0.0.0/tcp/%d/ws", node.Ports.P2P)},
		{name: "--base-path", value: opts.BasePath},
	}
}

// cumulusRelayArgs builds the embedded relay full-node arguments that follow
// the "--" separator.
func cumulusRelayArgs(opts Options) []string {
	c := opts.Cumulus
	args := []string{
		"--base-path", c.RelayBasePath,
		"--chain", c.RelayChainSpecPath,
		"--execution", "wasm",
	}
	if c.RelayP2PPort != 0 {
		args = append(args, "--port", fmt.Sprintf("%d", c.RelayP2PPort))
	}
	if c.RelayPrometheusPort != 0 {
		args = append(args, "--prometheus-port", fmt.Sprintf("%d", c.RelayPrometheusPort))
	}
	return args
}

// splitRemovals separates -: removal directives from ordinary user args.
func splitRemovals(userArgs []string) (map[string]bool, []string) {
	removed := map[string]bool{}
	rest := make([]string, 0, len(userArgs))
	for _, a := range userArgs {
		if strings.HasPrefix(a, RemovalPrefix) {
			removed[normalizeFlag(strings.TrimPrefix(a, RemovalPrefix))] = true
			continue
		}
		rest = append(rest, a)
	}
	return removed, rest
}

// normalizeFlag maps "foo" and "-foo" onto "--foo".
func normalizeFlag(name string) string {
	return "--" + strings.TrimLeft(name, "-")
}

// flagName extracts the flag portion of an argument ("--x=v" -> "--x").
// Non-flag arguments map to themselves.
func flagName(arg string) string {
	if !strings.HasPrefix(arg, "-") {
		return arg
	}
	if idx := strings.IndexByte(arg, '='); idx >= 0 {
		return arg[:idx]
	}
	return arg
}
