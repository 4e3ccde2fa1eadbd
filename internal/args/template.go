package args

import (
	"fmt"
	"os"
	"regexp"
)

var (
	envTokenRe    = regexp.MustCompile(`\{\{([A-Za-z_][A-Za-z0-9_]*)\}\}`)
	zombieTokenRe = regexp.MustCompile(`\{\{ZOMBIE:([^:}]+):([^}]+)\}\}`)
)

// Fields a ZOMBIE token may reference. Both snake and camel spellings are
// accepted on input.
const (
	FieldMultiaddr     = "multiaddr"
	FieldWsURI         = "ws_uri"
	FieldPrometheusURI = "prometheus_uri"
)

// SubstituteEnv replaces {{VAR}} tokens from the environment. Unresolved
// placeholders are kept verbatim. {{ZOMBIE:node:field}} runtime tokens never
// match the env pattern (the colons) and pass through untouched.
func SubstituteEnv(s string) string {
	return envTokenRe.ReplaceAllStringFunc(s, func(tok string) string {
		name := tok[2 : len(tok)-2]
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		return tok
	})
}

// SubstituteEnvAll applies SubstituteEnv across a slice.
func SubstituteEnvAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = SubstituteEnv(s)
	}
	return out
}

// HasZombieToken reports whether any argument references another node's
// runtime record. Its presence forces spawn concurrency to 1.
func HasZombieToken(in []string) bool {
	for _, s := range in {
		if zombieTokenRe.MatchString(s) {
			return true
		}
	}
	return false
}

// ZombieReferents lists the node names referenced by ZOMBIE tokens.
func ZombieReferents(in []string) []string {
	var names []string
	seen := map[string]bool{}
	for _, s := range in {
		for _, m := range zombieTokenRe.FindAllStringSubmatch(s, -1) {
			if !seen[m[1]] {
				seen[m[1]] = true
				names = append(names, m[1])
			}
		}
	}
	return names
}

// FieldResolver returns the requested runtime field of a spawned node.
type FieldResolver func(node, field string) (string, error)

// ResolveZombieTokens substitutes {{ZOMBIE:node:field}} tokens at spawn time.
func ResolveZombieTokens(in []string, resolve FieldResolver) ([]string, error) {
	out := make([]string, len(in))
	for i, s := range in {
		var resolveErr error
		out[i] = zombieTokenRe.ReplaceAllStringFunc(s, func(tok string) string {
			m := zombieTokenRe.FindStringSubmatch(tok)
			field, err := canonicalField(m[2])
			if err != nil {
				resolveErr = err
				return tok
			}
			v, err := resolve(m[1], field)
			if err != nil {
				resolveErr = err
				return tok
			}
			return v
		})
		if resolveErr != nil {
			return nil, resolveErr
		}
	}
	return out, nil
}

func canonicalField(field string) (string, error) {
	switch field {
	case FieldMultiaddr, "multiAddress":
		return FieldMultiaddr, nil
	case FieldWsURI, "wsUri":
		return FieldWsURI, nil
	case FieldPrometheusURI, "prometheusUri":
		return FieldPrometheusURI, nil
	}
	return "", fmt.Errorf("unknown ZOMBIE token field %q", field)
}
