package orchestrator

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/paritytech/zombienet-sdk/internal/domain"
)

// containerPortBase spaces per-node port blocks for container providers,
// where ports are fixed inside the network and mapped one-to-one at the host
// boundary.
const containerPortBase = 10000

// assignPorts reserves the four ports of every node. Native uses parked
// ephemeral ports; container providers get a deterministic block per node.
func (o *Orchestrator) assignPorts() error {
	native := o.spec.Settings.Provider == domain.ProviderNative

	next := uint16(containerPortBase)
	for _, node := range o.spec.AllNodes() {
		if node.Ports.RPC != 0 && node.Ports.WS != 0 && node.Ports.Prometheus != 0 && node.Ports.P2P != 0 {
			continue
		}

		if native {
			set, err := o.allocator.ReserveSet(4)
			if err != nil {
				return domain.WrapError(domain.ErrSpawnFailed, node.Name, node.Chain, err)
			}
			assignMissing(&node.Ports, set)
			continue
		}

		assignMissing(&node.Ports, []uint16{next, next + 1, next + 2, next + 3})
		next += 10
	}
	return nil
}

func assignMissing(ports *domain.PortSet, set []uint16) {
	if ports.RPC == 0 {
		ports.RPC = set[0]
	}
	if ports.WS == 0 {
		ports.WS = set[1]
	}
	if ports.Prometheus == 0 {
		ports.Prometheus = set[2]
	}
	if ports.P2P == 0 {
		ports.P2P = set[3]
	}
}

// fetchSnapshot materializes a db snapshot (local path or URL, .tgz) into
// the node base path.
func (o *Orchestrator) fetchSnapshot(ref, basePath string) error {
	local := ref
	downloaded := false

	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		resp, err := http.Get(ref)
		if err != nil {
			return fmt.Errorf("failed to download snapshot %s: %w", ref, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("snapshot download %s returned %d", ref, resp.StatusCode)
		}

		local = filepath.Join(basePath, "snapshot.tgz")
		out, err := os.Create(local)
		if err != nil {
			return err
		}
		if _, err := io.Copy(out, resp.Body); err != nil {
			out.Close()
			return err
		}
		out.Close()
		downloaded = true
	}

	if err := extractTgz(local, basePath); err != nil {
		return fmt.Errorf("failed to extract snapshot: %w", err)
	}

	if downloaded && os.Getenv("ZOMBIE_RM_TGZ_AFTER_EXTRACT") == "true" {
		_ = os.Remove(local)
	}
	return nil
}

func extractTgz(archive, dst string) error {
	f, err := os.Open(archive)
	if err != nil {
		return err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return err
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		target := filepath.Join(dst, filepath.Clean("/"+hdr.Name))
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode))
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return err
			}
			out.Close()
		}
	}
}
