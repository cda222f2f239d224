// Package rmm loads Remote Monitoring & Management software signatures
// from the RMML signature repository: named sets of executable paths,
// domains, and ports associated with known remote-management tools.
package rmm

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"rmmhunt/internal/logging"
)

// Signature is one RMM tool's indicator set. Signatures are read-only
// for the duration of a hunt.
type Signature struct {
	// Name is the signature's display name, taken from the filename stem.
	Name string
	// ID is the signature's stable identifier from its metadata block.
	ID string
	// Executables maps platform (Windows, Linux, MacOS) to executable paths.
	Executables map[string][]string
	// Domains lists the tool's known network domains.
	Domains []string
	// Ports lists the tool's known network ports.
	Ports []int
}

// ExecutablePaths flattens the per-platform executable lists into one
// list of paths.
func (s Signature) ExecutablePaths() []string {
	var paths []string
	platforms := make([]string, 0, len(s.Executables))
	for platform := range s.Executables {
		platforms = append(platforms, platform)
	}
	sort.Strings(platforms)
	for _, platform := range platforms {
		paths = append(paths, s.Executables[platform]...)
	}
	return paths
}

// signaturePlatforms are the executable platforms carried into a
// Signature; other keys in the YAML are ignored.
var signaturePlatforms = []string{"Linux", "MacOS", "Windows"}

// signatureFile mirrors the RMML repository YAML schema.
type signatureFile struct {
	Meta struct {
		ID          string `yaml:"ID"`
		Description string `yaml:"Description"`
	} `yaml:"Meta"`
	Executables map[string][]string `yaml:"Executables"`
	NetConn     struct {
		Domains []string `yaml:"Domains"`
		Ports   []int    `yaml:"Ports"`
	} `yaml:"NetConn"`
}

// LoadDir loads every *.yaml/*.yml signature file in dir. Malformed
// files are logged and skipped; an empty directory is an error.
func LoadDir(dir string, log *zap.Logger) ([]Signature, error) {
	if log == nil {
		log = zap.NewNop()
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("signatures directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("signatures path %s is not a directory", dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading signatures directory: %w", err)
	}

	var sigs []Signature
	var failed []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		sig, err := loadFile(path)
		if err != nil {
			log.Error("failed to load signature file", logging.Path(path), zap.Error(err))
			failed = append(failed, entry.Name())
			continue
		}
		sigs = append(sigs, sig)
		log.Debug("loaded signature", logging.Signature(sig.Name), logging.SignatureID(sig.ID))
	}

	if len(failed) > 0 {
		log.Warn("some signature files failed to load",
			logging.Count(len(failed)), zap.Strings("files", failed))
	}
	if len(sigs) == 0 {
		return nil, fmt.Errorf("no signature YAML files found in %s", dir)
	}

	log.Info("loaded RMM signatures", logging.Count(len(sigs)))
	return sigs, nil
}

func loadFile(path string) (Signature, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Signature{}, err
	}

	var file signatureFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Signature{}, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if name == "" {
		name = file.Meta.Description
	}

	sig := Signature{
		Name:    name,
		ID:      file.Meta.ID,
		Domains: file.NetConn.Domains,
		Ports:   file.NetConn.Ports,
	}
	for _, platform := range signaturePlatforms {
		if paths := file.Executables[platform]; len(paths) > 0 {
			if sig.Executables == nil {
				sig.Executables = make(map[string][]string)
			}
			sig.Executables[platform] = paths
		}
	}
	return sig, nil
}

// ByNameOrID finds a signature by its name or ID, case-insensitively.
func ByNameOrID(sigs []Signature, nameOrID string) (Signature, bool) {
	for _, sig := range sigs {
		if strings.EqualFold(sig.Name, nameOrID) || strings.EqualFold(sig.ID, nameOrID) {
			return sig, true
		}
	}
	return Signature{}, false
}

// AllDomains returns the sorted set of unique domains across all
// signatures.
func AllDomains(sigs []Signature) []string {
	set := make(map[string]struct{})
	for _, sig := range sigs {
		for _, d := range sig.Domains {
			set[d] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for d := range set {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// AllPorts returns the sorted set of unique ports across all
// signatures.
func AllPorts(sigs []Signature) []int {
	set := make(map[int]struct{})
	for _, sig := range sigs {
		for _, p := range sig.Ports {
			set[p] = struct{}{}
		}
	}
	out := make([]int, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Ints(out)
	return out
}
