package graph

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Defaults target the Chrome OS eCryptfs layout: user vaults live under
// /home/.shadow/<hash>/vault/user/ and encrypted names carry the eCryptfs
// FNEK prefix.
const (
	defaultVaultPat = `^/?home/\.shadow/[0-9a-z]*?/vault/user/`
	defaultEncPat   = `/ECRYPTFS_FNEK_ENCRYPTED\.([^/]*)$`
	defaultSlicePat = `(/home/.*)$`

	// Template of the shallowest path an extension version directory can
	// have inside a vault. Its depth is the default minimum depth of
	// interest.
	vaultDepthTemplate = "/home/.shadow/<user ID>/vault/user/<encrypted Extensions>/" +
		"<encrypted extension ID>/<encrypted extension version>/"
)

// Patterns carries the configured predicates the attribute deriver and the
// trimmer depend on. What exactly constitutes a vault is injected here, never
// hard-wired into the traversal.
type Patterns struct {
	// Vault matches paths inside a region considered a relevant container
	// for objects of forensic interest.
	Vault *regexp.Regexp
	// Enc matches path names that follow a known encrypted-container naming
	// convention. A heuristic: no file content is ever inspected.
	Enc *regexp.Regexp
	// Slice extracts, as its first capture group, the real path suffix from
	// a path that includes a mount-point prefix.
	Slice *regexp.Regexp
	// MinDepth is the minimum directory depth of interest.
	MinDepth int
}

// DefaultPatterns returns the Chrome OS eCryptfs pattern set.
func DefaultPatterns() *Patterns {
	return &Patterns{
		Vault:    regexp.MustCompile(defaultVaultPat),
		Enc:      regexp.MustCompile(defaultEncPat),
		Slice:    regexp.MustCompile(defaultSlicePat),
		MinDepth: GetDirDepth(vaultDepthTemplate),
	}
}

type patternsFile struct {
	Vault    string `yaml:"vault_pattern"`
	Enc      string `yaml:"encrypted_pattern"`
	Slice    string `yaml:"slice_pattern"`
	MinDepth int    `yaml:"min_depth"`
}

// LoadPatterns reads a pattern set from a YAML file. Missing keys keep their
// default value.
func LoadPatterns(path string) (*Patterns, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading pattern config: %w", err)
	}
	var pf patternsFile
	if err := yaml.Unmarshal(raw, &pf); err != nil {
		return nil, fmt.Errorf("parsing pattern config %s: %w", path, err)
	}

	p := DefaultPatterns()
	if pf.Vault != "" {
		if p.Vault, err = regexp.Compile(pf.Vault); err != nil {
			return nil, fmt.Errorf("vault_pattern: %w", err)
		}
	}
	if pf.Enc != "" {
		if p.Enc, err = regexp.Compile(pf.Enc); err != nil {
			return nil, fmt.Errorf("encrypted_pattern: %w", err)
		}
	}
	if pf.Slice != "" {
		if p.Slice, err = regexp.Compile(pf.Slice); err != nil {
			return nil, fmt.Errorf("slice_pattern: %w", err)
		}
	}
	if pf.MinDepth > 0 {
		p.MinDepth = pf.MinDepth
	}
	return p, nil
}

// SlicePath runs filename through the slice pattern and returns the real
// path suffix. When the pattern does not match, the input is returned
// unchanged. Slicing affects depth and encryption checks only; the stored
// filename always keeps the full path.
func (p *Patterns) SlicePath(filename string) string {
	if p.Slice == nil {
		return filename
	}
	if m := p.Slice.FindStringSubmatch(filename); m != nil {
		return m[1]
	}
	return filename
}
