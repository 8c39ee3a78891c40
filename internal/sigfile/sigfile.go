// Package sigfile reads YAML signature definitions and resolves them against
// a scanner.
//
//	signatures:
//	  - name: compare
//	    module: game.exe
//	    pattern: 29 D8 38 F4 04
//	    offset: -5
//	    protect: exec
//	    follow: true
package sigfile

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"hotpatch/common"
)

// Pattern is a byte string written as hex with optional spaces.
type Pattern []byte

func (p *Pattern) UnmarshalYAML(n *yaml.Node) error {
	var s string
	if err := n.Decode(&s); err != nil {
		return fmt.Errorf("line %d: %w", n.Line, err)
	}
	b, err := hex.DecodeString(strings.Join(strings.Fields(s), ""))
	if err != nil {
		return fmt.Errorf("line %d: bad pattern %q: %w", n.Line, s, err)
	}
	*p = b
	return nil
}

// Protect is a protection filter written as read, write or exec.
type Protect common.Protection

func (p *Protect) UnmarshalYAML(n *yaml.Node) error {
	var s string
	if err := n.Decode(&s); err != nil {
		return fmt.Errorf("line %d: %w", n.Line, err)
	}
	prot, ok := common.ParseProtection(s)
	if !ok {
		return fmt.Errorf("line %d: unknown protection %q (want read, write or exec)", n.Line, s)
	}
	*p = Protect(prot)
	return nil
}

// Signature locates one address.
type Signature struct {
	Name    string  `yaml:"name"`
	Module  string  `yaml:"module,omitempty"`
	Pattern Pattern `yaml:"pattern"`
	// Offset is added to the match address
	Offset  int32   `yaml:"offset,omitempty"`
	Protect Protect `yaml:"protect,omitempty"`
	// Follow decodes the branch at match+offset and reports its target
	Follow bool `yaml:"follow,omitempty"`

	Line int `yaml:"-"`
}

// File is a parsed signature file.
type File struct {
	Signatures []Signature `yaml:"signatures"`
}

// Parse decodes a signature file. Unknown keys, empty patterns and duplicate
// names are errors.
func Parse(data []byte) (*File, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}

	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return &f, nil
		}
		return nil, err
	}

	lines := signatureLines(&root)
	seen := map[string]bool{}
	for i := range f.Signatures {
		sig := &f.Signatures[i]
		if i < len(lines) {
			sig.Line = lines[i]
		}
		if sig.Name == "" {
			return nil, fmt.Errorf("line %d: signature without a name", sig.Line)
		}
		if seen[sig.Name] {
			return nil, fmt.Errorf("line %d: duplicate signature %q", sig.Line, sig.Name)
		}
		seen[sig.Name] = true
		if len(sig.Pattern) == 0 {
			return nil, fmt.Errorf("line %d: signature %q has no pattern", sig.Line, sig.Name)
		}
		if sig.Protect == 0 {
			sig.Protect = Protect(common.Readable)
		}
	}
	return &f, nil
}

// Load reads and parses a signature file from disk.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// signatureLines returns the line of each entry of the signatures sequence.
func signatureLines(root *yaml.Node) []int {
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil
	}
	m := root.Content[0]
	if m.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value != "signatures" {
			continue
		}
		var lines []int
		for _, item := range m.Content[i+1].Content {
			lines = append(lines, item.Line)
		}
		return lines
	}
	return nil
}
