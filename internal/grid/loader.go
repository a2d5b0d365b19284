package grid

import (
	"fmt"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// LoadFile parses and decodes a grid file from disk.
func LoadFile(path string) (*File, error) {
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parsing grid file %s: %w", path, diags)
	}
	var f File
	if diags := gohcl.DecodeBody(hclFile.Body, nil, &f); diags.HasErrors() {
		return nil, fmt.Errorf("decoding grid file %s: %w", path, diags)
	}
	return &f, nil
}

// Parse decodes a grid from source bytes; filename is used in diagnostics.
func Parse(src []byte, filename string) (*File, error) {
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parsing grid %s: %w", filename, diags)
	}
	var f File
	if diags := gohcl.DecodeBody(hclFile.Body, nil, &f); diags.HasErrors() {
		return nil, fmt.Errorf("decoding grid %s: %w", filename, diags)
	}
	return &f, nil
}
