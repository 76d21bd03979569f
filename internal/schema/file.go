package schema

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Document is the on-disk layout of a schema file.
type Document struct {
	Tools []Entry `yaml:"tools"`
}

// Decode reads a YAML schema document.
func Decode(r io.Reader) ([]Entry, error) {
	var doc Document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, ErrEmptyRegistry
		}
		return nil, fmt.Errorf("decode schema: %w", err)
	}
	if len(doc.Tools) == 0 {
		return nil, ErrEmptyRegistry
	}
	return doc.Tools, nil
}

// LoadFile reads a YAML schema file.
func LoadFile(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema file: %w", err)
	}
	entries, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return entries, nil
}

// Encode writes entries as a YAML schema document.
func Encode(w io.Writer, entries []Entry) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(Document{Tools: entries}); err != nil {
		return fmt.Errorf("encode schema: %w", err)
	}
	return enc.Close()
}

// Compose overlays entries onto base by tool name. Tools only present in
// overlay are appended.
func Compose(base, overlay []Entry) []Entry {
	out := make([]Entry, 0, len(base)+len(overlay))
	index := make(map[string]int, len(base))
	for _, e := range base {
		index[normalizeTool(e.Tool)] = len(out)
		out = append(out, e.clone())
	}
	for _, e := range overlay {
		if i, ok := index[normalizeTool(e.Tool)]; ok {
			out[i] = Overlay(out[i], e)
			continue
		}
		index[normalizeTool(e.Tool)] = len(out)
		out = append(out, e.clone())
	}
	return out
}
