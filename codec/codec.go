// Package codec reads and writes machine definitions as JSON, YAML or a
// protobuf google.protobuf.Struct.
package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
	"gopkg.in/yaml.v3"

	"github.com/tailored-agentic-units/stateopt/graph"
)

// Format names a definition encoding.
type Format string

const (
	JSON  Format = "json"
	YAML  Format = "yaml"
	Proto Format = "proto"
)

// ErrUnknownFormat is returned for a format name or file extension that
// has no codec.
var ErrUnknownFormat = errors.New("unknown format")

// ParseFormat resolves a format name.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(name) {
	case "json":
		return JSON, nil
	case "yaml", "yml":
		return YAML, nil
	case "proto", "pb", "binpb":
		return Proto, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
}

// FormatOf infers the format from a file name. Files without a known
// extension are read as JSON.
func FormatOf(filename string) Format {
	f, err := ParseFormat(strings.TrimPrefix(filepath.Ext(filename), "."))
	if err != nil {
		return JSON
	}
	return f
}

// Decode parses a machine definition.
func Decode(data []byte, f Format) (graph.Machine, error) {
	var m graph.Machine
	switch f {
	case JSON:
		if err := json.Unmarshal(data, &m); err != nil {
			return m, fmt.Errorf("failed to decode json: %w", err)
		}
		return m, nil
	case YAML:
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return m, fmt.Errorf("failed to decode yaml: %w", err)
		}
		return fromValue(doc)
	case Proto:
		var s structpb.Struct
		if err := proto.Unmarshal(data, &s); err != nil {
			return m, fmt.Errorf("failed to decode proto: %w", err)
		}
		return FromStruct(&s)
	}
	return m, fmt.Errorf("%w: %q", ErrUnknownFormat, f)
}

// Encode serializes a machine definition. JSON output is indented.
func Encode(m graph.Machine, f Format) ([]byte, error) {
	switch f {
	case JSON:
		data, err := json.MarshalIndent(m, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode json: %w", err)
		}
		return append(data, '\n'), nil
	case YAML:
		return encodeYAML(m)
	case Proto:
		s, err := ToStruct(m)
		if err != nil {
			return nil, err
		}
		data, err := proto.MarshalOptions{Deterministic: true}.Marshal(s)
		if err != nil {
			return nil, fmt.Errorf("failed to encode proto: %w", err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, f)
}

// Read decodes a machine from r.
func Read(r io.Reader, f Format) (graph.Machine, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return graph.Machine{}, fmt.Errorf("failed to read definition: %w", err)
	}
	return Decode(data, f)
}

// Write encodes m to w.
func Write(w io.Writer, m graph.Machine, f Format) error {
	data, err := Encode(m, f)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// ReadFile decodes the machine in filename, choosing the format by
// extension.
func ReadFile(filename string) (graph.Machine, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return graph.Machine{}, fmt.Errorf("failed to read definition: %w", err)
	}
	return Decode(data, FormatOf(filename))
}

// ToStruct converts m to a google.protobuf.Struct.
func ToStruct(m graph.Machine) (*structpb.Struct, error) {
	v, err := ToValue(m)
	if err != nil {
		return nil, err
	}
	s, err := structpb.NewStruct(v)
	if err != nil {
		return nil, fmt.Errorf("failed to build struct: %w", err)
	}
	return s, nil
}

// FromStruct converts a google.protobuf.Struct to a machine.
func FromStruct(s *structpb.Struct) (graph.Machine, error) {
	return fromValue(s.AsMap())
}

// ToValue converts m to its generic JSON form.
func ToValue(m graph.Machine) (map[string]any, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode machine: %w", err)
	}
	var v map[string]any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("failed to encode machine: %w", err)
	}
	return v, nil
}

// FromValue converts a generic JSON value to a machine.
func FromValue(v any) (graph.Machine, error) {
	return fromValue(v)
}

func fromValue(v any) (graph.Machine, error) {
	var m graph.Machine
	data, err := json.Marshal(v)
	if err != nil {
		return m, fmt.Errorf("failed to decode machine: %w", err)
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("failed to decode machine: %w", err)
	}
	return m, nil
}

// encodeYAML goes through the JSON encoding so the field order and null
// handling match the JSON output, then drops the flow style the JSON
// syntax carries.
func encodeYAML(m graph.Machine) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode yaml: %w", err)
	}
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("failed to encode yaml: %w", err)
	}
	blockStyle(&node)

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&node); err != nil {
		return nil, fmt.Errorf("failed to encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode yaml: %w", err)
	}
	return buf.Bytes(), nil
}

func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}
