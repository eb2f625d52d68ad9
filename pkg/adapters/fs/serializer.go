package fs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/audittrail/pkg/core"
)

// Serializer defines how to read and write a record file format.
type Serializer interface {
	// Parse reads one record from r.
	Parse(r io.Reader) (*core.Record, error)
	// Serialize converts the record to bytes.
	Serialize(rec *core.Record) ([]byte, error)
}

// DefaultSerializers returns the standard set of serializers by extension.
func DefaultSerializers(strict bool) map[string]Serializer {
	return map[string]Serializer{
		".json": NewJSONSerializer(strict),
		".yaml": NewYAMLSerializer(strict),
		".yml":  NewYAMLSerializer(strict),
	}
}

// --- JSON Serializer ---

// JSONSerializer handles reading and writing JSON record files.
type JSONSerializer struct {
	// Strict rejects unknown keys.
	Strict bool
}

// NewJSONSerializer creates a new JSON serializer.
func NewJSONSerializer(strict bool) *JSONSerializer {
	return &JSONSerializer{Strict: strict}
}

func (s *JSONSerializer) Parse(r io.Reader) (*core.Record, error) {
	decoder := json.NewDecoder(r)
	if s.Strict {
		decoder.DisallowUnknownFields()
	}
	var rec core.Record
	if err := decoder.Decode(&rec); err != nil {
		return nil, fmt.Errorf("invalid json: %w", err)
	}
	return &rec, nil
}

func (s *JSONSerializer) Serialize(rec *core.Record) ([]byte, error) {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// --- YAML Serializer ---

// YAMLSerializer handles reading and writing YAML record files.
type YAMLSerializer struct {
	// Strict rejects unknown keys.
	Strict bool
}

// NewYAMLSerializer creates a new YAML serializer.
func NewYAMLSerializer(strict bool) *YAMLSerializer {
	return &YAMLSerializer{Strict: strict}
}

func (s *YAMLSerializer) Parse(r io.Reader) (*core.Record, error) {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(s.Strict)
	var rec core.Record
	if err := decoder.Decode(&rec); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("invalid yaml: empty document")
		}
		return nil, fmt.Errorf("invalid yaml: %w", err)
	}
	return &rec, nil
}

func (s *YAMLSerializer) Serialize(rec *core.Record) ([]byte, error) {
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(rec); err != nil {
		return nil, err
	}
	if err := encoder.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
