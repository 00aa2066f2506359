package codec

import "gopkg.in/yaml.v3"

// YAML encodes payloads as YAML documents.
type YAML struct{}

func (YAML) Name() string { return "yaml" }

func (YAML) Encode(v any) ([]byte, error) {
	return yaml.Marshal(v)
}

func (YAML) Decode(data []byte, v any) error {
	return yaml.Unmarshal(data, v)
}
