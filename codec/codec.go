// Package codec provides the pluggable document serializers. A codec is
// chosen once, at collection-open time, and recorded in the collection
// metadata so every reader and writer agrees on the format.
package codec

import "fmt"

// Codec serializes and deserializes document payloads.
type Codec interface {
	// Name is the stable identifier persisted in collection metadata.
	Name() string
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
}

// ByName resolves a codec from its persisted name.
func ByName(name string) (Codec, error) {
	switch name {
	case "json":
		return JSON{}, nil
	case "yaml":
		return YAML{}, nil
	default:
		return nil, fmt.Errorf("unknown codec %q", name)
	}
}
