package saveload

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Format selects the save file encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
	FormatJSON Format = "json"
)

// FormatFromPath picks the format by file extension.
func FormatFromPath(path string) (Format, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: extension %q", ErrUnknownFormat, ext)
	}
}

type codec interface {
	encode(w io.Writer, v any) error
	marshal(v any) ([]byte, error)
	unmarshal(b []byte, v any) error
}

func codecFor(f Format) (codec, error) {
	switch f {
	case FormatYAML:
		return yamlCodec{}, nil
	case FormatTOML:
		return tomlCodec{}, nil
	case FormatJSON:
		return jsonCodec{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, string(f))
	}
}

type yamlCodec struct{}

func (yamlCodec) encode(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func (yamlCodec) marshal(v any) ([]byte, error) { return yaml.Marshal(v) }
func (yamlCodec) unmarshal(b []byte, v any) error { return yaml.Unmarshal(b, v) }

type tomlCodec struct{}

func (tomlCodec) encode(w io.Writer, v any) error { return toml.NewEncoder(w).Encode(v) }
func (tomlCodec) marshal(v any) ([]byte, error) { return toml.Marshal(v) }
func (tomlCodec) unmarshal(b []byte, v any) error { return toml.Unmarshal(b, v) }

type jsonCodec struct{}

func (jsonCodec) encode(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (jsonCodec) marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) unmarshal(b []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	return dec.Decode(v)
}

type wrapped[T any] struct {
	V T `yaml:"v" toml:"v" json:"v"`
}

// decodeInto turns a generically decoded value into T by encoding it again
// in the same format. The value is wrapped in a table because TOML cannot
// encode bare scalars or arrays at the top level.
func decodeInto[T any](c codec, raw any) (T, error) {
	var out wrapped[T]
	b, err := c.marshal(map[string]any{"v": raw})
	if err != nil {
		return out.V, err
	}
	err = c.unmarshal(b, &out)
	return out.V, err
}
