package core

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Mode selects how a component or wrapper module is obtained.
type Mode string

const (
	ModeSource   Mode = "source"
	ModeFilepath Mode = "filepath"
	ModeNoModule Mode = "no-module"
)

// Descriptor is a tagged union: Source(value), Filepath(value) or NoModule.
// The zero value is not a valid descriptor; build one with Source, Filepath,
// NoModule or by decoding JSON.
type Descriptor struct {
	mode  Mode
	value string
}

func Source(code string) Descriptor {
	return Descriptor{mode: ModeSource, value: code}
}

func Filepath(path string) Descriptor {
	return Descriptor{mode: ModeFilepath, value: path}
}

func NoModule() Descriptor {
	return Descriptor{mode: ModeNoModule}
}

func (d Descriptor) Mode() Mode {
	return d.mode
}

// Value is the inline source for Source and the site-relative path for Filepath.
func (d Descriptor) Value() string {
	return d.value
}

func (d Descriptor) IsNoModule() bool {
	return d.mode == ModeNoModule
}

func (d Descriptor) IsZero() bool {
	return d.mode == ""
}

func (d Descriptor) String() string {
	switch d.mode {
	case ModeSource:
		return fmt.Sprintf("source(%d bytes)", len(d.value))
	case ModeFilepath:
		return "filepath(" + d.value + ")"
	case ModeNoModule:
		return "no-module"
	default:
		return "invalid"
	}
}

type descriptorWire struct {
	Mode  Mode    `json:"mode"`
	Value *string `json:"value,omitempty"`
}

func (d Descriptor) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return nil, fmt.Errorf("%w: descriptor has no mode", ErrMalformedComponent)
	}
	wire := descriptorWire{Mode: d.mode}
	if d.mode != ModeNoModule {
		v := d.value
		wire.Value = &v
	}
	return json.Marshal(wire)
}

// UnmarshalJSON decodes the wire shape. A JSON null becomes NoModule.
func (d *Descriptor) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*d = NoModule()
		return nil
	}

	var wire descriptorWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedComponent, err)
	}

	parsed, err := newDescriptor(wire.Mode, wire.Value)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ParseDescriptor converts a loosely typed value (as produced by decoding
// JSON into any) into a Descriptor.
func ParseDescriptor(raw any) (Descriptor, error) {
	switch v := raw.(type) {
	case nil:
		return NoModule(), nil
	case Descriptor:
		if v.IsZero() {
			return Descriptor{}, fmt.Errorf("%w: descriptor has no mode", ErrMalformedComponent)
		}
		return v, nil
	case *Descriptor:
		if v == nil {
			return NoModule(), nil
		}
		return ParseDescriptor(*v)
	case map[string]any:
		modeRaw, ok := v["mode"].(string)
		if !ok {
			return Descriptor{}, fmt.Errorf("%w: mode must be a string, got %T", ErrMalformedComponent, v["mode"])
		}
		var value *string
		if rawValue, present := v["value"]; present && rawValue != nil {
			s, ok := rawValue.(string)
			if !ok {
				return Descriptor{}, fmt.Errorf("%w: value must be a string, got %T", ErrMalformedComponent, rawValue)
			}
			value = &s
		}
		return newDescriptor(Mode(modeRaw), value)
	default:
		return Descriptor{}, fmt.Errorf("%w: expected an object, got %T", ErrMalformedComponent, raw)
	}
}

func newDescriptor(mode Mode, value *string) (Descriptor, error) {
	switch mode {
	case ModeNoModule:
		return NoModule(), nil
	case ModeSource, ModeFilepath:
		if value == nil {
			return Descriptor{}, fmt.Errorf("%w: mode %q requires a value", ErrMalformedComponent, mode)
		}
		return Descriptor{mode: mode, value: *value}, nil
	case "":
		return Descriptor{}, fmt.Errorf("%w: missing mode", ErrMalformedComponent)
	default:
		return Descriptor{}, fmt.Errorf("%w: unknown mode %q", ErrMalformedComponent, mode)
	}
}
