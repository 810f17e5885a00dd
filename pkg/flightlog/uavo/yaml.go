package uavo

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// catalogueFile is the on-disk layout of an extra catalogue.
type catalogueFile struct {
	Objects []*ObjectType `yaml:"objects"`
}

// UnmarshalYAML accepts field types by name.
func (t *FieldType) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	ft, err := ParseFieldType(s)
	if err != nil {
		return err
	}
	*t = ft
	return nil
}

// MarshalYAML writes field types by name.
func (t FieldType) MarshalYAML() (interface{}, error) {
	return t.String(), nil
}

// LoadYAML registers every object listed in a YAML document:
//
//	objects:
//	  - id: 0x1234ABCD
//	    name: Airspeed
//	    loggable: true
//	    fields:
//	      - {name: CalibratedAirspeed, type: float32, units: m/s}
func (c *Catalogue) LoadYAML(r io.Reader) error {
	var doc catalogueFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if err == io.EOF {
			return nil
		}
		return fmt.Errorf("failed to parse catalogue: %w", err)
	}
	for _, t := range doc.Objects {
		if err := c.Register(t); err != nil {
			return err
		}
	}
	return nil
}

// LoadFile registers the objects of a YAML catalogue file.
func (c *Catalogue) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open catalogue: %w", err)
	}
	defer f.Close()
	return c.LoadYAML(f)
}

// WriteYAML writes the catalogue in the format LoadYAML reads.
func (c *Catalogue) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(catalogueFile{Objects: c.types}); err != nil {
		return fmt.Errorf("failed to encode catalogue: %w", err)
	}
	return enc.Close()
}
