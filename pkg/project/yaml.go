package project

import (
	"fmt"

	"github.com/james-see/bpmhelper/pkg/tempo"
	"gopkg.in/yaml.v3"
)

// document is the YAML layout of a project file
type document struct {
	Name    string          `yaml:"name,omitempty"`
	BPM     float64         `yaml:"bpm"`
	Length  float64         `yaml:"length,omitempty"`
	Markers []*tempo.Marker `yaml:"markers"`
}

// ParseYAML decodes a YAML project document
func ParseYAML(data []byte) (*Project, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	p := New(doc.Name, doc.BPM)
	p.Tempo.Length = doc.Length
	for i, mk := range doc.Markers {
		if mk == nil {
			continue
		}
		if err := p.Tempo.Insert(mk); err != nil {
			return nil, fmt.Errorf("marker %d: %w", i, err)
		}
	}
	return p, nil
}

// GenerateYAML encodes the project as a YAML document
func (p *Project) GenerateYAML() ([]byte, error) {
	doc := document{
		Name:    p.Name,
		BPM:     p.Tempo.BaseTempo,
		Length:  p.Tempo.Length,
		Markers: p.Tempo.Markers(),
	}
	return yaml.Marshal(&doc)
}
