// Package project loads and saves tempo maps as YAML documents or MIDI files
package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/james-see/bpmhelper/pkg/tempo"
)

// Format represents a project file format
type Format string

const (
	FormatYAML    Format = "yaml"
	FormatMIDI    Format = "midi"
	FormatUnknown Format = "unknown"
)

// ErrUnknownFormat is returned when a file's format cannot be determined
var ErrUnknownFormat = errors.New("unknown project format")

// Project is a named tempo map backed by a file
type Project struct {
	Name  string
	Path  string
	Tempo *tempo.Map
}

// New creates an empty project with the given base tempo
func New(name string, bpm float64) *Project {
	return &Project{Name: name, Tempo: tempo.NewMap(bpm)}
}

// DetectFormat detects the format of a file based on its extension
func DetectFormat(filename string) Format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".mid", ".midi":
		return FormatMIDI
	default:
		return FormatUnknown
	}
}

// DetectFormatFromContent detects format from file content
func DetectFormatFromContent(data []byte) Format {
	if len(data) >= 4 && string(data[:4]) == "MThd" {
		return FormatMIDI
	}
	if len(data) == 0 {
		return FormatUnknown
	}
	// anything else has to parse as YAML
	return FormatYAML
}

// Load reads a project from a file
func Load(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read project: %w", err)
	}

	format := DetectFormat(path)
	if format == FormatUnknown {
		format = DetectFormatFromContent(data)
	}

	p, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	p.Path = path
	if p.Name == "" {
		p.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return p, nil
}

// Parse decodes project data in the given format
func Parse(data []byte, format Format) (*Project, error) {
	switch format {
	case FormatYAML:
		return ParseYAML(data)
	case FormatMIDI:
		return ParseMIDI(data)
	default:
		return nil, ErrUnknownFormat
	}
}

// Encode serializes the project in the given format
func (p *Project) Encode(format Format) ([]byte, error) {
	switch format {
	case FormatYAML:
		return p.GenerateYAML()
	case FormatMIDI:
		return p.GenerateMIDI()
	default:
		return nil, ErrUnknownFormat
	}
}

// Save writes the project back to its own path
func (p *Project) Save() error {
	if p.Path == "" {
		return errors.New("no file path set")
	}
	return p.SaveAs(p.Path)
}

// SaveAs writes the project to path in the format its extension names
func (p *Project) SaveAs(path string) error {
	format := DetectFormat(path)
	if format == FormatUnknown {
		return fmt.Errorf("cannot determine format of %s: %w", path, ErrUnknownFormat)
	}

	data, err := p.Encode(format)
	if err != nil {
		return fmt.Errorf("failed to encode project: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write project: %w", err)
	}
	return nil
}

// Convert converts a project file from one format to another
func Convert(inputPath, outputPath string) error {
	if DetectFormat(outputPath) == FormatUnknown {
		return errors.New("cannot determine output format from filename")
	}

	p, err := Load(inputPath)
	if err != nil {
		return err
	}
	if err := p.SaveAs(outputPath); err != nil {
		return fmt.Errorf("conversion failed: %w", err)
	}
	return nil
}

// GetSupportedFormats returns the formats projects can be read from and written to
func GetSupportedFormats() []Format {
	return []Format{FormatYAML, FormatMIDI}
}
