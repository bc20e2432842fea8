package metadata

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/laav10/astro-ingester/internal/fileutils"
	"gopkg.in/yaml.v3"
)

// ErrParse is returned when a metadata file cannot be decoded.
var ErrParse = errors.New("metadata file could not be parsed")

// document is the layout of a metadata file.
type document struct {
	Metadata   Observation `json:"metadata" yaml:"metadata" toml:"metadata"`
	HeaderData RawHeader   `json:"header_data" yaml:"header_data" toml:"header_data"`
}

// LoadFile reads the observation and raw header from a metadata file.
//
// The file holds an object with the "metadata" and "header_data" mappings, both optional.
// It is decoded as YAML for .yaml and .yml files, TOML for .toml files and JSON otherwise.
func LoadFile(path string) (obs Observation, hdr RawHeader, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("could not open metadata file: %w", err)
	}
	defer f.Close()

	var doc document
	if err := decode(f, strings.ToLower(filepath.Ext(path)), &doc); err != nil {
		return nil, nil, errors.Join(ErrParse, err)
	}

	if doc.Metadata == nil {
		doc.Metadata = Observation{}
	}
	if doc.HeaderData == nil {
		doc.HeaderData = RawHeader{}
	}
	return doc.Metadata, doc.HeaderData, nil
}

func decode(r io.Reader, ext string, doc *document) error {
	switch ext {
	case ".yaml", ".yml":
		d := yaml.NewDecoder(fileutils.NewTextReader(r))
		if err := d.Decode(doc); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("couldn't parse YAML: %v", err)
		}
		return nil
	case ".toml":
		if _, err := toml.NewDecoder(fileutils.NewTextReader(r)).Decode(doc); err != nil {
			return fmt.Errorf("couldn't parse TOML: %v", err)
		}
		return nil
	default:
		return fileutils.ParseJSON(r, doc)
	}
}
