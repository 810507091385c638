// Package readiness knows how to tell that the backend is ready from its output lines.
//
// Markers are a versioned document instead of hardcoded strings, so a backend release that
// changes its log output only needs a new marker file (see LoadFile).
package readiness

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/slok/comfylaunch/internal/model"
)

// CurrentVersion is the only marker document version understood.
const CurrentVersion = 1

//go:embed default.yaml
var defaultMarkers []byte

var placeholderRe = regexp.MustCompile(`\{\{\s*([^}]*?)\s*\}\}`)

// Marker is a single readiness marker. The template may use the {{host}} and {{port}}
// placeholders.
type Marker struct {
	Name     string `yaml:"name"`
	Template string `yaml:"template"`
}

// Set is a versioned set of readiness markers.
type Set struct {
	Version int      `yaml:"version"`
	Markers []Marker `yaml:"markers"`
}

// Default returns the embedded marker set.
func Default() Set {
	s, err := Load(bytes.NewReader(defaultMarkers))
	if err != nil {
		panic(fmt.Sprintf("invalid embedded readiness markers: %s", err))
	}
	return s
}

// Load parses a YAML marker set.
func Load(r io.Reader) (Set, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var s Set
	if err := dec.Decode(&s); err != nil {
		return Set{}, fmt.Errorf("could not decode readiness markers: %w", err)
	}

	if err := s.Validate(); err != nil {
		return Set{}, err
	}

	return s, nil
}

// LoadFile loads a marker set from a YAML file.
func LoadFile(path string) (Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return Set{}, fmt.Errorf("could not open readiness markers file: %w", err)
	}
	defer f.Close()

	return Load(f)
}

// Validate checks the set is usable.
func (s Set) Validate() error {
	if s.Version != CurrentVersion {
		return fmt.Errorf("unsupported readiness markers version %d: %w", s.Version, model.ErrNotValid)
	}
	if len(s.Markers) == 0 {
		return fmt.Errorf("at least one readiness marker is required: %w", model.ErrNotValid)
	}

	seen := map[string]bool{}
	for i, m := range s.Markers {
		if m.Name == "" {
			return fmt.Errorf("marker %d: name is required: %w", i, model.ErrNotValid)
		}
		if seen[m.Name] {
			return fmt.Errorf("marker %q: duplicated name: %w", m.Name, model.ErrNotValid)
		}
		seen[m.Name] = true

		if strings.TrimSpace(m.Template) == "" {
			return fmt.Errorf("marker %q: template is required: %w", m.Name, model.ErrNotValid)
		}
		for _, ph := range placeholderRe.FindAllStringSubmatch(m.Template, -1) {
			if ph[1] != "host" && ph[1] != "port" {
				return fmt.Errorf("marker %q: unknown placeholder %q: %w", m.Name, ph[0], model.ErrNotValid)
			}
		}
	}

	return nil
}

// Compile renders the templates for a backend listening on host and port.
func (s Set) Compile(host string, port int) Matcher {
	values := map[string]string{
		"host": host,
		"port": strconv.Itoa(port),
	}

	m := Matcher{}
	for _, mk := range s.Markers {
		text := placeholderRe.ReplaceAllStringFunc(mk.Template, func(ph string) string {
			return values[placeholderRe.FindStringSubmatch(ph)[1]]
		})
		m.markers = append(m.markers, compiled{name: mk.Name, text: text})
	}

	return m
}

type compiled struct {
	name string
	text string
}

// Matcher tests output lines against rendered markers.
type Matcher struct {
	markers []compiled
}

// Match returns the name of the first marker contained in the line. Matching is
// case-sensitive.
func (m Matcher) Match(line string) (name string, ok bool) {
	for _, c := range m.markers {
		if strings.Contains(line, c.text) {
			return c.name, true
		}
	}
	return "", false
}
