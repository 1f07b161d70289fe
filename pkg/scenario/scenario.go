// Package scenario builds repositories and working copies from YAML
// fixtures. A fixture scripts repository revisions as lists of operations
// and, optionally, a working copy checked out from one of them with local
// edits on top.
package scenario

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/treemerge/pkg/vcs"
)

//go:embed schema.json
var schemaJSON []byte

// Errors returned while loading fixtures.
var (
	// ErrInvalidScenario is matched by every schema violation.
	ErrInvalidScenario = errors.New("invalid scenario")
	// ErrDecode is returned when the fixture is not well-formed YAML.
	ErrDecode = errors.New("decode scenario")
)

// ValidationError lists every schema violation of a fixture.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid scenario:\n  - " + strings.Join(e.Problems, "\n  - ")
}

// Is matches ErrInvalidScenario.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidScenario
}

// Scenario is a decoded fixture.
type Scenario struct {
	Description string       `yaml:"description"`
	Revisions   []Revision   `yaml:"revisions"`
	WorkingCopy *WorkingCopy `yaml:"working_copy"`
}

// Revision is one commit.
type Revision struct {
	Log string    `yaml:"log"`
	Ops []ReposOp `yaml:"ops"`
}

// ReposOp is one repository operation; exactly one field is set.
type ReposOp struct {
	MkDir   string     `yaml:"mkdir"`
	Put     *PutOp     `yaml:"put"`
	Copy    *CopyOp    `yaml:"copy"`
	Move    *MoveOp    `yaml:"move"`
	Delete  string     `yaml:"delete"`
	PropSet *PropSetOp `yaml:"propset"`
	PropDel *PropDelOp `yaml:"propdel"`
}

// WorkingCopy describes a checkout of Path@Rev and the local edits made to
// it. A zero Rev means the youngest revision.
type WorkingCopy struct {
	Path  string     `yaml:"path"`
	Rev   vcs.Revnum `yaml:"rev"`
	Edits []LocalOp  `yaml:"edits"`
}

// LocalOp is one working-copy edit; exactly one field is set.
type LocalOp struct {
	Write   *PutOp     `yaml:"write"`
	AddFile *PutOp     `yaml:"add_file"`
	AddDir  string     `yaml:"add_dir"`
	Copy    *CopyOp    `yaml:"copy"`
	Delete  string     `yaml:"delete"`
	PropSet *PropSetOp `yaml:"propset"`
	PropDel *PropDelOp `yaml:"propdel"`
	Exclude string     `yaml:"exclude"`
}

// PutOp writes a file.
type PutOp struct {
	Path string `yaml:"path"`
	Text string `yaml:"text"`
}

// CopyOp copies From@Rev to To.
type CopyOp struct {
	From string     `yaml:"from"`
	Rev  vcs.Revnum `yaml:"rev"`
	To   string     `yaml:"to"`
}

// MoveOp moves From to To within one revision.
type MoveOp struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// PropSetOp sets a property.
type PropSetOp struct {
	Path  string `yaml:"path"`
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
}

// PropDelOp deletes a property.
type PropDelOp struct {
	Path string `yaml:"path"`
	Name string `yaml:"name"`
}

// LoadFile reads and validates the fixture at path.
func LoadFile(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}

	return Parse(data)
}

// Load reads and validates a fixture from r.
func Load(r io.Reader) (*Scenario, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}

	return Parse(data)
}

// Parse validates data against the fixture schema and decodes it.
func Parse(data []byte) (*Scenario, error) {
	var doc any

	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	if err := validate(doc); err != nil {
		return nil, err
	}

	var sc Scenario

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	return &sc, nil
}

func validate(doc any) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaJSON),
		gojsonschema.NewGoLoader(doc),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidScenario, err)
	}

	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, verr := range result.Errors() {
		problems = append(problems, fmt.Sprintf("%s: %s", verr.Field(), verr.Description()))
	}

	return &ValidationError{Problems: problems}
}
