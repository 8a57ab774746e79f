package labels

import (
	"strings"

	"github.com/pkg/errors"
)

// Unknown is returned for any class index outside the table.
const Unknown = "Unknown Category"

var defaultNames = []string{
	"Acne",
	"Melanoma",
	"Psoriasis",
	"Ringworm",
	"Scabies",
}

// Mapper turns classifier output into a human readable disease name.
type Mapper struct {
	names []string
}

func Default() *Mapper {
	names := make([]string, len(defaultNames))
	copy(names, defaultNames)
	return &Mapper{names: names}
}

func New(names []string) (*Mapper, error) {
	if len(names) == 0 {
		return nil, errors.New("label table is empty")
	}
	out := make([]string, len(names))
	for i, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, errors.Errorf("label %d is blank", i)
		}
		out[i] = name
	}
	return &Mapper{names: out}, nil
}

// Label never fails: indices outside the table resolve to Unknown.
func (m *Mapper) Label(index int) string {
	if !m.Known(index) {
		return Unknown
	}
	return m.names[index]
}

func (m *Mapper) Known(index int) bool {
	return index >= 0 && index < len(m.names)
}

func (m *Mapper) Len() int {
	return len(m.names)
}

func (m *Mapper) Names() []string {
	out := make([]string, len(m.names))
	copy(out, m.names)
	return out
}
