package registry

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"cloudboost-metrics/internal/domain"
)

// definitionsFile is the YAML layout of a metric definitions file:
//
//	metrics:
//	  - id: whatsappDelivered
//	    inputKinds: [Message]
//	    unit: count
//	    granularity: sum
//	    field: delivered
type definitionsFile struct {
	Metrics []domain.MetricDefinition `yaml:"metrics"`
}

// Load registers every definition decoded from r, in file order.
// Growth definitions may reference metrics declared earlier in the file.
func (reg *Registry) Load(r io.Reader) (int, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var file definitionsFile
	if err := dec.Decode(&file); err != nil {
		if err == io.EOF {
			return 0, nil
		}
		return 0, fmt.Errorf("decode metric definitions: %w", err)
	}

	for i, def := range file.Metrics {
		if err := reg.Register(def); err != nil {
			return i, fmt.Errorf("metric %d: %w", i, err)
		}
	}
	return len(file.Metrics), nil
}

// LoadFile registers the definitions in the YAML file at path.
func (reg *Registry) LoadFile(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open metric definitions: %w", err)
	}
	defer f.Close()
	return reg.Load(f)
}
