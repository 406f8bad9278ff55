package runner

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Labels maps a model output index to a part name.
type Labels map[int]string

var defaultLabels = []string{
	"Gen Set 15 KVA (TMTL) Blower Assy",
	"Gen Set 15 KVA (TMTL) Crankshaft",
	"Gen Set 15 KVA (TMTL) Fuel Pump assy",
	"Gen Set 15 KVA(TMTL) Piston & Gudgon Pin",
	"Gen Set 15 Kva &35 KVA(TMTL) Air Filter",
	"Gen Set 15 Kva &35 KVA(TMTL) Alternator Assy 12 V",
	"Gen Set 15 Kva &35 KVA(TMTL) Connecting Rod",
	"Gen Set 15 Kva &35 KVA(TMTL) Cyl Head",
	"Gen Set 15 Kva &35 KVA(TMTL) Fuel Hose",
	"Gen Set 15 Kva &35 KVA(TMTL) Fuel filter",
	"Gen Set 15 Kva &35 KVA(TMTL) Injector",
	"Gen Set 15 Kva &35 KVA(TMTL) Inlet & Exhaust Valve",
	"Gen Set 15 Kva &35 KVA(TMTL) Oil Preasssure Gauge",
	"Gen Set 15 Kva &35 KVA(TMTL) Oil Pump",
	"Gen Set 15 Kva &35 KVA(TMTL) Push Rod",
	"Gen Set 15 Kva &35 KVA(TMTL) Sleeves",
	"Gen Set 15 Kva ,35 KVA & 63 KVA (TMTL) Flywheel Ring",
	"Gen Set 15 Kva ,35 KVA & 63 KVA (TMTL) Over Flow Pipe",
	"Gen Set 15 Kva ,35 KVA & 63 KVA (TMTL) Push Rod Tube",
	"Gen Set 15 Kva ,35 KVA & 63 KVA (TMTL) Push Rod seal",
	"Gen Set 15 Kva ,35 KVA & 63 KVA (TMTL) Ring Set",
	"Gen Set 15 Kva ,35 KVA & 63 KVA (TMTL) Stopper Solonide",
	"Gen Set 35 KVA (TMTL) Oil Filter",
	"Gen Set 35 KVA(TMTL) Piston",
	"Gen set 15 KVA,35 KVA&63 KVA (KOEL) Valve Guide",
}

// DefaultLabels returns the generator spare-part classes the bundled model
// was trained on.
func DefaultLabels() Labels {
	labels := make(Labels, len(defaultLabels))
	for i, name := range defaultLabels {
		labels[i] = name
	}
	return labels
}

// LoadLabels reads an index-to-name YAML mapping, e.g. "0: Gen Set Piston".
func LoadLabels(path string) (Labels, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read labels: %w", err)
	}

	var labels Labels
	if err := yaml.Unmarshal(data, &labels); err != nil {
		return nil, fmt.Errorf("failed to parse labels: %w", err)
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("labels file %s is empty", path)
	}
	return labels, nil
}

// Name returns the part name for index, or "Unknown Part <index>".
func (l Labels) Name(index int) string {
	if name, ok := l[index]; ok && name != "" {
		return name
	}
	return fmt.Sprintf("Unknown Part %d", index)
}
