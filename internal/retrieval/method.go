package retrieval

import (
	"fmt"

	"github.com/kozaktomas/cbir/internal/config"
	"github.com/kozaktomas/cbir/internal/constants"
)

// Method names a retrieval method.
type Method string

const (
	MethodIntensity Method = "intensity"
	MethodColorCode Method = "color-code"
	MethodFeedback  Method = "feedback"
)

// Feature groups of the canonical feature vector.
const (
	GroupIntensity = "intensity"
	GroupColorCode = "color_code"
)

// MethodSpec describes which feature space a method ranks in.
type MethodSpec struct {
	Name       Method `json:"name"`
	Label      string `json:"label"`
	From       int    `json:"-"`
	To         int    `json:"-"`
	Normalized bool   `json:"normalized"`
	Feedback   bool   `json:"feedback"`
}

// Dim returns the number of features the method compares.
func (s MethodSpec) Dim() int {
	return s.To - s.From
}

// groupRange returns the column range of a feature group.
func groupRange(group string) (int, int, error) {
	switch group {
	case GroupIntensity:
		return 0, constants.IntensityBins, nil
	case GroupColorCode:
		return constants.IntensityBins, constants.FeatureDim, nil
	default:
		return 0, 0, fmt.Errorf("unknown feature group %q", group)
	}
}

// NewMethodSpec resolves feature groups into a contiguous column range.
func NewMethodSpec(name, label string, groups []string, normalized, feedback bool) (MethodSpec, error) {
	if name == "" {
		return MethodSpec{}, fmt.Errorf("method name is required")
	}
	if len(groups) == 0 {
		return MethodSpec{}, fmt.Errorf("method %s: no feature groups", name)
	}

	spec := MethodSpec{Name: Method(name), Label: label, Normalized: normalized, Feedback: feedback}
	for i, g := range groups {
		from, to, err := groupRange(g)
		if err != nil {
			return MethodSpec{}, fmt.Errorf("method %s: %w", name, err)
		}
		if i == 0 {
			spec.From, spec.To = from, to
			continue
		}
		if from != spec.To {
			return MethodSpec{}, fmt.Errorf("method %s: feature groups must be contiguous and in canonical order", name)
		}
		spec.To = to
	}
	if spec.Label == "" {
		spec.Label = name
	}
	return spec, nil
}

// MethodsFromConfig converts the configured method catalogue.
func MethodsFromConfig(methods []config.MethodConfig) ([]MethodSpec, error) {
	specs := make([]MethodSpec, 0, len(methods))
	seen := make(map[string]bool, len(methods))
	for _, m := range methods {
		if seen[m.Name] {
			return nil, fmt.Errorf("duplicate method %s", m.Name)
		}
		seen[m.Name] = true

		spec, err := NewMethodSpec(m.Name, m.Label, m.Features, m.Normalized, m.Feedback)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// DefaultMethods returns the built-in method catalogue.
func DefaultMethods() []MethodSpec {
	specs, err := MethodsFromConfig(config.Load().Retrieval.Methods)
	if err != nil {
		// The catalogue is embedded, so this only fails on a broken build
		panic("invalid embedded retrieval methods: " + err.Error())
	}
	return specs
}
