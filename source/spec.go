package source

import (
	"math"
	"strings"

	"github.com/samber/lo"

	"github.com/MasterOfBinary/inputbatch/batch"
)

// Spec is one record source: a file pattern and its mixing weight.
type Spec struct {
	FilePattern string  `json:"filePattern"`
	Weight      float64 `json:"weight"`
}

// SourceSet is the parsed form of the file_pattern and
// input_source_weights options.
type SourceSet struct {
	Specs []Spec

	// Legacy is true when no weights were given and the whole pattern
	// string became a single source.
	Legacy bool
}

// Weights returns the weight of every Spec, in order.
func (s SourceSet) Weights() []float64 {
	return lo.Map(s.Specs, func(spec Spec, _ int) float64 {
		return spec.Weight
	})
}

// ParseSources parses filePattern and weights into a SourceSet.
//
// With no weights the entire filePattern, commas included, is a single
// source with weight 1. Otherwise filePattern is split on commas and there
// must be exactly one weight per pattern.
func ParseSources(filePattern string, weights []float64) (SourceSet, error) {
	if len(weights) == 0 {
		if filePattern == "" {
			return SourceSet{}, batch.NewConfigError("file_pattern", "must not be empty")
		}
		return SourceSet{
			Specs:  []Spec{{FilePattern: filePattern, Weight: 1}},
			Legacy: true,
		}, nil
	}

	patterns := strings.Split(filePattern, ",")
	if len(patterns) != len(weights) {
		return SourceSet{}, batch.NewConfigError("input_source_weights",
			"there should be exactly one weight per comma-separated value in file_pattern: got %d weights for %d patterns",
			len(weights), len(patterns))
	}

	for i, w := range weights {
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			return SourceSet{}, batch.NewConfigError("input_source_weights",
				"weight %d must be a finite non-negative number, got %v", i, w)
		}
		if strings.TrimSpace(patterns[i]) == "" {
			return SourceSet{}, batch.NewConfigError("file_pattern", "pattern %d is empty", i)
		}
	}
	if lo.Sum(weights) == 0 {
		return SourceSet{}, batch.NewConfigError("input_source_weights", "at least one weight must be positive")
	}

	return SourceSet{
		Specs: lo.Map(patterns, func(p string, i int) Spec {
			return Spec{FilePattern: p, Weight: weights[i]}
		}),
	}, nil
}
