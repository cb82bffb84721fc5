package harness

import (
	"sort"

	"github.com/banshee-data/raycheck/internal/ply"
)

// TestCase is one raynoise invocation and the points to verify in its
// output.
type TestCase struct {
	Name      string       `json:"name"`
	InputFile string       `json:"input_file"`
	Args      []string     `json:"args"`
	Points    []PointCheck `json:"points_to_check"`
}

// PointCheck maps field names to the expected value at one point index.
type PointCheck struct {
	Index    int                `json:"index"`
	Expected map[string]float64 `json:"expected_values"`
}

// Fields returns the expected field names: the uncertainty columns in
// their canonical order first, then any others alphabetically.
func (p PointCheck) Fields() []string {
	out := make([]string, 0, len(p.Expected))
	seen := make(map[string]bool, len(p.Expected))
	for _, name := range ply.UncertaintyFields {
		if _, ok := p.Expected[name]; ok {
			out = append(out, name)
			seen[name] = true
		}
	}
	var rest []string
	for name := range p.Expected {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}

func uncertainty(total, rng, angular, aoi, mixed float64) map[string]float64 {
	return map[string]float64{
		"total_variance":       total,
		"range_variance":       rng,
		"angular_variance":     angular,
		"aoi_variance":         aoi,
		"mixed_pixel_variance": mixed,
	}
}

// DefaultCases returns the built-in raynoise verification table.
func DefaultCases() []TestCase {
	basicArgs := []string{"--c_aoi", "0", "--penalty_mixed", "0", "--c_intensity", "0.5", "--epsilon", "0.01"}
	aoiArgs := []string{"--c_intensity", "0", "--penalty_mixed", "0"}
	mixedArgs := []string{"--c_intensity", "0", "--c_aoi", "0"}

	return []TestCase{
		{
			Name:      "Basic_P1",
			InputFile: "test_basic.ply",
			Args:      basicArgs,
			Points: []PointCheck{{
				Index:    0,
				Expected: uncertainty(0.0006591635802469136, 0.0006469135802469136, 0.00001225, 0, 0),
			}},
		},
		{
			Name:      "Basic_P2",
			InputFile: "test_basic.ply",
			Args:      basicArgs,
			Points: []PointCheck{{
				Index:    1,
				Expected: uncertainty(0.001090108682800641, 0.001041108682800641, 0.000049, 0, 0),
			}},
		},
		{
			Name:      "AoI_P1_check",
			InputFile: "test_aoi.ply",
			Args:      aoiArgs,
			Points: []PointCheck{{
				Index:    0,
				Expected: uncertainty(0.1398728609039869, 0.0004, 0.0000245, 0.1394483609039869, 0),
			}},
		},
		{
			Name:      "AoI_P2_check",
			InputFile: "test_aoi.ply",
			Args:      aoiArgs,
			Points: []PointCheck{{
				Index:    1,
				Expected: uncertainty(0.09942215099009901, 0.0004, 0.00001225, 0.09900990099009901, 0),
			}},
		},
		{
			Name:      "Mixed_P_test",
			InputFile: "test_mixed.ply",
			Args:      mixedArgs,
			Points: []PointCheck{{
				Index:    0,
				Expected: uncertainty(0.5004275625, 0.0004, 0.0000275625, 0, 0.5),
			}},
		},
		{
			Name:      "Mixed_SF1",
			InputFile: "test_mixed.ply",
			Args:      mixedArgs,
			Points: []PointCheck{{
				Index:    1,
				Expected: uncertainty(0.0004123725, 0.0004, 0.0000123725, 0, 0),
			}},
		},
	}
}
