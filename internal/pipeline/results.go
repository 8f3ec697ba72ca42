package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ToJSONResult serializes a single FileResult to pretty JSON.
func ToJSONResult(res *FileResult) (string, error) {
	if res == nil {
		return "", errors.New("nil result")
	}
	b, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ToJSONResults serializes multiple FileResult entries to pretty JSON.
// Failed entries appear as null, preserving input order.
func ToJSONResults(results []*FileResult) (string, error) {
	b, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ToTextResult renders a FileResult as the human-readable summary printed by
// the CLI.
func ToTextResult(res *FileResult) (string, error) {
	if res == nil {
		return "", errors.New("nil result")
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s (%dx%d %s)\n", res.Path, res.Width, res.Height, res.Format)
	fmt.Fprintf(&sb, "  threshold:         %.6f\n", res.Measurements.FinalThreshold)
	fmt.Fprintf(&sb, "  orig threshold:    %.6f\n", res.Measurements.OrigThreshold)
	if res.Measurements.GuideThreshold != 0 {
		fmt.Fprintf(&sb, "  guide threshold:   %.6f\n", res.Measurements.GuideThreshold)
	}
	fmt.Fprintf(&sb, "  weighted variance: %.6f\n", res.Measurements.WeightedVariance)
	fmt.Fprintf(&sb, "  sum of entropies:  %.6f\n", res.Measurements.SumOfEntropies)
	return sb.String(), nil
}

// ToTextResults renders multiple results, skipping failed (nil) entries.
func ToTextResults(results []*FileResult) (string, error) {
	var sb strings.Builder
	for _, res := range results {
		if res == nil {
			continue
		}
		text, err := ToTextResult(res)
		if err != nil {
			return "", err
		}
		sb.WriteString(text)
	}
	return sb.String(), nil
}
