package analyzer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/arbovm/levenshtein"

	"go-plant-analyzer/pkg/models"
)

const unknown = "Unknown"

var (
	resultKeys = []string{"plantIdentified", "healthStatus", "issues", "recommendations", "metrics"}
	metricKeys = []string{"soilMoisture", "temperature", "sunlight", "estimatedWaterNeeds"}
)

// DegradedResult is returned when the reply contains no JSON object at all.
func DegradedResult(raw string) *models.AnalysisResult {
	return &models.AnalysisResult{
		PlantIdentified: unknown,
		HealthStatus:    "Analysis incomplete",
		Issues:          []string{"Could not properly analyze the image"},
		Recommendations: []string{"Try uploading a clearer image"},
		Metrics: models.Metrics{
			SoilMoisture:        unknown,
			Temperature:         unknown,
			Sunlight:            unknown,
			EstimatedWaterNeeds: unknown,
		},
		RawResponse: raw,
	}
}

// normalize maps a decoded reply object onto AnalysisResult. Keys are matched
// loosely; absent fields and fields of a shape that cannot be coerced get
// explicit defaults and are reported in missing.
func normalize(obj []byte) (result *models.AnalysisResult, missing []string, err error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(obj, &top); err != nil {
		return nil, nil, err
	}
	fields := matchKeys(top, resultKeys)

	result = &models.AnalysisResult{
		PlantIdentified: stringField(fields, "plantIdentified", &missing),
		HealthStatus:    stringField(fields, "healthStatus", &missing),
		Issues:          listField(fields, "issues", &missing),
		Recommendations: listField(fields, "recommendations", &missing),
	}

	var sub map[string]json.RawMessage
	if raw, ok := fields["metrics"]; !ok || isNull(raw) || json.Unmarshal(raw, &sub) != nil {
		missing = append(missing, "metrics")
		sub = nil
	}
	m := matchKeys(sub, metricKeys)
	var metricMissing []string
	result.Metrics = models.Metrics{
		SoilMoisture:        stringField(m, "soilMoisture", &metricMissing),
		Temperature:         stringField(m, "temperature", &metricMissing),
		Sunlight:            stringField(m, "sunlight", &metricMissing),
		EstimatedWaterNeeds: stringField(m, "estimatedWaterNeeds", &metricMissing),
	}
	if sub != nil {
		for _, k := range metricMissing {
			missing = append(missing, "metrics."+k)
		}
	}
	return result, missing, nil
}

func stringField(fields map[string]json.RawMessage, key string, missing *[]string) string {
	raw, ok := fields[key]
	if !ok || isNull(raw) {
		*missing = append(*missing, key)
		return unknown
	}
	if s, err := scalarString(raw); err == nil {
		return s
	}
	var parts []json.RawMessage
	if json.Unmarshal(raw, &parts) == nil {
		if strs, err := stringList(parts); err == nil {
			return strings.Join(strs, ", ")
		}
	}
	*missing = append(*missing, key)
	return unknown
}

func listField(fields map[string]json.RawMessage, key string, missing *[]string) []string {
	raw, ok := fields[key]
	if !ok || isNull(raw) {
		*missing = append(*missing, key)
		return []string{}
	}
	var parts []json.RawMessage
	if json.Unmarshal(raw, &parts) == nil {
		if strs, err := stringList(parts); err == nil {
			return strs
		}
	} else if s, err := scalarString(raw); err == nil {
		if s == "" {
			return []string{}
		}
		return []string{s}
	}
	*missing = append(*missing, key)
	return []string{}
}

func stringList(parts []json.RawMessage) ([]string, error) {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if isNull(p) {
			continue
		}
		s, err := scalarString(p)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// scalarString accepts strings, numbers and booleans.
func scalarString(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", fmt.Errorf("empty value")
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	case '{', '[':
		return "", fmt.Errorf("expected a string, got %s", kindOf(raw[0]))
	default:
		// number, true or false; already validated by the decoder
		return string(raw), nil
	}
}

func kindOf(b byte) string {
	if b == '{' {
		return "object"
	}
	return "array"
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// matchKeys resolves reply keys onto the wanted names. Comparison ignores
// case and separators and tolerates small typos; ties keep the key that
// sorts first so the outcome does not depend on map order.
func matchKeys(in map[string]json.RawMessage, wanted []string) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(wanted))
	if len(in) == 0 {
		return out
	}
	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	best := make(map[string]int, len(wanted))
	for _, k := range keys {
		target, dist, ok := closestKey(k, wanted)
		if !ok {
			continue
		}
		if d, seen := best[target]; seen && d <= dist {
			continue
		}
		best[target] = dist
		out[target] = in[k]
	}
	return out
}

func closestKey(key string, wanted []string) (string, int, bool) {
	ck := canonicalKey(key)
	target, bestDist := "", -1
	for _, w := range wanted {
		d := levenshtein.Distance(ck, canonicalKey(w))
		if bestDist < 0 || d < bestDist {
			target, bestDist = w, d
		}
	}
	if bestDist < 0 || bestDist > tolerance(target) {
		return "", 0, false
	}
	return target, bestDist, true
}

func tolerance(key string) int {
	if len(key) >= 8 {
		return 2
	}
	return 1
}

func canonicalKey(k string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '_', '-', ' ':
			return -1
		}
		if r >= 'A' && r <= 'Z' {
			return r + ('a' - 'A')
		}
		return r
	}, k)
}
