// Package analysis maps screening workflow responses onto candidate records.
//
// The workflow answers either in its own camelCase convention or in the
// normalized snake_case one. When a payload carries both spellings of a field
// the snake_case value wins.
package analysis

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/Kounain2234/AI-Recruitment-App/internal/domain"
)

var (
	// ErrMalformedPayload is returned when a response body is not a JSON object.
	ErrMalformedPayload = errors.New("malformed analysis payload")
	// ErrNoAnalysis is returned for objects that carry none of the known fields,
	// such as a workflow's "started" acknowledgement.
	ErrNoAnalysis = errors.New("payload has no analysis fields")
)

// Field aliases in precedence order.
var (
	nameKeys               = []string{"name", "full_name", "fullName", "candidate_name", "candidateName"}
	emailKeys              = []string{"email"}
	phoneKeys              = []string{"phone"}
	locationKeys           = []string{"location"}
	matchScoreKeys         = []string{"match_score", "matchScore"}
	predictiveScoreKeys    = []string{"predictive_score", "predictiveScore"}
	biasScoreKeys          = []string{"bias_score", "biasScore"}
	skillsKeys             = []string{"skills_analysis", "skillsAnalysis", "skills"}
	robustKeys             = []string{"robust_points", "robustPoints", "robust"}
	lackingKeys            = []string{"lacking_points", "lackingPoints", "lacking"}
	growthKeys             = []string{"growth_potential", "growthPotential"}
	totalExperienceKeys    = []string{"total_experience", "totalExperience"}
	relevantExperienceKeys = []string{"relevant_experience", "relevantExperience"}
)

// ParsePayload decodes a workflow response body. Workflow engines often wrap a
// single item in an array, so a one-element array of objects is unwrapped.
func ParsePayload(body []byte) (map[string]any, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrMalformedPayload)
	}
	var raw any
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	switch v := raw.(type) {
	case map[string]any:
		return v, nil
	case []any:
		if len(v) == 1 {
			if obj, ok := v[0].(map[string]any); ok {
				return obj, nil
			}
		}
		return nil, fmt.Errorf("%w: expected one object, got array of %d", ErrMalformedPayload, len(v))
	default:
		return nil, fmt.Errorf("%w: expected object, got %T", ErrMalformedPayload, raw)
	}
}

var knownKeys = [][]string{
	nameKeys, emailKeys, phoneKeys, locationKeys,
	matchScoreKeys, predictiveScoreKeys, biasScoreKeys,
	skillsKeys, robustKeys, lackingKeys, growthKeys,
	totalExperienceKeys, relevantExperienceKeys,
}

// CheckAnalysis reports ErrNoAnalysis when payload has no recognized field.
func CheckAnalysis(payload map[string]any) error {
	for _, keys := range knownKeys {
		if _, ok := lookup(payload, keys); ok {
			return nil
		}
	}
	return ErrNoAnalysis
}

// Map builds a candidate record from payload. Absent fields fall back to
// defaults: the name is derived from fileName, collections are empty. The
// caller fills in job, user and resume references.
func Map(payload map[string]any, fileName string) domain.CandidateRecord {
	rec := domain.CandidateRecord{
		Name:               stringField(payload, nameKeys),
		Email:              stringField(payload, emailKeys),
		Phone:              stringField(payload, phoneKeys),
		Location:           stringField(payload, locationKeys),
		MatchScore:         scoreField(payload, matchScoreKeys),
		PredictiveScore:    scoreField(payload, predictiveScoreKeys),
		BiasScore:          scoreField(payload, biasScoreKeys),
		SkillsAnalysis:     skillsField(payload, skillsKeys),
		RobustPoints:       listField(payload, robustKeys),
		LackingPoints:      listField(payload, lackingKeys),
		GrowthPotential:    growthField(payload, growthKeys),
		TotalExperience:    stringField(payload, totalExperienceKeys),
		RelevantExperience: stringField(payload, relevantExperienceKeys),
		ParsedData:         payload,
		Status:             domain.CandidateStatusNew,
	}
	if rec.Name == "" {
		rec.Name = NameFromFile(fileName)
	}
	return rec
}

// NameFromFile turns "jane_doe-resume.pdf" into "jane doe resume".
func NameFromFile(fileName string) string {
	base := filepath.Base(fileName)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.NewReplacer("_", " ", "-", " ", ".", " ").Replace(base)
	base = strings.Join(strings.Fields(base), " ")
	if base == "" {
		return "Unknown candidate"
	}
	return base
}

// lookup returns the first alias present with a non-null value.
func lookup(payload map[string]any, keys []string) (any, bool) {
	for _, k := range keys {
		if v, ok := payload[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// decode converts loosely typed JSON into out. Numbers arrive as json.Number,
// strings may carry numbers, and a scalar is accepted where a list is expected.
func decode(in, out any) error {
	cfg := &mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	}
	decoder, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return err
	}
	return decoder.Decode(in)
}

func stringField(payload map[string]any, keys []string) string {
	v, ok := lookup(payload, keys)
	if !ok {
		return ""
	}
	var s string
	if err := decode(v, &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

// scoreField rounds to the nearest integer and clamps into 0-100.
func scoreField(payload map[string]any, keys []string) int {
	v, ok := lookup(payload, keys)
	if !ok {
		return 0
	}
	score, _ := normalizeScore(v)
	return score
}

// normalizeScore accepts numbers and numeric strings such as "85%" or "72.5".
func normalizeScore(v any) (int, bool) {
	if s, isString := v.(string); isString {
		v = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	}
	var f float64
	if err := decode(v, &f); err != nil || math.IsNaN(f) {
		return 0, false
	}
	return int(math.Max(0, math.Min(100, math.Round(f)))), true
}

func listField(payload map[string]any, keys []string) []string {
	out := []string{}
	v, ok := lookup(payload, keys)
	if !ok {
		return out
	}
	var items []string
	if err := decode(v, &items); err != nil {
		return out
	}
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func skillsField(payload map[string]any, keys []string) []domain.SkillMatch {
	out := []domain.SkillMatch{}
	v, ok := lookup(payload, keys)
	if !ok {
		return out
	}
	items, isList := v.([]any)
	if !isList {
		items = []any{v}
	}
	for _, item := range items {
		switch s := item.(type) {
		case string:
			if name := strings.TrimSpace(s); name != "" {
				out = append(out, domain.SkillMatch{Name: name})
			}
		case map[string]any:
			var m domain.SkillMatch
			if err := decode(withSkillAliases(s), &m); err != nil || strings.TrimSpace(m.Name) == "" {
				continue
			}
			m.Name = strings.TrimSpace(m.Name)
			out = append(out, m)
		}
	}
	return out
}

// withSkillAliases accepts {"skill": .., "score": ..} rows alongside {"name", "match"}.
func withSkillAliases(row map[string]any) map[string]any {
	out := make(map[string]any, 2)
	if v, ok := lookup(row, []string{"name", "skill"}); ok {
		out["name"] = v
	}
	if v, ok := lookup(row, []string{"match", "score", "match_score", "matchScore"}); ok {
		if score, valid := normalizeScore(v); valid {
			out["match"] = score
		}
	}
	return out
}

func growthField(payload map[string]any, keys []string) string {
	switch g := strings.ToLower(stringField(payload, keys)); g {
	case domain.GrowthHigh, domain.GrowthMedium, domain.GrowthLow:
		return g
	default:
		return ""
	}
}
