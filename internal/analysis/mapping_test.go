package analysis

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kounain2234/AI-Recruitment-App/internal/domain"
)

func mustParse(t *testing.T, body string) map[string]any {
	t.Helper()
	payload, err := ParsePayload([]byte(body))
	require.NoError(t, err)
	return payload
}

func TestMapAcceptsBothConventions(t *testing.T) {
	camel := Map(mustParse(t, `{"matchScore": 91}`), "cv.pdf")
	snake := Map(mustParse(t, `{"match_score": 91}`), "cv.pdf")

	assert.Equal(t, 91, camel.MatchScore)
	assert.Equal(t, 91, snake.MatchScore)
}

func TestMapPrefersSnakeCase(t *testing.T) {
	rec := Map(mustParse(t, `{"matchScore": 40, "match_score": 91, "biasScore": 12}`), "cv.pdf")
	assert.Equal(t, 91, rec.MatchScore)
	assert.Equal(t, 12, rec.BiasScore)
}

func TestMapFullWorkflowPayload(t *testing.T) {
	body := `{
		"name": "Jane Doe",
		"email": "jane@example.com",
		"phone": "+1 555 0100",
		"location": "Berlin",
		"matchScore": 87.6,
		"predictiveScore": "72",
		"biasScore": 9,
		"skills": [{"name": "Go", "match": 95}, {"skill": "SQL", "score": "70"}, "Kubernetes",
			{"name": "Rust", "match": "85%"}, {"name": "Terraform", "match": "72.5"}, {"name": "Bash", "match": 64.4}],
		"robust": ["Led migrations", "  "],
		"lacking": "No frontend work",
		"growthPotential": "High",
		"totalExperience": "8 years",
		"relevantExperience": 5
	}`
	rec := Map(mustParse(t, body), "ignored.pdf")

	assert.Equal(t, "Jane Doe", rec.Name)
	assert.Equal(t, "jane@example.com", rec.Email)
	assert.Equal(t, "+1 555 0100", rec.Phone)
	assert.Equal(t, "Berlin", rec.Location)
	assert.Equal(t, 88, rec.MatchScore)
	assert.Equal(t, 72, rec.PredictiveScore)
	assert.Equal(t, 9, rec.BiasScore)
	assert.Equal(t, []domain.SkillMatch{{Name: "Go", Match: 95}, {Name: "SQL", Match: 70}, {Name: "Kubernetes"},
		{Name: "Rust", Match: 85}, {Name: "Terraform", Match: 73}, {Name: "Bash", Match: 64}}, rec.SkillsAnalysis)
	assert.Equal(t, []string{"Led migrations"}, rec.RobustPoints)
	assert.Equal(t, []string{"No frontend work"}, rec.LackingPoints)
	assert.Equal(t, domain.GrowthHigh, rec.GrowthPotential)
	assert.Equal(t, "8 years", rec.TotalExperience)
	assert.Equal(t, "5", rec.RelevantExperience)
	assert.Equal(t, domain.CandidateStatusNew, rec.Status)
	assert.Contains(t, rec.ParsedData, "skills")
}

func TestMapDefaults(t *testing.T) {
	rec := Map(map[string]any{}, "uploads/jane_doe-resume.v2.pdf")

	assert.Equal(t, "jane doe resume v2", rec.Name)
	assert.Equal(t, 0, rec.MatchScore)
	assert.NotNil(t, rec.SkillsAnalysis)
	assert.Empty(t, rec.SkillsAnalysis)
	assert.NotNil(t, rec.RobustPoints)
	assert.NotNil(t, rec.LackingPoints)
	assert.Equal(t, "", rec.GrowthPotential)
}

func TestMapClampsAndDropsUnknowns(t *testing.T) {
	rec := Map(mustParse(t, `{"match_score": 140, "bias_score": -3, "growth_potential": "stellar", "name": null, "full_name": "J. Roe"}`), "x.pdf")
	assert.Equal(t, 100, rec.MatchScore)
	assert.Equal(t, 0, rec.BiasScore)
	assert.Equal(t, "", rec.GrowthPotential)
	assert.Equal(t, "J. Roe", rec.Name)
}

func TestMapSkillScoresMatchTopLevelScores(t *testing.T) {
	rec := Map(mustParse(t, `{
		"match_score": "88%",
		"skills_analysis": [{"name": "Go", "match": "85%"}, {"name": "SQL", "match": " 72.5 "}, {"name": "C", "match": "140"}, {"name": "Perl", "match": "n/a"}]
	}`), "cv.pdf")

	assert.Equal(t, 88, rec.MatchScore)
	assert.Equal(t, []domain.SkillMatch{{Name: "Go", Match: 85}, {Name: "SQL", Match: 73}, {Name: "C", Match: 100}, {Name: "Perl"}}, rec.SkillsAnalysis)
}

func TestCheckAnalysis(t *testing.T) {
	assert.ErrorIs(t, CheckAnalysis(mustParse(t, `{"message": "Workflow was started"}`)), ErrNoAnalysis)
	assert.ErrorIs(t, CheckAnalysis(mustParse(t, `{"matchScore": null}`)), ErrNoAnalysis)
	assert.NoError(t, CheckAnalysis(mustParse(t, `{"matchScore": 0}`)))
	assert.NoError(t, CheckAnalysis(mustParse(t, `{"full_name": "Jane"}`)))
}

func TestParsePayload(t *testing.T) {
	payload, err := ParsePayload([]byte(`[{"name":"Jane"}]`))
	require.NoError(t, err)
	assert.Equal(t, "Jane", payload["name"])

	for _, body := range []string{"", "   ", "not json", `"text"`, `[1,2]`, `[]`, `[{"a":1},{"b":2}]`} {
		_, err := ParsePayload([]byte(body))
		assert.True(t, errors.Is(err, ErrMalformedPayload), "body %q: %v", body, err)
	}
}

func TestNameFromFile(t *testing.T) {
	assert.Equal(t, "Unknown candidate", NameFromFile(".pdf"))
	assert.Equal(t, "John Smith", NameFromFile("John_Smith.docx"))
}
