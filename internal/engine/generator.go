package engine

import (
	"fmt"
	"math"
)

// FaultyConfidence is the out-of-range confidence emitted on purpose so that
// clients exercise their validation.
const FaultyConfidence = 1.2

// FailureMessage is the error recorded on jobs that end failed.
const FailureMessage = "AIML service timeout - please try again"

// AnswerGenerator synthesizes answer text and confidence scores.
type AnswerGenerator interface {
	Answer(question, company string) string
	Confidence() float64
}

// TemplateGenerator picks one of a fixed set of ESG answer templates and
// fills it with the company name and random figures.
type TemplateGenerator struct {
	rnd       Random
	faultRate float64
}

// NewTemplateGenerator creates a generator. faultRate is the probability
// Confidence returns FaultyConfidence.
func NewTemplateGenerator(rnd Random, faultRate float64) *TemplateGenerator {
	if rnd == nil {
		rnd = globalRandom{}
	}
	return &TemplateGenerator{rnd: rnd, faultRate: faultRate}
}

// templateCount is the number of answer templates.
const templateCount = 4

// Answer returns a templated answer mentioning company. The question is not
// inspected.
func (g *TemplateGenerator) Answer(_ string, company string) string {
	switch g.rnd.IntN(templateCount) {
	case 0:
		return fmt.Sprintf("%s's Scope 1 emissions for 2023 were approximately %d tCO2e, representing a %d%% %s from the previous year.",
			company, g.rnd.IntN(100000), g.rnd.IntN(20), g.pick("increase", "decrease"))
	case 1:
		return fmt.Sprintf("%s has committed to achieving carbon neutrality by %d, with interim targets of %d%% reduction by 2030.",
			company, 2030+g.rnd.IntN(20), 30+g.rnd.IntN(50))
	case 2:
		return fmt.Sprintf("%s's sustainability initiatives include renewable energy adoption (%d%% renewable by 2030), waste reduction programs, and water conservation measures.",
			company, g.rnd.IntN(100))
	default:
		return fmt.Sprintf("According to %s's latest ESG report, their environmental score improved by %d%% year-over-year, driven by enhanced %s practices.",
			company, g.rnd.IntN(30), g.pick("energy efficiency", "waste management"))
	}
}

// Confidence returns a score in [0.6, 1.0] rounded to two decimals, or
// FaultyConfidence with probability faultRate.
func (g *TemplateGenerator) Confidence() float64 {
	if g.rnd.Float64() < g.faultRate {
		return FaultyConfidence
	}
	return math.Round((g.rnd.Float64()*0.4+0.6)*100) / 100
}

func (g *TemplateGenerator) pick(a, b string) string {
	if g.rnd.Float64() > 0.5 {
		return a
	}
	return b
}
