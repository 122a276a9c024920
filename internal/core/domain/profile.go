package domain

// Topic is a weighted interest phrase. Negative weights model topics the
// reader wants pushed down.
type Topic struct {
	Phrase string  `yaml:"phrase" json:"phrase"`
	Weight float64 `yaml:"weight" json:"weight"`
}

// UserProfile is a read-only input to ranking and digest rendering; the
// pipeline never mutates it.
type UserProfile struct {
	Email         string             `yaml:"email" json:"email"`
	Name          string             `yaml:"name" json:"name"`
	Topics        []Topic            `yaml:"topics" json:"topics"`
	SourceWeights map[string]float64 `yaml:"source_weights" json:"source_weights"`
	SummaryStyle  string             `yaml:"summary_style" json:"summary_style"`
	SummaryLength int                `yaml:"summary_length" json:"summary_length"`
}

// SourceWeight returns the per-source ranking multiplier, 1.0 when no
// override is configured.
func (p *UserProfile) SourceWeight(sourceName string) float64 {
	if p.SourceWeights == nil {
		return 1.0
	}
	if weight, ok := p.SourceWeights[sourceName]; ok {
		return weight
	}
	return 1.0
}
