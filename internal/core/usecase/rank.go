package usecase

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/gek007/ai-news-aggregator/internal/core/domain"
)

// RankingConfig carries the tunable scoring constants. Half-life and weights
// are configuration, not algorithmic constants.
type RankingConfig struct {
	TopicWeight   float64
	RecencyWeight float64
	HalfLife      time.Duration
}

func DefaultRankingConfig() RankingConfig {
	return RankingConfig{
		TopicWeight:   1.0,
		RecencyWeight: 1.0,
		HalfLife:      24 * time.Hour,
	}
}

func (c RankingConfig) normalize() RankingConfig {
	out := c
	def := DefaultRankingConfig()
	if out.TopicWeight <= 0 {
		out.TopicWeight = def.TopicWeight
	}
	if out.RecencyWeight <= 0 {
		out.RecencyWeight = def.RecencyWeight
	}
	if out.HalfLife <= 0 {
		out.HalfLife = def.HalfLife
	}
	return out
}

// Rank scores summarized items against the profile. Pure: no I/O, no clock
// reads, and identical inputs yield identical ordering and scores. Ties
// break on later publish time, then lower item id, giving a total order.
func Rank(
	items []domain.Item,
	sources map[int64]domain.Source,
	profile domain.UserProfile,
	cfg RankingConfig,
	now time.Time,
) []domain.RankedItem {
	cfg = cfg.normalize()

	ranked := make([]domain.RankedItem, 0, len(items))
	for _, item := range items {
		score := cfg.TopicWeight * topicOverlap(item, profile.Topics)
		score += cfg.RecencyWeight * recencyFactor(item.EffectiveTime(), now, cfg.HalfLife)

		if source, ok := sources[item.SourceID]; ok {
			score *= profile.SourceWeight(source.Name)
		}
		ranked = append(ranked, domain.RankedItem{Item: item, Score: score})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		ti, tj := ranked[i].Item.EffectiveTime(), ranked[j].Item.EffectiveTime()
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return ranked[i].Item.ID < ranked[j].Item.ID
	})
	return ranked
}

// topicOverlap sums the weights of profile topics whose phrase occurs in the
// item's title or summary, case-insensitive. A topic matching several times
// within one item still contributes its weight once.
func topicOverlap(item domain.Item, topics []domain.Topic) float64 {
	text := strings.ToLower(item.Title)
	if item.Summary != nil {
		text += " " + strings.ToLower(*item.Summary)
	}

	total := 0.0
	for _, topic := range topics {
		phrase := strings.ToLower(strings.TrimSpace(topic.Phrase))
		if phrase == "" {
			continue
		}
		if strings.Contains(text, phrase) {
			total += topic.Weight
		}
	}
	return total
}

// recencyFactor decays exponentially with age: an item one half-life old
// contributes half the recency score of a fresh one.
func recencyFactor(published, now time.Time, halfLife time.Duration) float64 {
	age := now.Sub(published)
	if age <= 0 {
		return 1.0
	}
	return math.Exp2(-float64(age) / float64(halfLife))
}
