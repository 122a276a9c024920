package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gek007/ai-news-aggregator/internal/core/domain"
)

// File is the declarative part of the configuration: which sources to poll,
// how ranking weighs topic matches against recency, and where the reader
// profile lives. Everything operational (credentials, timeouts) stays in env.
type File struct {
	Sources []domain.Source `yaml:"sources"`
	Ranking Ranking         `yaml:"ranking"`
	Profile string          `yaml:"profile"`
}

type Ranking struct {
	TopicWeight   float64 `yaml:"topic_weight"`
	RecencyWeight float64 `yaml:"recency_weight"`
	HalfLifeHours float64 `yaml:"half_life_hours"`
}

func (r Ranking) HalfLife() time.Duration {
	return time.Duration(r.HalfLifeHours * float64(time.Hour))
}

func LoadFile(path string) (File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read pipeline config %s: %w", path, err)
	}

	var f File
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return File{}, fmt.Errorf("parse pipeline config %s: %w", path, err)
	}

	if len(f.Sources) == 0 {
		return File{}, fmt.Errorf("pipeline config %s: no sources configured", path)
	}
	for i, src := range f.Sources {
		if src.Name == "" || src.URL == "" {
			return File{}, fmt.Errorf("pipeline config %s: source %d needs name and url", path, i)
		}
		switch src.Kind {
		case domain.KindFeed, domain.KindVideoChannel, domain.KindPage:
		default:
			return File{}, fmt.Errorf("pipeline config %s: source %q has unknown kind %q", path, src.Name, src.Kind)
		}
	}

	return f, nil
}

// LoadProfile reads the reader profile the digest is built for. A relative
// profile path is resolved against the directory of the pipeline config file.
func LoadProfile(configPath, profilePath string) (domain.UserProfile, error) {
	if profilePath == "" {
		return domain.UserProfile{}, fmt.Errorf("pipeline config %s: profile path is empty", configPath)
	}
	if !filepath.IsAbs(profilePath) {
		profilePath = filepath.Join(filepath.Dir(configPath), profilePath)
	}

	raw, err := os.ReadFile(profilePath)
	if err != nil {
		return domain.UserProfile{}, fmt.Errorf("read profile %s: %w", profilePath, err)
	}

	var profile domain.UserProfile
	if err := yaml.Unmarshal(raw, &profile); err != nil {
		return domain.UserProfile{}, fmt.Errorf("parse profile %s: %w", profilePath, err)
	}
	if profile.Email == "" {
		return domain.UserProfile{}, fmt.Errorf("profile %s: email is required", profilePath)
	}
	if len(profile.Topics) == 0 {
		return domain.UserProfile{}, fmt.Errorf("profile %s: at least one topic is required", profilePath)
	}

	return profile, nil
}
