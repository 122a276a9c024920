package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadUsesPipelineDefaults(t *testing.T) {
	t.Setenv("PIPELINE_WINDOW_HOURS", "")
	t.Setenv("PIPELINE_DIGEST_LIMIT", "")
	t.Setenv("PIPELINE_MAX_STAGE_ATTEMPTS", "")
	t.Setenv("SUMMARY_REQUESTS_PER_SECOND", "")

	cfg := Load()
	if cfg.WindowHours != 24 {
		t.Fatalf("expected default window 24h, got %d", cfg.WindowHours)
	}
	if cfg.DigestLimit != 10 {
		t.Fatalf("expected default digest limit 10, got %d", cfg.DigestLimit)
	}
	if cfg.MaxStageAttempts != 0 {
		t.Fatalf("expected unlimited stage attempts by default, got %d", cfg.MaxStageAttempts)
	}
	if cfg.SummaryRequestsPerSecond != 1.0 {
		t.Fatalf("expected default 1 rps, got %v", cfg.SummaryRequestsPerSecond)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("PIPELINE_WINDOW_HOURS", "48")
	t.Setenv("PIPELINE_DIGEST_LIMIT", "5")
	t.Setenv("SUMMARY_REQUESTS_PER_SECOND", "0.5")
	t.Setenv("SMTP_PORT", "2525")

	cfg := Load()
	if cfg.WindowHours != 48 {
		t.Fatalf("expected window 48h, got %d", cfg.WindowHours)
	}
	if cfg.DigestLimit != 5 {
		t.Fatalf("expected digest limit 5, got %d", cfg.DigestLimit)
	}
	if cfg.SummaryRequestsPerSecond != 0.5 {
		t.Fatalf("expected 0.5 rps, got %v", cfg.SummaryRequestsPerSecond)
	}
	if cfg.SMTPPort != 2525 {
		t.Fatalf("expected smtp port 2525, got %d", cfg.SMTPPort)
	}
}

func TestLoadFallsBackOnInvalidValues(t *testing.T) {
	t.Setenv("PIPELINE_DIGEST_LIMIT", "many")
	t.Setenv("SUMMARY_REQUESTS_PER_SECOND", "fast")

	cfg := Load()
	if cfg.DigestLimit != 10 {
		t.Fatalf("expected fallback digest limit 10, got %d", cfg.DigestLimit)
	}
	if cfg.SummaryRequestsPerSecond != 1.0 {
		t.Fatalf("expected fallback 1 rps, got %v", cfg.SummaryRequestsPerSecond)
	}
}

func TestLoadFileParsesSourcesAndRanking(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `sources:
  - name: go-blog
    kind: feed
    url: https://go.dev/blog/feed.atom
  - name: conference-talks
    kind: video-channel
    url: https://www.youtube.com/@talks
    config:
      channel_id: UC123
ranking:
  topic_weight: 0.7
  recency_weight: 0.3
  half_life_hours: 12
profile: profiles/default.yaml
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	f, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load file: %v", err)
	}
	if len(f.Sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(f.Sources))
	}
	if f.Sources[1].Config["channel_id"] != "UC123" {
		t.Fatalf("expected channel_id config, got %v", f.Sources[1].Config)
	}
	if f.Ranking.TopicWeight != 0.7 {
		t.Fatalf("expected topic weight 0.7, got %v", f.Ranking.TopicWeight)
	}
	if f.Ranking.HalfLife().Hours() != 12 {
		t.Fatalf("expected 12h half-life, got %v", f.Ranking.HalfLife())
	}
	if f.Profile != "profiles/default.yaml" {
		t.Fatalf("unexpected profile path %q", f.Profile)
	}
}

func TestLoadFileRejectsUnknownSourceKind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `sources:
  - name: bad
    kind: carrier-pigeon
    url: https://example.com
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected error for unknown source kind")
	}
}

func TestLoadProfileResolvesRelativePath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	if err := os.MkdirAll(filepath.Join(dir, "profiles"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	profile := `email: reader@example.com
name: Reader
topics:
  - phrase: distributed systems
    weight: 1.0
  - phrase: celebrity gossip
    weight: -0.5
source_weights:
  go-blog: 1.5
summary_style: neutral
summary_length: 3
`
	if err := os.WriteFile(filepath.Join(dir, "profiles", "default.yaml"), []byte(profile), 0o644); err != nil {
		t.Fatalf("write profile: %v", err)
	}

	p, err := LoadProfile(configPath, "profiles/default.yaml")
	if err != nil {
		t.Fatalf("load profile: %v", err)
	}
	if p.Email != "reader@example.com" {
		t.Fatalf("unexpected email %q", p.Email)
	}
	if len(p.Topics) != 2 || p.Topics[1].Weight != -0.5 {
		t.Fatalf("unexpected topics %v", p.Topics)
	}
	if p.SourceWeight("go-blog") != 1.5 {
		t.Fatalf("expected source weight override 1.5, got %v", p.SourceWeight("go-blog"))
	}
	if p.SourceWeight("unknown") != 1.0 {
		t.Fatalf("expected default source weight 1.0, got %v", p.SourceWeight("unknown"))
	}
}

func TestLoadProfileRequiresEmailAndTopics(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(filepath.Join(dir, "empty.yaml"), []byte("name: Nobody\n"), 0o644); err != nil {
		t.Fatalf("write profile: %v", err)
	}

	if _, err := LoadProfile(configPath, "empty.yaml"); err == nil {
		t.Fatal("expected error for profile without email")
	}
}
