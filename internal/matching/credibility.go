package matching

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type credibilityFile struct {
	Weights           Weights   `yaml:"weights"`
	NewsDomains       *[]string `yaml:"news_domains"`
	AggregatorDomains *[]string `yaml:"aggregator_domains"`
}

// LoadCredibility builds a Scorer from a YAML file with optional weights,
// news_domains and aggregator_domains keys. Missing keys keep the defaults;
// inside weights, unset fields keep their default values too.
func LoadCredibility(path string) (*Scorer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read credibility config: %w", err)
	}
	return ParseCredibility(data)
}

// ParseCredibility is LoadCredibility on raw YAML.
func ParseCredibility(data []byte) (*Scorer, error) {
	s := DefaultScorer()
	file := credibilityFile{Weights: s.Weights}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse credibility config: %w", err)
	}
	s.Weights = file.Weights
	if file.NewsDomains != nil {
		s.Domains.News = *file.NewsDomains
	}
	if file.AggregatorDomains != nil {
		s.Domains.Aggregators = *file.AggregatorDomains
	}
	return s, nil
}
