package config

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/goccy/go-yaml"
	"github.com/rs/zerolog/log"
)

var ErrEmptyBatch = errors.New("no valid entries found in the batch file")

type BatchEntry struct {
	Link       string `yaml:"link"`
	OutputPath string `yaml:"op,omitempty"`
}

// LoadBatch reads a batch file. Either a plain list of entries or sections
// of entries keyed by any label are accepted; sections are read in label
// order.
func LoadBatch(path string) ([]BatchEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading batch file: %w", err)
	}
	return ParseBatch(data)
}

func ParseBatch(data []byte) ([]BatchEntry, error) {
	var raw []BatchEntry
	if err := yaml.Unmarshal(data, &raw); err != nil {
		var sections map[string][]BatchEntry
		if serr := yaml.Unmarshal(data, &sections); serr != nil {
			return nil, fmt.Errorf("error parsing batch file: %w", err)
		}
		labels := make([]string, 0, len(sections))
		for label := range sections {
			labels = append(labels, label)
		}
		slices.Sort(labels)
		for _, label := range labels {
			raw = append(raw, sections[label]...)
		}
	}

	entries := make([]BatchEntry, 0, len(raw))
	for i, e := range raw {
		if e.Link == "" {
			log.Warn().Str("op", "config/batch").Int("entry", i).Msg("empty link, skipping")
			continue
		}
		entries = append(entries, e)
	}
	if len(entries) == 0 {
		return nil, ErrEmptyBatch
	}
	return entries, nil
}
