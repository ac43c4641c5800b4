// Package config reads run configuration from YAML files.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/quarryhq/quarry/pkg/quarry/internalerr"
)

// KeywordSpec is one keyword entry. In YAML it may be either a plain scalar
// (the literal doubles as the topic) or a mapping with an explicit topic:
//
//	keywords:
//	  - Donald Trump
//	  - literal: Trump
//	    topic: Trump (standalone)
type KeywordSpec struct {
	Literal string `yaml:"literal"`
	Topic   string `yaml:"topic"`
}

// UnmarshalYAML accepts both the scalar and the mapping form.
func (k *KeywordSpec) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		k.Literal = node.Value
		k.Topic = ""
		return nil
	}
	type raw KeywordSpec
	var r raw
	if err := node.Decode(&r); err != nil {
		return err
	}
	*k = KeywordSpec(r)
	return nil
}

// Run is the top-level run configuration.
type Run struct {
	Source   string        `yaml:"source"`
	Keywords []KeywordSpec `yaml:"keywords"`

	Segment struct {
		MinLen    int `yaml:"min_len"`
		MaxLen    int `yaml:"max_len"`
		WindowLen int `yaml:"window_len"`
	} `yaml:"segment"`

	Dedupe struct {
		Threshold float64 `yaml:"threshold"`
	} `yaml:"dedupe"`

	Report struct {
		PerTopicCap     int  `yaml:"per_topic_cap"`
		TotalCap        int  `yaml:"total_cap"`
		OmitEmptyTopics bool `yaml:"omit_empty_topics"`
	} `yaml:"report"`

	Workers int `yaml:"workers"`
}

// LoadRun loads a run configuration from a YAML file.
func LoadRun(path string) (*Run, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var run Run
	if err := yaml.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", internalerr.ErrInvalidConfig, path, err)
	}

	return &run, nil
}
