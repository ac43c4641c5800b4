package config

import (
	"fmt"

	"github.com/quarryhq/quarry/pkg/quarry/match"
	"github.com/quarryhq/quarry/pkg/quarry/segment"
)

// Loader turns configuration files into ready-to-use components.
type Loader struct {
	RunPath string
}

// Components holds the constructed pieces of a run.
type Components struct {
	Run      *Run
	Keywords []match.Keyword
	Set      *match.Set
	Segment  segment.Policy
}

// Load reads the run file and builds the keyword set. Keyword validation
// happens here so a bad file fails before any document is scanned.
func (l *Loader) Load() (*Components, error) {
	run, err := LoadRun(l.RunPath)
	if err != nil {
		return nil, fmt.Errorf("load run config: %w", err)
	}

	kws := make([]match.Keyword, 0, len(run.Keywords))
	for _, spec := range run.Keywords {
		kws = append(kws, match.Keyword{Literal: spec.Literal, Topic: spec.Topic})
	}

	set, err := match.NewSetKeywords(kws)
	if err != nil {
		return nil, fmt.Errorf("keywords in %s: %w", l.RunPath, err)
	}

	return &Components{
		Run:      run,
		Keywords: kws,
		Set:      set,
		Segment: segment.Policy{
			MinLen:    run.Segment.MinLen,
			MaxLen:    run.Segment.MaxLen,
			WindowLen: run.Segment.WindowLen,
		},
	}, nil
}
