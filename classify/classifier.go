package classify

import (
	"math"
	"slices"
	"sort"
)

// Tier is a query's complexity tier.
type Tier string

// Complexity tiers.
const (
	TierSimple  Tier = "simple"
	TierMedium  Tier = "medium"
	TierComplex Tier = "complex"
)

// Verbosity is the response contract attached to a tier.
type Verbosity string

// Response contracts.
const (
	VerbosityTerse    Verbosity = "terse"
	VerbosityStandard Verbosity = "standard"
	VerbosityVerbose  Verbosity = "verbose"
)

// VerbosityFor returns the response contract of a tier.
func VerbosityFor(t Tier) Verbosity {
	switch t {
	case TierSimple:
		return VerbosityTerse
	case TierComplex:
		return VerbosityVerbose
	default:
		return VerbosityStandard
	}
}

// Classification is the immutable result of classifying one query.
type Classification struct {
	Tier       Tier      `json:"tier"`
	Signals    []string  `json:"signals"`
	Categories []string  `json:"categories"`
	Confidence float64   `json:"confidence"`
	Verbosity  Verbosity `json:"verbosity"`
}

// Classifier matches queries against compiled signals.
//
// Contract:
// - Concurrency: safe for concurrent use; it holds no mutable state.
// - Determinism: identical queries give identical classifications.
// - Errors: Classify never fails; an unmatched query is medium with no
// categories.
type Classifier struct {
	simple    []pattern
	complex   []pattern
	topics    []compiledTopic
	fullPath  []string
	fallback  string
	mediumMax int
}

type compiledTopic struct {
	category string
	keywords []pattern
}

// New compiles signals into a classifier.
func New(signals Signals) (*Classifier, error) {
	if err := signals.Validate(); err != nil {
		return nil, err
	}

	c := &Classifier{
		fallback:  signals.DefaultCategory,
		mediumMax: signals.MediumMax,
	}
	if c.mediumMax == 0 {
		c.mediumMax = 2
	}
	c.simple = compileAll(signals.Simple)
	c.complex = compileAll(signals.Complex)
	for _, t := range signals.Topics {
		c.topics = append(c.topics, compiledTopic{category: t.Category, keywords: compileAll(t.Keywords)})
	}

	c.fullPath = slices.Clone(signals.FullPath)
	if len(c.fullPath) == 0 {
		for _, t := range signals.Topics {
			if !slices.Contains(c.fullPath, t.Category) {
				c.fullPath = append(c.fullPath, t.Category)
			}
		}
	}
	return c, nil
}

func compileAll(signals []string) []pattern {
	out := make([]pattern, 0, len(signals))
	for _, s := range signals {
		if p, ok := compile(s); ok {
			out = append(out, p)
		}
	}
	return out
}

// FullPath returns the categories dispatched for complex queries.
func (c *Classifier) FullPath() []string {
	return slices.Clone(c.fullPath)
}

// Classify assigns a tier and target categories to query.
func (c *Classifier) Classify(query string) Classification {
	tokens := tokenize(query)
	if len(tokens) == 0 {
		return Classification{
			Tier:       TierMedium,
			Signals:    []string{},
			Categories: []string{},
			Verbosity:  VerbosityStandard,
		}
	}

	var matched []string
	simpleHits := 0
	for _, p := range c.simple {
		if p.count(tokens) > 0 {
			simpleHits++
			matched = append(matched, "simple:"+p.text)
		}
	}
	complexHits := 0
	for _, p := range c.complex {
		if p.count(tokens) > 0 {
			complexHits++
			matched = append(matched, "complex:"+p.text)
		}
	}
	ranked, topicSignals := c.rankTopics(tokens)
	matched = append(matched, topicSignals...)
	if matched == nil {
		matched = []string{}
	}

	cls := Classification{Signals: matched}
	switch {
	case complexHits > 0:
		cls.Tier = TierComplex
		cls.Categories = slices.Clone(c.fullPath)
		cls.Confidence = confidence(0.6, complexHits)
	case simpleHits > 0:
		cls.Tier = TierSimple
		switch {
		case len(ranked) > 0:
			cls.Categories = ranked[:1]
			cls.Confidence = confidence(0.7, simpleHits)
		case c.fallback != "":
			cls.Categories = []string{c.fallback}
			cls.Confidence = confidence(0.5, simpleHits)
		default:
			cls.Categories = []string{}
			cls.Confidence = confidence(0.4, simpleHits)
		}
	default:
		cls.Tier = TierMedium
		if len(ranked) > c.mediumMax {
			ranked = ranked[:c.mediumMax]
		}
		cls.Categories = ranked
		if len(ranked) > 0 {
			cls.Confidence = confidence(0.4, len(ranked))
		} else {
			cls.Confidence = 0.2
		}
	}
	if cls.Categories == nil {
		cls.Categories = []string{}
	}
	cls.Verbosity = VerbosityFor(cls.Tier)
	return cls
}

// rankTopics orders matched categories by keyword hits, most first, with
// ties kept in declaration order.
func (c *Classifier) rankTopics(tokens []string) ([]string, []string) {
	type score struct {
		category string
		hits     int
		order    int
	}

	var scores []score
	var matched []string
	for i, t := range c.topics {
		hits := 0
		for _, p := range t.keywords {
			if n := p.count(tokens); n > 0 {
				hits += n
				matched = append(matched, "topic:"+t.category+":"+p.text)
			}
		}
		if hits > 0 {
			scores = append(scores, score{category: t.category, hits: hits, order: i})
		}
	}

	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].hits != scores[j].hits {
			return scores[i].hits > scores[j].hits
		}
		return scores[i].order < scores[j].order
	})

	ranked := make([]string, 0, len(scores))
	for _, s := range scores {
		if !slices.Contains(ranked, s.category) {
			ranked = append(ranked, s.category)
		}
	}
	return ranked, matched
}

// confidence grows with the number of supporting signals and stays below 1.
func confidence(base float64, hits int) float64 {
	c := base + 0.1*float64(hits-1)
	c = math.Min(c, 0.95)
	return math.Round(c*100) / 100
}
