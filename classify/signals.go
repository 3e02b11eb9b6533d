package classify

import (
	"errors"
	"fmt"
)

// ErrInvalidSignals is returned for unusable signal configuration.
var ErrInvalidSignals = errors.New("classify: invalid signals")

// Topic maps keywords to the tool category they imply.
type Topic struct {
	Category string   `yaml:"category" json:"category"`
	Keywords []string `yaml:"keywords" json:"keywords"`
}

// Signals is the classifier configuration for one domain.
//
// A signal is a word or phrase. A trailing "*" on the last word matches any
// word with that prefix ("recommand*" matches "recommandez").
type Signals struct {
	// Simple holds informational or status phrasing.
	Simple []string `yaml:"simple" json:"simple"`

	// Complex holds planning, advice and comparison phrasing.
	Complex []string `yaml:"complex" json:"complex"`

	// Topics rank categories by keyword hits, ties broken by order.
	Topics []Topic `yaml:"topics" json:"topics"`

	// FullPath is the category set dispatched for complex queries.
	// Default: every topic category, in declaration order.
	FullPath []string `yaml:"full_path" json:"full_path"`

	// DefaultCategory serves simple queries that name no topic.
	// Empty means such queries get no category.
	DefaultCategory string `yaml:"default_category" json:"default_category"`

	// MediumMax caps the categories of a medium query.
	// Default: 2
	MediumMax int `yaml:"medium_max" json:"medium_max"`
}

// Categories returns every category the signals can target, in order of
// first appearance.
func (s Signals) Categories() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(c string) {
		if c != "" && !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	for _, t := range s.Topics {
		add(t.Category)
	}
	for _, c := range s.FullPath {
		add(c)
	}
	add(s.DefaultCategory)
	return out
}

// Validate reports whether the signals are usable.
func (s Signals) Validate() error {
	for i, t := range s.Topics {
		if t.Category == "" {
			return fmt.Errorf("%w: topic %d has no category", ErrInvalidSignals, i)
		}
		if len(t.Keywords) == 0 {
			return fmt.Errorf("%w: topic %q has no keywords", ErrInvalidSignals, t.Category)
		}
	}
	if s.MediumMax < 0 {
		return fmt.Errorf("%w: medium_max must not be negative", ErrInvalidSignals)
	}
	groups := [][]string{s.Simple, s.Complex}
	for _, t := range s.Topics {
		groups = append(groups, t.Keywords)
	}
	for _, group := range groups {
		for _, sig := range group {
			if _, ok := compile(sig); !ok {
				return fmt.Errorf("%w: signal %q is empty after normalization", ErrInvalidSignals, sig)
			}
		}
	}
	return nil
}

// DefaultSignals returns the French agronomy signal set: weather,
// regulatory and search categories.
func DefaultSignals() Signals {
	return Signals{
		Simple: []string{
			"quelle est", "quel est", "quels sont", "quelles sont",
			"combien", "est ce que", "c est quoi", "qu est ce que",
			"donne moi", "affiche", "meteo", "temperature",
			"va t il pleuvoir", "fait il", "quand",
		},
		Complex: []string{
			"je veux", "je voudrais", "je souhaite", "j aimerais",
			"planter", "semer", "cultiver", "conseil*", "recommand*",
			"compar*", "plan", "planifier", "strategie", "que faire",
			"comment", "dois je", "faut il", "optimiser", "rotation",
			"itineraire technique", "diagnostic", "traiter",
		},
		Topics: []Topic{
			{
				Category: "weather",
				Keywords: []string{
					"meteo", "temps", "pluie", "pleuvoir", "pleut", "gel", "gelee",
					"temperature", "prevision*", "vent", "orage", "secheresse",
					"humidite", "grele", "ensoleillement", "froid", "chaleur",
				},
			},
			{
				Category: "regulatory",
				Keywords: []string{
					"reglement*", "amm", "autoris*", "homologu*", "interdit",
					"dose", "phytosanitaire", "znt", "delai avant recolte",
					"legal*", "epandage", "usage", "etiquette",
				},
			},
			{
				Category: "search",
				Keywords: []string{
					"maladie", "symptome*", "ravageur*", "variete*", "prix",
					"marche", "actualite*", "recherche", "mildiou", "oidium",
					"puceron*", "rendement", "sol",
				},
			},
		},
		FullPath:        []string{"weather", "regulatory", "search"},
		DefaultCategory: "search",
		MediumMax:       2,
	}
}
