// Package registry loads the search definitions that drive each source:
// what to query, where, how many items, and which keywords disqualify an
// item before it reaches the pipeline.
package registry

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/rekrytera/signals-cli/internal/model"
)

// Registry is the top-level search-definition file.
type Registry struct {
	ExcludeKeywords []string              `yaml:"exclude_keywords"`
	Sources         map[string]SourceSpec `yaml:"sources"`
}

// SourceSpec configures fetching for one source.
type SourceSpec struct {
	Query      string   `yaml:"query"`
	Location   string   `yaml:"location,omitempty"`
	Limit      int      `yaml:"limit"`
	Categories []string `yaml:"categories,omitempty"` // google_places sub-queries
}

// Default returns the built-in registry used when no file is configured.
// Queries target the Swedish blue-collar staffing market; the exclusion
// list removes licensed professions the business does not place.
func Default() *Registry {
	return &Registry{
		ExcludeKeywords: []string{
			"läkare", "sjuksköterska", "tandläkare", "barnmorska",
			"psykolog", "veterinär", "apotekare",
			"advokat", "jurist", "revisor",
			"präst", "pilot",
		},
		Sources: map[string]SourceSpec{
			string(model.SourceLinkedIn): {
				Query:    "lagerarbetare",
				Location: "Stockholm",
				Limit:    25,
			},
			string(model.SourceIndeed): {
				Query:    "truckförare",
				Location: "Göteborg",
				Limit:    25,
			},
			string(model.SourcePlatsbanken): {
				Query: "lager logistik",
				Limit: 50,
			},
			string(model.SourceGooglePlaces): {
				Limit: 20,
				Categories: []string{
					"bemanningsföretag Stockholm",
					"logistikföretag Stockholm",
					"byggföretag Stockholm",
				},
			},
		},
	}
}

// Load reads a registry file, merging it over the defaults. A missing file
// is not an error: the defaults are returned unchanged.
func Load(path string) (*Registry, error) {
	reg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return reg, nil
		}
		return nil, eris.Wrapf(err, "registry: read %s", path)
	}

	var loaded Registry
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return nil, eris.Wrapf(err, "registry: parse %s", path)
	}

	if len(loaded.ExcludeKeywords) > 0 {
		reg.ExcludeKeywords = loaded.ExcludeKeywords
	}
	for name, spec := range loaded.Sources {
		base := reg.Sources[name]
		if spec.Query != "" {
			base.Query = spec.Query
		}
		if spec.Location != "" {
			base.Location = spec.Location
		}
		if spec.Limit > 0 {
			base.Limit = spec.Limit
		}
		if len(spec.Categories) > 0 {
			base.Categories = spec.Categories
		}
		reg.Sources[name] = base
	}

	return reg, nil
}

// Spec returns the configuration for a source. Unknown sources get a
// zero-value spec; callers apply their own limit fallback.
func (r *Registry) Spec(source model.Source) SourceSpec {
	return r.Sources[string(source)]
}
