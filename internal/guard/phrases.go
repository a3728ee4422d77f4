package guard

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Phrases is the tunable phrase data behind the guard's checks. Matching is
// case-insensitive substring search, except Generic which matches whole words
// and Preamble which is a prefix match.
type Phrases struct {
	Blacklist     []string `yaml:"blacklist" json:"blacklist"`
	Generic       []string `yaml:"generic" json:"generic"`
	SelfReference []string `yaml:"self_reference" json:"self_reference"`
	NotFound      []string `yaml:"not_found" json:"not_found"`
	Preamble      []string `yaml:"preamble" json:"preamble"`
}

// DefaultPhrases returns the built-in phrase lists.
func DefaultPhrases() Phrases {
	return Phrases{
		Blacklist: []string{
			"i don't have access",
			"i do not have access",
			"i don't have real-time",
			"i do not have real-time",
			"knowledge cutoff",
			"as an ai",
			"i apologize",
			"i need more context",
			"i need more information",
			"i'm unable to",
			"i am unable to",
			"cannot access",
			"can't access",
			"no access to",
			"not able to browse",
		},
		Generic: []string{
			"great question",
			"happy to help",
			"i'd be happy",
			"let me know",
			"here is",
			"here's",
			"sure",
			"certainly",
			"of course",
			"thanks for asking",
		},
		SelfReference: []string{
			"as a language model",
			"language model",
			"i am an ai",
			"i'm an ai",
			"my training",
			"i'm sorry",
			"i am sorry",
			"sorry,",
			"apologies",
			"my apologies",
		},
		NotFound: []string{
			"could not find",
			"couldn't find",
			"can't find",
			"cannot find",
			"unable to find",
			"no records for",
			"no records of",
			"no data for",
			"no information about",
			"don't see any",
			"do not see any",
			"not found",
		},
		Preamble: []string{
			"based on the",
			"according to the",
		},
	}
}

// phraseFile is the on-disk form. Lists are appended to the defaults unless
// Replace is set.
type phraseFile struct {
	Phrases `yaml:",inline"`
	Replace bool `yaml:"replace"`
}

// LoadPhrases reads a YAML phrase file and merges it over DefaultPhrases.
// An empty path returns the defaults.
func LoadPhrases(path string) (Phrases, error) {
	defaults := DefaultPhrases()
	if strings.TrimSpace(path) == "" {
		return defaults, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Phrases{}, fmt.Errorf("reading guard phrases: %w", err)
	}
	var file phraseFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Phrases{}, fmt.Errorf("parsing guard phrases %s: %w", path, err)
	}
	if file.Replace {
		return file.Phrases.normalized(), nil
	}
	return defaults.merge(file.Phrases), nil
}

func (p Phrases) merge(extra Phrases) Phrases {
	return Phrases{
		Blacklist:     mergeList(p.Blacklist, extra.Blacklist),
		Generic:       mergeList(p.Generic, extra.Generic),
		SelfReference: mergeList(p.SelfReference, extra.SelfReference),
		NotFound:      mergeList(p.NotFound, extra.NotFound),
		Preamble:      mergeList(p.Preamble, extra.Preamble),
	}
}

func (p Phrases) normalized() Phrases {
	return Phrases{
		Blacklist:     mergeList(nil, p.Blacklist),
		Generic:       mergeList(nil, p.Generic),
		SelfReference: mergeList(nil, p.SelfReference),
		NotFound:      mergeList(nil, p.NotFound),
		Preamble:      mergeList(nil, p.Preamble),
	}
}

// mergeList lower-cases, trims and de-duplicates, keeping first-seen order.
func mergeList(lists ...[]string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, list := range lists {
		for _, s := range list {
			s = strings.ToLower(strings.TrimSpace(s))
			if s == "" {
				continue
			}
			if _, dup := seen[s]; dup {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}
