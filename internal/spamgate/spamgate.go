// Package spamgate filters out gibberish and junk before any text reaches
// the model. Evaluation is pure: no state, no side effects, deterministic.
package spamgate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/rakhimov-me/smax-ai/internal/domain"
)

// Policy selects which rule set the gate applies.
type Policy string

const (
	// PolicyLoose is the current rule set: length bounds plus gibberish
	// pattern detection.
	PolicyLoose Policy = "loose"
	// PolicyStrict is the legacy rule set: tighter length bounds, Cyrillic
	// ratio checks and a meaningful-words requirement.
	PolicyStrict Policy = "strict"
)

// Reason strings returned to callers.
const (
	ReasonOK        = "OK"
	reasonGibberish = "Текст похож на бессмыслицу или автоматическую генерацию"
)

// specialSet is the fixed set of punctuation/special characters counted by
// both policies.
const specialSet = "!@#$%^&*()_+\\-={}\\[\\]|:;\"<>,.?/~`"

// Run lengths that mark text as gibberish under the loose policy.
const (
	looseLatinRun   = 20
	looseDigitRun   = 20
	looseSpecialRun = 10
	looseRepeatRun  = 10
)

// Config holds the tunable thresholds. Zero values are replaced by the
// defaults of the selected policy.
type Config struct {
	Policy           Policy
	MinLength        int
	MaxLength        int
	CyrillicMinRatio float64
	LatinMaxRatio    float64
	DigitMaxRatio    float64
	SpecialMaxRatio  float64
}

// Gate evaluates ticket text against one of the spam policies.
type Gate struct {
	cfg     Config
	loose   []*regexp.Regexp
	strict  *strictRules
	repeats int
}

// New creates a gate for the configured policy.
func New(cfg Config) *Gate {
	if cfg.Policy == "" {
		cfg.Policy = PolicyLoose
	}
	applyLengthDefaults(&cfg)

	g := &Gate{
		cfg: cfg,
		loose: []*regexp.Regexp{
			regexp.MustCompile(fmt.Sprintf(`[a-z]{%d,}`, looseLatinRun)),
			regexp.MustCompile(fmt.Sprintf(`[0-9]{%d,}`, looseDigitRun)),
			regexp.MustCompile(fmt.Sprintf(`[%s]{%d,}`, specialSet, looseSpecialRun)),
		},
		repeats: looseRepeatRun,
	}
	if cfg.Policy == PolicyStrict {
		g.strict = newStrictRules(cfg)
		g.repeats = strictRepeatRun
	}
	return g
}

func applyLengthDefaults(cfg *Config) {
	if cfg.MinLength == 0 {
		if cfg.Policy == PolicyStrict {
			cfg.MinLength = 10
		} else {
			cfg.MinLength = 5
		}
	}
	if cfg.MaxLength == 0 {
		if cfg.Policy == PolicyStrict {
			cfg.MaxLength = 1000
		} else {
			cfg.MaxLength = 2000
		}
	}
}

// Evaluate reports whether the combined ticket text is spam and why.
func (g *Gate) Evaluate(title, description string) (bool, string) {
	text := strings.TrimSpace(domain.JoinText(title, description))
	length := len([]rune(text))

	if length < g.cfg.MinLength {
		return true, fmt.Sprintf("Слишком короткий запрос. Минимум %d символов.", g.cfg.MinLength)
	}
	if length > g.cfg.MaxLength {
		return true, fmt.Sprintf("Слишком длинный запрос. Максимум %d символов.", g.cfg.MaxLength)
	}

	if g.strict != nil {
		return g.strict.evaluate(text, g)
	}

	if g.isGibberish(strings.ToLower(text), g.loose) {
		return true, reasonGibberish
	}
	return false, ReasonOK
}

func (g *Gate) isGibberish(textLower string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(textLower) {
			return true
		}
	}
	// RE2 has no backreferences, so the repeated-character rule is a scan.
	return hasRepeatedRun(textLower, g.repeats)
}

// hasRepeatedRun reports whether any rune occurs n or more times in a row.
func hasRepeatedRun(text string, n int) bool {
	var prev rune
	run := 0
	for _, r := range text {
		if r == prev {
			run++
			if run >= n {
				return true
			}
			continue
		}
		prev = r
		run = 1
	}
	return false
}
