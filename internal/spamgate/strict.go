package spamgate

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	ahocorasick "github.com/cloudflare/ahocorasick"
)

// Legacy run lengths used by the strict policy.
const (
	strictLatinRun      = 10
	strictDigitRun      = 10
	strictSpecialRun    = 5
	strictRepeatRun     = 6
	randomLettersMinLen = 15
	randomLettersMinCyr = 10
	meaningfulMinWords  = 2
)

// commonRussianWords is the legacy vocabulary a meaningful support request
// is expected to touch: function words plus helpdesk domain stems.
var commonRussianWords = []string{
	"не", "на", "в", "с", "по", "за", "к", "у", "о", "из", "от", "до",
	"для", "при", "под", "над", "перед", "после", "без", "про", "через",
	"работа", "систем", "ошибк", "проблем", "помощ", "вопрос", "служб",
	"техническ", "поддержк", "информац", "данн", "файл", "программ",
	"компьютер", "сервер", "сеть", "интернет", "телефон", "почт", "документ",
	"устройств", "настройк", "установк", "заявк", "обращен",
}

// strictRules is the legacy Cyrillic-ratio rule set. Kept behind a policy
// switch so the old behavior stays expressible through configuration.
type strictRules struct {
	cfg        Config
	gibberish  []*regexp.Regexp
	spacedCyr  *regexp.Regexp
	specialCls *regexp.Regexp
	words      *ahocorasick.Matcher
}

func newStrictRules(cfg Config) *strictRules {
	return &strictRules{
		cfg: cfg,
		gibberish: []*regexp.Regexp{
			regexp.MustCompile(fmt.Sprintf(`[a-z]{%d,}`, strictLatinRun)),
			regexp.MustCompile(fmt.Sprintf(`[0-9]{%d,}`, strictDigitRun)),
			regexp.MustCompile(fmt.Sprintf(`[%s]{%d,}`, specialSet, strictSpecialRun)),
		},
		// Five single Cyrillic letters separated by whitespace, e.g. "п р и в е".
		spacedCyr:  regexp.MustCompile(`(?:^|\s)(?:[а-яё]\s+){4}[а-яё](?:\s|$)`),
		specialCls: regexp.MustCompile(fmt.Sprintf(`[%s]`, specialSet)),
		words:      ahocorasick.NewStringMatcher(commonRussianWords),
	}
}

func (s *strictRules) evaluate(text string, g *Gate) (bool, string) {
	textLower := strings.ToLower(text)

	if spam, reason := s.checkRatios(textLower); spam {
		return true, reason
	}

	if g.isGibberish(textLower, s.gibberish) || s.spacedCyr.MatchString(textLower) || isRandomLetters(text) {
		return true, reasonGibberish
	}

	if !s.hasMeaningfulRussian(textLower) {
		return true, "Запрос не содержит осмысленных русских слов"
	}

	return false, ReasonOK
}

// checkRatios enforces the character distribution rules: mostly Cyrillic,
// little Latin, few digits and special characters.
func (s *strictRules) checkRatios(textLower string) (bool, string) {
	var cyrillic, latin, digits int
	total := 0
	for _, r := range textLower {
		total++
		switch {
		case r >= 'а' && r <= 'я' || r == 'ё':
			cyrillic++
		case r >= 'a' && r <= 'z':
			latin++
		case r >= '0' && r <= '9':
			digits++
		}
	}
	if total == 0 {
		return true, "Пустой запрос"
	}
	special := len(s.specialCls.FindAllString(textLower, -1))

	if ratio := float64(cyrillic) / float64(total); ratio < s.cfg.CyrillicMinRatio {
		return true, fmt.Sprintf("Слишком мало русского текста (%.0f%%). Минимум %.0f%%.",
			ratio*100, s.cfg.CyrillicMinRatio*100)
	}
	if ratio := float64(latin) / float64(total); ratio > s.cfg.LatinMaxRatio {
		return true, fmt.Sprintf("Слишком много латинских символов (%.0f%%). Максимум %.0f%%.",
			ratio*100, s.cfg.LatinMaxRatio*100)
	}
	if ratio := float64(digits) / float64(total); ratio > s.cfg.DigitMaxRatio {
		return true, fmt.Sprintf("Слишком много цифр (%.0f%%). Максимум %.0f%%.",
			ratio*100, s.cfg.DigitMaxRatio*100)
	}
	if ratio := float64(special) / float64(total); ratio > s.cfg.SpecialMaxRatio {
		return true, fmt.Sprintf("Слишком много специальных символов (%.0f%%). Максимум %.0f%%.",
			ratio*100, s.cfg.SpecialMaxRatio*100)
	}
	return false, ""
}

// isRandomLetters flags long runs of Cyrillic with no spaces at all, the
// classic keyboard mash ("щзфАФЬВЛЖАЖЙЬЫЖВ").
func isRandomLetters(text string) bool {
	if len([]rune(text)) <= randomLettersMinLen || strings.ContainsRune(text, ' ') {
		return false
	}
	cyr := 0
	for _, r := range strings.ToLower(text) {
		if unicode.Is(unicode.Cyrillic, r) {
			cyr++
			if cyr > randomLettersMinCyr {
				return true
			}
		}
	}
	return false
}

// hasMeaningfulRussian requires at least two distinct common-word hits. The
// Aho-Corasick matcher finds all vocabulary entries in one pass.
func (s *strictRules) hasMeaningfulRussian(textLower string) bool {
	hits := s.words.Match([]byte(textLower))
	seen := make(map[int]bool, len(hits))
	for _, h := range hits {
		seen[h] = true
		if len(seen) >= meaningfulMinWords {
			return true
		}
	}
	return false
}
