package classifier

import (
	"unicode"

	"github.com/nugget/chatur/internal/intent"
)

// detectLanguage reports Hindi when the share of Devanagari letters
// reaches the configured threshold or any token is romanized Hindi.
// Detection is off unless configured, in which case the configured
// language is always returned.
func (c *Classifier) detectLanguage(u utterance) string {
	if !c.cfg.DetectLanguage {
		return c.cfg.Language
	}
	var letters, devanagari int
	for _, r := range u.raw {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if unicode.Is(unicode.Devanagari, r) {
			devanagari++
		}
	}
	if letters > 0 && float64(devanagari)/float64(letters) >= c.cfg.HindiCharThreshold {
		return intent.Hindi
	}
	for _, t := range u.tokens {
		if hinglishWords[t] {
			return intent.Hindi
		}
	}
	return c.cfg.Language
}
