package memory

import (
	"sort"
	"strings"
	"unicode"
)

// emotionKeywords maps detected emotion keywords to canned trend strings.
var emotionKeywords = map[string]string{
	"tired":    "user often feels tired",
	"sad":      "user often feels sad",
	"stressed": "user often feels stressed",
	"lonely":   "user often feels lonely",
	"angry":    "user often feels angry",
	"happy":    "user often feels happy",
	"anxious":  "user often feels anxious",
	"quiet":    "user often wants quiet company",
}

// topicKeywords maps detected topic keywords to canned interest strings.
var topicKeywords = map[string]string{
	"music":    "user is interested in music",
	"movies":   "user is interested in movies",
	"books":    "user is interested in books",
	"painting": "user is interested in painting",
	"travel":   "user is interested in travel",
	"food":     "user is interested in food",
	"coding":   "user is interested in coding",
	"games":    "user is interested in games",
	"work":     "user talks about work",
	"family":   "user talks about family",
}

// rule is one trigger/effect pair of the update rule table.
// Rules run in fixed order, all are applied, and none are mutually exclusive.
type rule struct {
	name  string
	apply func(rec *Record, lower, original string)
}

var updateRules = []rule{
	{
		name: "name extraction",
		apply: func(rec *Record, lower, original string) {
			if name := extractName(lower, original); name != "" {
				rec.UserName = name
			}
		},
	},
	{
		name: "preference capture",
		apply: func(rec *Record, lower, original string) {
			for _, phrase := range []string{"i like", "i enjoy"} {
				if tail := phraseTail(lower, phrase); tail != "" {
					rec.Preferences = append(rec.Preferences, tail)
				}
			}
		},
	},
	{
		name: "emotional trends",
		apply: func(rec *Record, lower, original string) {
			for _, keyword := range sortedKeys(emotionKeywords) {
				if containsWord(lower, keyword) {
					rec.EmotionalTrends = append(rec.EmotionalTrends, emotionKeywords[keyword])
				}
			}
		},
	},
	{
		name: "topic interests",
		apply: func(rec *Record, lower, original string) {
			for _, keyword := range sortedKeys(topicKeywords) {
				if containsWord(lower, keyword) {
					rec.TopicInterests = append(rec.TopicInterests, topicKeywords[keyword])
				}
			}
		},
	},
	{
		// "remember <fact>" pins the trailing text as an explicit fact.
		name: "remember command",
		apply: func(rec *Record, lower, original string) {
			if !strings.HasPrefix(lower, "remember") {
				return
			}
			fact := strings.TrimSpace(original[len("remember"):])
			fact = strings.TrimLeft(fact, ",:")
			fact = strings.TrimSpace(fact)
			if fact != "" {
				rec.Facts = append(rec.Facts, fact)
			}
		},
	},
}

// applyRules mutates the record from one inbound message and appends the raw
// utterance to history. Truncation runs last.
func applyRules(rec *Record, message string, limits Limits) {
	lower := strings.ToLower(message)
	for _, r := range updateRules {
		r.apply(rec, lower, message)
	}
	rec.History = append(rec.History, message)
	rec.truncate(limits)
}

// DetectEmotions returns the emotion keywords present in the message,
// in deterministic order. Used for session emotional memory.
func DetectEmotions(message string) []string {
	lower := strings.ToLower(message)
	var found []string
	for _, keyword := range sortedKeys(emotionKeywords) {
		if containsWord(lower, keyword) {
			found = append(found, keyword)
		}
	}
	return found
}

// extractName pulls the token following "my name is" and capitalizes its
// first letter. The phrase is matched case-insensitively but the token is
// taken from the original message so interior capitalization survives.
func extractName(lower, original string) string {
	idx := strings.Index(lower, "my name is")
	if idx < 0 {
		return ""
	}
	rest := strings.TrimSpace(original[idx+len("my name is"):])
	if rest == "" {
		return ""
	}
	token := rest
	if cut := strings.IndexFunc(rest, unicode.IsSpace); cut >= 0 {
		token = rest[:cut]
	}
	token = strings.TrimFunc(token, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	if token == "" {
		return ""
	}
	return strings.ToUpper(token[:1]) + token[1:]
}

// phraseTail returns the trimmed substring following the first occurrence of
// the phrase, or "" when the phrase is absent or nothing follows it.
func phraseTail(lower, phrase string) string {
	idx := strings.Index(lower, phrase)
	if idx < 0 {
		return ""
	}
	tail := strings.TrimSpace(lower[idx+len(phrase):])
	tail = strings.Trim(tail, ".,!?;:")
	return strings.TrimSpace(tail)
}

// containsWord reports whether the keyword occurs as a whole word.
func containsWord(lower, keyword string) bool {
	idx := 0
	for {
		i := strings.Index(lower[idx:], keyword)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(keyword)
		beforeOK := start == 0 || !isWordRune(rune(lower[start-1]))
		afterOK := end == len(lower) || !isWordRune(rune(lower[end]))
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsNumber(r)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
