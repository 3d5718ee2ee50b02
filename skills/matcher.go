package skills

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/aluiziolira/go-scrape-jobs/models"
	ahocorasick "github.com/cloudflare/ahocorasick"
)

const wordClass = `\p{L}\p{N}_`

// Matcher finds indexed skills in listing text. The automaton narrows the candidates in a single
// pass and a per-skill pattern then checks word boundaries. Safe for concurrent use.
type Matcher struct {
	index     *Index
	automaton *ahocorasick.Matcher
	patterns  []*regexp.Regexp
}

// NewMatcher compiles a matcher for index.
func NewMatcher(index *Index) *Matcher {
	if index == nil {
		index = BuildIndex(nil)
	}
	m := &Matcher{
		index:    index,
		patterns: make([]*regexp.Regexp, len(index.entries)),
	}
	dictionary := make([]string, len(index.entries))
	for i, e := range index.entries {
		dictionary[i] = e.Skill
		m.patterns[i] = wholeWord(e.Skill)
	}
	if len(dictionary) > 0 {
		m.automaton = ahocorasick.NewStringMatcher(dictionary)
	}
	return m
}

// Index returns the index the matcher was built from.
func (m *Matcher) Index() *Index {
	return m.index
}

// CategoryOf returns the category owning skill.
func (m *Matcher) CategoryOf(skill string) (string, bool) {
	return m.index.CategoryOf(skill)
}

// Categories returns the configured categories in order.
func (m *Matcher) Categories() []models.SkillCategory {
	return m.index.Categories()
}

// Match identifies the skills mentioned in the title and description of job, records them on the
// listing (first call only) and returns them in index order.
func (m *Matcher) Match(job *models.JobListing) []string {
	if job == nil {
		return nil
	}
	found := m.MatchText(job.Title + " " + job.Description)
	job.SetSkills(found)
	return found
}

// MatchText returns the title-cased skills that occur as whole words in text.
func (m *Matcher) MatchText(text string) []string {
	found := []string{}
	if m.automaton == nil {
		return found
	}

	lower := strings.ToLower(text)
	hits := m.automaton.MatchThreadSafe([]byte(lower))
	if len(hits) == 0 {
		return found
	}
	candidate := make([]bool, len(m.patterns))
	for _, hit := range hits {
		if hit >= 0 && hit < len(candidate) {
			candidate[hit] = true
		}
	}

	for i, e := range m.index.entries {
		if candidate[i] && m.patterns[i].MatchString(lower) {
			found = append(found, TitleCase(e.Skill))
		}
	}
	return found
}

// wholeWord builds a pattern for skill where each edge that is a word character must border a
// non-word character or the end of the text. Symbol edges ("c++", ".net") need no boundary.
func wholeWord(skill string) *regexp.Regexp {
	var b strings.Builder
	first, _ := utf8.DecodeRuneInString(skill)
	last, _ := utf8.DecodeLastRuneInString(skill)
	if isWordRune(first) {
		b.WriteString(`(?:^|[^` + wordClass + `])`)
	}
	b.WriteString(regexp.QuoteMeta(skill))
	if isWordRune(last) {
		b.WriteString(`(?:[^` + wordClass + `]|$)`)
	}
	return regexp.MustCompile(b.String())
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}

// TitleCase upper-cases every cased letter that follows an uncased character and lower-cases the
// rest, so "node.js" becomes "Node.Js" and "c#" becomes "C#".
func TitleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevCased := false
	for _, r := range s {
		cased := unicode.IsUpper(r) || unicode.IsLower(r) || unicode.IsTitle(r)
		switch {
		case cased && prevCased:
			b.WriteRune(unicode.ToLower(r))
		case cased:
			b.WriteRune(unicode.ToTitle(r))
		default:
			b.WriteRune(r)
		}
		prevCased = cased
	}
	return b.String()
}
