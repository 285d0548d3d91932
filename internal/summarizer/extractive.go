package summarizer

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	fencedCodePattern = regexp.MustCompile("(?s)```.*?```|~~~.*?~~~")
	inlineCodePattern = regexp.MustCompile("`[^`\n]*`")
	imagePattern      = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)
	linkPattern       = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	htmlTagPattern    = regexp.MustCompile(`<[^>]+>`)
	urlPattern        = regexp.MustCompile(`https?://\S+`)
	headingPattern    = regexp.MustCompile(`(?m)^\s{0,3}#{1,6}\s*`)
	listMarkerPattern = regexp.MustCompile(`(?m)^\s*(?:[-*+]|\d+\.)\s+`)
	quotePattern      = regexp.MustCompile(`(?m)^\s*>\s?`)
	tableRowPattern   = regexp.MustCompile(`(?m)^\s*\|.*$`)
	emphasisPattern   = regexp.MustCompile(`\*\*|__|~~`)
)

var englishStopWords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "but": true, "not": true,
	"you": true, "all": true, "any": true, "can": true, "her": true, "was": true,
	"one": true, "our": true, "out": true, "this": true, "that": true, "with": true,
	"have": true, "from": true, "they": true, "will": true, "would": true, "there": true,
	"their": true, "what": true, "about": true, "which": true, "when": true, "make": true,
	"like": true, "into": true, "than": true, "then": true, "them": true, "these": true,
	"some": true, "its": true, "also": true, "been": true, "has": true, "had": true,
	"were": true, "more": true, "such": true, "only": true, "other": true, "your": true,
}

// Extractive picks the highest scoring sentences by token frequency and returns
// them in their original order. Japanese text is tokenized into character
// bigrams, everything else into lower-cased words.
type Extractive struct{}

// NewExtractive creates an extractive summarizer.
func NewExtractive() *Extractive {
	return &Extractive{}
}

func (e *Extractive) Summarize(ctx context.Context, text string, sentences int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if sentences <= 0 {
		sentences = 3
	}

	cleaned := stripMarkdown(text)
	japanese := isMostlyJapanese(cleaned)
	candidates := splitSentences(cleaned)
	if len(candidates) == 0 {
		return "", nil
	}
	if len(candidates) <= sentences {
		return joinSentences(candidates, japanese), nil
	}

	tokenized := make([][]string, len(candidates))
	frequency := make(map[string]int)
	for i, sentence := range candidates {
		tokenized[i] = tokenize(sentence, japanese)
		for _, token := range tokenized[i] {
			frequency[token]++
		}
	}

	type scored struct {
		index int
		score float64
	}
	scores := make([]scored, len(candidates))
	for i, tokens := range tokenized {
		scores[i] = scored{index: i, score: sentenceScore(tokens, frequency)}
	}
	sort.SliceStable(scores, func(a, b int) bool {
		return scores[a].score > scores[b].score
	})

	picked := make([]int, 0, sentences)
	for _, s := range scores[:sentences] {
		picked = append(picked, s.index)
	}
	sort.Ints(picked)

	selected := make([]string, len(picked))
	for i, index := range picked {
		selected[i] = candidates[index]
	}
	return joinSentences(selected, japanese), nil
}

func sentenceScore(tokens []string, frequency map[string]int) float64 {
	if len(tokens) < 3 {
		return 0
	}
	total := 0
	for _, token := range tokens {
		total += frequency[token]
	}
	return float64(total) / float64(len(tokens))
}

func stripMarkdown(text string) string {
	text = fencedCodePattern.ReplaceAllString(text, "\n")
	text = tableRowPattern.ReplaceAllString(text, "")
	text = imagePattern.ReplaceAllString(text, "")
	text = linkPattern.ReplaceAllString(text, "$1")
	text = inlineCodePattern.ReplaceAllString(text, "")
	text = htmlTagPattern.ReplaceAllString(text, "")
	text = urlPattern.ReplaceAllString(text, "")
	text = headingPattern.ReplaceAllString(text, "")
	text = listMarkerPattern.ReplaceAllString(text, "")
	text = quotePattern.ReplaceAllString(text, "")
	text = emphasisPattern.ReplaceAllString(text, "")
	return text
}

func isJapaneseRune(r rune) bool {
	return unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana)
}

func isMostlyJapanese(text string) bool {
	japanese, letters := 0, 0
	for _, r := range text {
		switch {
		case isJapaneseRune(r):
			japanese++
			letters++
		case unicode.IsLetter(r):
			letters++
		}
	}
	return letters > 0 && japanese*5 >= letters
}

// splitSentences splits on Japanese and Western terminators and on line breaks.
// The terminator stays with its sentence.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	flush := func() {
		sentence := strings.TrimSpace(current.String())
		current.Reset()
		if utf8.RuneCountInString(sentence) >= 2 {
			sentences = append(sentences, sentence)
		}
	}

	runes := []rune(text)
	for i, r := range runes {
		switch {
		case r == '\n':
			flush()
			continue
		case r == '。' || r == '！' || r == '？':
			current.WriteRune(r)
			flush()
			continue
		case r == '.' || r == '!' || r == '?':
			current.WriteRune(r)
			if i+1 == len(runes) || unicode.IsSpace(runes[i+1]) {
				flush()
			}
			continue
		}
		current.WriteRune(r)
	}
	flush()
	return sentences
}

func tokenize(sentence string, japanese bool) []string {
	var tokens []string
	var word []rune
	var prev rune

	flushWord := func() {
		if len(word) >= 3 {
			w := strings.ToLower(string(word))
			if !englishStopWords[w] {
				tokens = append(tokens, w)
			}
		}
		word = word[:0]
	}

	for _, r := range sentence {
		switch {
		case japanese && isJapaneseRune(r):
			flushWord()
			if prev != 0 && !(unicode.Is(unicode.Hiragana, prev) && unicode.Is(unicode.Hiragana, r)) {
				tokens = append(tokens, string([]rune{prev, r}))
			}
			prev = r
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			word = append(word, r)
			prev = 0
		default:
			flushWord()
			prev = 0
		}
	}
	flushWord()
	return tokens
}

func joinSentences(sentences []string, japanese bool) string {
	if japanese {
		return strings.Join(sentences, "")
	}
	return strings.Join(sentences, " ")
}
