package store

import (
	"regexp"
	"strings"
)

// wordRegex matches runs of letters and digits, the same boundaries the
// FTS5 unicode61 tokenizer uses. A trailing '*' marks a prefix query.
var wordRegex = regexp.MustCompile(`[\p{L}\p{N}]+\*?`)

// DefaultStopWords are dropped from queries that contain other words.
var DefaultStopWords = []string{
	"a", "an", "and", "are", "as", "at", "be", "by", "for", "from",
	"in", "is", "it", "of", "on", "or", "that", "the", "to", "was", "with",
}

// TokenizeQuery splits free text into lowercase search terms.
// Prefix markers ("gopher*") are kept on the token.
func TokenizeQuery(text string) []string {
	words := wordRegex.FindAllString(text, -1)
	tokens := make([]string, 0, len(words))
	for _, w := range words {
		tokens = append(tokens, strings.ToLower(w))
	}
	return tokens
}

// FilterStopWords removes stop words from tokens unless that would leave
// nothing, so a query for "the" still matches documents containing it.
func FilterStopWords(tokens []string, stopWords map[string]struct{}) []string {
	result := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if _, isStop := stopWords[strings.TrimSuffix(token, "*")]; !isStop {
			result = append(result, token)
		}
	}
	if len(result) == 0 {
		return tokens
	}
	return result
}

// BuildStopWordMap converts a slice of stop words to a map for lookup.
func BuildStopWordMap(stopWords []string) map[string]struct{} {
	m := make(map[string]struct{}, len(stopWords))
	for _, word := range stopWords {
		m[strings.ToLower(word)] = struct{}{}
	}
	return m
}

// BuildMatchQuery turns user input into an FTS5 MATCH expression in which
// every term is quoted, so operators and punctuation in the input cannot
// cause syntax errors. Terms are ANDed. Returns "" when input has no terms.
func BuildMatchQuery(input string, stopWords map[string]struct{}) string {
	tokens := FilterStopWords(TokenizeQuery(input), stopWords)
	if len(tokens) == 0 {
		return ""
	}

	terms := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if strings.HasSuffix(tok, "*") {
			terms = append(terms, `"`+strings.TrimSuffix(tok, "*")+`"*`)
			continue
		}
		terms = append(terms, `"`+tok+`"`)
	}
	return strings.Join(terms, " ")
}
