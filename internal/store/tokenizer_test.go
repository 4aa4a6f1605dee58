package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenizeQuery(t *testing.T) {
	assert.Equal(t, []string{"hello", "wörld", "go2", "gopher*"},
		TokenizeQuery(`Hello, "Wörld" go2 -- gopher*`))
	assert.Empty(t, TokenizeQuery(`"" ** ()`))
}

func TestFilterStopWords(t *testing.T) {
	stop := BuildStopWordMap(DefaultStopWords)

	assert.Equal(t, []string{"gopher"}, FilterStopWords([]string{"the", "gopher"}, stop))
	// A query made only of stop words keeps them.
	assert.Equal(t, []string{"the", "and"}, FilterStopWords([]string{"the", "and"}, stop))
}

func TestBuildMatchQuery(t *testing.T) {
	stop := BuildStopWordMap(DefaultStopWords)

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"single term", "sqlite", `"sqlite"`},
		{"terms are anded", "Go Channels", `"go" "channels"`},
		{"stop words dropped", "the art of war", `"art" "war"`},
		{"prefix", "embed*", `"embed"*`},
		{"operators are neutralised", `NEAR(a b) OR "x`, `"near" "b" "x"`},
		{"no terms", `  -- () `, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildMatchQuery(tt.input, stop))
		})
	}
}
