package normalize

import "github.com/kljensen/snowball"

// stem applies the Snowball-family stemmer for lang to word. Stopwords have
// already been removed by Tokens, so stemStopWords is always true here —
// there is nothing left to special-case.
func stem(word string, lang Language) (string, error) {
	return snowball.Stem(word, string(lang), true)
}
