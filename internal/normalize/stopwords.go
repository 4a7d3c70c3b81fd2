package normalize

// Stopword sets are small, curated, and deliberately not downloaded at
// runtime: a fixed built-in list keeps normalization deterministic and
// independent of network access.

var spanishStopwords = toSet([]string{
	"de", "la", "que", "el", "en", "y", "a", "los", "del", "se", "las",
	"por", "un", "para", "con", "no", "una", "su", "al", "lo", "como",
	"mas", "pero", "sus", "le", "ya", "o", "este", "si", "porque", "esta",
	"entre", "cuando", "muy", "sin", "sobre", "tambien", "me", "hasta",
	"hay", "donde", "quien", "desde", "todo", "nos", "durante", "todos",
	"uno", "les", "ni", "contra", "otros", "ese", "eso", "ante", "ellos",
	"e", "esto", "mi", "antes", "algunos", "que", "unos", "yo", "otro",
	"otras", "otra", "el", "tanto", "esa", "estos", "mucho", "quienes",
	"nada", "muchos", "cual", "poco", "ella", "estar", "estas", "algunas",
	"algo", "nosotros",
})

var englishStopwords = toSet([]string{
	"a", "an", "the", "and", "or", "but", "if", "then", "else", "of", "to",
	"in", "on", "for", "with", "as", "by", "at", "from", "is", "are", "was",
	"were", "be", "been", "being", "this", "that", "these", "those", "it",
	"its", "not", "no", "do", "does", "did", "so", "than", "too", "very",
	"can", "will", "just", "should", "now", "i", "you", "he", "she", "we",
	"they", "them", "his", "her", "their", "our", "your",
})

func toSet(words []string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
