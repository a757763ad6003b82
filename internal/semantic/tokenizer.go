package semantic

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// maxTokens bounds one encoded sequence including [CLS] and [SEP]. Error
// signatures are short; 128 leaves generous room.
const maxTokens = 128

// encoded is a tokenized batch ready for inference. All slices are flat
// [count*width]; width is the longest sequence in the batch.
type encoded struct {
	ids   []int64
	mask  []int64
	types []int64
	count int64
	width int64
}

// tokenizer is a BERT-style WordPiece tokenizer over a vocab.txt file where
// the line number is the token id.
type tokenizer struct {
	terms map[string]int64

	unkID int64
	clsID int64
	sepID int64
}

func newTokenizer(vocabPath string) (*tokenizer, error) {
	f, err := os.Open(vocabPath)
	if err != nil {
		return nil, fmt.Errorf("vocab: %w", err)
	}
	defer f.Close()

	terms := make(map[string]int64, 32000)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		terms[sc.Text()] = int64(len(terms))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("vocab: %w", err)
	}
	if len(terms) == 0 {
		return nil, fmt.Errorf("vocab: %s is empty", vocabPath)
	}

	t := &tokenizer{terms: terms}
	for _, special := range []struct {
		name string
		dst  *int64
	}{
		{"[UNK]", &t.unkID},
		{"[CLS]", &t.clsID},
		{"[SEP]", &t.sepID},
	} {
		id, ok := terms[special.name]
		if !ok {
			return nil, fmt.Errorf("vocab: missing special token %s", special.name)
		}
		*special.dst = id
	}
	if _, ok := terms["[PAD]"]; !ok {
		return nil, fmt.Errorf("vocab: missing special token [PAD]")
	}
	return t, nil
}

// encode converts one text into its id sequence: [CLS] pieces... [SEP],
// truncated to maxTokens. No padding; encodeBatch pads.
func (t *tokenizer) encode(text string) []int64 {
	words := basicTokenize(text)
	ids := make([]int64, 0, maxTokens)
	ids = append(ids, t.clsID)
	for _, w := range words {
		for _, piece := range t.wordpiece(w) {
			if len(ids) == maxTokens-1 {
				break
			}
			ids = append(ids, t.lookup(piece))
		}
		if len(ids) == maxTokens-1 {
			break
		}
	}
	return append(ids, t.sepID)
}

// encodeBatch encodes texts and pads them to the longest sequence.
// Pad positions carry id 0 ([PAD] by convention) and mask 0.
func (t *tokenizer) encodeBatch(texts []string) encoded {
	n := len(texts)
	if n == 0 {
		return encoded{}
	}
	seqs := make([][]int64, n)
	width := 0
	for i, text := range texts {
		seqs[i] = t.encode(text)
		if len(seqs[i]) > width {
			width = len(seqs[i])
		}
	}

	e := encoded{
		ids:   make([]int64, n*width),
		mask:  make([]int64, n*width),
		types: make([]int64, n*width),
		count: int64(n),
		width: int64(width),
	}
	for i, seq := range seqs {
		off := i * width
		for j, id := range seq {
			e.ids[off+j] = id
			e.mask[off+j] = 1
		}
	}
	return e
}

func (t *tokenizer) lookup(piece string) int64 {
	if id, ok := t.terms[piece]; ok {
		return id
	}
	return t.unkID
}

// wordpiece greedily splits one word into the longest vocabulary pieces,
// continuation pieces carrying the ## prefix. A word with any unmatchable
// remainder becomes a single [UNK].
func (t *tokenizer) wordpiece(word string) []string {
	runes := []rune(word)
	if len(runes) > 200 {
		return []string{"[UNK]"}
	}
	var pieces []string
	start := 0
	for start < len(runes) {
		end := len(runes)
		matched := ""
		for end > start {
			piece := string(runes[start:end])
			if start > 0 {
				piece = "##" + piece
			}
			if _, ok := t.terms[piece]; ok {
				matched = piece
				break
			}
			end--
		}
		if matched == "" {
			return []string{"[UNK]"}
		}
		pieces = append(pieces, matched)
		start = end
	}
	return pieces
}

// basicTokenize mirrors BERT's BasicTokenizer: drop control characters,
// space out CJK ideographs, lowercase, strip accents, split on whitespace
// and punctuation.
func basicTokenize(text string) []string {
	var cleaned strings.Builder
	cleaned.Grow(len(text))
	for _, r := range text {
		switch {
		case r == 0 || r == 0xFFFD || isControl(r):
		case isCJK(r):
			cleaned.WriteRune(' ')
			cleaned.WriteRune(r)
			cleaned.WriteRune(' ')
		case isSpace(r):
			cleaned.WriteRune(' ')
		default:
			cleaned.WriteRune(r)
		}
	}

	var folded strings.Builder
	folded.Grow(cleaned.Len())
	for _, r := range norm.NFD.String(strings.ToLower(cleaned.String())) {
		if unicode.In(r, unicode.Mn) {
			continue
		}
		folded.WriteRune(r)
	}

	var words []string
	for _, field := range strings.Fields(folded.String()) {
		words = append(words, splitPunct(field)...)
	}
	return words
}

// splitPunct breaks a word at punctuation, keeping each punctuation rune as
// its own token.
func splitPunct(word string) []string {
	var out []string
	var cur strings.Builder
	for _, r := range word {
		if isPunct(r) {
			if cur.Len() > 0 {
				out = append(out, cur.String())
				cur.Reset()
			}
			out = append(out, string(r))
			continue
		}
		cur.WriteRune(r)
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r' || unicode.Is(unicode.Zs, r)
}

func isControl(r rune) bool {
	if r == '\t' || r == '\n' || r == '\r' {
		return false
	}
	return unicode.IsControl(r)
}

// isPunct matches BERT's punctuation classes: the four ASCII symbol ranges
// plus Unicode punctuation.
func isPunct(r rune) bool {
	if (r >= 33 && r <= 47) || (r >= 58 && r <= 64) ||
		(r >= 91 && r <= 96) || (r >= 123 && r <= 126) {
		return true
	}
	return unicode.IsPunct(r)
}

func isCJK(r rune) bool {
	return (r >= 0x4E00 && r <= 0x9FFF) ||
		(r >= 0x3400 && r <= 0x4DBF) ||
		(r >= 0x20000 && r <= 0x2A6DF) ||
		(r >= 0x2A700 && r <= 0x2B73F) ||
		(r >= 0x2B740 && r <= 0x2B81F) ||
		(r >= 0x2B820 && r <= 0x2CEAF) ||
		(r >= 0xF900 && r <= 0xFAFF) ||
		(r >= 0x2F800 && r <= 0x2FA1F)
}
