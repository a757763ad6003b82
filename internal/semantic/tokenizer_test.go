package semantic

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testVocab puts the specials at ids 0-3 and the given terms after them.
func testVocab(t *testing.T, terms ...string) *tokenizer {
	t.Helper()
	lines := append([]string{"[PAD]", "[UNK]", "[CLS]", "[SEP]"}, terms...)
	path := filepath.Join(t.TempDir(), "vocab.txt")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	tok, err := newTokenizer(path)
	require.NoError(t, err)
	return tok
}

func TestEncode_KnownWords(t *testing.T) {
	tok := testVocab(t, "connection", "refused")

	ids := tok.encode("connection refused")
	assert.Equal(t, []int64{2, 4, 5, 3}, ids, "[CLS] connection refused [SEP]")
}

func TestEncode_WordPieceSubwords(t *testing.T) {
	tok := testVocab(t, "time", "##out", "##s")

	ids := tok.encode("timeouts")
	assert.Equal(t, []int64{2, 4, 5, 6, 3}, ids, "time ##out ##s")
}

func TestEncode_UnmatchableWordBecomesUnk(t *testing.T) {
	tok := testVocab(t, "db")

	ids := tok.encode("db xyzzy")
	assert.Equal(t, []int64{2, 4, 1, 3}, ids)
}

func TestEncode_SplitsPunctuationAndLowercases(t *testing.T) {
	tok := testVocab(t, "db", ":", "5432")

	ids := tok.encode("DB:5432")
	assert.Equal(t, []int64{2, 4, 5, 6, 3}, ids)
}

func TestEncode_StripsAccents(t *testing.T) {
	tok := testVocab(t, "cafe")

	ids := tok.encode("Café")
	assert.Equal(t, []int64{2, 4, 3}, ids)
}

func TestEncode_TruncatesLongInput(t *testing.T) {
	tok := testVocab(t, "x")

	ids := tok.encode(strings.Repeat("x ", maxTokens*2))
	require.Len(t, ids, maxTokens)
	assert.Equal(t, tok.clsID, ids[0])
	assert.Equal(t, tok.sepID, ids[len(ids)-1])
}

func TestEncodeBatch_PadsToLongest(t *testing.T) {
	tok := testVocab(t, "a", "b", "c")

	batch := tok.encodeBatch([]string{"a b c", "a"})
	assert.Equal(t, int64(2), batch.count)
	assert.Equal(t, int64(5), batch.width, "[CLS] a b c [SEP] sets the width")

	// Second row: [CLS] a [SEP] [PAD] [PAD].
	assert.Equal(t, []int64{2, 4, 3, 0, 0}, batch.ids[5:])
	assert.Equal(t, []int64{1, 1, 1, 0, 0}, batch.mask[5:])
	assert.Equal(t, []int64{0, 0, 0, 0, 0}, batch.types[5:])
}

func TestEncodeBatch_Empty(t *testing.T) {
	tok := testVocab(t)
	assert.Zero(t, tok.encodeBatch(nil).count)
}

func TestNewTokenizer_MissingSpecialFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocab.txt")
	require.NoError(t, os.WriteFile(path, []byte("[PAD]\n[UNK]\n[CLS]\n"), 0o644))

	_, err := newTokenizer(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[SEP]")
}

func TestNewTokenizer_EmptyVocabFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocab.txt")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	_, err := newTokenizer(path)
	require.Error(t, err)
}
