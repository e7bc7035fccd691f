package text

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// UnknownTokenID marks codepoints beyond the vocabulary table. Unknown
// codepoints are kept in the sequence, not rejected.
const UnknownTokenID = -1

// Vocabulary maps Unicode codepoints to model token ids via a flat JSON
// array indexed by codepoint value.
type Vocabulary struct {
	ids []int64
}

// LoadVocabulary reads a vocabulary asset: a JSON array where position i
// holds the token id for codepoint i.
func LoadVocabulary(path string) (*Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vocabulary: %w", err)
	}

	var ids []int64
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("decode vocabulary: %w", err)
	}

	if len(ids) == 0 {
		return nil, errors.New("vocabulary table is empty")
	}

	return &Vocabulary{ids: ids}, nil
}

// Size returns the number of codepoints covered by the table.
func (v *Vocabulary) Size() int {
	return len(v.ids)
}

// Encode maps each codepoint of text to its token id, or UnknownTokenID for
// codepoints outside the table.
func (v *Vocabulary) Encode(text string) []int64 {
	runes := []rune(text)
	out := make([]int64, len(runes))

	for i, r := range runes {
		if int(r) < len(v.ids) {
			out[i] = v.ids[int(r)]
		} else {
			out[i] = UnknownTokenID
		}
	}

	return out
}

// EncodeBatch encodes every text and right-pads all rows with id 0 to the
// longest sequence. The returned mask is parallel to the ids: 1.0 at content
// positions, 0.0 at padding.
func (v *Vocabulary) EncodeBatch(texts []string) (ids [][]int64, mask [][]float32) {
	rows := make([][]int64, len(texts))
	maxLen := 0

	for i, t := range texts {
		rows[i] = v.Encode(t)
		if len(rows[i]) > maxLen {
			maxLen = len(rows[i])
		}
	}

	ids = make([][]int64, len(texts))
	mask = make([][]float32, len(texts))

	for i, row := range rows {
		padded := make([]int64, maxLen)
		m := make([]float32, maxLen)
		copy(padded, row)

		for j := range row {
			m[j] = 1.0
		}

		ids[i] = padded
		mask[i] = m
	}

	return ids, mask
}
