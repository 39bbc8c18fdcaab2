package ocr

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/anime-shed/imgtool-go/pkg/models"

	"github.com/arbovm/levenshtein"
	"github.com/codycollier/wer"
)

// Score builds an OCR result, comparing against expected when it is non-empty.
// CER is the character edit distance over the reference length; WER is the
// word-level equivalent. MatchScore is 100 * (1 - CER), floored at 0.
func Score(expected, extracted string) models.OCRResult {
	result := models.OCRResult{
		ExtractedText: extracted,
		ExpectedText:  expected,
	}

	ref := normalize(expected)
	if ref == "" {
		return result
	}
	hyp := normalize(extracted)

	result.CER = round4(float64(levenshtein.Distance(ref, hyp)) / float64(utf8.RuneCountInString(ref)))

	wordErrorRate, _ := wer.WER(strings.Fields(ref), strings.Fields(hyp))
	result.WER = round4(wordErrorRate)

	result.MatchScore = round4(math.Max(0, 100*(1-result.CER)))
	return result
}

// normalize lowercases and collapses whitespace so layout differences
// do not count as errors
func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
