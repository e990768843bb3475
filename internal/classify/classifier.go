// Package classify scores OCR text against the weighted invoice-type keyword table.
package classify

import (
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/joseph-ayodele/invoice-ocr/constants"
	"github.com/joseph-ayodele/invoice-ocr/internal/entity"
)

const (
	// scoreDivisor normalises raw keyword sums into [0,1]. It is the same for
	// every type, so types with heavier keyword lists reach 1.0 sooner.
	scoreDivisor = 10.0

	numericFallbackScore = 2
	defaultConfidence    = 0.1
)

var reInvoiceCodeShape = regexp.MustCompile(`[0-9]{10,12}`)

type Classifier struct {
	table  []constants.TypeKeywords
	logger *slog.Logger
}

func NewClassifier(logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{table: constants.KeywordTable, logger: logger}
}

// Classify scores text against every type. The highest sum wins and ties go
// to the type declared first in the table.
func (c *Classifier) Classify(text string) entity.TypeScore {
	lower := strings.ToLower(text)

	all := make(map[constants.InvoiceType]float64, len(c.table))
	bestIdx, bestScore := -1, 0
	var bestMatched []string
	for i, tk := range c.table {
		score := 0
		var matched []string
		for _, kw := range tk.Keywords {
			if strings.Contains(lower, strings.ToLower(kw.Text)) || strings.Contains(text, kw.Text) {
				score += kw.Weight
				matched = append(matched, kw.Text)
			}
		}
		all[tk.Type] = confidence(score)
		if score > bestScore {
			bestIdx, bestScore, bestMatched = i, score, matched
		}
	}

	if bestIdx >= 0 {
		res := entity.TypeScore{
			Type:            c.table[bestIdx].Type,
			Confidence:      confidence(bestScore),
			MatchedKeywords: bestMatched,
			AllScores:       all,
			Method:          entity.MethodKeywords,
		}
		c.logger.Debug("classify.keywords", "type", res.Type, "score", bestScore, "confidence", res.Confidence)
		return res
	}

	if reInvoiceCodeShape.MatchString(text) {
		all[constants.GeneralInvoice] = confidence(numericFallbackScore)
		c.logger.Debug("classify.numeric_fallback")
		return entity.TypeScore{
			Type:            constants.GeneralInvoice,
			Confidence:      confidence(numericFallbackScore),
			MatchedKeywords: []string{},
			AllScores:       all,
			Method:          entity.MethodNumericLayout,
		}
	}

	all[constants.GeneralInvoice] = defaultConfidence
	c.logger.Debug("classify.default")
	return entity.TypeScore{
		Type:            constants.GeneralInvoice,
		Confidence:      defaultConfidence,
		MatchedKeywords: []string{},
		AllScores:       all,
		Method:          entity.MethodDefault,
	}
}

// ClassifyTexts classifies the space-joined fragment texts.
func (c *Classifier) ClassifyTexts(texts []string) entity.TypeScore {
	return c.Classify(strings.Join(texts, " "))
}

func confidence(score int) float64 {
	v := float64(score) / scoreDivisor
	if v > 1 {
		return 1
	}
	if v < 0 {
		return 0
	}
	return v
}

// Candidates returns up to n types with a non-zero score, best first, keeping
// table order among equal scores. The winning type always leads, since two
// types can both clamp to confidence 1.
func Candidates(score entity.TypeScore, n int) []entity.TypeCandidate {
	type ranked struct {
		idx  int
		conf float64
		t    constants.InvoiceType
	}
	var rs []ranked
	for i, tk := range constants.KeywordTable {
		if conf := score.AllScores[tk.Type]; conf > 0 {
			rs = append(rs, ranked{idx: i, conf: conf, t: tk.Type})
		}
	}
	sort.SliceStable(rs, func(a, b int) bool {
		if (rs[a].t == score.Type) != (rs[b].t == score.Type) {
			return rs[a].t == score.Type
		}
		return rs[a].conf > rs[b].conf
	})

	out := make([]entity.TypeCandidate, 0, n)
	for _, r := range rs {
		if len(out) == n {
			break
		}
		out = append(out, Candidate(r.t, r.conf))
	}
	if len(out) == 0 && n > 0 {
		out = append(out, Candidate(score.Type, score.Confidence))
	}
	return out
}

// Candidate describes type t with its display name and catalogue code.
func Candidate(t constants.InvoiceType, conf float64) entity.TypeCandidate {
	c := entity.TypeCandidate{Type: t, Name: t.DisplayName(), Confidence: conf}
	if code := t.Code(); code != "" {
		c.Code = &code
	}
	return c
}
