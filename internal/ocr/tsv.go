package ocr

import (
	"math"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/joseph-ayodele/invoice-ocr/internal/entity"
)

const wordLevel = 5

type lineKey struct{ page, block, par, line int }

type lineAcc struct {
	words                    []string
	left, top, right, bottom int
	confSum                  float64
	confN                    int
}

// ParseTSV groups tesseract TSV word rows into one fragment per text line,
// in reading order. Line confidence is the mean word confidence in 0..1.
func ParseTSV(out []byte) []entity.Fragment {
	var order []lineKey
	lines := map[lineKey]*lineAcc{}

	for i, ln := range strings.Split(string(out), "\n") {
		// skip header
		if i == 0 || len(ln) == 0 {
			continue
		}
		cols := strings.Split(strings.TrimRight(ln, "\r"), "\t")
		if len(cols) < 12 {
			continue
		}
		n := make([]int, 10)
		bad := false
		for j := range n {
			v, err := strconv.Atoi(cols[j])
			if err != nil {
				bad = true
				break
			}
			n[j] = v
		}
		if bad || n[0] != wordLevel {
			continue
		}
		text := strings.TrimSpace(strings.Join(cols[11:], "\t"))
		if text == "" {
			continue
		}

		k := lineKey{n[1], n[2], n[3], n[4]}
		acc, ok := lines[k]
		if !ok {
			acc = &lineAcc{left: math.MaxInt, top: math.MaxInt}
			lines[k] = acc
			order = append(order, k)
		}
		left, top, w, h := n[6], n[7], n[8], n[9]
		acc.left = min(acc.left, left)
		acc.top = min(acc.top, top)
		acc.right = max(acc.right, left+w)
		acc.bottom = max(acc.bottom, top+h)
		acc.words = append(acc.words, text)
		if c, err := strconv.ParseFloat(cols[10], 64); err == nil && c >= 0 {
			acc.confSum += c
			acc.confN++
		}
	}

	frags := make([]entity.Fragment, 0, len(order))
	for _, k := range order {
		acc := lines[k]
		var conf float64
		if acc.confN > 0 {
			conf = math.Min(1, acc.confSum/float64(acc.confN)/100)
		}
		l, t, r, b := float64(acc.left), float64(acc.top), float64(acc.right), float64(acc.bottom)
		frags = append(frags, entity.Fragment{
			Region:     entity.Region{{X: l, Y: t}, {X: r, Y: t}, {X: r, Y: b}, {X: l, Y: b}},
			Text:       joinWords(acc.words),
			Confidence: conf,
		})
	}
	return frags
}

// joinWords puts a space only between two non-CJK neighbours.
func joinWords(words []string) string {
	var sb strings.Builder
	for i, w := range words {
		if i > 0 {
			prev, _ := utf8.DecodeLastRuneInString(words[i-1])
			next, _ := utf8.DecodeRuneInString(w)
			if !isCJK(prev) && !isCJK(next) {
				sb.WriteByte(' ')
			}
		}
		sb.WriteString(w)
	}
	return sb.String()
}

func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r) || unicode.In(r, unicode.Hiragana, unicode.Katakana, unicode.Hangul) ||
		(r >= 0x3000 && r <= 0x303F) || (r >= 0xFF00 && r <= 0xFFEF)
}
