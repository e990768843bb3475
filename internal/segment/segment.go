// Package segment splits an ordered fragment sequence into seller, buyer and
// item windows using anchor and boundary keywords.
package segment

import (
	"strings"

	"github.com/joseph-ayodele/invoice-ocr/constants"
)

// Section describes how a window starts and where it stops.
type Section struct {
	Anchors    []string
	Boundaries []string
}

var (
	SellerSection = Section{Anchors: constants.SellerAnchors, Boundaries: constants.SellerBoundaries}
	BuyerSection  = Section{Anchors: constants.BuyerAnchors, Boundaries: constants.BuyerBoundaries}
	ItemSection   = Section{Anchors: constants.ItemAnchors, Boundaries: constants.ItemBoundaries}
)

// Segments are the labelled windows of one document.
type Segments struct {
	Seller []string
	Buyer  []string
	Items  []string
}

// Window returns the fragments of sec: from the first fragment that contains
// an anchor up to (not including) the next fragment that contains a boundary
// word. A fragment repeating an own anchor never ends the window. No anchor
// means an empty window.
func Window(texts []string, sec Section) []string {
	var out []string
	found := false
	for _, t := range texts {
		switch {
		case hasAny(t, sec.Anchors):
			found = true
			out = append(out, t)
		case !found:
		case hasAny(t, sec.Boundaries):
			return out
		default:
			out = append(out, t)
		}
	}
	return out
}

func Seller(texts []string) []string { return Window(texts, SellerSection) }
func Buyer(texts []string) []string  { return Window(texts, BuyerSection) }
func Items(texts []string) []string  { return Window(texts, ItemSection) }

// Split computes all three windows.
func Split(texts []string) Segments {
	return Segments{
		Seller: Seller(texts),
		Buyer:  Buyer(texts),
		Items:  Items(texts),
	}
}

// IsItemHeader reports whether t is one of the item-table header lines.
func IsItemHeader(t string) bool {
	return hasAny(t, constants.ItemAnchors)
}

func hasAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
