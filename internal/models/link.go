package models

// Anchor is a rendered link element: its href attribute and visible text.
type Anchor struct {
	Href string
	Text string
}

// LinkCandidate is an anchor that survived filtering, with its keyword score.
// Index is the anchor's position in the rendered list and stands in for the element handle.
type LinkCandidate struct {
	Index int
	Href  string
	Text  string
	Score int
}
