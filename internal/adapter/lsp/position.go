package lsp

import "github.com/codika/dartbridge/internal/domain/analysis"

// The daemon speaks 0-based positions; the domain model is 1-based. The
// conversion is applied on every position field in both directions, and the
// two functions are exact inverses of each other.

// wirePosition is a 0-based protocol position.
type wirePosition struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// wireRange is a protocol range.
type wireRange struct {
	Start wirePosition `json:"start"`
	End   wirePosition `json:"end"`
}

// toWirePosition converts a 1-based domain position to wire form.
func toWirePosition(p analysis.Position) wirePosition {
	return wirePosition{Line: p.Line - 1, Character: p.Character - 1}
}

// fromWirePosition converts a wire position to the 1-based domain form.
func fromWirePosition(p wirePosition) analysis.Position {
	return analysis.Position{Line: p.Line + 1, Character: p.Character + 1}
}

// fromWireRange converts both endpoints of a wire range.
func fromWireRange(r wireRange) analysis.Range {
	return analysis.Range{Start: fromWirePosition(r.Start), End: fromWirePosition(r.End)}
}
