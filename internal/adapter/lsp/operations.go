package lsp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/codika/dartbridge/internal/domain/analysis"
)

// Typed positional queries. All take the document's file URI (as produced
// by DocumentTracker.URI) and 1-based domain positions, and return domain
// types with 1-based positions. The document must already be open.

// textDocumentPosition builds the common request params, converting the
// position to wire form.
func textDocumentPosition(uri string, pos analysis.Position) map[string]any {
	wp := toWirePosition(pos)
	return map[string]any{
		"textDocument": map[string]string{"uri": uri},
		"position":     map[string]int{"line": wp.Line, "character": wp.Character},
	}
}

// Hover returns hover information at a position, or nil when the daemon has
// nothing to say there.
func (s *Session) Hover(ctx context.Context, uri string, pos analysis.Position) (*analysis.Hover, error) {
	result, err := s.Call(ctx, "textDocument/hover", textDocumentPosition(uri, pos))
	if err != nil {
		return nil, err
	}
	if isNullResult(result) {
		return nil, nil
	}

	var raw struct {
		Contents json.RawMessage `json:"contents"`
	}
	if err := json.Unmarshal(result, &raw); err != nil {
		return nil, fmt.Errorf("decode hover: %w", err)
	}
	h := decodeHoverContents(raw.Contents)
	return &h, nil
}

// decodeHoverContents normalizes the protocol's contents variants: a bare
// string, a MarkupContent {kind, value}, or a MarkedString list whose first
// element is either form.
func decodeHoverContents(raw json.RawMessage) analysis.Hover {
	if len(raw) == 0 {
		return analysis.Hover{Format: "plaintext"}
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return analysis.Hover{Content: s, Format: "plaintext"}
	}

	var mc struct {
		Kind  string `json:"kind"`
		Value string `json:"value"`
	}
	if err := json.Unmarshal(raw, &mc); err == nil && (mc.Value != "" || mc.Kind != "") {
		format := mc.Kind
		if format == "" {
			format = "plaintext"
		}
		return analysis.Hover{Content: mc.Value, Format: format}
	}

	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err == nil && len(arr) > 0 {
		return decodeHoverContents(arr[0])
	}

	return analysis.Hover{Content: string(raw), Format: "plaintext"}
}

// Completion returns completion suggestions at a position. triggerCharacter
// is optional; when set, the request declares a character-triggered context.
func (s *Session) Completion(ctx context.Context, uri string, pos analysis.Position, triggerCharacter string) ([]analysis.CompletionItem, error) {
	params := textDocumentPosition(uri, pos)
	if triggerCharacter != "" {
		params["context"] = map[string]any{
			"triggerKind":      2, // CompletionTriggerKind.TriggerCharacter
			"triggerCharacter": triggerCharacter,
		}
	}

	result, err := s.Call(ctx, "textDocument/completion", params)
	if err != nil {
		return nil, err
	}
	return decodeCompletionResult(result)
}

// wireCompletionItem is one suggestion in wire form.
type wireCompletionItem struct {
	Label         string          `json:"label"`
	Kind          int             `json:"kind"`
	Detail        string          `json:"detail,omitempty"`
	Documentation json.RawMessage `json:"documentation,omitempty"`
	InsertText    string          `json:"insertText,omitempty"`
	SortText      string          `json:"sortText,omitempty"`
}

// decodeCompletionResult accepts the two wire shapes: a bare item list or a
// CompletionList {isIncomplete, items}.
func decodeCompletionResult(result json.RawMessage) ([]analysis.CompletionItem, error) {
	if isNullResult(result) {
		return nil, nil
	}

	var items []wireCompletionItem
	if err := json.Unmarshal(result, &items); err != nil {
		var list struct {
			Items []wireCompletionItem `json:"items"`
		}
		if err := json.Unmarshal(result, &list); err != nil {
			return nil, fmt.Errorf("decode completion result: %w", err)
		}
		items = list.Items
	}

	out := make([]analysis.CompletionItem, 0, len(items))
	for _, item := range items {
		insert := item.InsertText
		if insert == "" {
			insert = item.Label
		}
		out = append(out, analysis.CompletionItem{
			Label:         item.Label,
			Kind:          analysis.CompletionKindName(item.Kind),
			Detail:        item.Detail,
			Documentation: decodeDocumentation(item.Documentation),
			InsertText:    insert,
			SortText:      item.SortText,
		})
	}
	return out, nil
}

// decodeDocumentation handles documentation as a string or MarkupContent.
func decodeDocumentation(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var mc struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(raw, &mc); err == nil {
		return mc.Value
	}
	return ""
}

// Definition returns go-to-definition locations for a position.
func (s *Session) Definition(ctx context.Context, uri string, pos analysis.Position) ([]analysis.Location, error) {
	result, err := s.Call(ctx, "textDocument/definition", textDocumentPosition(uri, pos))
	if err != nil {
		return nil, err
	}
	return s.decodeLocations(result)
}

// References returns all reference locations for a position, including the
// declaration itself when includeDeclaration is set.
func (s *Session) References(ctx context.Context, uri string, pos analysis.Position, includeDeclaration bool) ([]analysis.Location, error) {
	params := textDocumentPosition(uri, pos)
	params["context"] = map[string]bool{"includeDeclaration": includeDeclaration}

	result, err := s.Call(ctx, "textDocument/references", params)
	if err != nil {
		return nil, err
	}
	return s.decodeLocations(result)
}

type wireLocation struct {
	URI   string    `json:"uri"`
	Range wireRange `json:"range"`
}

type wireLocationLink struct {
	TargetURI            string     `json:"targetUri"`
	TargetRange          wireRange  `json:"targetRange"`
	TargetSelectionRange *wireRange `json:"targetSelectionRange,omitempty"`
}

// decodeLocations accepts the three wire shapes a location result may take:
// Location, Location[], or LocationLink[] (the handshake declares link
// support).
func (s *Session) decodeLocations(result json.RawMessage) ([]analysis.Location, error) {
	if isNullResult(result) {
		return nil, nil
	}

	var locs []wireLocation
	if err := json.Unmarshal(result, &locs); err == nil && (len(locs) == 0 || locs[0].URI != "") {
		return s.toLocations(locs), nil
	}

	var links []wireLocationLink
	if err := json.Unmarshal(result, &links); err == nil && len(links) > 0 && links[0].TargetURI != "" {
		locs = make([]wireLocation, 0, len(links))
		for _, l := range links {
			r := l.TargetRange
			if l.TargetSelectionRange != nil {
				r = *l.TargetSelectionRange
			}
			locs = append(locs, wireLocation{URI: l.TargetURI, Range: r})
		}
		return s.toLocations(locs), nil
	}

	var single wireLocation
	if err := json.Unmarshal(result, &single); err == nil && single.URI != "" {
		return s.toLocations([]wireLocation{single}), nil
	}

	return nil, fmt.Errorf("unexpected location result shape")
}

func (s *Session) toLocations(locs []wireLocation) []analysis.Location {
	out := make([]analysis.Location, 0, len(locs))
	for _, l := range locs {
		out = append(out, analysis.Location{
			File:  relToRoot(s.rootPath, uriToPath(l.URI)),
			URI:   l.URI,
			Range: fromWireRange(l.Range),
		})
	}
	return out
}

// wireDocumentSymbol is the hierarchical symbol shape.
type wireDocumentSymbol struct {
	Name           string               `json:"name"`
	Kind           int                  `json:"kind"`
	Detail         string               `json:"detail,omitempty"`
	Range          wireRange            `json:"range"`
	SelectionRange wireRange            `json:"selectionRange"`
	Children       []wireDocumentSymbol `json:"children,omitempty"`
}

// wireSymbolInformation is the flat legacy symbol shape.
type wireSymbolInformation struct {
	Name          string       `json:"name"`
	Kind          int          `json:"kind"`
	ContainerName string       `json:"containerName,omitempty"`
	Location      wireLocation `json:"location"`
}

// DocumentSymbols returns the symbols of one document. The daemon may
// answer hierarchically (DocumentSymbol[]) or flat (SymbolInformation[]);
// both decode into the hierarchical domain shape.
func (s *Session) DocumentSymbols(ctx context.Context, uri string) ([]analysis.DocumentSymbol, error) {
	params := map[string]any{
		"textDocument": map[string]string{"uri": uri},
	}
	result, err := s.Call(ctx, "textDocument/documentSymbol", params)
	if err != nil {
		return nil, err
	}
	if isNullResult(result) {
		return nil, nil
	}

	// The two shapes are distinguished by the "location" field, which only
	// SymbolInformation carries.
	var probe []struct {
		Location *wireLocation `json:"location"`
	}
	if err := json.Unmarshal(result, &probe); err != nil {
		return nil, fmt.Errorf("decode document symbols: %w", err)
	}
	if len(probe) == 0 || probe[0].Location == nil {
		var hier []wireDocumentSymbol
		if err := json.Unmarshal(result, &hier); err != nil {
			return nil, fmt.Errorf("decode document symbols: %w", err)
		}
		return toDocumentSymbols(hier), nil
	}

	var flat []wireSymbolInformation
	if err := json.Unmarshal(result, &flat); err != nil {
		return nil, fmt.Errorf("decode document symbols: %w", err)
	}
	out := make([]analysis.DocumentSymbol, 0, len(flat))
	for _, sym := range flat {
		r := fromWireRange(sym.Location.Range)
		out = append(out, analysis.DocumentSymbol{
			Name:           sym.Name,
			Kind:           analysis.SymbolKindName(sym.Kind),
			Range:          r,
			SelectionRange: r,
		})
	}
	return out, nil
}

func toDocumentSymbols(syms []wireDocumentSymbol) []analysis.DocumentSymbol {
	out := make([]analysis.DocumentSymbol, 0, len(syms))
	for _, sym := range syms {
		out = append(out, analysis.DocumentSymbol{
			Name:           sym.Name,
			Kind:           analysis.SymbolKindName(sym.Kind),
			Detail:         sym.Detail,
			Range:          fromWireRange(sym.Range),
			SelectionRange: fromWireRange(sym.SelectionRange),
			Children:       toDocumentSymbols(sym.Children),
		})
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// WorkspaceSymbols returns workspace-wide symbols matching query.
func (s *Session) WorkspaceSymbols(ctx context.Context, query string) ([]analysis.WorkspaceSymbol, error) {
	result, err := s.Call(ctx, "workspace/symbol", map[string]any{"query": query})
	if err != nil {
		return nil, err
	}
	if isNullResult(result) {
		return nil, nil
	}

	var flat []wireSymbolInformation
	if err := json.Unmarshal(result, &flat); err != nil {
		return nil, fmt.Errorf("decode workspace symbols: %w", err)
	}

	out := make([]analysis.WorkspaceSymbol, 0, len(flat))
	for _, sym := range flat {
		file := relToRoot(s.rootPath, uriToPath(sym.Location.URI))
		out = append(out, analysis.WorkspaceSymbol{
			Name:          sym.Name,
			Kind:          analysis.SymbolKindName(sym.Kind),
			File:          file,
			ContainerName: sym.ContainerName,
			Location: analysis.Location{
				File:  file,
				URI:   sym.Location.URI,
				Range: fromWireRange(sym.Location.Range),
			},
		})
	}
	return out, nil
}

// isNullResult reports whether a result field is absent or JSON null.
func isNullResult(result json.RawMessage) bool {
	return len(result) == 0 || string(result) == "null"
}
