package analysis

// symbolKinds maps the protocol's SymbolKind enum (1-26) to readable names.
var symbolKinds = map[int]string{
	1:  "file",
	2:  "module",
	3:  "namespace",
	4:  "package",
	5:  "class",
	6:  "method",
	7:  "property",
	8:  "field",
	9:  "constructor",
	10: "enum",
	11: "interface",
	12: "function",
	13: "variable",
	14: "constant",
	15: "string",
	16: "number",
	17: "boolean",
	18: "array",
	19: "object",
	20: "key",
	21: "null",
	22: "enumMember",
	23: "struct",
	24: "event",
	25: "operator",
	26: "typeParameter",
}

// completionKinds maps the protocol's CompletionItemKind enum (1-25) to
// readable names.
var completionKinds = map[int]string{
	1:  "text",
	2:  "method",
	3:  "function",
	4:  "constructor",
	5:  "field",
	6:  "variable",
	7:  "class",
	8:  "interface",
	9:  "module",
	10: "property",
	11: "unit",
	12: "value",
	13: "enum",
	14: "keyword",
	15: "snippet",
	16: "color",
	17: "file",
	18: "reference",
	19: "folder",
	20: "enumMember",
	21: "constant",
	22: "struct",
	23: "event",
	24: "operator",
	25: "typeParameter",
}

// SymbolKindName returns the readable name for a SymbolKind code, or
// "unknown" for codes outside the enum.
func SymbolKindName(kind int) string {
	if name, ok := symbolKinds[kind]; ok {
		return name
	}
	return "unknown"
}

// CompletionKindName returns the readable name for a CompletionItemKind
// code. Unknown codes fall back to "text", the protocol's default kind.
func CompletionKindName(kind int) string {
	if name, ok := completionKinds[kind]; ok {
		return name
	}
	return "text"
}
