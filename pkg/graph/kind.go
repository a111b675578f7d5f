package graph

import "fmt"

// StepKind identifies the kind of work a node performs.
type StepKind string

const (
	KindStart         StepKind = "Start"
	KindEnd           StepKind = "End"
	KindSetVariable   StepKind = "SetVariable"
	KindCopyVariable  StepKind = "CopyVariable"
	KindPrintVariable StepKind = "PrintVariable"
	KindReadFile      StepKind = "ReadFile"
	KindSaveFile      StepKind = "SaveFile"
	KindModelChat     StepKind = "ModelChat"
)

// kindAliases maps alternative spellings accepted on input to their
// canonical kind. GPTChat is what older editor exports call ModelChat.
var kindAliases = map[string]StepKind{
	"GPTChat": KindModelChat,
}

// Kinds returns every step kind in toolbar order.
func Kinds() []StepKind {
	return []StepKind{
		KindStart,
		KindSetVariable,
		KindCopyVariable,
		KindPrintVariable,
		KindReadFile,
		KindSaveFile,
		KindModelChat,
		KindEnd,
	}
}

// ParseStepKind resolves s to a known StepKind.
func ParseStepKind(s string) (StepKind, error) {
	for _, k := range Kinds() {
		if string(k) == s {
			return k, nil
		}
	}
	if k, ok := kindAliases[s]; ok {
		return k, nil
	}
	return "", fmt.Errorf("unknown step kind %q", s)
}

// IsMarker reports whether k is a chain boundary marker (Start or End).
// Markers carry no parameters and never reach the pipeline document.
func (k StepKind) IsMarker() bool {
	return k == KindStart || k == KindEnd
}

// DefaultParams returns a fresh copy of the parameters a newly added node of
// kind k starts with.
func DefaultParams(k StepKind) *Params {
	p := NewParams()
	switch k {
	case KindSetVariable:
		p.Set("name", "temp_string")
		p.Set("value", "Example variable")
		p.Set("mode", "replace")
	case KindCopyVariable:
		p.Set("input", "temp_string")
		p.Set("output", "temp_string_copy")
		p.Set("mode", "replace")
	case KindPrintVariable:
		p.Set("name", "temp_string_copy")
	case KindReadFile:
		p.Set("file_path", "./input.txt")
		p.Set("output", "file_contents")
		p.Set("mode", "replace")
	case KindSaveFile:
		p.Set("file_path", "./cache/response.txt")
		p.Set("input", "chat_response")
	case KindModelChat:
		p.Set("prompt", []PromptBlock{
			{Kind: PromptText, Content: "Describe images."},
			{Kind: PromptImage, Content: "./examples/images/*", Detailed: boolPtr(true)},
		})
		p.Set("api-key", "api-key")
		p.Set("max_tokens", int64(500))
		p.Set("chat_history", "chat_history")
		p.Set("output", "chat_response")
		p.Set("mode", "replace")
	}
	return p
}

func boolPtr(b bool) *bool { return &b }
