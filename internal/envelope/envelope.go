// Package envelope defines the wire-level input and output records of a turn.
package envelope

// OutputType discriminates how the client renders a terminal response.
type OutputType string

const (
	TypeChat        OutputType = "chat"
	TypeExpert      OutputType = "expert_answer"
	TypeDiary       OutputType = "diary_entry"
	TypeSafetyAlert OutputType = "safety_alert"
	TypeError       OutputType = "error"
)

// InputMetadata carries routing hints alongside the user text.
type InputMetadata struct {
	Source   string `json:"source,omitempty"`   // ui | api | test
	Date     string `json:"date,omitempty"`     // YYYY-MM-DD
	Week     int    `json:"week,omitempty"`     // pregnancy week
	Language string `json:"language,omitempty"` // defaults to ko
}

// InputPayload is the body of a user message.
type InputPayload struct {
	Text     string        `json:"text"`
	Context  string        `json:"context,omitempty"`
	Metadata InputMetadata `json:"metadata"`
}

// Input is the top-level object a turn receives.
type Input struct {
	SessionID string       `json:"session_id"`
	Payload   InputPayload `json:"payload"`
}

// ResultMeta tags a result with its producing capability and render type.
type ResultMeta struct {
	Source string         `json:"source"`
	Type   OutputType     `json:"type"`
	Extra  map[string]any `json:"extra,omitempty"`
}

// Result is the renderable content of a successful turn.
type Result struct {
	Text string         `json:"text"`
	Data map[string]any `json:"data,omitempty"`
	Meta ResultMeta     `json:"meta"`
}

// ErrorInfo describes a failed turn.
type ErrorInfo struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// Output is the terminal response of a turn.
type Output struct {
	OK     bool       `json:"ok"`
	Result *Result    `json:"result,omitempty"`
	Error  *ErrorInfo `json:"error,omitempty"`
}

// Type returns the render discriminant, TypeError for failures.
func (o *Output) Type() OutputType {
	if o == nil || !o.OK || o.Result == nil {
		return TypeError
	}
	return o.Result.Meta.Type
}

// Chat builds a plain conversational response.
func Chat(text, source string) *Output {
	return ok(text, nil, source, TypeChat)
}

// Expert builds a grounded medical answer with citations payload.
func Expert(text string, data map[string]any, source string) *Output {
	return ok(text, data, source, TypeExpert)
}

// Diary builds a diary-entry response.
func Diary(text string, data map[string]any, source string) *Output {
	return ok(text, data, source, TypeDiary)
}

// SafetyAlert builds an urgent-triage response.
func SafetyAlert(text string, data map[string]any, source string) *Output {
	return ok(text, data, source, TypeSafetyAlert)
}

// Err builds a failure response.
func Err(code, message string, retryable bool) *Output {
	return &Output{OK: false, Error: &ErrorInfo{Code: code, Message: message, Retryable: retryable}}
}

func ok(text string, data map[string]any, source string, typ OutputType) *Output {
	if data == nil {
		data = map[string]any{}
	}
	return &Output{
		OK: true,
		Result: &Result{
			Text: text,
			Data: data,
			Meta: ResultMeta{Source: source, Type: typ},
		},
	}
}
