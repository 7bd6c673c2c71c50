package llm

import (
	"context"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"taedam/internal/shared/jsonx"
	"taedam/internal/xerrors"
)

// CompleteStructured runs a completion and decodes the reply into out.
// Models wrap JSON in code fences, add prose, or emit trailing commas; the
// raw text is stripped and, when plain decoding fails, run through jsonrepair
// before giving up with a ParseError.
func CompleteStructured(ctx context.Context, client Client, req CompletionRequest, out any) error {
	resp, err := client.Complete(ctx, req)
	if err != nil {
		return err
	}
	return DecodeStructured(resp.Content, out)
}

// DecodeStructured decodes model output text into out.
func DecodeStructured(content string, out any) error {
	candidate := extractJSON(content)
	if candidate == "" {
		return &xerrors.ParseError{Raw: content, Err: errNoJSON}
	}

	if err := jsonx.Unmarshal([]byte(candidate), out); err == nil {
		return nil
	}

	repaired, err := jsonrepair.JSONRepair(candidate)
	if err != nil {
		return &xerrors.ParseError{Raw: content, Err: err}
	}
	if err := jsonx.Unmarshal([]byte(repaired), out); err != nil {
		return &xerrors.ParseError{Raw: content, Err: err}
	}
	return nil
}

var errNoJSON = strError("no JSON object in model output")

type strError string

func (e strError) Error() string { return string(e) }

// extractJSON strips markdown fences and surrounding prose, returning the
// outermost {...} or [...] block.
func extractJSON(content string) string {
	s := strings.TrimSpace(content)

	if idx := strings.Index(s, "```"); idx >= 0 {
		rest := s[idx+3:]
		rest = strings.TrimPrefix(rest, "json")
		if end := strings.Index(rest, "```"); end >= 0 {
			s = strings.TrimSpace(rest[:end])
		} else {
			s = strings.TrimSpace(rest)
		}
	}

	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return ""
	}
	closer := byte('}')
	if s[start] == '[' {
		closer = ']'
	}
	if end := strings.LastIndexByte(s, closer); end > start {
		return s[start : end+1]
	}
	// Unbalanced output: hand the tail to jsonrepair as-is.
	return s[start:]
}
