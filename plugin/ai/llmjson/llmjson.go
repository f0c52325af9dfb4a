// Package llmjson decodes structured values out of free-form model output.
//
// Decoding runs in three tiers: the trimmed text as strict JSON, then the
// JSON found inside a markdown fence or between the outermost brackets, then
// the same candidate after repairing common model mistakes.
package llmjson

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrNoJSON is returned when no decodable JSON value is found.
var ErrNoJSON = errors.New("no decodable JSON in model output")

var fenceRe = regexp.MustCompile("```(?:json|JSON)?\\s*([\\s\\S]*?)\\s*```")

// DecodeObject decodes a JSON object from raw into v.
func DecodeObject(raw string, v any) error {
	return decode(raw, '{', '}', v)
}

// DecodeArray decodes a JSON array from raw into v. An object wrapping a
// single array field, e.g. {"results": [...]}, is unwrapped.
func DecodeArray(raw string, v any) error {
	err := decode(raw, '[', ']', v)
	if err == nil {
		return nil
	}

	var wrapper map[string]json.RawMessage
	if decode(raw, '{', '}', &wrapper) != nil {
		return err
	}
	var inner json.RawMessage
	for _, value := range wrapper {
		trimmed := strings.TrimSpace(string(value))
		if !strings.HasPrefix(trimmed, "[") {
			continue
		}
		if inner != nil {
			return err
		}
		inner = value
	}
	if inner == nil {
		return err
	}
	if uerr := json.Unmarshal(inner, v); uerr != nil {
		return fmt.Errorf("%w: %v", ErrNoJSON, uerr)
	}
	return nil
}

func decode(raw string, open, close byte, v any) error {
	text := strings.TrimSpace(raw)
	if text == "" {
		return ErrNoJSON
	}

	// Tier 1: strict.
	if text[0] == open {
		if err := json.Unmarshal([]byte(text), v); err == nil {
			return nil
		}
	}

	// Tier 2: extraction.
	candidates := extract(text, open, close)
	var lastErr error
	for _, candidate := range candidates {
		if err := json.Unmarshal([]byte(candidate), v); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}

	// Tier 3: repair.
	for _, candidate := range candidates {
		if err := json.Unmarshal([]byte(Repair(candidate)), v); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}

	if lastErr != nil {
		return fmt.Errorf("%w: %v", ErrNoJSON, lastErr)
	}
	return ErrNoJSON
}

// extract returns candidate JSON substrings: fenced blocks first, then the
// span from the first open bracket to the last close bracket.
func extract(text string, open, close byte) []string {
	var candidates []string
	for _, match := range fenceRe.FindAllStringSubmatch(text, -1) {
		body := strings.TrimSpace(match[1])
		if span := bracketSpan(body, open, close); span != "" {
			candidates = append(candidates, span)
		}
	}
	if span := bracketSpan(text, open, close); span != "" {
		candidates = append(candidates, span)
	}
	return candidates
}

func bracketSpan(text string, open, close byte) string {
	start := strings.IndexByte(text, open)
	end := strings.LastIndexByte(text, close)
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}

var (
	trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)
	smartQuotes     = strings.NewReplacer("“", `"`, "”", `"`, "‘", "'", "’", "'")
)

// Repair fixes common formatting mistakes in model-produced JSON: smart
// quotes, trailing commas and object keys missing their opening quote.
func Repair(s string) string {
	s = smartQuotes.Replace(s)
	s = trailingCommaRe.ReplaceAllString(s, "$1")
	return repairKeyQuotes(s)
}

// repairKeyQuotes turns `, type":` into `, "type":` after { or ,.
func repairKeyQuotes(s string) string {
	runes := []rune(s)
	fixed := make([]rune, 0, len(runes)+16)
	inString := false

	for i := 0; i < len(runes); {
		ch := runes[i]
		if ch == '"' && (i == 0 || runes[i-1] != '\\') {
			inString = !inString
		}
		fixed = append(fixed, ch)
		i++
		if inString || (ch != '{' && ch != ',') {
			continue
		}

		for i < len(runes) && (runes[i] == ' ' || runes[i] == '\n' || runes[i] == '\t' || runes[i] == '\r') {
			fixed = append(fixed, runes[i])
			i++
		}
		keyStart := i
		for i < len(runes) && isKeyRune(runes[i]) {
			i++
		}
		if i > keyStart && i+1 < len(runes) && runes[i] == '"' && runes[i+1] == ':' {
			fixed = append(fixed, '"')
			// The existing closing quote ends the key.
			inString = true
		}
		fixed = append(fixed, runes[keyStart:i]...)
	}
	return string(fixed)
}

func isKeyRune(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// Float is a float64 that also accepts a quoted number, which models
// sometimes emit for scores.
type Float float64

func (f *Float) UnmarshalJSON(data []byte) error {
	text := strings.TrimSpace(string(data))
	if text == "null" {
		return nil
	}
	text = strings.Trim(text, `"`)
	value, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return fmt.Errorf("invalid number %s: %w", string(data), err)
	}
	*f = Float(value)
	return nil
}
