// Package protocol implements the fixed prompt/response mini-language that
// mediates between the execution engine and the vision model.
package protocol

import (
	"regexp"
	"strconv"
	"strings"
)

// ExpectResult classifies the model's reply to an expect prompt.
type ExpectResult int

const (
	ExpectUncertain ExpectResult = iota
	ExpectMatch
	ExpectNoMatch
)

func (r ExpectResult) String() string {
	switch r {
	case ExpectMatch:
		return "match"
	case ExpectNoMatch:
		return "no_match"
	default:
		return "uncertain"
	}
}

// ParseExpect reads a MATCH / NO_MATCH / UNCERTAIN reply. Anything else,
// including an empty reply, counts as uncertain.
func ParseExpect(text string) ExpectResult {
	switch strings.ToUpper(strings.TrimSpace(firstLine(text))) {
	case "MATCH":
		return ExpectMatch
	case "NO_MATCH":
		return ExpectNoMatch
	case "UNCERTAIN":
		return ExpectUncertain
	default:
		return ExpectUncertain
	}
}

// Coordinate is the parsed reply to an element-location prompt.
type Coordinate struct {
	Found  bool
	X, Y   int
	Detail string // failure detail when Found is false
}

var coordPattern = regexp.MustCompile(`^\s*(\d+)\s*,\s*(\d+)\s*$`)

// ParseCoordinate reads an "x,y" reply or a NOT_FOUND reply with an
// optional explanation.
func ParseCoordinate(text string) Coordinate {
	if strings.TrimSpace(text) == "" {
		return Coordinate{Detail: "Empty response"}
	}

	line := strings.TrimSpace(firstLine(text))
	if len(line) >= len("NOT_FOUND") && strings.EqualFold(line[:len("NOT_FOUND")], "NOT_FOUND") {
		return Coordinate{Detail: notFoundDetail(text, line)}
	}

	m := coordPattern.FindStringSubmatch(line)
	if m == nil {
		return Coordinate{Detail: "Could not parse coordinates from: " + line}
	}
	x, errX := strconv.Atoi(m[1])
	y, errY := strconv.Atoi(m[2])
	if errX != nil || errY != nil {
		return Coordinate{Detail: "Could not parse coordinates from: " + line}
	}
	return Coordinate{Found: true, X: x, Y: y}
}

// notFoundDetail pulls the explanation out of a NOT_FOUND reply: the text
// after the marker on the first line, then any following lines, then a
// generic fallback.
func notFoundDetail(text, line string) string {
	detail := strings.TrimSpace(line[len("NOT_FOUND"):])
	detail = strings.TrimSpace(strings.TrimPrefix(detail, ":"))
	if detail != "" {
		return detail
	}
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		if rest := strings.TrimSpace(text[idx+1:]); rest != "" {
			return rest
		}
	}
	return "Element not found"
}

// ExtractResult is the parsed reply to a value-extraction prompt.
type ExtractResult struct {
	Found bool
	Empty bool
	Value string
}

// ParseExtract reads an extracted value, an EMPTY marker, or NOT_FOUND.
func ParseExtract(text string) ExtractResult {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ExtractResult{}
	}
	if strings.EqualFold(trimmed, "EMPTY") {
		return ExtractResult{Found: true, Empty: true}
	}
	if len(trimmed) >= len("NOT_FOUND") && strings.EqualFold(trimmed[:len("NOT_FOUND")], "NOT_FOUND") {
		return ExtractResult{}
	}
	return ExtractResult{Found: true, Value: trimmed}
}

// ParseBoolean reads a YES/NO reply; anything other than YES is false.
func ParseBoolean(text string) bool {
	return strings.EqualFold(strings.TrimSpace(firstLine(text)), "YES")
}

func firstLine(text string) string {
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		return text[:idx]
	}
	return text
}
