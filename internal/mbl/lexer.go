package mbl

import (
	"strconv"
	"strings"
)

// Lex converts MBL source text into a token stream. Blank and comment-only
// lines produce no tokens at all; every other line contributes its tokens
// followed by a single newline token. The stream always ends with EOF.
func Lex(src string) ([]Token, error) {
	l := &lexer{}
	lines := strings.Split(src, "\n")
	for i, line := range lines {
		if err := l.lexLine(strings.TrimSuffix(line, "\r"), i+1); err != nil {
			return nil, err
		}
	}
	eofLine := 1
	if len(l.tokens) > 0 {
		eofLine = l.tokens[len(l.tokens)-1].Line
	}
	l.tokens = append(l.tokens, Token{Type: TokenEOF, Line: eofLine})
	return l.tokens, nil
}

type lexer struct {
	tokens []Token
}

func (l *lexer) emit(t TokenType, value string, line int) {
	l.tokens = append(l.tokens, Token{Type: t, Value: value, Line: line})
}

func (l *lexer) lexLine(line string, lineNum int) error {
	if strings.TrimSpace(line) == "" {
		return nil
	}

	// Measure leading indentation: space counts 1, tab counts 4.
	indent := 0
	i := 0
	for i < len(line) && (line[i] == ' ' || line[i] == '\t') {
		if line[i] == '\t' {
			indent += 4
		} else {
			indent++
		}
		i++
	}

	if line[i] == '#' {
		return nil
	}
	if indent > 0 {
		l.emit(TokenIndent, strconv.Itoa(indent), lineNum)
	}

	if err := l.lexRest(line, i, lineNum); err != nil {
		return err
	}
	l.emit(TokenNewline, "", lineNum)
	return nil
}

func (l *lexer) lexRest(line string, i int, lineNum int) error {
	for i < len(line) {
		c := line[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case c == '#':
			// Inline comment: the rest of the line is ignored.
			return nil
		case c == '"':
			end := strings.IndexByte(line[i+1:], '"')
			if end < 0 {
				return &ParseError{Line: lineNum, Msg: "unterminated string literal"}
			}
			l.emit(TokenString, line[i+1:i+1+end], lineNum)
			i += end + 2
		case c == ',':
			l.emit(TokenComma, ",", lineNum)
			i++
		case isIdentStart(c):
			next, err := l.lexWord(line, i, lineNum)
			if err != nil {
				return err
			}
			i = next
		case isDigit(c):
			next, err := l.lexNumber(line, i, lineNum)
			if err != nil {
				return err
			}
			i = next
		default:
			return &ParseError{Line: lineNum, Msg: "unexpected character " + strconv.QuoteRune(rune(c))}
		}
	}
	return nil
}

// lexWord scans an identifier-shaped word and classifies it as a compound
// keyword (double-click / right-click), a key combination, a keyword, or an
// identifier.
func (l *lexer) lexWord(line string, i int, lineNum int) (int, error) {
	for _, compound := range []string{"double-click", "right-click"} {
		if len(line)-i >= len(compound) && strings.EqualFold(line[i:i+len(compound)], compound) {
			rest := i + len(compound)
			if rest == len(line) || !isIdentPart(line[rest]) {
				l.emit(TokenKeyword, compound, lineNum)
				return rest, nil
			}
		}
	}

	j := i
	for j < len(line) && isIdentPart(line[j]) {
		j++
	}
	word := line[i:j]

	// Key-combo recognition is context-sensitive: a key component followed
	// by '+' starts a combo, and a named key stands alone as one.
	followedByPlus := j < len(line) && line[j] == '+'
	if (isKeyComponent(word) && followedByPlus) || namedKeys[word] {
		return l.lexKeyCombo(line, i, j, lineNum)
	}

	if keywords[strings.ToLower(word)] {
		l.emit(TokenKeyword, strings.ToLower(word), lineNum)
	} else {
		l.emit(TokenIdentifier, word, lineNum)
	}
	return j, nil
}

// lexKeyCombo consumes '+key' segments greedily starting from the component
// at line[start:j].
func (l *lexer) lexKeyCombo(line string, start, j, lineNum int) (int, error) {
	for j < len(line) && line[j] == '+' {
		j++
		seg := j
		for j < len(line) && isIdentPart(line[j]) {
			j++
		}
		if j == seg {
			return 0, &ParseError{Line: lineNum, Msg: "empty segment in key combination"}
		}
	}
	l.emit(TokenKeyCombo, line[start:j], lineNum)
	return j, nil
}

func (l *lexer) lexNumber(line string, i int, lineNum int) (int, error) {
	j := i
	for j < len(line) && isDigit(line[j]) {
		j++
	}
	// A single digit followed by '+' is a key component (e.g. "1+2").
	if j == i+1 && j < len(line) && line[j] == '+' {
		return l.lexKeyCombo(line, i, j, lineNum)
	}
	if j < len(line) && isIdentStart(line[j]) {
		return 0, &ParseError{Line: lineNum, Msg: "invalid number " + strconv.Quote(line[i:j+1])}
	}
	l.emit(TokenInteger, line[i:j], lineNum)
	return j, nil
}

// isKeyComponent reports whether word can start a key combination when
// followed by '+': a named key, a single uppercase letter, or a single digit.
func isKeyComponent(word string) bool {
	if namedKeys[word] {
		return true
	}
	if len(word) != 1 {
		return false
	}
	c := word[0]
	return (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
