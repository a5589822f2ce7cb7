package main

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// RuleMode selects how a rule's find text is interpreted
type RuleMode string

const (
	// RuleModeAuto treats find as a pattern when it looks like /body/flags
	RuleModeAuto RuleMode = ""
	// RuleModeLiteral always matches find literally, even /usr/
	RuleModeLiteral RuleMode = "literal"
	// RuleModePattern always compiles find as a regular expression
	RuleModePattern RuleMode = "pattern"
)

// ReplaceRule is one find/replace step of the replacement pipeline
type ReplaceRule struct {
	Find    string   `json:"find"`
	Replace string   `json:"replace"`
	Mode    RuleMode `json:"mode,omitempty"`
}

// RuleError reports a rule that could not be applied
type RuleError struct {
	Index   int    `json:"index"`
	Find    string `json:"find"`
	Message string `json:"message"`
}

func (e RuleError) Error() string {
	return fmt.Sprintf("rule %d: %s", e.Index, e.Message)
}

// ParseRuleMode converts user input into a RuleMode
func ParseRuleMode(s string) (RuleMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return RuleModeAuto, nil
	case "literal":
		return RuleModeLiteral, nil
	case "pattern", "regex":
		return RuleModePattern, nil
	default:
		return RuleModeAuto, fmt.Errorf("unknown rule mode: %s", s)
	}
}

// ApplyRules runs every rule over input in order and returns the final text.
// A rule that fails to compile is reported and skipped; the rest still run.
func ApplyRules(input string, rules []ReplaceRule) (string, []RuleError) {
	text := input
	var errs []RuleError

	for i, rule := range rules {
		if rule.Find == "" {
			continue
		}

		re, isPattern, err := compileRule(rule)
		if err != nil {
			errs = append(errs, RuleError{
				Index:   i,
				Find:    rule.Find,
				Message: "invalid pattern: " + rule.Find,
			})
			continue
		}

		replacement := decodeEscapesOrRaw(rule.Replace)
		if isPattern {
			text = replacePattern(re, text, replacement)
		} else {
			text = re.ReplaceAllLiteralString(text, replacement)
		}
	}

	return text, errs
}

// compileRule builds the regular expression for a rule and reports whether it
// runs in pattern mode
func compileRule(rule ReplaceRule) (*regexp.Regexp, bool, error) {
	switch rule.Mode {
	case RuleModeLiteral:
		re, err := compileLiteral(rule.Find)
		return re, false, err
	case RuleModePattern:
		body, flags, ok := splitPattern(rule.Find)
		if !ok {
			body, flags = rule.Find, ""
		}
		re, err := compilePattern(body, flags)
		return re, true, err
	default:
		if body, flags, ok := splitPattern(rule.Find); ok {
			re, err := compilePattern(body, flags)
			return re, true, err
		}
		re, err := compileLiteral(rule.Find)
		return re, false, err
	}
}

// splitPattern splits a /body/flags string into body and flags
func splitPattern(find string) (body, flags string, ok bool) {
	last := strings.LastIndex(find, "/")
	if !strings.HasPrefix(find, "/") || last <= 0 {
		return "", "", false
	}
	return find[1:last], find[last+1:], true
}

// compileLiteral escape-decodes find and quotes it so it matches literally
func compileLiteral(find string) (*regexp.Regexp, error) {
	return regexp.Compile(regexp.QuoteMeta(decodeEscapesOrRaw(find)))
}

// compilePattern compiles body with JavaScript style flags
func compilePattern(body, flags string) (*regexp.Regexp, error) {
	prefix, err := regexFlagPrefix(flags)
	if err != nil {
		return nil, err
	}
	return regexp.Compile(prefix + translateUnicodeEscapes(body, strings.ContainsRune(flags, 'u')))
}

// translateUnicodeEscapes rewrites \uXXXX escapes, and \u{X...} when braces
// is set, into the \x{...} form RE2 understands. An escaped backslash is
// copied as is, so \\u0041 still matches a literal backslash and u0041.
func translateUnicodeEscapes(body string, braces bool) string {
	if !strings.Contains(body, `\u`) {
		return body
	}

	var b strings.Builder
	b.Grow(len(body) + 8)

	for i := 0; i < len(body); i++ {
		if body[i] != '\\' || i+1 >= len(body) {
			b.WriteByte(body[i])
			continue
		}
		if body[i+1] != 'u' {
			b.WriteString(body[i : i+2])
			i++
			continue
		}

		if r, err := readHex4(body, i+2); err == nil {
			consumed := 6
			// a high surrogate followed by a low one is a single code point
			if r >= 0xD800 && r < 0xDC00 && strings.HasPrefix(body[i+6:], `\u`) {
				if low, err := readHex4(body, i+8); err == nil {
					if combined := utf16.DecodeRune(r, low); combined != utf8.RuneError {
						r = combined
						consumed = 12
					}
				}
			}
			fmt.Fprintf(&b, `\x{%X}`, r)
			i += consumed - 1
			continue
		}

		if braces && i+2 < len(body) && body[i+2] == '{' {
			if end := strings.IndexByte(body[i+3:], '}'); end > 0 {
				digits := body[i+3 : i+3+end]
				if _, err := strconv.ParseUint(digits, 16, 32); err == nil {
					b.WriteString(`\x{` + digits + `}`)
					i += 3 + end
					continue
				}
			}
		}

		b.WriteString(body[i : i+2])
		i++
	}

	return b.String()
}

// regexFlagPrefix translates flags like "gim" into an inline RE2 flag group.
// g, u, d and v are accepted without effect: replacement is always global and
// RE2 is always Unicode aware.
func regexFlagPrefix(flags string) (string, error) {
	seen := make(map[rune]bool)
	var inline strings.Builder

	for _, ch := range flags {
		if seen[ch] {
			return "", fmt.Errorf("duplicate flag %q", ch)
		}
		seen[ch] = true

		switch ch {
		case 'i', 'm', 's':
			inline.WriteRune(ch)
		case 'g', 'u', 'd', 'v':
		case 'y':
			return "", fmt.Errorf("sticky flag is not supported")
		default:
			return "", fmt.Errorf("unknown flag %q", ch)
		}
	}

	if inline.Len() == 0 {
		return "", nil
	}
	return "(?" + inline.String() + ")", nil
}

// replacementPart is one piece of a parsed replacement string
type replacementPart struct {
	kind  replacementKind
	text  string
	group int
}

type replacementKind int

const (
	partLiteral replacementKind = iota
	partGroup
	partBefore // $` text before the match
	partAfter  // $' text after the match
)

// parseReplacement splits a JavaScript style replacement ($1, $&, $<name>,
// $$, $` and $') into parts. Everything else is copied literally.
func parseReplacement(repl string, re *regexp.Regexp) []replacementPart {
	groups := re.NumSubexp()
	hasNames := false
	for _, name := range re.SubexpNames() {
		if name != "" {
			hasNames = true
			break
		}
	}

	var parts []replacementPart
	var literal strings.Builder
	emit := func(part replacementPart) {
		if literal.Len() > 0 {
			parts = append(parts, replacementPart{kind: partLiteral, text: literal.String()})
			literal.Reset()
		}
		parts = append(parts, part)
	}

	for i := 0; i < len(repl); i++ {
		ch := repl[i]
		if ch != '$' || i+1 >= len(repl) {
			literal.WriteByte(ch)
			continue
		}

		next := repl[i+1]
		switch {
		case next == '$':
			literal.WriteByte('$')
			i++
		case next == '&':
			emit(replacementPart{kind: partGroup, group: 0})
			i++
		case next == '`':
			emit(replacementPart{kind: partBefore})
			i++
		case next == '\'':
			emit(replacementPart{kind: partAfter})
			i++
		case isDigit(next):
			n := int(next - '0')
			consumed := 1
			if i+2 < len(repl) && isDigit(repl[i+2]) {
				if two := n*10 + int(repl[i+2]-'0'); two >= 1 && two <= groups {
					n = two
					consumed = 2
				}
			}
			if n >= 1 && n <= groups {
				emit(replacementPart{kind: partGroup, group: n})
				i += consumed
			} else {
				literal.WriteByte('$')
			}
		case next == '<' && hasNames:
			end := strings.IndexByte(repl[i+2:], '>')
			if end < 0 {
				literal.WriteByte('$')
				continue
			}
			if index := re.SubexpIndex(repl[i+2 : i+2+end]); index >= 0 {
				emit(replacementPart{kind: partGroup, group: index})
			}
			i += 2 + end
		default:
			literal.WriteByte('$')
		}
	}

	if literal.Len() > 0 {
		parts = append(parts, replacementPart{kind: partLiteral, text: literal.String()})
	}
	return parts
}

// replacePattern replaces every match of re in text with the expanded replacement
func replacePattern(re *regexp.Regexp, text, repl string) string {
	matches := re.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return text
	}
	parts := parseReplacement(repl, re)

	var b strings.Builder
	b.Grow(len(text))
	last := 0

	for _, m := range matches {
		b.WriteString(text[last:m[0]])
		for _, part := range parts {
			switch part.kind {
			case partLiteral:
				b.WriteString(part.text)
			case partGroup:
				// unmatched optional groups expand to nothing
				if start, end := m[2*part.group], m[2*part.group+1]; start >= 0 {
					b.WriteString(text[start:end])
				}
			case partBefore:
				b.WriteString(text[:m[0]])
			case partAfter:
				b.WriteString(text[m[1]:])
			}
		}
		last = m[1]
	}

	b.WriteString(text[last:])
	return b.String()
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
