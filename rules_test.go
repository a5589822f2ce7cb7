package main

import (
	"strings"
	"testing"
)

func TestApplyRules(t *testing.T) {
	tests := []struct {
		input    string
		rules    []ReplaceRule
		expected string
		desc     string
	}{
		// Literal mode
		{"a.b.c", []ReplaceRule{{Find: ".", Replace: "-"}}, "a-b-c", "Literal replaces every occurrence"},
		{"aaaa", []ReplaceRule{{Find: "aa", Replace: "b"}}, "bb", "Literal matches do not overlap"},
		{"a\nb", []ReplaceRule{{Find: `\n`, Replace: ""}}, "ab", "Escaped newline in find"},
		{"a,b", []ReplaceRule{{Find: ",", Replace: `\n`}}, "a\nb", "Escaped newline in replace"},
		{"a$b", []ReplaceRule{{Find: "$", Replace: "$1"}}, "a$1b", "Literal replacement keeps dollar signs"},
		{`a\db`, []ReplaceRule{{Find: `\d`, Replace: "#"}}, "a#b", "Malformed escape matches raw text"},
		{"/usr/bin", []ReplaceRule{{Find: "/usr", Replace: "/opt"}}, "/opt/bin", "Single leading slash is literal"},
		{"path/x", []ReplaceRule{{Find: "/", Replace: "|"}}, "path|x", "Lone slash is literal"},

		// Pattern mode
		{"aaa xaax", []ReplaceRule{{Find: "/a+/g", Replace: "b"}}, "b xbx", "Global pattern"},
		{"aaa xaax", []ReplaceRule{{Find: "/a+/", Replace: "b"}}, "b xbx", "Replacement is global without g"},
		{"Foo foo", []ReplaceRule{{Find: "/foo/gi", Replace: "bar"}}, "bar bar", "Case insensitive flag"},
		{"a\nb", []ReplaceRule{{Find: "/^b/m", Replace: "c"}}, "a\nc", "Multiline flag"},
		{"a\nb", []ReplaceRule{{Find: "/a.b/s", Replace: "x"}}, "x", "Dot-all flag"},
		{"2024-01-05", []ReplaceRule{{Find: `/(\d+)-(\d+)-(\d+)/`, Replace: "$3.$2.$1"}}, "05.01.2024", "Numbered groups"},
		{"ab", []ReplaceRule{{Find: "/a/", Replace: "[$&]"}}, "[a]b", "Whole match token"},
		{"ab", []ReplaceRule{{Find: "/a/", Replace: "$$"}}, "$b", "Escaped dollar"},
		{"ab", []ReplaceRule{{Find: "/(a)/", Replace: "$2"}}, "$2b", "Missing group stays literal"},
		{"ab", []ReplaceRule{{Find: "/(a)/", Replace: "$0"}}, "$0b", "Group zero stays literal"},
		{"ab", []ReplaceRule{{Find: "/(a)/", Replace: "$10"}}, "a0b", "Two digits fall back to one group"},
		{"ab", []ReplaceRule{{Find: "/(?P<x>a)/", Replace: "<$<x>>"}}, "<a>b", "Named group"},
		{"ab", []ReplaceRule{{Find: "/(?P<x>a)/", Replace: "[$<y>]"}}, "[]b", "Unknown named group is empty"},
		{"ab", []ReplaceRule{{Find: "/(a)/", Replace: "$<x>"}}, "$<x>b", "Named token without named groups is literal"},
		{"a/b", []ReplaceRule{{Find: `/\//`, Replace: "-"}}, "a-b", "Escaped slash in pattern"},
		{"a b", []ReplaceRule{{Find: `/\s/`, Replace: `\t`}}, "a\tb", "Escapes decoded in pattern replacement"},
		{"caf\u00e9", []ReplaceRule{{Find: `/\u00e9/`, Replace: "e"}}, "cafe", "Unicode escape in pattern"},
		{"xABCy", []ReplaceRule{{Find: `/[\u0041-\u0043]+/`, Replace: "-"}}, "x-y", "Unicode escapes in class"},
		{"x\U0001F600", []ReplaceRule{{Find: `/\ud83d\ude00/`, Replace: ""}}, "x", "Surrogate pair escape"},
		{"x\U0001F600", []ReplaceRule{{Find: `/\u{1F600}/u`, Replace: ""}}, "x", "Braced unicode escape with u flag"},
		{`a\u0041`, []ReplaceRule{{Find: `/\\u0041/`, Replace: "!"}}, "a!", "Escaped backslash before u stays literal"},
		{"abc", []ReplaceRule{{Find: "/b/", Replace: "[$`|$']"}}, "a[a|c]c", "Text before and after match"},
		{"abab", []ReplaceRule{{Find: "/b/g", Replace: "($`)"}}, "a(a)a(aba)", "Text before match uses the whole input"},
		{"abc", []ReplaceRule{{Find: "/b/", Replace: "$$`"}}, "a$`c", "Escaped dollar before backtick"},
		{"ab", []ReplaceRule{{Find: "/(x)?b/", Replace: "[$1]"}}, "a[]", "Unmatched group is empty"},

		// Pipeline behavior
		{"abc", []ReplaceRule{{Find: "a", Replace: "b"}, {Find: "b", Replace: "c"}}, "ccc", "Rules chain in order"},
		{"abc", []ReplaceRule{{Find: "", Replace: "z"}}, "abc", "Blank find is skipped"},
		{"abc", nil, "abc", "No rules"},

		// Explicit modes
		{"/usr/ and usr", []ReplaceRule{{Find: "/usr/", Replace: "X", Mode: RuleModeLiteral}}, "X and usr", "Literal mode ignores slashes"},
		{"a1b22", []ReplaceRule{{Find: `\d+`, Replace: "#", Mode: RuleModePattern}}, "a#b#", "Pattern mode without slashes"},
		{"A a", []ReplaceRule{{Find: "/a/i", Replace: "x", Mode: RuleModePattern}}, "x x", "Pattern mode with slashes keeps flags"},
	}

	for _, test := range tests {
		t.Run(test.desc, func(t *testing.T) {
			result, errs := ApplyRules(test.input, test.rules)
			if len(errs) != 0 {
				t.Fatalf("Unexpected rule errors: %v", errs)
			}
			if result != test.expected {
				t.Errorf("Input: %q", test.input)
				t.Errorf("Expected: %q", test.expected)
				t.Errorf("Got: %q", result)
			}
		})
	}
}

func TestApplyRulesInvalidPatterns(t *testing.T) {
	tests := []struct {
		find string
		desc string
	}{
		{"/[/", "Unclosed class"},
		{"/a/y", "Sticky flag"},
		{"/a/q", "Unknown flag"},
		{"/a/gg", "Duplicate flag"},
		{"/(?=a)/", "Lookahead"},
	}

	for _, test := range tests {
		t.Run(test.desc, func(t *testing.T) {
			rules := []ReplaceRule{{Find: test.find, Replace: "y"}, {Find: "x", Replace: "z"}}
			result, errs := ApplyRules("x", rules)
			if result != "z" {
				t.Errorf("Expected later rules to run, got %q", result)
			}
			if len(errs) != 1 {
				t.Fatalf("Expected 1 error, got %d", len(errs))
			}
			if errs[0].Index != 0 || errs[0].Find != test.find {
				t.Errorf("Unexpected error %+v", errs[0])
			}
			if errs[0].Message != "invalid pattern: "+test.find {
				t.Errorf("Unexpected message %q", errs[0].Message)
			}
		})
	}
}

func TestApplyRulesDoesNotMutateRules(t *testing.T) {
	rules := []ReplaceRule{{Find: "/a/", Replace: "$&$&"}}
	ApplyRules("a", rules)
	if rules[0].Replace != "$&$&" || rules[0].Find != "/a/" {
		t.Errorf("Rules were modified: %+v", rules[0])
	}
}

func TestRuleErrorString(t *testing.T) {
	_, errs := ApplyRules("x", []ReplaceRule{{}, {Find: "/(/"}})
	if len(errs) != 1 {
		t.Fatalf("Expected 1 error, got %d", len(errs))
	}
	if msg := errs[0].Error(); !strings.HasPrefix(msg, "rule 1: invalid pattern") {
		t.Errorf("Unexpected error string %q", msg)
	}
}

func TestParseRuleMode(t *testing.T) {
	tests := []struct {
		input    string
		expected RuleMode
		wantErr  bool
	}{
		{"", RuleModeAuto, false},
		{"auto", RuleModeAuto, false},
		{"Literal", RuleModeLiteral, false},
		{"pattern", RuleModePattern, false},
		{"regex", RuleModePattern, false},
		{"glob", RuleModeAuto, true},
	}

	for _, test := range tests {
		t.Run(test.input, func(t *testing.T) {
			mode, err := ParseRuleMode(test.input)
			if (err != nil) != test.wantErr {
				t.Fatalf("Expected error=%v, got %v", test.wantErr, err)
			}
			if mode != test.expected {
				t.Errorf("Expected %q, got %q", test.expected, mode)
			}
		})
	}
}
