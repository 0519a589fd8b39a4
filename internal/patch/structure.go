package patch

import (
	"regexp"
	"strings"
)

// Language identifies the declaration-pattern set used by the structural
// indexer. The set is closed: every variant has an entry in the strategy
// table.
type Language int

const (
	LangUnknown Language = iota
	LangPython
	LangJavaScript
	LangPhp
	LangJava
)

func (l Language) String() string {
	switch l {
	case LangPython:
		return "python"
	case LangJavaScript:
		return "javascript"
	case LangPhp:
		return "php"
	case LangJava:
		return "java"
	default:
		return "unknown"
	}
}

// DetectLanguage guesses the language from weak content signatures, checked
// in priority order.
func DetectLanguage(content string) Language {
	switch {
	case strings.Contains(content, "<?php"):
		return LangPhp
	case strings.Contains(content, "import java") || strings.Contains(content, "public class"):
		return LangJava
	case strings.Contains(content, "class ") && strings.Contains(content, "function ") &&
		strings.Contains(content, "{"):
		return LangJavaScript
	case strings.Contains(content, "def ") && strings.Contains(content, "class "):
		return LangPython
	default:
		return LangUnknown
	}
}

// languageRules is the per-language strategy for recognizing declarations.
type languageRules struct {
	isClassLine  func(trimmed string) bool
	classNameRe  *regexp.Regexp
	isFuncLine   func(trimmed string) bool
	funcNameRes  []*regexp.Regexp
	isMainLine   func(trimmed string) bool
	methodIndent string
	bodyIndent   string
}

var (
	classNameRe  = regexp.MustCompile(`class\s+(\w+)`)
	pyFuncRe     = regexp.MustCompile(`def\s+(\w+)`)
	jsFuncRes    = []*regexp.Regexp{
		regexp.MustCompile(`function\s+(\w+)`),
		regexp.MustCompile(`async\s+(\w+)`),
		regexp.MustCompile(`(\w+)\s*=\s*function`),
		regexp.MustCompile(`(\w+)\s*=\s*async`),
		regexp.MustCompile(`(\w+)\s*\(`),
	}
	phpFuncRe  = regexp.MustCompile(`function\s+(\w+)`)
	javaFuncRe = regexp.MustCompile(`(\w+)\s*\([^)]*\)\s*\{`)
)

// rulesFor maps each Language variant to its declaration patterns. The
// switch is exhaustive over the closed enum.
func rulesFor(lang Language) languageRules {
	switch lang {
	case LangPython:
		return languageRules{
			isClassLine: func(s string) bool { return strings.HasPrefix(s, "class ") },
			classNameRe: classNameRe,
			isFuncLine:  func(s string) bool { return strings.HasPrefix(s, "def ") },
			funcNameRes: []*regexp.Regexp{pyFuncRe},
			isMainLine: func(s string) bool {
				return strings.Contains(s, "if __name__") && strings.Contains(s, "__main__")
			},
			methodIndent: "    ",
			bodyIndent:   "        ",
		}
	case LangJavaScript:
		return languageRules{
			isClassLine: func(s string) bool {
				return strings.HasPrefix(s, "class ") ||
					(strings.Contains(s, "class ") && strings.Contains(s, "{"))
			},
			classNameRe: classNameRe,
			isFuncLine: func(s string) bool {
				return strings.HasPrefix(s, "function ") ||
					strings.HasPrefix(s, "async ") ||
					strings.Contains(s, "function(") ||
					(strings.Contains(s, ") {") && strings.Contains(s, "="))
			},
			funcNameRes: jsFuncRes,
			isMainLine: func(s string) bool {
				return strings.Contains(s, "require.main === module")
			},
		}
	case LangPhp:
		return languageRules{
			isClassLine: func(s string) bool { return strings.Contains(s, "class ") },
			classNameRe: classNameRe,
			isFuncLine:  func(s string) bool { return strings.Contains(s, "function ") },
			funcNameRes: []*regexp.Regexp{phpFuncRe},
			isMainLine:  func(s string) bool { return false },
		}
	case LangJava:
		return languageRules{
			isClassLine: func(s string) bool {
				return strings.Contains(s, "class ") &&
					(strings.Contains(s, "public") || strings.Contains(s, "private"))
			},
			classNameRe: classNameRe,
			isFuncLine: func(s string) bool {
				if !strings.Contains(s, "(") || !strings.Contains(s, ")") {
					return false
				}
				return strings.Contains(s, "public") || strings.Contains(s, "private") ||
					strings.Contains(s, "protected")
			},
			funcNameRes: []*regexp.Regexp{javaFuncRe},
			isMainLine: func(s string) bool {
				return strings.Contains(s, "static void main")
			},
		}
	case LangUnknown:
		fallthrough
	default:
		return languageRules{
			isClassLine: func(s string) bool { return strings.HasPrefix(s, "class ") },
			classNameRe: classNameRe,
			isFuncLine: func(s string) bool {
				return strings.HasPrefix(s, "def ") || strings.Contains(s, "function ")
			},
			funcNameRes: []*regexp.Regexp{pyFuncRe, phpFuncRe},
			isMainLine: func(s string) bool {
				return strings.Contains(s, "if __name__") || strings.Contains(s, "main(")
			},
		}
	}
}

// DeclKind distinguishes indexed declarations.
type DeclKind string

const (
	DeclClass    DeclKind = "class"
	DeclFunction DeclKind = "function"
)

// Declaration is one indexed class or function.
type Declaration struct {
	Kind           DeclKind
	Name           string
	StartLine      int
	EndLine        int // -1 until the span is closed
	Indent         int
	EnclosingClass string // empty for top-level declarations
}

// StructuralIndex is a lightweight, heuristic map of class/function
// boundaries used only for insertion placement. It is built once per apply
// pass and discarded afterwards; it is not a parse tree.
type StructuralIndex struct {
	Language       Language
	Classes        []Declaration
	Functions      []Declaration
	MainBlockStart int // -1 when no main block was detected
}

// BuildIndex scans lines for class/function declarations and the main-block
// marker of lang. A class span is closed when the next class, the main
// block, or end of file is reached.
func BuildIndex(lines []string, lang Language) *StructuralIndex {
	rules := rulesFor(lang)
	idx := &StructuralIndex{Language: lang, MainBlockStart: -1}

	current := -1 // index into idx.Classes of the open class

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		indent := len(line) - len(strings.TrimLeft(line, " \t"))

		switch {
		case rules.isClassLine(trimmed):
			name := firstSubmatch(rules.classNameRe, trimmed)
			if name == "" {
				continue
			}
			if current >= 0 {
				idx.Classes[current].EndLine = i - 1
			}
			idx.Classes = append(idx.Classes, Declaration{
				Kind:      DeclClass,
				Name:      name,
				StartLine: i,
				EndLine:   -1,
				Indent:    indent,
			})
			current = len(idx.Classes) - 1

		case rules.isFuncLine(trimmed):
			name := firstSubmatchAny(rules.funcNameRes, trimmed)
			if name == "" {
				continue
			}
			decl := Declaration{
				Kind:      DeclFunction,
				Name:      name,
				StartLine: i,
				EndLine:   -1,
				Indent:    indent,
			}
			if current >= 0 {
				decl.EnclosingClass = idx.Classes[current].Name
			}
			idx.Functions = append(idx.Functions, decl)

		case rules.isMainLine(trimmed):
			idx.MainBlockStart = i
			if current >= 0 && idx.Classes[current].EndLine < 0 {
				idx.Classes[current].EndLine = i - 1
				current = -1
			}
		}
	}

	if current >= 0 && idx.Classes[current].EndLine < 0 {
		idx.Classes[current].EndLine = len(lines) - 1
	}

	return idx
}

// classEnd returns the effective end line of a class, falling back to the
// end of the file for a span that never closed.
func classEnd(c Declaration, totalLines int) int {
	if c.EndLine >= 0 {
		return c.EndLine
	}
	return totalLines - 1
}

func firstSubmatch(re *regexp.Regexp, s string) string {
	if m := re.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return ""
}

func firstSubmatchAny(res []*regexp.Regexp, s string) string {
	for _, re := range res {
		if name := firstSubmatch(re, s); name != "" {
			return name
		}
	}
	return ""
}
