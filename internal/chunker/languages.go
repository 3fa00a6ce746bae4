package chunker

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/bash"
	tsc "github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"
	"github.com/smacker/go-tree-sitter/csharp"
	"github.com/smacker/go-tree-sitter/css"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/html"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/kotlin"
	"github.com/smacker/go-tree-sitter/lua"
	"github.com/smacker/go-tree-sitter/php"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/ruby"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/scala"
	"github.com/smacker/go-tree-sitter/swift"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	tstype "github.com/smacker/go-tree-sitter/typescript/typescript"
)

// ErrNoGrammar is returned when no grammar is registered for a language
var ErrNoGrammar = errors.New("no grammar registered")

// grammarRef pairs the language tag reported on chunks with the grammar used to parse.
// The two differ for .tsx, which is tagged typescript but needs the tsx grammar.
type grammarRef struct {
	tag     string
	grammar string
}

// extensionTable maps lower-cased file extensions to their language.
var extensionTable = map[string]grammarRef{
	".py":    {"python", "python"},
	".js":    {"javascript", "javascript"},
	".jsx":   {"javascript", "javascript"},
	".mjs":   {"javascript", "javascript"},
	".cjs":   {"javascript", "javascript"},
	".ts":    {"typescript", "typescript"},
	".tsx":   {"typescript", "tsx"},
	".go":    {"go", "go"},
	".rs":    {"rust", "rust"},
	".java":  {"java", "java"},
	".c":     {"c", "c"},
	".h":     {"c", "c"},
	".cpp":   {"cpp", "cpp"},
	".hpp":   {"cpp", "cpp"},
	".cc":    {"cpp", "cpp"},
	".cxx":   {"cpp", "cpp"},
	".cs":    {"c_sharp", "c_sharp"},
	".rb":    {"ruby", "ruby"},
	".php":   {"php", "php"},
	".kt":    {"kotlin", "kotlin"},
	".kts":   {"kotlin", "kotlin"},
	".swift": {"swift", "swift"},
	".scala": {"scala", "scala"},
	".sh":    {"bash", "bash"},
	".bash":  {"bash", "bash"},
	".zsh":   {"bash", "bash"},
	".lua":   {"lua", "lua"},
	".html":  {"html", "html"},
	".css":   {"css", "css"},
}

// grammarLoaders maps grammar keys to their tree-sitter language constructors.
var grammarLoaders = map[string]func() *sitter.Language{
	"python":     python.GetLanguage,
	"javascript": javascript.GetLanguage,
	"typescript": tstype.GetLanguage,
	"tsx":        tsx.GetLanguage,
	"go":         golang.GetLanguage,
	"rust":       rust.GetLanguage,
	"java":       java.GetLanguage,
	"c":          tsc.GetLanguage,
	"cpp":        cpp.GetLanguage,
	"c_sharp":    csharp.GetLanguage,
	"ruby":       ruby.GetLanguage,
	"php":        php.GetLanguage,
	"kotlin":     kotlin.GetLanguage,
	"swift":      swift.GetLanguage,
	"scala":      scala.GetLanguage,
	"bash":       bash.GetLanguage,
	"lua":        lua.GetLanguage,
	"html":       html.GetLanguage,
	"css":        css.GetLanguage,
}

// semanticNodeTypes lists, per language tag, the top-level node types that
// become their own chunk. Languages without a row (html, css) always use the
// window splitter.
var semanticNodeTypes = map[string]map[string]struct{}{
	"python": set(
		"function_definition", "class_definition", "decorated_definition",
	),
	"javascript": set(
		"function_declaration", "class_declaration", "export_statement",
		"lexical_declaration", "expression_statement",
	),
	"typescript": set(
		"function_declaration", "class_declaration", "export_statement",
		"lexical_declaration", "interface_declaration", "type_alias_declaration",
		"enum_declaration",
	),
	"go": set(
		"function_declaration", "method_declaration", "type_declaration",
	),
	"rust": set(
		"function_item", "impl_item", "struct_item", "enum_item",
		"trait_item", "mod_item",
	),
	"java": set(
		"class_declaration", "interface_declaration", "enum_declaration",
		"method_declaration",
	),
	"c": set(
		"function_definition", "struct_specifier", "enum_specifier",
		"declaration",
	),
	"cpp": set(
		"function_definition", "class_specifier", "struct_specifier",
		"namespace_definition", "template_declaration",
	),
	"c_sharp": set(
		"class_declaration", "interface_declaration", "method_declaration",
		"namespace_declaration", "enum_declaration",
	),
	"ruby": set(
		"method", "class", "module", "singleton_method",
	),
	"php": set(
		"function_definition", "class_declaration", "interface_declaration",
		"trait_declaration", "enum_declaration", "namespace_definition",
	),
	"kotlin": set(
		"class_declaration", "object_declaration", "function_declaration",
	),
	"swift": set(
		"class_declaration", "protocol_declaration", "function_declaration",
	),
	"scala": set(
		"class_definition", "object_definition", "trait_definition",
		"function_definition",
	),
	"bash": set(
		"function_definition",
	),
	"lua": set(
		"function_declaration",
	),
}

func set(items ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(items))
	for _, it := range items {
		m[it] = struct{}{}
	}
	return m
}

// LanguageForPath returns the language tag and grammar key for a file, based
// on its extension. ok is false when the extension is not registered.
func LanguageForPath(path string) (tag, grammar string, ok bool) {
	ref, ok := extensionTable[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return "", "", false
	}
	return ref.tag, ref.grammar, true
}

// SemanticNodeTypes returns the semantic node-type set for a language tag,
// or nil if the language has none.
func SemanticNodeTypes(tag string) map[string]struct{} {
	return semanticNodeTypes[tag]
}

// Languages owns the initialized grammar handles, loading each one on first
// use. A single instance is shared by every extraction worker; the handles
// are read-only once loaded. Parsers themselves are not shared.
type Languages struct {
	mu      sync.RWMutex
	loaded  map[string]*sitter.Language
	loaders map[string]func() *sitter.Language
}

// NewLanguages creates a registry backed by the built-in grammar table.
func NewLanguages() *Languages {
	return &Languages{
		loaded:  make(map[string]*sitter.Language),
		loaders: grammarLoaders,
	}
}

// Grammar returns the grammar for key, loading it if needed.
func (l *Languages) Grammar(key string) (lang *sitter.Language, err error) {
	l.mu.RLock()
	lang, ok := l.loaded[key]
	l.mu.RUnlock()
	if ok {
		return lang, nil
	}

	load, ok := l.loaders[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoGrammar, key)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if lang, ok := l.loaded[key]; ok {
		return lang, nil
	}

	// cgo grammar constructors should not fail, but a broken build must not
	// take the indexer down with it.
	defer func() {
		if r := recover(); r != nil {
			lang = nil
			err = fmt.Errorf("load grammar %s: %v", key, r)
		}
	}()
	lang = load()
	if lang == nil {
		return nil, fmt.Errorf("load grammar %s: nil language", key)
	}
	l.loaded[key] = lang
	return lang, nil
}

// Loaded returns the number of grammars initialized so far.
func (l *Languages) Loaded() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.loaded)
}
