package chunk

// Chunk size defaults, carried over from the teacher's code-chunking
// defaults and reused as the chunker's target/minimum token thresholds
// (spec.md §4.2 "Contract").
const (
	DefaultMaxChunkTokens = 512
	DefaultOverlapTokens  = 64
	MinChunkTokens        = 100
	TokensPerChar         = 4
)

// SymbolType represents the kind of code symbol found inside a fenced code
// block while splitting an oversized turn (SPEC_FULL.md §B tree-sitter
// wiring).
type SymbolType string

const (
	SymbolTypeFunction  SymbolType = "function"
	SymbolTypeClass     SymbolType = "class"
	SymbolTypeInterface SymbolType = "interface"
	SymbolTypeType      SymbolType = "type"
	SymbolTypeVariable  SymbolType = "variable"
	SymbolTypeConstant  SymbolType = "constant"
	SymbolTypeMethod    SymbolType = "method"
)

// Symbol represents a code symbol extracted from parsing a fenced code
// block's language.
type Symbol struct {
	Name       string
	Type       SymbolType
	StartLine  int
	EndLine    int
	Signature  string
	DocComment string
}

// Tree represents a parsed AST.
type Tree struct {
	Root     *Node
	Source   []byte
	Language string
}

// Node represents a node in the AST.
type Node struct {
	Type       string
	StartByte  uint32
	EndByte    uint32
	StartPoint Point
	EndPoint   Point
	Children   []*Node
	HasError   bool
}

// Point represents a position in the source code.
type Point struct {
	Row    uint32
	Column uint32
}

// LanguageConfig holds configuration for a supported language.
type LanguageConfig struct {
	Name           string
	Extensions     []string
	FunctionTypes  []string
	ClassTypes     []string
	InterfaceTypes []string
	MethodTypes    []string
	TypeDefTypes   []string
	ConstantTypes  []string
	VariableTypes  []string
	NameField      string
}
