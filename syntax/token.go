package syntax

// TokKind enumerates lexical token kinds. Every byte of source text ends up
// either as a Token's Text or inside a Token's Leading trivia, so the token
// stream is lossless: concatenating Leading+Text for every token in document
// order reproduces the source exactly.
type TokKind int

const (
	TokEOF TokKind = iota
	TokError

	// trivia-adjacent, but still real tokens (never folded into Leading)
	TokComment    // -- regular line/block comment, not doc
	TokDocComment // --- line or --[[@ ... ]] block, doc-sub-lexed

	// literals
	TokName
	TokNumber
	TokString
	TokLongString

	// keywords
	TokAnd
	TokBreak
	TokDo
	TokElse
	TokElseif
	TokEnd
	TokFalse
	TokFor
	TokFunction
	TokGoto
	TokIf
	TokIn
	TokLocal
	TokNil
	TokNot
	TokOr
	TokRepeat
	TokReturn
	TokThen
	TokTrue
	TokUntil
	TokWhile
	TokContinue // nonstandard_symbol

	// symbols
	TokPlus
	TokMinus
	TokStar
	TokSlash
	TokDSlash // // (5.3+ integer division)
	TokPercent
	TokCaret
	TokHash
	TokAmp
	TokTilde
	TokPipe
	TokLtLt
	TokGtGt
	TokEq
	TokNe
	TokLe
	TokGe
	TokLt
	TokGt
	TokAssign
	TokLParen
	TokRParen
	TokLBrace
	TokRBrace
	TokLBracket
	TokRBracket
	TokDColon // ::
	TokSemi
	TokColon
	TokComma
	TokDot
	TokDDot    // ..
	TokEllipsis // ...
	TokPlusEq  // += (nonstandard)
	TokNeq     // != (nonstandard)

	// doc-mode tokens (yielded by the doc sub-lexer inside TokDocComment text)
	DocAt      // @
	DocTagHead // identifier right after @, e.g. "class", "param"
	DocName
	DocDotName
	DocLParen
	DocRParen
	DocLBracket
	DocRBracket
	DocLAngle
	DocRAngle
	DocComma
	DocColon
	DocQuestion
	DocPipe
	DocAmp
	DocBacktick
	DocString
	DocNumber
	DocEllipsis
	DocMinus
	DocText // free-form description text trailing a tag
)

// Token is one lexical token plus the raw trivia text that precedes it.
type Token struct {
	Kind    TokKind
	Text    string
	Start   int
	End     int
	Leading string // raw whitespace preceding this token, verbatim

	// Synthetic marks tokens fabricated by the doc-tag parser when it
	// re-parses a doc comment's text into structured sub-nodes (e.g. the
	// DocName "Player" inside a @class tag). The raw TokDocComment token
	// already accounts for every byte of the comment line, so synthetic
	// tokens carry semantic content but must be skipped by Render to avoid
	// double-emitting source text.
	Synthetic bool
}

// keywords maps reserved words to their token kind for language level 5.1+.
var keywords = map[string]TokKind{
	"and": TokAnd, "break": TokBreak, "do": TokDo, "else": TokElse,
	"elseif": TokElseif, "end": TokEnd, "false": TokFalse, "for": TokFor,
	"function": TokFunction, "goto": TokGoto, "if": TokIf, "in": TokIn,
	"local": TokLocal, "nil": TokNil, "not": TokNot, "or": TokOr,
	"repeat": TokRepeat, "return": TokReturn, "then": TokThen, "true": TokTrue,
	"until": TokUntil, "while": TokWhile,
}

// LanguageLevel selects which Lua dialect features the lexer accepts.
type LanguageLevel int

const (
	Lua51 LanguageLevel = iota
	Lua52
	Lua53
	Lua54
	Lua55
	LuaJIT
)

// Config gates dialect-specific lexing, mirroring spec §4.A / §6.3's
// runtime.version and runtime.nonstandard_symbol options.
type Config struct {
	Level               LanguageLevel
	NonstandardSymbols  bool // !=, +=, continue, //-comments
}

func DefaultConfig() Config { return Config{Level: Lua54} }

func (c Config) supportsGoto() bool       { return c.Level >= Lua52 }
func (c Config) supportsBitwise() bool    { return c.Level >= Lua53 }
func (c Config) supportsIntDiv() bool     { return c.Level >= Lua53 }
func (c Config) supportsAttributes() bool { return c.Level >= Lua54 }
