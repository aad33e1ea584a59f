package adalite

import (
	"strings"

	"envkit/internal/source"
)

// TokenKind is the category of a lexical token.
type TokenKind uint8

const (
	TokInvalid TokenKind = iota
	TokEOF
	TokIdent
	TokInt
	TokString

	TokLParen
	TokRParen
	TokSemicolon
	TokComma
	TokColon
	TokAssign // :=
	TokDot
	TokArrow // =>
	TokPlus
	TokMinus
	TokStar
	TokSlash
	TokAmp
	TokEq
	TokLt
	TokGt

	tokKeywordStart
	KwWith
	KwUse
	KwPackage
	KwBody
	KwIs
	KwEnd
	KwPrivate
	KwBegin
	KwProcedure
	KwFunction
	KwReturn
	KwSeparate
	KwNull
	KwIn
	KwOut
	KwConstant
	tokKeywordEnd
)

var keywords = map[string]TokenKind{
	"with":      KwWith,
	"use":       KwUse,
	"package":   KwPackage,
	"body":      KwBody,
	"is":        KwIs,
	"end":       KwEnd,
	"private":   KwPrivate,
	"begin":     KwBegin,
	"procedure": KwProcedure,
	"function":  KwFunction,
	"return":    KwReturn,
	"separate":  KwSeparate,
	"null":      KwNull,
	"in":        KwIn,
	"out":       KwOut,
	"constant":  KwConstant,
}

var tokenNames = [...]string{
	TokInvalid:   "invalid token",
	TokEOF:       "end of file",
	TokIdent:     "identifier",
	TokInt:       "integer literal",
	TokString:    "string literal",
	TokLParen:    "'('",
	TokRParen:    "')'",
	TokSemicolon: "';'",
	TokComma:     "','",
	TokColon:     "':'",
	TokAssign:    "':='",
	TokDot:       "'.'",
	TokArrow:     "'=>'",
	TokPlus:      "'+'",
	TokMinus:     "'-'",
	TokStar:      "'*'",
	TokSlash:     "'/'",
	TokAmp:       "'&'",
	TokEq:        "'='",
	TokLt:        "'<'",
	TokGt:        "'>'",
}

func (k TokenKind) String() string {
	if k.IsKeyword() {
		for text, kw := range keywords {
			if kw == k {
				return "'" + text + "'"
			}
		}
	}
	if int(k) < len(tokenNames) && tokenNames[k] != "" {
		return tokenNames[k]
	}
	return "token"
}

// IsKeyword reports whether k is a reserved word.
func (k TokenKind) IsKeyword() bool { return k > tokKeywordStart && k < tokKeywordEnd }

// Token is one lexeme with its byte span.
type Token struct {
	Kind TokenKind
	Span source.Span
	Text string
}

// lookupKeyword classifies an identifier; Ada reserved words are case
// insensitive.
func lookupKeyword(text string) TokenKind {
	if kw, ok := keywords[strings.ToLower(text)]; ok {
		return kw
	}
	return TokIdent
}
