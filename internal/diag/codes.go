package diag

import (
	"fmt"
)

type Code uint16

const (
	UnknownCode Code = 0

	// Лексические
	LexInfo        Code = 1000
	LexUnknownChar Code = 1001
	LexBadNumber   Code = 1002

	// Синтаксические
	SynInfo             Code = 2000
	SynUnexpectedToken  Code = 2001
	SynExpectIdentifier Code = 2002
	SynExpectSemicolon  Code = 2003
	SynEndNameMismatch  Code = 2004
	SynUnexpectedEOF    Code = 2005

	// Lexical environments
	EnvInfo            Code = 3000
	EnvUnresolvedScope Code = 3001
	EnvCycle           Code = 3002
	EnvResolverError   Code = 3003
	EnvAmbiguousLookup Code = 3004
	EnvMissingUnit     Code = 3005
	EnvUnresolvedName  Code = 3006
	EnvDuplicateDecl   Code = 3007
	EnvInvariant       Code = 3008

	// Ввод-вывод
	IOLoadFileError Code = 4001

	// Project configuration
	ProjInfo          Code = 5000
	ProjBadManifest   Code = 5001
	ProjMissingSource Code = 5002
	ProjSelfWith      Code = 5003
	ProjWithCycle     Code = 5004
	ProjDependencyBad Code = 5005

	ObsInfo    Code = 6000
	ObsTimings Code = 6001
)

var (
	codeDescription = map[Code]string{
		UnknownCode:         "Unknown error",
		LexInfo:             "Lexical information",
		LexUnknownChar:      "Unknown character",
		LexBadNumber:        "Malformed number literal",
		SynInfo:             "Syntax information",
		SynUnexpectedToken:  "Unexpected token",
		SynExpectIdentifier: "Expected identifier",
		SynExpectSemicolon:  "Expected semicolon",
		SynEndNameMismatch:  "End name does not match declaration",
		SynUnexpectedEOF:    "Unexpected end of file",
		EnvInfo:             "Environment information",
		EnvUnresolvedScope:  "Unresolved parent scope",
		EnvCycle:            "Cyclic field evaluation",
		EnvResolverError:    "Dynamic environment resolver failed",
		EnvAmbiguousLookup:  "Ambiguous lookup",
		EnvMissingUnit:      "Analysis unit not found",
		EnvUnresolvedName:   "Unresolved name",
		EnvDuplicateDecl:    "Duplicate declaration",
		EnvInvariant:        "Environment invariant violation",
		IOLoadFileError:     "Failed to load file",
		ProjInfo:            "Project information",
		ProjBadManifest:     "Invalid project manifest",
		ProjMissingSource:   "Missing source file",
		ProjSelfWith:        "Unit withs itself",
		ProjWithCycle:       "Circular with clauses",
		ProjDependencyBad:   "Dependency has errors",
		ObsInfo:             "Observability information",
		ObsTimings:          "Pipeline timings",
	}
)

func (c Code) ID() string {
	switch ic := int(c); {
	case ic >= 1000 && ic < 2000:
		return fmt.Sprintf("LEX%04d", ic)
	case ic >= 2000 && ic < 3000:
		return fmt.Sprintf("SYN%04d", ic)
	case ic >= 3000 && ic < 4000:
		return fmt.Sprintf("ENV%04d", ic)
	case ic >= 4000 && ic < 5000:
		return fmt.Sprintf("IO%04d", ic)
	case ic >= 5000 && ic < 6000:
		return fmt.Sprintf("PRJ%04d", ic)
	case ic >= 6000 && ic < 7000:
		return fmt.Sprintf("OBS%04d", ic)
	}
	return "E0000"
}

func (c Code) Title() string {
	desc, ok := codeDescription[c]
	if !ok {
		return codeDescription[UnknownCode]
	}
	return desc
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}
