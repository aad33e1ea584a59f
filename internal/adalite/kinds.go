package adalite

import "envkit/internal/tree"

// Kinds lists the node kinds of the grammar. Abstract kinds group variants
// for kind filters and hook inheritance.
type Kinds struct {
	Set *tree.KindSet

	Node            tree.Kind // abstract
	CompilationUnit tree.Kind
	Subunit         tree.Kind
	WithClause      tree.Kind
	UseClause       tree.Kind

	BasicDecl       tree.Kind // abstract
	PackageDecl     tree.Kind
	PackageBody     tree.Kind
	PackageBodyStub tree.Kind
	SubpBase        tree.Kind // abstract
	SubpDecl        tree.Kind
	SubpBody        tree.Kind
	SubpStub        tree.Kind
	ObjectDecl      tree.Kind
	ParamSpec       tree.Kind

	DefiningName tree.Kind
	DeclPart     tree.Kind
	PrivatePart  tree.Kind
	Stmts        tree.Kind
	TypeRef      tree.Kind

	Stmt       tree.Kind // abstract
	NullStmt   tree.Kind
	AssignStmt tree.Kind
	CallStmt   tree.Kind
	ReturnStmt tree.Kind

	Expr          tree.Kind // abstract
	Name          tree.Kind // abstract
	Identifier    tree.Kind
	DottedName    tree.Kind
	IntLiteral    tree.Kind
	StringLiteral tree.Kind
	CallExpr      tree.Kind
	BinOp         tree.Kind
	ParamAssoc    tree.Kind
	ErrorExpr     tree.Kind
}

// NewKinds declares the adalite kind hierarchy.
func NewKinds() *Kinds {
	ks := tree.NewKindSet()
	k := &Kinds{Set: ks}
	k.Node = ks.DefineAbstract("ada_node", tree.KindInvalid)
	k.CompilationUnit = ks.Define("compilation_unit", k.Node)
	k.Subunit = ks.Define("subunit", k.Node)
	k.WithClause = ks.Define("with_clause", k.Node)
	k.UseClause = ks.Define("use_clause", k.Node)

	k.BasicDecl = ks.DefineAbstract("basic_decl", k.Node)
	k.PackageDecl = ks.Define("package_decl", k.BasicDecl)
	k.PackageBody = ks.Define("package_body", k.BasicDecl)
	k.PackageBodyStub = ks.Define("package_body_stub", k.BasicDecl)
	k.SubpBase = ks.DefineAbstract("subp_base", k.BasicDecl)
	k.SubpDecl = ks.Define("subp_decl", k.SubpBase)
	k.SubpBody = ks.Define("subp_body", k.SubpBase)
	k.SubpStub = ks.Define("subp_body_stub", k.SubpBase)
	k.ObjectDecl = ks.Define("object_decl", k.BasicDecl)
	k.ParamSpec = ks.Define("param_spec", k.BasicDecl)

	k.DefiningName = ks.Define("defining_name", k.Node)
	k.DeclPart = ks.Define("decl_part", k.Node)
	k.PrivatePart = ks.Define("private_part", k.Node)
	k.Stmts = ks.Define("handled_stmts", k.Node)
	k.TypeRef = ks.Define("type_ref", k.Node)

	k.Stmt = ks.DefineAbstract("stmt", k.Node)
	k.NullStmt = ks.Define("null_stmt", k.Stmt)
	k.AssignStmt = ks.Define("assign_stmt", k.Stmt)
	k.CallStmt = ks.Define("call_stmt", k.Stmt)
	k.ReturnStmt = ks.Define("return_stmt", k.Stmt)

	k.Expr = ks.DefineAbstract("expr", k.Node)
	k.Name = ks.DefineAbstract("name", k.Expr)
	k.Identifier = ks.Define("identifier", k.Name)
	k.DottedName = ks.Define("dotted_name", k.Name)
	k.IntLiteral = ks.Define("int_literal", k.Expr)
	k.StringLiteral = ks.Define("string_literal", k.Expr)
	k.CallExpr = ks.Define("call_expr", k.Expr)
	k.BinOp = ks.Define("bin_op", k.Expr)
	k.ParamAssoc = ks.Define("param_assoc", k.Node)
	k.ErrorExpr = ks.Define("error_expr", k.Expr)
	return k
}
