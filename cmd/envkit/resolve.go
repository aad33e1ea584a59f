package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"envkit/internal/adalite"
	"envkit/internal/diagfmt"
	"envkit/internal/source"
	"envkit/internal/tree"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve [flags] <file.adb:line:col>",
	Short: "Show the declaration a name refers to",
	Args:  cobra.ExactArgs(1),
	RunE:  runResolve,
}

func init() {
	resolveCmd.Flags().String("format", "pretty", "output format (pretty|json)")
}

type resolution struct {
	Name      string               `json:"name"`
	Reference diagfmt.LocationJSON `json:"reference"`
	Found     bool                 `json:"found"`
	Kind      string               `json:"kind,omitempty"`
	Qualified string               `json:"qualified,omitempty"`
	Decl      diagfmt.LocationJSON `json:"decl,omitzero"`
}

func runResolve(cmd *cobra.Command, args []string) error {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	path, at, err := parseLocation(args[0])
	if err != nil {
		return err
	}
	ws, err := openWorkspace(cmd, []string{path})
	if err != nil {
		return err
	}
	defer ws.cleanup()

	ctx := cmd.Context()
	e := ws.engine
	u, err := e.Load(ctx, filepath.Base(path))
	if err != nil {
		return err
	}
	ref := innermostName(ws.lang, u.Tree, at)
	if !ref.IsValid() {
		return fmt.Errorf("%s: no name at %s", path, at)
	}
	n := e.Node(ref)
	res := resolution{Name: n.Text, Reference: location(ws, n.Span)}
	got, err := e.Eval(ctx, ref, adalite.FieldReferencedDecl)
	if err != nil && !errors.Is(err, adalite.ErrUnresolved) {
		return err
	}
	if def, _ := got.(tree.NodeID); def.IsValid() {
		res.Found = true
		defNode := e.Node(def)
		res.Decl = location(ws, defNode.Span)
		if decl := ws.lang.DeclOf(e, def); decl != nil {
			res.Kind = e.Grammar().Kinds.Name(decl.Kind)
			res.Qualified = e.QualifiedName(ctx, decl.ID)
		}
	}

	out := cmd.OutOrStdout()
	if strings.EqualFold(format, "json") {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	name := color.New(color.Bold)
	if ws.color {
		name.EnableColor()
	} else {
		name.DisableColor()
	}
	if !res.Found {
		fmt.Fprintf(out, "%s at %s: no visible declaration\n", name.Sprint(res.Name), formatLocation(res.Reference))
		return nil
	}
	fmt.Fprintf(out, "%s at %s -> %s %s at %s\n", name.Sprint(res.Name), formatLocation(res.Reference),
		res.Kind, res.Qualified, formatLocation(res.Decl))
	return nil
}

// parseLocation splits "path:line:col" into its parts.
func parseLocation(arg string) (string, source.Point, error) {
	rest, colStr, ok := cutLast(arg)
	if !ok {
		return "", source.Point{}, fmt.Errorf("%q: expected <file>:<line>:<col>", arg)
	}
	path, lineStr, ok := cutLast(rest)
	if !ok || path == "" {
		return "", source.Point{}, fmt.Errorf("%q: expected <file>:<line>:<col>", arg)
	}
	line, err := strconv.ParseUint(lineStr, 10, 32)
	if err != nil || line == 0 {
		return "", source.Point{}, fmt.Errorf("%q: invalid line %q", arg, lineStr)
	}
	col, err := strconv.ParseUint(colStr, 10, 32)
	if err != nil || col == 0 {
		return "", source.Point{}, fmt.Errorf("%q: invalid column %q", arg, colStr)
	}
	return path, source.Point{Line: uint32(line), Column: uint32(col)}, nil
}

func cutLast(s string) (before, after string, ok bool) {
	i := strings.LastIndexByte(s, ':')
	if i < 0 {
		return s, "", false
	}
	return s[:i], s[i+1:], true
}

// innermostName returns the deepest name node whose range holds at.
func innermostName(lang *adalite.Language, t *tree.Tree, at source.Point) tree.NodeID {
	found := tree.NoNodeID
	t.Walk(t.Root, func(n *tree.Node) bool {
		if n.Range.Contains(at) {
			if lang.Kinds.Set.IsA(n.Kind, lang.Kinds.Name) {
				found = n.ID
			}
			return true
		}
		// ranges of siblings do not nest; only descend into holders of at
		return n.ID == t.Root
	})
	return found
}

func location(ws *workspace, span source.Span) diagfmt.LocationJSON {
	r := ws.engine.Files().Resolve(span)
	loc := diagfmt.LocationJSON{
		StartByte: span.Start, EndByte: span.End,
		StartLine: r.Start.Line, StartCol: r.Start.Column,
		EndLine: r.End.Line, EndCol: r.End.Column,
	}
	if f := ws.engine.Files().Get(span.File); f != nil {
		loc.File = f.Path
	}
	return loc
}

func formatLocation(loc diagfmt.LocationJSON) string {
	return fmt.Sprintf("%s:%d:%d", loc.File, loc.StartLine, loc.StartCol)
}
