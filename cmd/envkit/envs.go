package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"github.com/vmihailenco/msgpack/v5"

	"envkit/internal/engine"
)

var envsCmd = &cobra.Command{
	Use:   "envs [flags] [path...]",
	Short: "Dump the lexical environments of the loaded units",
	Long: `Load units and print their environment graph.

The table format lists one row per environment. The json and msgpack formats
carry every association as well.`,
	RunE: runEnvs,
}

func init() {
	envsCmd.Flags().String("format", "table", "output format (table|json|msgpack)")
	envsCmd.Flags().StringP("output", "o", "", "write to file instead of stdout")
	envsCmd.Flags().Bool("symbols", false, "list symbols in the table format")
}

func runEnvs(cmd *cobra.Command, args []string) error {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	format = strings.ToLower(format)
	switch format {
	case "table", "json", "msgpack":
	default:
		return fmt.Errorf("unsupported format %q (must be table, json or msgpack)", format)
	}
	outPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return fmt.Errorf("failed to get output flag: %w", err)
	}
	withSymbols, err := cmd.Flags().GetBool("symbols")
	if err != nil {
		return fmt.Errorf("failed to get symbols flag: %w", err)
	}

	ws, err := openWorkspace(cmd, args)
	if err != nil {
		return err
	}
	defer ws.cleanup()

	ctx := cmd.Context()
	if len(ws.units) > 0 {
		err = ws.engine.LoadAll(ctx, ws.units)
	} else {
		err = ws.engine.LoadProvided(ctx)
	}
	if err != nil {
		return err
	}
	snap := ws.engine.Snapshot(ctx)

	var out io.Writer = cmd.OutOrStdout()
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	case "msgpack":
		enc := msgpack.NewEncoder(out)
		return enc.Encode(&snap)
	default:
		_, err := fmt.Fprintln(out, renderEnvTable(snap, withSymbols, ws.color && outPath == ""))
		return err
	}
}

func renderEnvTable(snap engine.Snapshot, withSymbols, colored bool) string {
	t := table.New().Border(lipgloss.NormalBorder()).
		Headers("id", "unit", "owner", "name", "parent", "symbols")
	if colored {
		header := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
		dim := lipgloss.NewStyle().Faint(true)
		t = t.StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return header
			case col == 0:
				return dim
			}
			return lipgloss.NewStyle()
		})
	}
	for _, env := range snap.Envs {
		t.Row(
			strconv.FormatUint(uint64(env.ID), 10),
			env.Unit,
			env.OwnerKind,
			env.Name,
			parentLabel(env),
			symbolsLabel(env, withSymbols),
		)
	}
	return t.Render()
}

func parentLabel(env engine.EnvView) string {
	switch {
	case env.ParentName != "" && env.Unresolved:
		return env.ParentName + " (unresolved)"
	case env.ParentName != "":
		return fmt.Sprintf("%s (#%d)", env.ParentName, env.Parent)
	case env.Parent != 0:
		return "#" + strconv.FormatUint(uint64(env.Parent), 10)
	}
	return "-"
}

func symbolsLabel(env engine.EnvView, list bool) string {
	if !list {
		return strconv.Itoa(len(env.Symbols))
	}
	names := make([]string, 0, len(env.Symbols))
	for _, s := range env.Symbols {
		names = append(names, s.Name)
	}
	return strings.Join(names, " ")
}
