package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"gendb/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "create <generator>",
		Short: "Create a generator over a table",
		Long:  "Create a generator over a table. Columns are given as name:stattype pairs, or guessed from the data with --guess (pairs then act as overrides).",
		Args:  cobra.ExactArgs(1),
		Run:   runCreate,
	}

	cmd.Flags().StringP("table", "t", "", "Backing table (required)")
	cmd.Flags().StringP("columns", "c", "", "Comma-separated name:stattype pairs")
	cmd.Flags().BoolP("guess", "g", false, "Guess statistical types from the data")

	cmd.MarkFlagRequired("table")

	RootCmd.AddCommand(cmd)
}

func parseColumns(spec string) ([]model.Column, error) {
	if spec == "" {
		return nil, nil
	}
	var cols []model.Column
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, st, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("column %q is not a name:stattype pair", part)
		}
		cols = append(cols, model.Column{
			Name:     strings.TrimSpace(name),
			StatType: model.StatType(strings.ToLower(strings.TrimSpace(st))),
		})
	}
	return cols, nil
}

func runCreate(cmd *cobra.Command, args []string) {
	table, _ := cmd.Flags().GetString("table")
	spec, _ := cmd.Flags().GetString("columns")
	guess, _ := cmd.Flags().GetBool("guess")

	columns, err := parseColumns(spec)
	if err != nil {
		exitErr("create", err)
	}
	if !guess && len(columns) == 0 {
		exitErr("create", fmt.Errorf("--columns is required unless --guess is set"))
	}

	s, reg, err := openSession(cmd)
	if err != nil {
		exitErr("open db", err)
	}
	defer s.Close()

	m, err := reg.Lookup("crosscat")
	if err != nil {
		exitErr("create", err)
	}
	id, err := m.CreateGenerator(cmd.Context(), s, args[0], table, columns, guess)
	if err != nil {
		exitErr("create", err)
	}

	modeled, err := s.GeneratorColumns(cmd.Context(), id)
	if err != nil {
		exitErr("create", err)
	}
	b, _ := json.Marshal(map[string]any{
		"id":        id,
		"generator": args[0],
		"table":     table,
		"columns":   modeled,
	})
	fmt.Println(string(b))
}
