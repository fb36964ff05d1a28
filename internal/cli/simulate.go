package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"gendb/internal/metamodel"
)

func init() {
	cmd := &cobra.Command{
		Use:   "simulate <generator>",
		Short: "Draw joint samples of columns from a generator",
		Args:  cobra.ExactArgs(1),
		Run:   runSimulate,
	}

	cmd.Flags().StringP("columns", "c", "", "Comma-separated columns to simulate (required)")
	cmd.Flags().IntP("count", "n", 1, "Number of samples")
	cmd.Flags().StringP("given", "g", "", "Comma-separated column=value constraints")

	cmd.MarkFlagRequired("columns")

	RootCmd.AddCommand(cmd)
}

func runSimulate(cmd *cobra.Command, args []string) {
	columnsSpec, _ := cmd.Flags().GetString("columns")
	n, _ := cmd.Flags().GetInt("count")
	givenSpec, _ := cmd.Flags().GetString("given")

	names := splitList(columnsSpec)
	if len(names) == 0 {
		exitErr("simulate", fmt.Errorf("--columns is required"))
	}

	s, id, m := queryTarget(cmd, args[0])
	defer s.Close()

	colNos := make([]int, len(names))
	for i, name := range names {
		colNos[i] = columnNo(cmd, s, id, name)
	}

	var constraints []metamodel.Constraint
	for _, part := range splitList(givenSpec) {
		name, value, ok := strings.Cut(part, "=")
		if !ok {
			exitErr("simulate", fmt.Errorf("constraint %q is not a column=value pair", part))
		}
		constraints = append(constraints, metamodel.Constraint{
			ColNo: columnNo(cmd, s, id, strings.TrimSpace(name)),
			Value: strings.TrimSpace(value),
		})
	}

	samples, err := m.Simulate(cmd.Context(), s, id, constraints, colNos, n)
	if err != nil {
		exitErr("simulate", err)
	}

	rows := make([]map[string]any, len(samples))
	for i, sample := range samples {
		row := make(map[string]any, len(names))
		for j, name := range names {
			row[name] = sample[j]
		}
		rows[i] = row
	}
	b, _ := json.Marshal(map[string]any{
		"generator": args[0],
		"samples":   rows,
	})
	fmt.Println(string(b))
}
