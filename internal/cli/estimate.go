package cli

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"gendb/internal/metamodel"
	"gendb/internal/store"
)

func init() {
	estimate := &cobra.Command{
		Use:   "estimate",
		Short: "Probabilistic estimates over a generator's models",
	}

	dependence := &cobra.Command{
		Use:   "dependence <generator> <column0> <column1>",
		Short: "Probability that two columns are dependent",
		Args:  cobra.ExactArgs(3),
		Run:   runDependence,
	}

	mi := &cobra.Command{
		Use:   "mi <generator> <column0> <column1>",
		Short: "Mutual information of two columns",
		Args:  cobra.ExactArgs(3),
		Run:   runMI,
	}
	mi.Flags().IntP("samples", "n", 0, "Samples per model (default: backend-chosen)")

	typicality := &cobra.Command{
		Use:   "typicality <generator> (<column> | --row <rowid>)",
		Short: "Structural typicality of a column or a row",
		Args:  cobra.RangeArgs(1, 2),
		Run:   runTypicality,
	}
	typicality.Flags().Int64("row", 0, "Row id to evaluate instead of a column")

	probability := &cobra.Command{
		Use:   "probability <generator> <column> <value>",
		Short: "Probability of observing a value in a column",
		Args:  cobra.ExactArgs(3),
		Run:   runProbability,
	}

	similarity := &cobra.Command{
		Use:   "similarity <generator> <rowid> <target-rowid>",
		Short: "Similarity of two rows",
		Args:  cobra.ExactArgs(3),
		Run:   runSimilarity,
	}
	similarity.Flags().StringP("columns", "c", "", "Comma-separated columns to compare on (default: all)")

	predictive := &cobra.Command{
		Use:   "predictive <generator> <rowid> <column>",
		Short: "Predictive probability of a row's stored value",
		Args:  cobra.ExactArgs(3),
		Run:   runPredictive,
	}

	estimate.AddCommand(dependence, mi, typicality, probability, similarity, predictive)
	RootCmd.AddCommand(estimate)
}

// queryTarget opens the session and resolves the generator in one shot;
// every estimate subcommand starts the same way.
func queryTarget(cmd *cobra.Command, generator string) (*store.Session, int64, metamodel.Metamodel) {
	s, reg, err := openSession(cmd)
	if err != nil {
		exitErr("open db", err)
	}
	id, m, err := backendFor(cmd, s, reg, generator)
	if err != nil {
		s.Close()
		exitErr("estimate", err)
	}
	return s, id, m
}

func columnNo(cmd *cobra.Command, s *store.Session, id int64, name string) int {
	colNo, err := s.GeneratorColumnNo(cmd.Context(), id, name)
	if err != nil {
		exitErr("estimate", err)
	}
	return colNo
}

func parseRowID(arg string) int64 {
	rowID, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		exitErr("estimate", fmt.Errorf("row id %q: %w", arg, err))
	}
	return rowID
}

func printEstimate(kind string, generator string, value float64, extra map[string]any) {
	out := map[string]any{"estimate": kind, "generator": generator, "value": value}
	for k, v := range extra {
		out[k] = v
	}
	b, _ := json.Marshal(out)
	fmt.Println(string(b))
}

func runDependence(cmd *cobra.Command, args []string) {
	s, id, m := queryTarget(cmd, args[0])
	defer s.Close()

	v, err := m.ColumnDependenceProbability(cmd.Context(), s, id,
		columnNo(cmd, s, id, args[1]), columnNo(cmd, s, id, args[2]))
	if err != nil {
		exitErr("dependence", err)
	}
	printEstimate("dependence", args[0], v, map[string]any{"columns": args[1:3]})
}

func runMI(cmd *cobra.Command, args []string) {
	samples, _ := cmd.Flags().GetInt("samples")
	s, id, m := queryTarget(cmd, args[0])
	defer s.Close()

	v, err := m.ColumnMutualInformation(cmd.Context(), s, id,
		columnNo(cmd, s, id, args[1]), columnNo(cmd, s, id, args[2]), samples)
	if err != nil {
		exitErr("mi", err)
	}
	printEstimate("mi", args[0], v, map[string]any{"columns": args[1:3]})
}

func runTypicality(cmd *cobra.Command, args []string) {
	rowID, _ := cmd.Flags().GetInt64("row")
	s, id, m := queryTarget(cmd, args[0])
	defer s.Close()

	if rowID > 0 {
		v, err := m.RowTypicality(cmd.Context(), s, id, rowID)
		if err != nil {
			exitErr("typicality", err)
		}
		printEstimate("typicality", args[0], v, map[string]any{"row": rowID})
		return
	}
	if len(args) < 2 {
		exitErr("typicality", fmt.Errorf("a column name or --row is required"))
	}
	v, err := m.ColumnTypicality(cmd.Context(), s, id, columnNo(cmd, s, id, args[1]))
	if err != nil {
		exitErr("typicality", err)
	}
	printEstimate("typicality", args[0], v, map[string]any{"column": args[1]})
}

func runProbability(cmd *cobra.Command, args []string) {
	s, id, m := queryTarget(cmd, args[0])
	defer s.Close()

	v, err := m.ColumnValueProbability(cmd.Context(), s, id,
		columnNo(cmd, s, id, args[1]), args[2])
	if err != nil {
		exitErr("probability", err)
	}
	printEstimate("probability", args[0], v, map[string]any{
		"column": args[1],
		"of":     args[2],
	})
}

func runSimilarity(cmd *cobra.Command, args []string) {
	columnsSpec, _ := cmd.Flags().GetString("columns")
	s, id, m := queryTarget(cmd, args[0])
	defer s.Close()

	var colNos []int
	for _, name := range splitList(columnsSpec) {
		colNos = append(colNos, columnNo(cmd, s, id, name))
	}
	rowID, targetRowID := parseRowID(args[1]), parseRowID(args[2])
	v, err := m.RowSimilarity(cmd.Context(), s, id, rowID, targetRowID, colNos)
	if err != nil {
		exitErr("similarity", err)
	}
	printEstimate("similarity", args[0], v, map[string]any{
		"row":    rowID,
		"target": targetRowID,
	})
}

func runPredictive(cmd *cobra.Command, args []string) {
	s, id, m := queryTarget(cmd, args[0])
	defer s.Close()

	rowID := parseRowID(args[1])
	v, err := m.RowColumnPredictiveProbability(cmd.Context(), s, id,
		rowID, columnNo(cmd, s, id, args[2]))
	if err != nil {
		exitErr("predictive", err)
	}
	printEstimate("predictive", args[0], v, map[string]any{
		"row":    rowID,
		"column": args[2],
	})
}
