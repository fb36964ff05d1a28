package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "infer <generator> <rowid> <column>",
		Short: "Impute a row's value for a column",
		Long:  "Impute the column at a row from the row's other observed values, with a confidence score.",
		Args:  cobra.ExactArgs(3),
		Run:   runInfer,
	}

	cmd.Flags().IntP("samples", "n", 0, "Imputation samples (default: backend-chosen)")

	RootCmd.AddCommand(cmd)
}

func runInfer(cmd *cobra.Command, args []string) {
	samples, _ := cmd.Flags().GetInt("samples")

	s, id, m := queryTarget(cmd, args[0])
	defer s.Close()

	rowID := parseRowID(args[1])
	value, confidence, err := m.InferConfidence(cmd.Context(), s, id,
		columnNo(cmd, s, id, args[2]), rowID, samples)
	if err != nil {
		exitErr("infer", err)
	}

	b, _ := json.Marshal(map[string]any{
		"generator":  args[0],
		"row":        rowID,
		"column":     args[2],
		"value":      value,
		"confidence": confidence,
	})
	fmt.Println(string(b))
}
