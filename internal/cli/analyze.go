package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"gendb/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "analyze <generator>",
		Short: "Run inference on a generator's models",
		Long:  "Run checkpointed inference under an iteration budget, a wall-clock budget, or both. At least one budget is required.",
		Args:  cobra.ExactArgs(1),
		Run:   runAnalyze,
	}

	cmd.Flags().IntP("iterations", "i", 0, "Iteration budget")
	cmd.Flags().Duration("max-duration", 0, "Wall-clock budget (e.g. 30s, 5m)")
	cmd.Flags().Int("checkpoint-every", 0, "Iterations between persisted checkpoints")
	cmd.Flags().String("models", "", "Comma-separated model numbers (default: all)")

	RootCmd.AddCommand(cmd)
}

func runAnalyze(cmd *cobra.Command, args []string) {
	iterations, _ := cmd.Flags().GetInt("iterations")
	maxDuration, _ := cmd.Flags().GetDuration("max-duration")
	checkpointEvery, _ := cmd.Flags().GetInt("checkpoint-every")
	modelsSpec, _ := cmd.Flags().GetString("models")

	modelNos, err := parseModelNumbers(modelsSpec)
	if err != nil {
		exitErr("analyze", err)
	}

	s, reg, err := openSession(cmd)
	if err != nil {
		exitErr("open db", err)
	}
	defer s.Close()

	id, m, err := backendFor(cmd, s, reg, args[0])
	if err != nil {
		exitErr("analyze", err)
	}
	start := time.Now()
	err = m.AnalyzeModels(cmd.Context(), s, id, model.AnalyzeOptions{
		Models:          modelNos,
		Iterations:      iterations,
		MaxDuration:     maxDuration,
		CheckpointEvery: checkpointEvery,
	})
	if err != nil {
		exitErr("analyze", err)
	}

	b, _ := json.Marshal(map[string]any{
		"generator": args[0],
		"elapsed":   time.Since(start).String(),
	})
	fmt.Println(string(b))
}
