package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"gendb/internal/model"
)

func init() {
	initCmd := &cobra.Command{
		Use:   "init-models <generator>",
		Short: "Initialize fresh models for a generator",
		Run:   runInitModels,
		Args:  cobra.ExactArgs(1),
	}
	initCmd.Flags().IntP("models", "n", 1, "Number of models to initialize")
	initCmd.Flags().String("numbers", "", "Explicit comma-separated model numbers")
	initCmd.Flags().String("kernels", "", "Comma-separated kernel names for later analysis")
	initCmd.Flags().String("initialization", "", "Column partition initialization mode")
	initCmd.Flags().String("row-initialization", "", "Row clustering initialization mode")
	RootCmd.AddCommand(initCmd)

	dropCmd := &cobra.Command{
		Use:   "drop-models <generator>",
		Short: "Drop models from a generator",
		Long:  "Drop the given models from a generator, or all models when --numbers is omitted.",
		Run:   runDropModels,
		Args:  cobra.ExactArgs(1),
	}
	dropCmd.Flags().String("numbers", "", "Explicit comma-separated model numbers (default: all)")
	RootCmd.AddCommand(dropCmd)
}

// parseModelNumbers parses a comma-separated model number list; empty means
// nil.
func parseModelNumbers(spec string) ([]int, error) {
	if spec == "" {
		return nil, nil
	}
	var nos []int
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		no, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("model number %q: %w", part, err)
		}
		nos = append(nos, no)
	}
	return nos, nil
}

func splitList(spec string) []string {
	var out []string
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func runInitModels(cmd *cobra.Command, args []string) {
	count, _ := cmd.Flags().GetInt("models")
	numbersSpec, _ := cmd.Flags().GetString("numbers")
	kernelsSpec, _ := cmd.Flags().GetString("kernels")
	initialization, _ := cmd.Flags().GetString("initialization")
	rowInitialization, _ := cmd.Flags().GetString("row-initialization")

	modelNos, err := parseModelNumbers(numbersSpec)
	if err != nil {
		exitErr("init-models", err)
	}
	if modelNos == nil {
		for no := 0; no < count; no++ {
			modelNos = append(modelNos, no)
		}
	}

	var cfg *model.Config
	if kernelsSpec != "" || initialization != "" || rowInitialization != "" {
		c := model.DefaultConfig()
		if kernelsSpec != "" {
			c.Kernels = splitList(kernelsSpec)
		}
		if initialization != "" {
			c.Initialization = initialization
		}
		if rowInitialization != "" {
			c.RowInitialization = rowInitialization
		}
		cfg = &c
	}

	s, reg, err := openSession(cmd)
	if err != nil {
		exitErr("open db", err)
	}
	defer s.Close()

	id, m, err := backendFor(cmd, s, reg, args[0])
	if err != nil {
		exitErr("init-models", err)
	}
	if err := m.InitializeModels(cmd.Context(), s, id, modelNos, cfg); err != nil {
		exitErr("init-models", err)
	}

	b, _ := json.Marshal(map[string]any{
		"generator": args[0],
		"models":    modelNos,
	})
	fmt.Println(string(b))
}

func runDropModels(cmd *cobra.Command, args []string) {
	numbersSpec, _ := cmd.Flags().GetString("numbers")
	modelNos, err := parseModelNumbers(numbersSpec)
	if err != nil {
		exitErr("drop-models", err)
	}

	s, reg, err := openSession(cmd)
	if err != nil {
		exitErr("open db", err)
	}
	defer s.Close()

	id, m, err := backendFor(cmd, s, reg, args[0])
	if err != nil {
		exitErr("drop-models", err)
	}
	if err := m.DropModels(cmd.Context(), s, id, modelNos); err != nil {
		exitErr("drop-models", err)
	}

	out := map[string]any{"generator": args[0]}
	if modelNos == nil {
		out["dropped"] = "all"
	} else {
		out["dropped"] = modelNos
	}
	b, _ := json.Marshal(out)
	fmt.Println(string(b))
}
