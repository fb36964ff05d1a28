package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "drop <generator>",
		Short: "Drop a generator and all its models",
		Args:  cobra.ExactArgs(1),
		Run:   runDrop,
	}
	RootCmd.AddCommand(cmd)
}

func runDrop(cmd *cobra.Command, args []string) {
	s, reg, err := openSession(cmd)
	if err != nil {
		exitErr("open db", err)
	}
	defer s.Close()

	id, m, err := backendFor(cmd, s, reg, args[0])
	if err != nil {
		exitErr("drop", err)
	}
	if err := m.DropGenerator(cmd.Context(), s, id); err != nil {
		exitErr("drop", err)
	}

	b, _ := json.Marshal(map[string]any{"dropped": args[0]})
	fmt.Println(string(b))
}
