package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "rename <generator> <old-column> <new-column>",
		Short: "Rename a modeled column",
		Args:  cobra.ExactArgs(3),
		Run:   runRename,
	}
	RootCmd.AddCommand(cmd)
}

func runRename(cmd *cobra.Command, args []string) {
	s, reg, err := openSession(cmd)
	if err != nil {
		exitErr("open db", err)
	}
	defer s.Close()

	id, m, err := backendFor(cmd, s, reg, args[0])
	if err != nil {
		exitErr("rename", err)
	}
	if err := m.RenameColumn(cmd.Context(), s, id, args[1], args[2]); err != nil {
		exitErr("rename", err)
	}

	b, _ := json.Marshal(map[string]any{
		"generator": args[0],
		"renamed":   args[1],
		"to":        args[2],
	})
	fmt.Println(string(b))
}
