package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List generators",
		Args:  cobra.NoArgs,
		Run:   runList,
	}
	RootCmd.AddCommand(cmd)
}

func runList(cmd *cobra.Command, args []string) {
	s, _, err := openSession(cmd)
	if err != nil {
		exitErr("open db", err)
	}
	defer s.Close()

	gens, err := s.ListGenerators(cmd.Context())
	if err != nil {
		exitErr("list", err)
	}
	b, _ := json.Marshal(gens)
	fmt.Println(string(b))
}
