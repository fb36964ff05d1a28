package cli

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "insert <generator>",
		Short: "Insert rows into a generator's table and its models",
		Long:  "Insert CSV rows (header required) into the generator's backing table and merge them into every model. Reads stdin unless --file is given. Empty fields become nulls.",
		Args:  cobra.ExactArgs(1),
		Run:   runInsert,
	}

	cmd.Flags().StringP("file", "f", "", "CSV file (default: stdin)")

	RootCmd.AddCommand(cmd)
}

func runInsert(cmd *cobra.Command, args []string) {
	file, _ := cmd.Flags().GetString("file")

	in := io.Reader(os.Stdin)
	if file != "" {
		f, err := os.Open(file)
		if err != nil {
			exitErr("insert", err)
		}
		defer f.Close()
		in = f
	}
	header, records, err := readCSV(in)
	if err != nil {
		exitErr("insert", err)
	}

	s, reg, err := openSession(cmd)
	if err != nil {
		exitErr("open db", err)
	}
	defer s.Close()

	id, m, err := backendFor(cmd, s, reg, args[0])
	if err != nil {
		exitErr("insert", err)
	}
	table, err := s.GeneratorTable(cmd.Context(), id)
	if err != nil {
		exitErr("insert", err)
	}
	tableCols, err := s.TableColumnNames(cmd.Context(), table)
	if err != nil {
		exitErr("insert", err)
	}

	rows, err := orderRows(header, records, tableCols)
	if err != nil {
		exitErr("insert", err)
	}
	if err := m.InsertMany(cmd.Context(), s, id, rows); err != nil {
		exitErr("insert", err)
	}

	b, _ := json.Marshal(map[string]any{
		"generator": args[0],
		"inserted":  len(rows),
	})
	fmt.Println(string(b))
}

func readCSV(in io.Reader) ([]string, [][]string, error) {
	r := csv.NewReader(in)
	header, err := r.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("read csv header: %w", err)
	}
	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read csv rows: %w", err)
	}
	return header, records, nil
}

// orderRows reorders CSV records into full table rows in table column order,
// matching header names case-insensitively.
func orderRows(header []string, records [][]string, tableCols []string) ([][]any, error) {
	pos := make(map[string]int, len(header))
	for i, name := range header {
		pos[strings.ToLower(strings.TrimSpace(name))] = i
	}
	idx := make([]int, len(tableCols))
	for i, name := range tableCols {
		p, ok := pos[strings.ToLower(name)]
		if !ok {
			return nil, fmt.Errorf("csv has no column %q", name)
		}
		idx[i] = p
	}

	rows := make([][]any, len(records))
	for r, record := range records {
		row := make([]any, len(tableCols))
		for i, p := range idx {
			if p >= len(record) || record[p] == "" {
				continue
			}
			row[i] = record[p]
		}
		rows[r] = row
	}
	return rows, nil
}
