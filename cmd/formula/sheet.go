package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vogtb/go-formula/packages/workbook"
)

var sheetCmd = &cobra.Command{
	Use:   "sheet WORKBOOK.yaml [SHEET...]",
	Short: "Calculate a YAML workbook and print every cell",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSheet,
}

func runSheet(cmd *cobra.Command, args []string) error {
	s, err := newSession()
	if err != nil {
		return err
	}
	wb, loadErr := workbook.LoadFile(args[0], s.engine, workbook.WithLogger(s.log))
	if wb == nil {
		return loadErr
	}
	if loadErr != nil {
		s.log.Warnw("workbook loaded with errors", "path", args[0], "error", loadErr)
	}

	ctx := context.Background()
	if err := wb.Calculate(ctx); err != nil {
		return err
	}

	sheets := args[1:]
	if len(sheets) == 0 {
		sheets = wb.ListWorksheets()
	}
	out := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	for _, name := range sheets {
		cells, err := wb.Cells(name)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "[%s]\n", name)
		for _, ref := range cells {
			address := "'" + strings.ReplaceAll(name, "'", "''") + "'!" + ref
			v, err := wb.GetContext(ctx, address)
			if err != nil {
				return err
			}
			source, err := wb.Formula(address)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s\t%s\t%s\n", ref, v, source)
		}
	}
	if err := out.Flush(); err != nil {
		return err
	}
	return s.close(cmd)
}
