package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vogtb/go-formula/packages/formula"
	"github.com/vogtb/go-formula/packages/workbook"
)

var evalWorkbook string

var evalCmd = &cobra.Command{
	Use:   "eval FORMULA...",
	Short: "Evaluate formulas, optionally against a workbook",
	Long: `Evaluate each argument as a formula and print its value.

References need a workbook (--workbook); without one every reference reads as 0.
Unqualified references in a workbook belong to its first sheet.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runEval,
}

func init() {
	evalCmd.Flags().StringVarP(&evalWorkbook, "workbook", "w", "", "YAML workbook to resolve references against")
}

func runEval(cmd *cobra.Command, args []string) error {
	s, err := newSession()
	if err != nil {
		return err
	}

	var resolver formula.Resolver
	sheet := ""
	if evalWorkbook != "" {
		wb, err := workbook.LoadFile(evalWorkbook, s.engine, workbook.WithLogger(s.log))
		if err != nil {
			s.log.Warnw("workbook loaded with errors", "path", evalWorkbook, "error", err)
		}
		if wb == nil {
			return err
		}
		resolver = cellReader{wb}
		if names := wb.ListWorksheets(); len(names) > 0 {
			sheet = names[0]
		}
	}

	ctx := formula.WithSheet(context.Background(), sheet)
	for _, text := range args {
		v := s.engine.Evaluate(ctx, text, resolver)
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", strings.TrimSpace(text), v)
	}
	return s.close(cmd)
}

// cellReader resolves references by reading workbook cells.
type cellReader struct {
	wb *workbook.Workbook
}

func (r cellReader) ResolveCell(ctx context.Context, ref string) (formula.Value, error) {
	return r.wb.GetContext(ctx, ref)
}
