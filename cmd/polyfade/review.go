package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/algotradingios/Trading-Polymarket-Framework/internal/review"
)

func (a *app) reviewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "review [cases.yaml]",
		Short: "Run the H1 manual-review checklist over a YAML case file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.cfg.Review.CasesPath
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				return errors.New("no case file given and review.cases_path is empty")
			}

			cases, fileMinEdge, err := review.LoadCases(path)
			if err != nil {
				return err
			}
			minEdge := a.cfg.Review.MinEdge
			if fileMinEdge > 0 {
				minEdge = fileMinEdge
			}
			writeReview(cmd.OutOrStdout(), review.NewChecklist(minEdge), cases)
			return nil
		},
	}
}

func writeReview(w io.Writer, cl review.Checklist, cases []review.Case) {
	passed := 0
	for _, c := range cases {
		d := cl.Evaluate(c)
		name := c.MarketSlug
		if name == "" {
			name = c.Question
		}

		verdict := "REJECT"
		if d.OK {
			verdict = "PASS"
			passed++
		}
		line := fmt.Sprintf("[%s] %-50s %s", verdict, name, d.Reason)
		if d.PModel != nil {
			line += fmt.Sprintf(" p_model=%.3f p_market=%.3f edge=%.3f", *d.PModel, c.PMarket, *d.Edge)
		}
		fmt.Fprintln(w, line)
	}
	fmt.Fprintf(w, "\n%d of %d cases pass (min edge %.2f)\n", passed, len(cases), cl.MinEdge)
}
