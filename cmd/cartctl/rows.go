package main

import (
	"fmt"
	"os"

	"github.com/deppfellow/cartpage/internal/lib/utils"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newRowsCmd(c *cli) *cobra.Command {
	var (
		pagePath string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "rows",
		Short: "List the cart rows of a page",
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := os.Open(pagePath)
			if err != nil {
				return errors.Wrap(err, "could not open page")
			}
			defer f.Close()

			_, ctrl, err := c.app.OpenPage(cmd.Context(), f, nil)
			if err != nil {
				return err
			}

			rows := ctrl.Rows()
			out := cmd.OutOrStdout()
			if asJSON {
				return utils.PrintJSON(out, rows)
			}

			for _, r := range rows {
				qty := r.Text
				if r.Known {
					qty = fmt.Sprint(r.Quantity)
				}
				fmt.Fprintf(out, "%s\t%s\n", r.ItemID, qty)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&pagePath, "page", "", "path of the saved cart page")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print rows as JSON")
	_ = cmd.MarkFlagRequired("page")

	return cmd
}
