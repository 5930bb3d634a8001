package main

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/deppfellow/cartpage/internal/cartapi"
	"github.com/deppfellow/cartpage/internal/dom"
	"github.com/deppfellow/cartpage/internal/lib/utils"
	"github.com/deppfellow/cartpage/internal/page"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/net/html"
)

// settledClick is the printable form of a page.Result.
type settledClick struct {
	ItemID     string `json:"item_id"`
	Action     string `json:"action"`
	Seq        uint64 `json:"seq"`
	Outcome    string `json:"outcome"`
	Quantity   int    `json:"quantity,omitempty"`
	Error      string `json:"error,omitempty"`
	Message    string `json:"message,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

func newSettledClick(r page.Result) settledClick {
	s := settledClick{
		ItemID:     r.ItemID,
		Action:     string(r.Action),
		Seq:        r.Seq,
		Outcome:    string(r.Outcome),
		Quantity:   r.Quantity,
		DurationMS: r.Duration.Milliseconds(),
	}
	if r.Err != nil {
		s.Error = r.Err.Error()
		s.Message = page.FailureMessage(r.Err)
	}
	return s
}

func newClickCmd(c *cli) *cobra.Command {
	var (
		pagePath string
		pid      string
		action   string
		times    int
		outPath  string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "click",
		Short: "Click a plus/minus control of a page and write the patched page",
		RunE: func(cmd *cobra.Command, _ []string) error {
			act, err := cartapi.ParseAction(action)
			if err != nil {
				return err
			}
			if times < 1 {
				return errors.Errorf("--times must be at least 1, got %d", times)
			}

			f, err := os.Open(pagePath)
			if err != nil {
				return errors.Wrap(err, "could not open page")
			}
			defer f.Close()

			var (
				mu      sync.Mutex
				settled []settledClick
			)
			doc, ctrl, err := c.app.OpenPage(cmd.Context(), f, func(r page.Result) {
				mu.Lock()
				settled = append(settled, newSettledClick(r))
				mu.Unlock()
			})
			if err != nil {
				return err
			}

			target := findControl(doc, act, pid)
			if target == nil {
				return errors.Errorf("no %s control for item %q", act, pid)
			}

			for i := 0; i < times; i++ {
				err := ctrl.Click(target)
				if errors.Is(err, page.ErrRowRemoved) {
					c.app.Logger.Info().Int("clicks", i).Msg("row removed, remaining clicks skipped")
					break
				}
				if err != nil {
					ctrl.Wait()
					return err
				}
			}
			ctrl.Wait()

			out := cmd.OutOrStdout()
			if err := printSettled(out, settled, asJSON); err != nil {
				return err
			}

			if outPath == "" {
				return nil
			}
			return writePage(doc, outPath)
		},
	}

	cmd.Flags().StringVar(&pagePath, "page", "", "path of the saved cart page")
	cmd.Flags().StringVar(&pid, "pid", "", "item id of the row to click")
	cmd.Flags().StringVar(&action, "action", "plus", "control to click: plus or minus")
	cmd.Flags().IntVar(&times, "times", 1, "number of rapid clicks")
	cmd.Flags().StringVar(&outPath, "out", "", "write the patched page to this path")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print settled clicks as JSON")
	_ = cmd.MarkFlagRequired("page")
	_ = cmd.MarkFlagRequired("pid")

	return cmd
}

func findControl(doc *dom.Document, act cartapi.Action, pid string) *html.Node {
	class := page.PlusClass
	if act == cartapi.ActionMinus {
		class = page.MinusClass
	}

	var found *html.Node
	doc.View(func(root *html.Node) {
		for _, n := range dom.FindByClass(root, class) {
			if dom.Attr(n, page.ItemAttr) == pid {
				found = n
				return
			}
		}
	})
	return found
}

func printSettled(w io.Writer, settled []settledClick, asJSON bool) error {
	if asJSON {
		return utils.PrintJSON(w, settled)
	}

	for _, s := range settled {
		switch {
		case s.Error != "":
			fmt.Fprintf(w, "#%d %s %s: %s (%s)\n", s.Seq, s.Action, s.Outcome, s.Message, s.Error)
		case s.Outcome == string(page.OutcomeRemoved):
			fmt.Fprintf(w, "#%d %s %s\n", s.Seq, s.Action, s.Outcome)
		default:
			fmt.Fprintf(w, "#%d %s %s quantity=%d\n", s.Seq, s.Action, s.Outcome, s.Quantity)
		}
	}
	return nil
}

func writePage(doc *dom.Document, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "could not create output page")
	}

	if err := doc.Render(f); err != nil {
		f.Close()
		return errors.Wrap(err, "could not render page")
	}
	return errors.Wrap(f.Close(), "could not write output page")
}
