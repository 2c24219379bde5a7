package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/signalsfoundry/stockflow-editor/editor"
	"github.com/signalsfoundry/stockflow-editor/internal/search"
	"github.com/signalsfoundry/stockflow-editor/internal/session"
	"github.com/signalsfoundry/stockflow-editor/model"
	"github.com/signalsfoundry/stockflow-editor/timectrl"
)

func renderCmd(a *app) *cobra.Command {
	var (
		out     string
		view    string
		ticks   int
		animate bool
	)
	cmd := &cobra.Command{
		Use:   "render [collection]",
		Short: "Lay out a view and write it as SVG",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, done, err := a.load(ctx, args)
			if err != nil {
				return err
			}
			defer done()

			if view != "" {
				if err := e.Reveal(search.Result{View: model.ViewID(view)}); err != nil {
					return err
				}
			}
			if animate {
				clock := timectrl.NewFrameClock(time.Now(), time.Second/time.Duration(a.cfg.Clock.FPS), a.cfg.ClockMode())
				e.AttachClock(clock)
				<-clock.Start(ctx, ticks)
			} else {
				e.Settle(ticks)
			}

			var w io.Writer = cmd.OutOrStdout()
			if out != "" && out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			if err := e.WriteSVG(w); err != nil {
				return err
			}
			if out != "" && out != "-" {
				good.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", out)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "SVG file to write (stdout when empty)")
	cmd.Flags().StringVar(&view, "view", "", "View to render instead of the first root")
	cmd.Flags().IntVar(&ticks, "ticks", 300, "Layout ticks to run before drawing")
	cmd.Flags().BoolVar(&animate, "animate", false, "Pace ticks with the frame clock")
	return cmd
}

func searchCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search <query> [collection]",
		Short: "Find labelled nodes and links",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, done, err := a.load(ctx, args[1:])
			if err != nil {
				return err
			}
			defer done()

			results := e.Search(args[0], limit)
			w := cmd.OutOrStdout()
			if len(results) == 0 {
				subtle.Fprintf(w, "no match for %q\n", args[0])
				return nil
			}
			rows := make([][]string, 0, len(results))
			for _, r := range results {
				rows = append(rows, []string{string(r.View), r.ViewText, r.Ref.String(), r.Text})
			}
			table(w, []string{"VIEW", "TITLE", "OBJECT", "TEXT"}, rows)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum results (0 for all)")
	return cmd
}

func collectionsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "collections",
		Aliases: []string{"ls"},
		Short:   "List stored collections",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, done, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer done()
			names, err := e.Collections(ctx)
			if err != nil {
				return err
			}
			for _, n := range names {
				marker := " "
				if n == a.cfg.Store.Collection {
					marker = "*"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", marker, n)
			}
			return nil
		},
	}
}

func deleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <collection>",
		Short: "Delete a stored collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, done, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer done()
			if err := e.DeleteCollection(ctx, args[0]); err != nil {
				return err
			}
			good.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}

func validateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [collection]",
		Short: "Check a stored collection for broken references",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, done, err := a.load(ctx, args)
			if err != nil {
				return err
			}
			defer done()
			if err := e.Validate(); err != nil {
				bad.Fprintln(cmd.OutOrStdout(), err)
				return fmt.Errorf("collection is inconsistent")
			}
			good.Fprintf(cmd.OutOrStdout(), "ok: %d views\n", len(e.Graph()))
			return nil
		},
	}
}

// demoAnswers names the objects the demo creates, in prompt order.
var demoAnswers = []string{"Birth Rate", "Population", "births", "Fertility"}

func demoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "demo [collection]",
		Short: "Save the Birth Rate / Population sample diagram",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d := &editor.ScriptedDialogs{Answers: append([]string(nil), demoAnswers...)}
			e, done, err := a.open(ctx, session.WithDialogs(d))
			if err != nil {
				return err
			}
			defer done()

			if err := e.Do(buildDemo); err != nil {
				return fmt.Errorf("build demo: %w", err)
			}
			e.Settle(300)

			collection := ""
			if len(args) > 0 {
				collection = args[0]
			}
			res, err := e.Save(ctx, collection)
			if err != nil {
				return err
			}
			good.Fprintf(cmd.OutOrStdout(), "saved %d views\n", res.N)
			return nil
		},
	}
}

// buildDemo draws Birth Rate feeding Population and gives Birth Rate a
// subsystem holding Fertility.
func buildDemo(c *editor.Controller) error {
	steps := []func() error{
		c.NewCircleNode,
		c.NewSquareNode,
		c.NewSolidLink,
		func() error { return c.ClickNode("b0") },
		func() error { return c.ClickNode("b1") },
		func() error { return c.ClickNode("b0") },
		c.CreateSubsystem,
		c.NewCircleNode,
		c.GoBack,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}
