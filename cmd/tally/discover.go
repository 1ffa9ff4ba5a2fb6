package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/xraph/tally"
	"github.com/xraph/tally/rank"
)

func newDiscoverCmd(a *app) *cobra.Command {
	var (
		fixture string
		window  time.Duration
		limit   int
		output  string
	)
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Seed a fixture and print the discover page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := loadFixture(fixture)
			if err != nil {
				return err
			}
			if window == 0 {
				if window, err = a.cfg.window(); err != nil {
					return err
				}
			}
			if limit == 0 {
				limit = a.cfg.Discover.Limit
			}

			sd, err := f.seed(cmd.Context(), a.logger)
			if err != nil {
				return err
			}
			d, err := sd.engine.Discover(cmd.Context(), tally.DiscoverOpts{Window: window, Limit: limit})
			if err != nil {
				return err
			}
			a.logger.Info("discover computed", "window", window, "limit", limit, "rows", d.Len())

			return writeDiscovery(cmd.OutOrStdout(), d, output)
		},
	}
	cmd.Flags().StringVar(&fixture, "fixture", "", "YAML fixture to seed")
	cmd.Flags().DurationVar(&window, "window", 0, "trailing window (default from config)")
	cmd.Flags().IntVar(&limit, "limit", 0, "rows per list (default from config)")
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text, yaml or json")
	_ = cmd.MarkFlagRequired("fixture")
	return cmd
}

func writeDiscovery(w io.Writer, d *tally.Discovery, format string) error {
	switch format {
	case "yaml":
		data, err := yaml.Marshal(d)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(d)
	case "text", "":
	default:
		return fmt.Errorf("unknown output format %q", format)
	}

	for _, sec := range []struct {
		title string
		rows  []rank.Entry
	}{
		{"Popular answers", d.PopularAnswers},
		{"Most discussed answers", d.MostDiscussedAnswers},
		{"Popular questions", d.PopularQuestions},
		{"New users", d.NewUsers},
	} {
		fmt.Fprintf(w, "%s\n", sec.title)
		table := newTable(w, "ID", "Score", "Entity")
		for _, e := range sec.rows {
			table.Append([]string{e.ID.String(), strconv.FormatInt(e.Score, 10), entryLabel(e)})
		}
		table.Render()
	}

	for _, sec := range []struct {
		title string
		rows  []rank.Group
	}{
		{"Users with most questions", d.UsersWithMostQuestions},
		{"Users with most answers", d.UsersWithMostAnswers},
	} {
		fmt.Fprintf(w, "%s\n", sec.title)
		table := newTable(w, "User", "Count", "Name")
		for _, g := range sec.rows {
			name := ""
			if g.User != nil {
				name = g.User.ScreenName
			}
			table.Append([]string{g.UserID.String(), strconv.FormatInt(g.Count, 10), name})
		}
		table.Render()
	}
	return nil
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	return table
}

func entryLabel(e rank.Entry) string {
	switch {
	case e.Answer != nil:
		return e.Answer.Content
	case e.Question != nil:
		return e.Question.Content
	case e.Comment != nil:
		return e.Comment.Content
	case e.User != nil:
		return e.User.ScreenName
	}
	return ""
}
