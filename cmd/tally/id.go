package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/xraph/tally"
	"github.com/xraph/tally/id"
)

func newIDCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "id",
		Short: "Decode, bound and allocate identifiers",
	}
	cmd.AddCommand(newIDDecodeCmd(), newIDWindowCmd(), newIDNewCmd())
	return cmd
}

func newIDDecodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decode <id>",
		Short: "Print the timestamp and sequence packed into an identifier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := id.Parse(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "id        %s\n", v)
			fmt.Fprintf(out, "millis    %d\n", v.Millis())
			fmt.Fprintf(out, "sequence  %d\n", v.Sequence())
			fmt.Fprintf(out, "time      %s\n", v.Time().UTC().Format(time.RFC3339Nano))
			return nil
		},
	}
}

func newIDWindowCmd() *cobra.Command {
	var now string
	cmd := &cobra.Command{
		Use:   "window <duration>",
		Short: "Print the smallest identifier inside a trailing window",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := time.ParseDuration(args[0])
			if err != nil {
				return err
			}
			if err := tally.ValidateWindow(d); err != nil {
				return err
			}
			gen, err := generatorAt(now)
			if err != nil {
				return err
			}
			since := gen.WindowStart(d)
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", since, since.Time().UTC().Format(time.RFC3339Nano))
			return nil
		},
	}
	cmd.Flags().StringVar(&now, "now", "", "evaluate the window at this RFC 3339 time instead of the wall clock")
	return cmd
}

func newIDNewCmd() *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "new <kind>",
		Short: "Allocate fresh identifiers for an entity kind",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := id.ParseKind(args[0])
			if err != nil {
				return err
			}
			if count < 1 {
				return fmt.Errorf("count %d: %w", count, tally.ErrInvalidInput)
			}
			gen := id.NewGenerator()
			for i := 0; i < count; i++ {
				v, err := gen.Next(cmd.Context(), kind)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), v)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 1, "number of identifiers to allocate")
	return cmd
}

func generatorAt(now string) (*id.Generator, error) {
	if now == "" {
		return id.NewGenerator(), nil
	}
	t, err := time.Parse(time.RFC3339, now)
	if err != nil {
		return nil, fmt.Errorf("--now: %w", err)
	}
	return id.NewGenerator(id.WithClock(id.ClockFunc(func() time.Time { return t }))), nil
}
