package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/dukex/ximager/pkg/models"
	cli "github.com/urfave/cli/v3"
)

func KeywordsCommand() *cli.Command {
	return &cli.Command{
		Name:    "keywords",
		Aliases: []string{"kw"},
		Usage:   "Manage the prompt keyword index",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List every keyword, most used first",
				Action: withKeywordServices(func(_ context.Context, command *cli.Command, svc *services) error {
					return writeStats(command.Root().Writer, svc.keywords.All())
				}),
			},
			{
				Name:      "suggest",
				Usage:     "Suggest keywords starting with a prefix",
				ArgsUsage: "<prefix>",
				Action: withKeywordServices(func(_ context.Context, command *cli.Command, svc *services) error {
					return writeStats(command.Root().Writer, svc.keywords.Suggest(command.Args().First()))
				}),
			},
			{
				Name:      "add",
				Usage:     "Add a keyword or raise its count",
				ArgsUsage: "<text>",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "count", Usage: "Count to add", Value: 1},
				},
				Action: withKeywordServices(func(ctx context.Context, command *cli.Command, svc *services) error {
					return svc.keywords.Add(ctx, command.Args().First(), command.Int("count"))
				}),
			},
			{
				Name:      "rename",
				Usage:     "Rename a keyword, merging into an existing one",
				ArgsUsage: "<old> <new>",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "count", Usage: "Count carried by the renamed entry (defaults to its current count)"},
				},
				Action: withKeywordServices(func(ctx context.Context, command *cli.Command, svc *services) error {
					if command.Args().Len() != 2 {
						return fmt.Errorf("expected <old> <new>, got %d arguments", command.Args().Len())
					}

					oldText := command.Args().Get(0)

					count := command.Int("count")
					if !command.IsSet("count") {
						if current, ok := svc.keywords.Get(oldText); ok {
							count = current.Count
						}
					}

					return svc.keywords.Rename(ctx, oldText, command.Args().Get(1), count)
				}),
			},
			{
				Name:      "remove",
				Usage:     "Remove a keyword",
				ArgsUsage: "<text>",
				Action: withKeywordServices(func(ctx context.Context, command *cli.Command, svc *services) error {
					return svc.keywords.Remove(ctx, command.Args().First())
				}),
			},
		},
	}
}

func MacrosCommand() *cli.Command {
	return &cli.Command{
		Name:  "macros",
		Usage: "Manage @macro shortcuts",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List every macro",
				Action: withKeywordServices(func(_ context.Context, command *cli.Command, svc *services) error {
					writer := tabwriter.NewWriter(command.Root().Writer, 0, 0, 2, ' ', 0)

					for _, key := range svc.macros.Keys() {
						expansion, _ := svc.macros.Get(key)
						_, _ = fmt.Fprintf(writer, "@%s\t%s\n", key, expansion)
					}

					return writer.Flush()
				}),
			},
			{
				Name:      "set",
				Usage:     "Create or replace a macro",
				ArgsUsage: "<key> <expansion>",
				Action: withKeywordServices(func(ctx context.Context, command *cli.Command, svc *services) error {
					if command.Args().Len() != 2 {
						return fmt.Errorf("expected <key> <expansion>, got %d arguments", command.Args().Len())
					}

					return svc.macros.Set(ctx, command.Args().Get(0), command.Args().Get(1))
				}),
			},
			{
				Name:      "delete",
				Usage:     "Delete a macro",
				ArgsUsage: "<key>",
				Action: withKeywordServices(func(ctx context.Context, command *cli.Command, svc *services) error {
					return svc.macros.Delete(ctx, command.Args().First())
				}),
			},
		},
	}
}

// withKeywordServices opens the store, hydrates both documents and runs fn.
func withKeywordServices(fn func(ctx context.Context, command *cli.Command, svc *services) error) cli.ActionFunc {
	return func(ctx context.Context, command *cli.Command) error {
		svc, err := commandServices(ctx, command, "keywords")
		if err != nil {
			return err
		}
		defer svc.Close(ctx)

		if err := svc.keywords.Hydrate(ctx); err != nil {
			return err
		}

		if err := svc.macros.Hydrate(ctx); err != nil {
			return err
		}

		return fn(ctx, command, svc)
	}
}

func writeStats(out io.Writer, stats []models.KeywordStat) error {
	writer := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	for _, stat := range stats {
		lastUsed := "-"
		if stat.LastUsed > 0 {
			lastUsed = time.UnixMilli(stat.LastUsed).UTC().Format(time.RFC3339)
		}

		_, _ = fmt.Fprintf(writer, "%s\t%s\t%s\n", stat.Text, strconv.Itoa(stat.Count), lastUsed)
	}

	return writer.Flush()
}
