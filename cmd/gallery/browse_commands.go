package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"gallery/internal/backend"
)

// similarRoute is the proxy route for similar-image queries.
const similarRoute = "/similar"

func newBrowseCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var cursor string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "browse",
		Short: "List gallery images page by page",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := quietClient(ctx, cmd)
			if err != nil {
				return err
			}
			page, err := client.Gallery(cmd.Context(), limit, cursor)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, page)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderImages(page.Items, false))
			if page.NextCursor != nil {
				fmt.Fprintf(out, "Next page: gallery browse --cursor %s\n", *page.NextCursor)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Images per page")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Cursor returned by the previous page")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print raw JSON")
	return cmd
}

func newSearchCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search images by text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.TrimSpace(strings.Join(args, " "))
			if query == "" {
				return errors.New("query is required")
			}
			client, err := quietClient(ctx, cmd)
			if err != nil {
				return err
			}
			results, err := client.Search(cmd.Context(), query, limit)
			if err != nil {
				return err
			}
			return printResults(cmd, results, jsonOut)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum results")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print raw JSON")
	return cmd
}

func newSimilarCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "similar <image-url>",
		Short: "Find images similar to an existing one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := quietClient(ctx, cmd)
			if err != nil {
				return err
			}
			results, err := client.Similar(cmd.Context(), strings.TrimSpace(args[0]), limit)
			if err != nil {
				return err
			}
			return printResults(cmd, results, jsonOut)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 8, "Maximum results")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print raw JSON")
	return cmd
}

func newRandomCommand(ctx *commandContext) *cobra.Command {
	var run bool
	var limit int

	cmd := &cobra.Command{
		Use:   "random",
		Short: "Suggest a random search query",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := quietClient(ctx, cmd)
			if err != nil {
				return err
			}
			query, err := client.RandomQuery(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if query == "" {
				fmt.Fprintln(out, "No suggestion available")
				return nil
			}
			fmt.Fprintln(out, query)
			if !run {
				return nil
			}
			results, err := client.Search(cmd.Context(), query, limit)
			if err != nil {
				return err
			}
			return printResults(cmd, results, false)
		},
	}

	cmd.Flags().BoolVar(&run, "search", false, "Run the suggested query")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum results when searching")
	return cmd
}

func quietClient(ctx *commandContext, cmd *cobra.Command) (*backend.Client, error) {
	logger, err := ctx.logger(cmd)
	if err != nil {
		return nil, err
	}
	return ctx.client(logger)
}

func printResults(cmd *cobra.Command, results []backend.GalleryImage, jsonOut bool) error {
	if jsonOut {
		return writeJSON(cmd, results)
	}
	out := cmd.OutOrStdout()
	if len(results) == 0 {
		fmt.Fprintln(out, "No matching images")
		return nil
	}
	fmt.Fprintln(out, renderImages(results, true))
	return nil
}

func renderImages(images []backend.GalleryImage, withScore bool) string {
	headers := []string{"#", "Title", "Taken", "Camera", "Original"}
	aligns := []columnAlignment{alignRight}
	if withScore {
		headers = append(headers, "Score")
		aligns = []columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignRight}
	}
	rows := make([][]string, 0, len(images))
	for i, img := range images {
		var taken, camera string
		if img.Metadata != nil {
			taken = img.Metadata.TakenTime
			camera = img.Metadata.Camera
		}
		row := []string{
			fmt.Sprintf("%d", i+1),
			truncate(valueOrDash(img.Title()), 40),
			valueOrDash(taken),
			truncate(valueOrDash(camera), 32),
			img.OriginalURL,
		}
		if withScore {
			row = append(row, fmt.Sprintf("%.3f", img.Score))
		}
		rows = append(rows, row)
	}
	return renderTable(headers, rows, aligns)
}
