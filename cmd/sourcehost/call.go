package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/goatkit/sourcehost/pkg/source"
)

var (
	flagCallQuery string
	flagCallPage  int32
	flagCallKey   string
)

var callCmd = &cobra.Command{
	Use:   "call <plugin> <operation>",
	Short: "Drive one exported operation of a loaded plugin",
	Long: `call loads every plugin under --plugin-dir, then drives one
operation of <plugin> and prints the decoded result.

Operations: search, listings, filters, details, chapters, pages, home,
image-request`,
	Args: cobra.ExactArgs(2),
	RunE: runCall,
}

func init() {
	callCmd.Flags().StringVar(&flagCallQuery, "query", "", "search query text")
	callCmd.Flags().Int32Var(&flagCallPage, "page", 1, "page number for search/listing operations")
	callCmd.Flags().StringVar(&flagCallKey, "key", "", "manga key for details/chapters/pages operations")
	rootCmd.AddCommand(callCmd)
}

func runCall(cmd *cobra.Command, args []string) error {
	pluginName, op := args[0], args[1]
	ctx := cmd.Context()

	manager, err := loadPluginDir(ctx)
	if err != nil {
		return err
	}
	defer manager.CloseAll(ctx)

	inst, ok := manager.Get(pluginName)
	if !ok {
		return fmt.Errorf("plugin %q is not loaded from %s", pluginName, flagPluginDir)
	}

	switch op {
	case "search":
		var query *string
		if flagCallQuery != "" {
			query = &flagCallQuery
		}
		res, err := inst.SearchManga(ctx, query, flagCallPage, nil)
		if err != nil {
			return err
		}
		fmt.Printf("%+v\n", res)

	case "listings":
		listings, err := inst.GetListings(ctx)
		if err != nil {
			return err
		}
		for _, l := range listings {
			fmt.Printf("%+v\n", l)
		}

	case "filters":
		filters, err := inst.GetFilters(ctx)
		if err != nil {
			return err
		}
		for _, f := range filters {
			fmt.Printf("%+v\n", f)
		}

	case "details":
		if flagCallKey == "" {
			return fmt.Errorf("--key is required for details")
		}
		m, err := inst.GetMangaDetails(ctx, source.Manga{Key: flagCallKey})
		if err != nil {
			return err
		}
		fmt.Printf("%+v\n", m)

	case "chapters":
		if flagCallKey == "" {
			return fmt.Errorf("--key is required for chapters")
		}
		chapters, err := inst.GetChapterList(ctx, source.Manga{Key: flagCallKey})
		if err != nil {
			return err
		}
		for _, c := range chapters {
			fmt.Printf("%+v\n", c)
		}

	case "pages":
		if flagCallKey == "" {
			return fmt.Errorf("--key is required for pages")
		}
		pages, err := inst.GetPageList(ctx, source.Manga{Key: flagCallKey}, source.Chapter{})
		if err != nil {
			return err
		}
		for _, p := range pages {
			fmt.Printf("%+v\n", p)
		}

	case "home":
		layout, err := inst.GetHome(ctx, func(partial source.HomeLayout) {
			fmt.Printf("partial: %d component(s)\n", len(partial.Components))
		})
		if err != nil {
			return err
		}
		fmt.Printf("%+v\n", layout)

	case "image-request":
		if flagCallKey == "" {
			return fmt.Errorf("--key is required for image-request (pass the page URL)")
		}
		url, headers, err := inst.GetImageRequest(ctx, flagCallKey, nil)
		if err != nil {
			return err
		}
		fmt.Printf("url=%s headers=%+v\n", url, headers)

	default:
		return fmt.Errorf("unknown operation %q", op)
	}
	return nil
}
