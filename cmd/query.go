package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/openfga/listquery/pkg/caml"
	"github.com/openfga/listquery/pkg/lookup"
	"github.com/openfga/listquery/pkg/retrieval"
	"github.com/openfga/listquery/pkg/storage"
)

const (
	expandFlag     = "expand"
	singlePageFlag = "single-page"
	pageTokenFlag  = "page-token"
)

// NewQueryCommand returns the command running a query descriptor against a site.
func NewQueryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query <descriptor-file>",
		Short: "Run a query descriptor against a site and print the matching rows as JSON",
		Long: `Run a query descriptor against a site and print the matching rows as JSON.

By default every page is read and the rows are printed as one JSON array. With --single-page or
--page-token a single page is read and printed with the token of the next page.

Lookup columns are expanded into the referenced items with --expand Column=ForeignList, or
--expand Column=ForeignList:Col1,Col2 to read specific columns of the referenced items.`,
		Args: cobra.ExactArgs(1),
		RunE: query,
	}

	defineSiteFlags(cmd)
	cmd.PreRun = bindSiteFlagsFunc(cmd.Flags())

	flags := cmd.Flags()
	flags.StringArray(expandFlag, nil, "a lookup column to expand, as Column=ForeignList[:Col1,Col2]")
	flags.Bool(singlePageFlag, false, "read a single page and print it with the token of the next page")
	flags.String(pageTokenFlag, "", "the token returned with the previous page")

	return cmd
}

// pageOutput is the output of a single page query.
type pageOutput struct {
	Rows              []retrieval.Row `json:"rows"`
	ContinuationToken string          `json:"continuationToken,omitempty"`
}

func query(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	rawExpansions, err := flags.GetStringArray(expandFlag)
	if err != nil {
		return err
	}
	expansions, err := parseExpansions(rawExpansions)
	if err != nil {
		return err
	}
	singlePage, err := flags.GetBool(singlePageFlag)
	if err != nil {
		return err
	}
	pageToken, err := flags.GetString(pageTokenFlag)
	if err != nil {
		return err
	}

	data, err := readDocument(cmd, args[0])
	if err != nil {
		return err
	}
	d, err := caml.ParseDescriptor(data)
	if err != nil {
		return err
	}

	client, err := newSiteClient()
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Close(); err != nil {
			client.logger.Warn("failed to close the site client", zap.Error(err))
		}
	}()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if client.cache != nil {
		if err := prefetchSchemas(ctx, client.cache, schemaLists(d, expansions)); err != nil {
			return err
		}
	}

	var out any
	if singlePage || pageToken != "" {
		rows, next, err := client.retriever.ReadPage(ctx, d, pageToken)
		if err != nil {
			return err
		}
		if err := expand(ctx, client.expander, rows, expansions); err != nil {
			return err
		}
		out = pageOutput{Rows: rows, ContinuationToken: next}
	} else {
		rows, err := client.retriever.Retrieve(ctx, d)
		if err != nil {
			return err
		}
		if err := expand(ctx, client.expander, rows, expansions); err != nil {
			return err
		}
		out = rows
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// parseExpansions parses --expand values of the form Column=ForeignList[:Col1,Col2].
func parseExpansions(values []string) ([]lookup.Expansion, error) {
	expansions := make([]lookup.Expansion, 0, len(values))
	for _, v := range values {
		column, target, ok := strings.Cut(v, "=")
		column = strings.TrimSpace(column)
		if !ok || column == "" {
			return nil, fmt.Errorf("invalid --%s '%s': expected Column=ForeignList[:Col1,Col2]", expandFlag, v)
		}
		list, columns, _ := strings.Cut(target, ":")
		list = strings.TrimSpace(list)
		if list == "" {
			return nil, fmt.Errorf("invalid --%s '%s': no foreign list", expandFlag, v)
		}

		x := lookup.Expansion{Column: column, ForeignList: storage.ListByTitle(list)}
		for _, c := range strings.Split(columns, ",") {
			if c = strings.TrimSpace(c); c != "" {
				x.Columns = append(x.Columns, c)
			}
		}
		expansions = append(expansions, x)
	}
	return expansions, nil
}

func expand(ctx context.Context, expander *lookup.Expander, rows []retrieval.Row, expansions []lookup.Expansion) error {
	for _, x := range expansions {
		if err := expander.Expand(ctx, rows, x); err != nil {
			return fmt.Errorf("failed to expand column '%s': %w", x.Column, err)
		}
	}
	return nil
}

// schemaLists returns the distinct lists whose schema the query reads.
func schemaLists(d caml.Descriptor, expansions []lookup.Expansion) []storage.ListID {
	lists := []storage.ListID{d.List}
	if d.Join != nil && d.Join.ForeignList != "" {
		lists = append(lists, storage.ListByTitle(d.Join.ForeignList))
	}
	for _, x := range expansions {
		lists = append(lists, x.ForeignList)
	}

	seen := make(map[string]bool, len(lists))
	distinct := lists[:0]
	for _, l := range lists {
		if !seen[l.Key()] {
			seen[l.Key()] = true
			distinct = append(distinct, l)
		}
	}
	return distinct
}

// prefetchSchemas reads the schemas of all lists concurrently so that later retrievals are
// served from the cache.
func prefetchSchemas(ctx context.Context, resolver storage.SchemaResolver, lists []storage.ListID) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, list := range lists {
		g.Go(func() error {
			if _, err := resolver.Fields(ctx, list); err != nil {
				return fmt.Errorf("failed to resolve fields of list '%s': %w", list, err)
			}
			return nil
		})
	}
	return g.Wait()
}
