package cmd

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"sigs.k8s.io/yaml"

	"github.com/openfga/listquery/pkg/fieldvalue"
	"github.com/openfga/listquery/pkg/storage"
)

const (
	listTitleFlag = "list-title"
	listGUIDFlag  = "list-guid"
	itemIDFlag    = "item-id"
)

// NewWriteCommand returns the command creating or updating a list item.
func NewWriteCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "write <values-file>",
		Short: "Create or update a list item from a document of column values",
		Long: `Create or update a list item from a document of column values.

The values file is a YAML or JSON sequence of column values, e.g.

  - {name: Title, type: Text, value: Quarterly report}
  - {name: Department, type: Lookup, lookupId: 42}
  - {name: Homepage, type: Url, url: "https://example.com", description: Example}

Without --item-id a new item is created and its id is printed.`,
		Args: cobra.ExactArgs(1),
		RunE: write,
	}

	defineSiteFlags(cmd)
	cmd.PreRun = bindSiteFlagsFunc(cmd.Flags())

	flags := cmd.Flags()
	flags.String(listTitleFlag, "", "the title of the list to write to")
	flags.String(listGUIDFlag, "", "the id of the list to write to")
	flags.Int(itemIDFlag, 0, "the id of the item to update")
	cmd.MarkFlagsOneRequired(listTitleFlag, listGUIDFlag)
	cmd.MarkFlagsMutuallyExclusive(listTitleFlag, listGUIDFlag)

	return cmd
}

type writeOutput struct {
	ID int `json:"id"`
}

func write(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	title, err := flags.GetString(listTitleFlag)
	if err != nil {
		return err
	}
	guid, err := flags.GetString(listGUIDFlag)
	if err != nil {
		return err
	}
	id, err := flags.GetInt(itemIDFlag)
	if err != nil {
		return err
	}
	if id < 0 {
		return errors.New("--item-id must be a positive item id")
	}

	list := storage.ListByTitle(title)
	if guid != "" {
		list = storage.ListByGUID(guid)
	}

	data, err := readDocument(cmd, args[0])
	if err != nil {
		return err
	}
	var descriptors []fieldvalue.Descriptor
	if err := yaml.UnmarshalStrict(data, &descriptors); err != nil {
		return storage.FieldMappingError("", "%s", err)
	}
	values, err := fieldvalue.MapDescriptorsForWrite(descriptors)
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

	if id == 0 {
		id, err = client.store.Create(ctx, list, values)
	} else {
		err = client.store.Update(ctx, list, id, values)
	}
	if err != nil {
		return err
	}
	client.logger.Debug("item written", zap.Stringer("list", list), zap.Int("id", id), zap.Int("columns", len(values)))

	enc := json.NewEncoder(cmd.OutOrStdout())
	return enc.Encode(writeOutput{ID: id})
}
