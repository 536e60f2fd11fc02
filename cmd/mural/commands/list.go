package commands

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/dyluth/mural/internal/printer"
	"github.com/dyluth/mural/pkg/board"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the objects on the board",
	Long: `List every object in the document in paint order (ascending zIndex).

Examples:
  # List the configured document's objects
  mural list`,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.List(ctx)
	if err != nil {
		return printer.Error("failed to read document", err.Error(), nil)
	}

	objects := make([]*board.Object, 0, len(entries))
	for id, raw := range entries {
		obj, err := board.Decode(raw)
		if err != nil {
			printer.Warning("skipping malformed entry %s: %v\n", id, err)
			continue
		}
		objects = append(objects, obj)
	}
	sort.Slice(objects, func(i, j int) bool {
		if objects[i].ZIndex != objects[j].ZIndex {
			return objects[i].ZIndex < objects[j].ZIndex
		}
		return objects[i].ID < objects[j].ID
	})

	printer.Info("%d object(s) on %q (capacity %d)\n\n", len(objects), cfg.Document.Name, board.MaxObjects)
	for _, o := range objects {
		printer.Printf("%3d  %-12s %s  %s\n", o.ZIndex, o.Type, o.ID, describeObject(o))
	}
	return nil
}

func describeObject(o *board.Object) string {
	modified := time.UnixMilli(o.LastModifiedAt).Format("2006-01-02 15:04:05")
	switch {
	case o.IsFrame():
		return fmt.Sprintf("%q (%d children) by %s at %s", o.Title, len(o.ChildrenIDs), o.LastModifiedBy, modified)
	case o.IsConnector():
		return fmt.Sprintf("%s -> %s by %s at %s", o.Start.TargetID, o.End.TargetID, o.LastModifiedBy, modified)
	default:
		return fmt.Sprintf("%q at (%g,%g) by %s at %s", o.Text, o.X, o.Y, o.LastModifiedBy, modified)
	}
}
