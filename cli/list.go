package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/alpkeskin/gotoon"
	"github.com/spf13/cobra"
	"github.com/yoanbernabeu/ragsync/store"
	"github.com/yoanbernabeu/ragsync/watcher"
)

var (
	listJSON bool
	listTOON bool
)

// WatchedFolderJSON is the machine-readable list output shape.
type WatchedFolderJSON struct {
	Path         string   `json:"path"`
	Collection   string   `json:"collection"`
	ContentTypes []string `json:"content_types"`
	Chunks       uint64   `json:"chunks"`
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List watched folders recorded in the vector store",
	Long: `List every folder recorded in the vector store, with its collection
name, content types, and indexed chunk count.

This reads the metadata record of each collection, so it shows the
persisted state even when no watcher process is running.`,
	RunE: runList,
}

func init() {
	listCmd.Flags().BoolVarP(&listJSON, "json", "j", false, "Output in JSON format")
	listCmd.Flags().BoolVarP(&listTOON, "toon", "t", false, "Output in TOON format (token-efficient for AI agents)")
	listCmd.MarkFlagsMutuallyExclusive("json", "toon")
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	gw, err := initializeGateway(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer gw.Close()

	folders, err := collectWatchedFolders(ctx, gw, cfg.Collections.Prefix)
	if err != nil {
		return err
	}

	switch {
	case listTOON:
		output, err := gotoon.Encode(folders)
		if err != nil {
			return fmt.Errorf("failed to encode folders: %w", err)
		}
		fmt.Println(output)
	case listJSON:
		output, err := json.MarshalIndent(folders, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode folders: %w", err)
		}
		fmt.Println(string(output))
	default:
		if len(folders) == 0 {
			fmt.Println("No watched folders recorded.")
			return nil
		}
		for _, f := range folders {
			fmt.Printf("%s\n", f.Path)
			fmt.Printf("  collection:    %s\n", f.Collection)
			fmt.Printf("  content types: %s\n", strings.Join(f.ContentTypes, ", "))
			fmt.Printf("  chunks:        %d\n", f.Chunks)
		}
	}

	return nil
}

// collectWatchedFolders scans collections carrying the configured prefix and
// reads each one's metadata record.
func collectWatchedFolders(ctx context.Context, gw store.Gateway, prefix string) ([]WatchedFolderJSON, error) {
	collections, err := gw.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}

	folders := make([]WatchedFolderJSON, 0, len(collections))
	for _, collection := range collections {
		if !strings.HasPrefix(collection, prefix+"_") {
			continue
		}

		points, err := gw.RetrieveByID(ctx, collection, []string{watcher.MetadataPointID})
		if err != nil || len(points) == 0 {
			continue
		}
		meta, ok := watcher.MetadataFromPayload(points[0].Payload)
		if !ok {
			continue
		}

		count, err := gw.Count(ctx, collection)
		if err != nil {
			count = 0
		}
		chunks := count
		if chunks > 0 {
			chunks-- // exclude the metadata record itself
		}

		folders = append(folders, WatchedFolderJSON{
			Path:         meta.FolderPath,
			Collection:   collection,
			ContentTypes: meta.ContentTypes,
			Chunks:       chunks,
		})
	}

	return folders, nil
}
