package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/yoanbernabeu/ragsync/registry"
)

var forgetYes bool

var forgetCmd = &cobra.Command{
	Use:   "forget <folder>",
	Short: "Delete a folder's collection from the vector store",
	Long: `Delete the vector store collection of a previously watched folder.

Unwatching a folder keeps its indexed data so a later watch can resume
without a full re-scan. Use forget to permanently remove the collection
and all its chunks.`,
	Args: cobra.ExactArgs(1),
	RunE: runForget,
}

func init() {
	forgetCmd.Flags().BoolVar(&forgetYes, "yes", false, "Skip the confirmation prompt")
}

func runForget(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	folder, err := registry.NormalizePath(args[0])
	if err != nil {
		return fmt.Errorf("invalid folder: %w", err)
	}
	collection, err := registry.CollectionName(cfg.Collections.Prefix, folder)
	if err != nil {
		return fmt.Errorf("invalid folder: %w", err)
	}

	if !forgetYes {
		reader := bufio.NewReader(os.Stdin)
		fmt.Printf("Delete collection %s and all indexed data for %s? [y/N]: ", collection, folder)
		input, _ := reader.ReadString('\n')
		input = strings.TrimSpace(strings.ToLower(input))
		if input != "y" && input != "yes" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	gw, err := initializeGateway(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer gw.Close()

	if err := gw.DeleteCollection(ctx, collection); err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}

	fmt.Printf("Deleted collection %s\n", collection)
	return nil
}
