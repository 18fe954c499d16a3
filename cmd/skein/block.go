// ABOUTME: Blocked word management; matching posts are hidden from the timeline
// ABOUTME: The word list travels with snapshot sync

package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harper/skein/internal/models"
)

var blockCmd = &cobra.Command{
	Use:   "block [word...]",
	Short: "Manage blocked words",
	Long:  "Add words to the block list, or list them when called without arguments. Posts whose title contains a blocked word are hidden.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			words, err := store.ListBlockedWords()
			if err != nil {
				return fmt.Errorf("failed to list blocked words: %w", err)
			}
			if len(words) == 0 {
				fmt.Println("No blocked words.")
				return nil
			}
			for _, w := range words {
				fmt.Println(w.Content)
			}
			return nil
		}

		words := make([]*models.BlockedWord, 0, len(args))
		for _, arg := range args {
			words = append(words, models.NewBlockedWord(arg))
		}
		if err := store.UpsertBlockedWords(words); err != nil {
			return fmt.Errorf("failed to save blocked words: %w", err)
		}
		color.Green("✓ Blocked %d words", len(words))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(blockCmd)
}
