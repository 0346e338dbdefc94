package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/assembly-cli/internal/model"
)

var chatsCmd = &cobra.Command{
	Use:   "chats",
	Short: "Inspect stored chats",
	Long:  "Commands for listing, viewing, and deleting analyzed manuals and their chats.",
}

// -- chats list --

var chatsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List chats",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("chats"); err != nil {
			return err
		}

		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		user, _ := cmd.Flags().GetString("user")

		chats, err := st.ListChats(ctx, user)
		if err != nil {
			return eris.Wrap(err, "chats list")
		}

		if len(chats) == 0 {
			fmt.Fprintln(os.Stderr, "No chats found.")
			return nil
		}

		formatChatsList(os.Stdout, chats)
		return nil
	},
}

// -- chats show --

var chatsShowCmd = &cobra.Command{
	Use:   "show <chat-id>",
	Short: "Show a chat with all its assembly steps",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("chats"); err != nil {
			return err
		}

		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		rec, err := st.GetChat(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "chats show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	},
}

// -- chats delete --

var chatsDeleteCmd = &cobra.Command{
	Use:   "delete <chat-id>",
	Short: "Delete a chat and its orphaned document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("chats"); err != nil {
			return err
		}

		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.DeleteChat(ctx, args[0]); err != nil {
			return eris.Wrap(err, "chats delete")
		}

		fmt.Fprintf(os.Stderr, "Deleted chat %s.\n", args[0])
		return nil
	},
}

func formatChatsList(w io.Writer, chats []model.ChatSummary) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tFILE\tSTEPS\tUPDATED")
	for _, c := range chats {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			c.ID, c.Title, c.FileName, c.AssemblyStepCount,
			c.UpdatedAt.Format(time.RFC3339),
		)
	}
	tw.Flush() //nolint:errcheck
}

func init() {
	chatsListCmd.Flags().String("user", "", "filter chats by user ID")
	chatsCmd.AddCommand(chatsListCmd)
	chatsCmd.AddCommand(chatsShowCmd)
	chatsCmd.AddCommand(chatsDeleteCmd)
	rootCmd.AddCommand(chatsCmd)
}
