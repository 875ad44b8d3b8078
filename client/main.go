package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mahaj/lionsphere/pkg/chat"
	"github.com/mahaj/lionsphere/pkg/model"
)

type options struct {
	api      string
	gateway  string
	user     string
	username string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:          "client",
		Short:        "LionSphere command line client",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.api, "api", "http://localhost:8081", "api service address")
	root.PersistentFlags().StringVar(&opts.gateway, "addr", "localhost:8080", "gateway service address")
	root.PersistentFlags().StringVar(&opts.user, "user", "user1", "user id")
	root.PersistentFlags().StringVar(&opts.username, "name", "", "display name sent on login")

	root.AddCommand(
		newLoginCmd(opts),
		newChatCmd(opts),
		newHistoryCmd(opts),
		newConversationsCmd(opts),
		newNotificationsCmd(opts),
		newNotifyCmd(opts),
	)
	return root
}

// connect logs in and returns an authenticated API client.
func (o *options) connect(ctx context.Context) (*apiClient, error) {
	c := newAPIClient(o.api)
	if err := c.login(ctx, o.user, o.username); err != nil {
		return nil, err
	}
	return c, nil
}

func newLoginCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Log in and print the token",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.connect(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), c.token)
			return nil
		},
	}
}

func newHistoryCmd(opts *options) *cobra.Command {
	var (
		with   string
		before string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print a page of the conversation with another user",
		RunE: func(cmd *cobra.Command, args []string) error {
			convID, err := chat.ConversationID(opts.user, with)
			if err != nil {
				return err
			}
			c, err := opts.connect(cmd.Context())
			if err != nil {
				return err
			}

			q := url.Values{}
			if before != "" {
				q.Set("before", before)
			}
			if limit > 0 {
				q.Set("limit", fmt.Sprint(limit))
			}
			var page struct {
				Messages   []model.MessageView `json:"messages"`
				NextBefore string              `json:"next_before"`
			}
			path := "/conversations/" + convID + "/messages?" + q.Encode()
			if err := c.do(cmd.Context(), http.MethodGet, path, nil, &page); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, m := range page.Messages {
				fmt.Fprintf(out, "[%s] %s: %s\n", m.CreatedAt.Local().Format("2006-01-02 15:04"), m.Sender.Username, m.Text)
			}
			if page.NextBefore != "" {
				fmt.Fprintf(out, "-- older: --before %s\n", page.NextBefore)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&with, "with", "", "other participant")
	cmd.Flags().StringVar(&before, "before", "", "only messages older than this id")
	cmd.Flags().IntVar(&limit, "limit", 0, "page size")
	cmd.MarkFlagRequired("with")
	return cmd
}

func newConversationsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "conversations",
		Short: "List conversations with unread counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.connect(cmd.Context())
			if err != nil {
				return err
			}
			var convs []model.Conversation
			if err := c.do(cmd.Context(), http.MethodGet, "/conversations", nil, &convs); err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "WITH\tUNREAD\tLAST\tUPDATED")
			for _, cv := range convs {
				last := ""
				if cv.LastMessage != nil {
					last = cv.LastMessage.Text
				}
				fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", cv.OtherUser.Username, cv.UnreadCount, last, cv.LastUpdated.Local().Format("2006-01-02 15:04"))
			}
			return tw.Flush()
		},
	}
}

func newNotificationsCmd(opts *options) *cobra.Command {
	var readAll bool
	cmd := &cobra.Command{
		Use:   "notifications",
		Short: "List notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.connect(cmd.Context())
			if err != nil {
				return err
			}
			var list []model.Notification
			if err := c.do(cmd.Context(), http.MethodGet, "/notifications", nil, &list); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, n := range list {
				mark := " "
				if !n.Read {
					mark = "*"
				}
				fmt.Fprintf(out, "%s %s %s %s\n", mark, n.CreatedAt.Local().Format("2006-01-02 15:04"), n.SenderID, n.Message)
			}
			if readAll {
				return c.do(cmd.Context(), http.MethodPost, "/notifications/read", nil, nil)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&readAll, "read", false, "mark all as read after listing")
	return cmd
}

func newNotifyCmd(opts *options) *cobra.Command {
	var t model.NotificationTrigger
	var kind string
	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Trigger a notification for another user",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.connect(cmd.Context())
			if err != nil {
				return err
			}
			t.Type = model.NotificationType(kind)
			return c.do(cmd.Context(), http.MethodPost, "/notifications", t, nil)
		},
	}
	cmd.Flags().StringVar(&t.RecipientID, "to", "", "recipient")
	cmd.Flags().StringVar(&kind, "type", string(model.NotificationFollow), "like, comment, follow or mention")
	cmd.Flags().StringVar(&t.PostID, "post", "", "post id")
	cmd.Flags().StringVar(&t.CommentID, "comment", "", "comment id")
	cmd.Flags().StringVar(&t.Message, "message", "", "custom text")
	cmd.MarkFlagRequired("to")
	return cmd
}
