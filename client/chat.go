package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/mahaj/lionsphere/pkg/chat"
	"github.com/mahaj/lionsphere/pkg/model"
	"github.com/mahaj/lionsphere/pkg/realtime"
)

func newChatCmd(opts *options) *cobra.Command {
	var dmUser string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Open an interactive conversation with another user",
		Long: `Lines typed are stored through the API and relayed live through the gateway.
Commands: /typing, /stop, /read, /quit.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, opts, dmUser)
		},
	}
	cmd.Flags().StringVar(&dmUser, "dm", "", "user id to chat with")
	cmd.MarkFlagRequired("dm")
	return cmd
}

func runChat(cmd *cobra.Command, opts *options, dmUser string) error {
	ctx := cmd.Context()
	convID, err := chat.ConversationID(opts.user, dmUser)
	if err != nil {
		return err
	}

	// 1. Login to get token
	log.Printf("Logging in as %s...", opts.user)
	api, err := opts.connect(ctx)
	if err != nil {
		return err
	}

	// 2. Connect to WebSocket with token
	u := url.URL{Scheme: "ws", Host: opts.gateway, Path: "/ws"}
	log.Printf("connecting to %s", u.String())
	header := http.Header{}
	header.Add("Authorization", "Bearer "+api.token)
	c, _, err := websocket.DefaultDialer.Dial(u.String(), header)
	if err != nil {
		return err
	}
	defer c.Close()

	// The write side is owned by the stdin goroutine after this point.
	if err := writeEvent(c, realtime.EventIdentify, realtime.IdentifyData{UserID: opts.user}); err != nil {
		return err
	}

	done := make(chan struct{})

	// 3. Start goroutine to read events
	go func() {
		defer close(done)
		for {
			_, raw, err := c.ReadMessage()
			if err != nil {
				log.Println("read:", err)
				return
			}
			var env realtime.Envelope
			if err := json.Unmarshal(raw, &env); err != nil {
				log.Printf("Received raw: %s", raw)
				continue
			}
			if line := render(env, opts.user); line != "" {
				fmt.Printf("\r%s\n> ", line)
			}
		}
	}()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	quit := make(chan struct{})

	// 4. Read from stdin and send messages
	go func() {
		defer close(quit)
		scanner := bufio.NewScanner(os.Stdin)
		fmt.Print("> ")
		for scanner.Scan() {
			text := strings.TrimSpace(scanner.Text())
			var err error
			switch text {
			case "":
			case "/quit":
				return
			case "/typing":
				err = writeEvent(c, realtime.EventTyping, realtime.TypingData{ConversationID: convID, UserID: opts.user})
			case "/stop":
				err = writeEvent(c, realtime.EventStopTyping, realtime.TypingData{ConversationID: convID, UserID: opts.user})
			case "/read":
				err = api.do(ctx, http.MethodPost, "/conversations/"+convID+"/read", nil, nil)
			default:
				err = sendMessage(ctx, c, api, opts.user, dmUser, convID, text)
			}
			if err != nil {
				log.Println("error:", err)
			}
			fmt.Print("> ")
		}
	}()

	select {
	case <-done:
		return nil
	case <-quit:
	case <-interrupt:
		log.Println("interrupt")
	}

	// Cleanly close the connection by sending a close message and then
	// waiting (with timeout) for the server to close the connection.
	if err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")); err != nil {
		return err
	}
	select {
	case <-done:
	case <-time.After(time.Second):
	}
	return nil
}

// sendMessage stores the message, then relays it for immediate display.
func sendMessage(ctx context.Context, c *websocket.Conn, api *apiClient, from, to, convID, text string) error {
	var stored model.MessageView
	req := map[string]string{"recipient_id": to, "conversation_id": convID, "text": text}
	if err := api.do(ctx, http.MethodPost, "/messages", req, &stored); err != nil {
		return err
	}
	return writeEvent(c, realtime.EventSend, realtime.SendData{
		RecipientID:    to,
		SenderID:       from,
		Text:           stored.Text,
		ConversationID: convID,
	})
}

func writeEvent(c *websocket.Conn, event realtime.EventName, data any) error {
	b, err := realtime.Encode(event, data)
	if err != nil {
		return err
	}
	return c.WriteMessage(websocket.TextMessage, b)
}

// render formats an event for the terminal. Acks and unknown events print
// nothing.
func render(env realtime.Envelope, self string) string {
	switch env.Event {
	case realtime.EventOnlineUsers:
		var d realtime.OnlineUsersData
		if json.Unmarshal(env.Data, &d) == nil {
			return "online: " + strings.Join(d.Users, ", ")
		}
	case realtime.EventStatus:
		var d realtime.StatusData
		if json.Unmarshal(env.Data, &d) == nil && d.UserID != self {
			return fmt.Sprintf("%s is %s", d.UserID, d.Status)
		}
	case realtime.EventReceive:
		var d realtime.ReceiveData
		if json.Unmarshal(env.Data, &d) == nil {
			return fmt.Sprintf("%s: %s", d.SenderID, d.Text)
		}
	case realtime.EventTyping:
		var d realtime.TypingData
		if json.Unmarshal(env.Data, &d) == nil {
			return fmt.Sprintf("User %s is typing...", d.UserID)
		}
	case realtime.EventNotification:
		var n model.Notification
		if json.Unmarshal(env.Data, &n) == nil {
			return fmt.Sprintf("[%s] %s %s", n.Type, n.SenderID, n.Message)
		}
	case realtime.EventError:
		var d realtime.ErrorData
		if json.Unmarshal(env.Data, &d) == nil {
			return "error: " + d.Message
		}
	}
	return ""
}
