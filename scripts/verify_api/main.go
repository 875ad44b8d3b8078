package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/mahaj/lionsphere/pkg/model"
)

type LoginResponse struct {
	Token string `json:"token"`
}

var apiAddr = flag.String("api", "http://localhost:8081", "api service address")

// call performs one request and fails the run on any non-2xx answer.
func call(method, path, token string, body, out any) {
	var r io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		r = bytes.NewReader(b)
	}
	req, _ := http.NewRequest(method, *apiAddr+path, r)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Add("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		log.Fatalf("%s %s: %s %s", method, path, resp.Status, raw)
	}
	log.Printf("%s %s: %s", method, path, resp.Status)
	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			log.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
}

func login(userID string) string {
	var resp LoginResponse
	call(http.MethodPost, "/login", "", map[string]string{"user_id": userID, "username": userID}, &resp)
	fmt.Printf("Token for %s: %s...\n", userID, resp.Token[:10])
	return resp.Token
}

func main() {
	flag.Parse()

	// 1. Login
	alice := login("userA")
	bob := login("userB")

	// 2. Send a DM and read it back
	var sent model.MessageView
	call(http.MethodPost, "/messages", alice, map[string]string{"recipient_id": "userB", "text": "hello from verify_api"}, &sent)
	log.Printf("Stored message %d in %s", sent.ID, sent.ConversationID)

	var page struct {
		Messages []model.MessageView `json:"messages"`
	}
	call(http.MethodGet, "/conversations/"+sent.ConversationID+"/messages?limit=5", bob, nil, &page)
	log.Printf("History has %d messages", len(page.Messages))

	// 3. Unread bookkeeping
	var unread struct {
		Unread int64 `json:"unread"`
	}
	call(http.MethodGet, "/conversations/unread", bob, nil, &unread)
	log.Printf("userB unread before read: %d", unread.Unread)
	call(http.MethodPost, "/conversations/"+sent.ConversationID+"/read", bob, nil, nil)
	call(http.MethodGet, "/conversations/unread", bob, nil, &unread)
	log.Printf("userB unread after read: %d", unread.Unread)

	var convs []model.Conversation
	call(http.MethodGet, "/conversations", bob, nil, &convs)
	log.Printf("userB has %d conversations", len(convs))

	// 4. Presence and notifications
	call(http.MethodGet, "/presence", alice, nil, nil)
	call(http.MethodPost, "/notifications", alice, map[string]string{"recipient_id": "userB", "type": "follow"}, nil)
	call(http.MethodGet, "/notifications/unread", bob, nil, &unread)
	log.Printf("userB unread notifications: %d (delivery is asynchronous)", unread.Unread)
}
