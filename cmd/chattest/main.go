// Command chattest drives concurrent chat traffic through the realtime listener.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"devlink/pkg/client"

	"github.com/google/uuid"
)

// Metrics tracks the test results
type Metrics struct {
	ConnectionsAttempted atomic.Int64
	ConnectionsSuccess   atomic.Int64
	ConnectionsFailed    atomic.Int64
	MessagesSent         atomic.Int64
	MessagesReceived     atomic.Int64
	Errors               atomic.Int64
}

var metrics Metrics

func main() {
	apiURL := flag.String("api", "http://localhost:5000", "API base URL")
	wsURL := flag.String("ws", "ws://localhost:5001", "Realtime base URL")
	pairs := flag.Int("pairs", 25, "Number of chatting user pairs")
	interval := flag.Duration("interval", 5*time.Second, "Delay between messages per client")
	duration := flag.Duration("duration", 30*time.Second, "Test duration")
	flag.Parse()

	log.Printf("Starting chat stress test against %s / %s with %d pairs for %v", *apiURL, *wsURL, *pairs, *duration)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < *pairs; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := runPair(ctx, *apiURL, *wsURL, i, *interval); err != nil {
				metrics.Errors.Add(1)
				log.Printf("pair %d: %v", i, err)
			}
		}(i)
		// Stagger setup so registration is not rate limited in bursts.
		time.Sleep(50 * time.Millisecond)
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	select {
	case <-time.After(*duration):
		log.Println("Test duration reached")
	case <-interrupt:
		log.Println("Interrupted")
	}

	cancel()
	wg.Wait()
	printMetrics()
}

// runPair registers two fresh users, opens their chat and has both sides
// talk until ctx is done.
func runPair(ctx context.Context, apiURL, wsURL string, id int, interval time.Duration) error {
	var users [2]*client.Client
	var ids [2]uint
	for side := range users {
		c, err := client.New(apiURL)
		if err != nil {
			return err
		}
		suffix := uuid.NewString()[:8]
		username := fmt.Sprintf("load_%d_%s", id, suffix)
		email := username + "@loadtest.local"
		if err := c.Register(ctx, username, email, "password123"); err != nil {
			return fmt.Errorf("register: %w", err)
		}
		u, err := c.Login(ctx, email, "password123")
		if err != nil {
			return fmt.Errorf("login: %w", err)
		}
		users[side], ids[side] = c, u.ID
	}

	chat, err := users[0].OpenChat(ctx, ids[1])
	if err != nil {
		return fmt.Errorf("open chat: %w", err)
	}

	var wg sync.WaitGroup
	for side, c := range users {
		wg.Add(1)
		go func(side int, c *client.Client) {
			defer wg.Done()
			runClient(ctx, c, wsURL, chat.ID, fmt.Sprintf("pair %d side %d", id, side), interval)
		}(side, c)
	}
	wg.Wait()
	return nil
}

func runClient(ctx context.Context, c *client.Client, wsURL string, chatID uint, name string, interval time.Duration) {
	metrics.ConnectionsAttempted.Add(1)
	sock, err := c.Dial(ctx, wsURL)
	if err != nil {
		metrics.ConnectionsFailed.Add(1)
		metrics.Errors.Add(1)
		return
	}
	defer func() { _ = sock.Close() }()
	metrics.ConnectionsSuccess.Add(1)

	if err := sock.JoinChat(chatID); err != nil {
		metrics.Errors.Add(1)
		return
	}

	// Read loop
	go func() {
		for {
			evt, err := sock.Next(time.Hour)
			if err != nil {
				return
			}
			switch evt.Event {
			case "receive_message":
				metrics.MessagesReceived.Add(1)
			case "error":
				metrics.Errors.Add(1)
			}
		}
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := sock.Send(chatID, "Stress test message from "+name); err != nil {
				metrics.Errors.Add(1)
				return
			}
			metrics.MessagesSent.Add(1)
		}
	}
}

func printMetrics() {
	log.Println("Test Results")
	log.Println("============")
	log.Printf("Connections Attempted: %d", metrics.ConnectionsAttempted.Load())
	log.Printf("Connections Successful: %d", metrics.ConnectionsSuccess.Load())
	log.Printf("Connections Failed: %d", metrics.ConnectionsFailed.Load())
	log.Printf("Messages Sent: %d", metrics.MessagesSent.Load())
	log.Printf("Messages Received: %d", metrics.MessagesReceived.Load())
	log.Printf("Total Errors: %d", metrics.Errors.Load())
}
