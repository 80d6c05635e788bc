package main

import (
	"Promo/internal/chatclient"
	"Promo/internal/event"
	"Promo/internal/model"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

type flags struct {
	socketURL string
	apiURL    string
	userID    string
	verbose   bool
}

func main() {
	f := &flags{}

	app := &cli.Command{
		Name:      "chatctl",
		Usage:     "Talk to a Promo chat server from the terminal",
		UsageText: "chatctl [global options] command [command options]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "socket",
				Usage:       "websocket endpoint",
				Sources:     cli.EnvVars("PROMO_SOCKET_URL"),
				Value:       "ws://localhost:5001/ws",
				Destination: &f.socketURL,
			},
			&cli.StringFlag{
				Name:        "api",
				Usage:       "REST base url",
				Sources:     cli.EnvVars("PROMO_API_URL"),
				Value:       "http://localhost:5000",
				Destination: &f.apiURL,
			},
			&cli.StringFlag{
				Name:        "user",
				Aliases:     []string{"u"},
				Usage:       "your user id",
				Sources:     cli.EnvVars("PROMO_USER_ID"),
				Required:    true,
				Destination: &f.userID,
			},
			&cli.BoolFlag{
				Name:        "verbose",
				Usage:       "log client events",
				Destination: &f.verbose,
			},
		},
		Commands: []*cli.Command{
			sendCmd(f),
			historyCmd(f),
			listenCmd(f),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func sendCmd(f *flags) *cli.Command {
	var (
		to      string
		text    string
		image   string
		timeout time.Duration
	)

	return &cli.Command{
		Name:      "send",
		Usage:     "Send one message and wait for the server to confirm it",
		UsageText: "chatctl --user <id> send --to <id> --text <text>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "to", Usage: "receiver user id", Required: true, Destination: &to},
			&cli.StringFlag{Name: "text", Usage: "message text", Destination: &text},
			&cli.StringFlag{Name: "image", Usage: "image url", Destination: &image},
			&cli.DurationFlag{Name: "timeout", Usage: "confirmation timeout", Value: chatclient.DefaultPendingTimeout, Destination: &timeout},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			client, err := chatclient.Dial(ctx, f.socketURL, f.userID, newLogger(f.verbose), chatclient.Options{
				PendingTimeout: timeout,
				SweepInterval:  100 * time.Millisecond,
			})
			if err != nil {
				return err
			}
			defer client.Close()

			entry, err := client.Send(to, text, image)
			if err != nil {
				return err
			}

			tl := client.Timeline(to)
			ticker := time.NewTicker(50 * time.Millisecond)
			defer ticker.Stop()

			for {
				select {
				case <-ticker.C:
					e, _ := tl.Lookup(entry.TempID)
					switch e.Status {
					case chatclient.StatusConfirmed:
						fmt.Fprintf(c.Root().Writer, "sent %s at %s\n", e.ServerID, e.Timestamp.Format(time.RFC3339))
						return nil
					case chatclient.StatusFailed:
						return fmt.Errorf("message %s failed", e.TempID)
					}
				case <-client.Done():
					return errors.New("connection closed before confirmation")
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		},
	}
}

func historyCmd(f *flags) *cli.Command {
	var with string

	return &cli.Command{
		Name:      "history",
		Usage:     "Print the conversation with another user",
		UsageText: "chatctl --user <id> history --with <id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "with", Usage: "other user id", Required: true, Destination: &with},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			views, err := fetchHistory(ctx, f.apiURL, f.userID, with)
			if err != nil {
				return err
			}

			tl := chatclient.NewTimeline(f.userID, with)
			tl.Seed(views)

			w := c.Root().Writer
			for _, e := range tl.Entries() {
				printEntry(w, f.userID, e)
			}
			return nil
		},
	}
}

func listenCmd(f *flags) *cli.Command {
	var markSeen bool

	return &cli.Command{
		Name:      "listen",
		Usage:     "Stay online and print incoming messages",
		UsageText: "chatctl --user <id> listen [--mark-seen]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "mark-seen", Usage: "acknowledge messages as they arrive", Destination: &markSeen},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			client, err := chatclient.Dial(ctx, f.socketURL, f.userID, newLogger(f.verbose), chatclient.Options{})
			if err != nil {
				return err
			}
			defer client.Close()

			w := c.Root().Writer
			for {
				select {
				case ev := <-client.Events():
					printEvent(w, client, ev, markSeen)
				case <-client.Done():
					return errors.New("connection closed")
				case <-ctx.Done():
					return nil
				}
			}
		},
	}
}

func printEvent(w io.Writer, client *chatclient.Client, ev event.WsEvent, markSeen bool) {
	switch ev.Event {
	case event.EventMessageDelivered:
		var v model.MessageView
		if err := ev.Decode(&v); err != nil {
			return
		}
		entries := client.Timeline(v.Sender.ID).Entries()
		if len(entries) > 0 {
			printEntry(w, client.UserID(), entries[len(entries)-1])
		}
		if markSeen {
			_ = client.MarkSeen(v.Sender.ID)
		}
	case event.EventSeenUpdate:
		var p model.SeenUpdate
		if err := ev.Decode(&p); err == nil {
			fmt.Fprintf(w, "%s saw %d message(s)\n", p.ViewerID, p.Count)
		}
	case event.EventPeerTyping:
		var p model.PeerTyping
		if err := ev.Decode(&p); err == nil {
			fmt.Fprintf(w, "%s is typing...\n", p.UserID)
		}
	case event.EventOnlineUsers:
		fmt.Fprintf(w, "online: %v\n", client.Online())
	}
}

func fetchHistory(ctx context.Context, base, userID, otherID string) ([]model.MessageView, error) {
	endpoint, err := url.JoinPath(base, "api", "messages", userID, otherID)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get history: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("get history: %s: %s", resp.Status, body)
	}

	var out struct {
		Messages []model.MessageView `json:"messages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	return out.Messages, nil
}

func printEntry(w io.Writer, selfID string, e chatclient.Entry) {
	who := e.SenderID
	if e.Mine(selfID) {
		who = "me"
	}

	receipt := "✓"
	if e.Seen {
		receipt = "✓✓"
	}

	body := e.Text
	if e.Image != "" {
		body += " [image " + e.Image + "]"
	}
	fmt.Fprintf(w, "%s  %-24s %s %s\n", e.Timestamp.Local().Format("2006-01-02 15:04"), who, receipt, body)
}

func newLogger(verbose bool) *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
