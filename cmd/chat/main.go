// Command chat is a small terminal shell around the dialogue engine: it
// wipes durable history on launch, then runs a single-topic conversation
// loop with typewriter-paced replies.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"notechat/internal/dialogue"
	"notechat/internal/domain"
	"notechat/internal/integrations/dialogueapi"
	"notechat/internal/repository"
)

// Topic ids persisted by builds that still shipped mock data; purged once
// per cache version.
var legacyMockTopicIDs = []string{
	"kp-001", "kp-002",
	"kp-p001", "kp-p002", "kp-p003", "kp-p004", "kp-p005",
	"kp-n001", "kp-n002", "kp-n003", "kp-n004", "kp-n005",
}

func main() {
	var (
		apiBaseURL = flag.String("api", "http://localhost:8080/api", "dialogue API base URL")
		dataDir    = flag.String("data-dir", defaultDataDir(), "directory for durable conversation records")
		quota      = flag.Int64("quota-bytes", 5<<20, "durable storage quota in bytes")
		topicID    = flag.String("topic-id", "kp-manual", "topic id to converse about")
		topicTitle = flag.String("topic-title", "Ad-hoc topic", "topic title")
		topicDesc  = flag.String("topic-desc", "", "topic description")
	)
	flag.Parse()

	kv, err := repository.NewFileKV(*dataDir, *quota)
	if err != nil {
		slog.Error("failed to open durable store", "err", err)
		os.Exit(1)
	}
	adapter, err := repository.NewAdapter(kv, slog.Default())
	if err != nil {
		slog.Error("failed to create store adapter", "err", err)
		os.Exit(1)
	}

	// Launch policy: history is ephemeral across restarts. The one-shot
	// legacy purge runs first so the version marker still advances.
	if err := adapter.PurgeLegacy(legacyMockTopicIDs); err != nil {
		slog.Warn("legacy purge failed", "err", err)
	}
	if err := adapter.PurgeAll(); err != nil {
		slog.Error("failed to purge conversation history", "err", err)
		os.Exit(1)
	}

	client, err := dialogueapi.NewClient(*apiBaseURL)
	if err != nil {
		slog.Error("failed to create dialogue client", "err", err)
		os.Exit(1)
	}

	store := dialogue.NewStore(adapter)
	reveal := dialogue.NewScheduler()
	session, err := dialogue.NewSession(store, client, adapter, dialogue.WithRevealScheduler(reveal))
	if err != nil {
		slog.Error("failed to create session", "err", err)
		os.Exit(1)
	}

	topic := domain.Topic{ID: *topicID, Title: *topicTitle, Description: *topicDesc}
	session.SwitchTopic(topic)

	fmt.Printf("Topic: %s\nType a question, or /quit to exit.\n\n", topic.Title)
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "/quit" {
			return
		}

		conv, err := session.SendMessage(context.Background(), topic, line)
		switch {
		case errors.Is(err, dialogue.ErrEmptyMessage):
			continue
		case errors.Is(err, dialogue.ErrSendInFlight):
			fmt.Println("(still waiting for the previous reply)")
			continue
		}

		var remoteErr *dialogue.RemoteError
		if errors.As(err, &remoteErr) {
			fmt.Printf("! %s\n", remoteErr.Reason)
			continue
		}

		var exhausted *repository.StorageExhaustedError
		if errors.As(err, &exhausted) {
			fmt.Println("! storage is full; this turn was not saved")
		} else if err != nil {
			slog.Error("send failed", "err", err)
			continue
		}

		if conv == nil || len(conv.Messages) == 0 {
			continue
		}
		printRevealed(reveal, conv.Messages[len(conv.Messages)-1])
	}
}

// printRevealed types the assistant reply to stdout at the scheduler's
// pace, or prints it in full when the scheduler classifies it as stale.
func printRevealed(reveal *dialogue.Scheduler, msg domain.Message) {
	done := make(chan struct{})
	phase := reveal.Observe(msg, func(_ int, visible string) {
		fmt.Printf("\r%s", visible)
	}, func() {
		close(done)
	})
	if phase == dialogue.PhaseComplete {
		fmt.Println(msg.Content)
		return
	}
	select {
	case <-done:
	case <-time.After(2 * time.Minute):
		reveal.Cancel(msg.ID)
	}
	fmt.Println()
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".notechat"
	}
	return filepath.Join(home, ".notechat", "dialogues")
}
