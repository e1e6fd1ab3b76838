package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ChuLiYu/eventfold/internal/eventlog"
	"github.com/ChuLiYu/eventfold/internal/storage/wal"
	"github.com/ChuLiYu/eventfold/internal/views"
	"github.com/ChuLiYu/eventfold/pkg/event"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run cmd/demo/main.go <start|recover>")
		os.Exit(1)
	}

	mode := os.Args[1]
	dir := "./data/demo"

	b := eventlog.NewBuilder(dir).MaxLogSize(1 << 20)
	eventlog.RegisterView[views.TodoState](b, "todo", views.TodoReducer)
	el, err := b.Open()
	if err != nil {
		log.Fatalf("Failed to open event log: %v", err)
	}
	defer el.Close()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if mode == "start" {
		if err := el.RefreshAll(); err != nil {
			log.Fatalf("Failed to refresh views: %v", err)
		}
		existing, err := eventlog.View[views.TodoState](el, "todo")
		if err != nil {
			log.Fatalf("Failed to read todo view: %v", err)
		}

		if len(existing.Items) > 0 {
			fmt.Printf("\n⚠️  Found %d existing todo items (recovered from a previous run!)\n", len(existing.Items))
			fmt.Printf("💡 This proves: append-only log + snapshot = zero data loss\n")
			fmt.Printf("   Run 'go run ./cmd/demo recover' to inspect them,\n")
			fmt.Printf("   or remove %s to start fresh\n", dir)
			return
		}

		fmt.Printf("⚡ Appending 1000 todo.created events...\n")
		fmt.Printf("💡 Press Ctrl+C NOW to interrupt mid-burst and prove recoverability!\n\n")

		timestamp := time.Now().Unix()
		for i := 1; i <= 1000; i++ {
			id := fmt.Sprintf("todo-%04d-%d", i, timestamp)
			select {
			case <-sigChan:
				fmt.Println("\n\nInterrupted — the log already durably holds every event appended so far.")
				el.Close()
				return
			default:
			}

			_, err := el.Append(event.New("todo.created", map[string]interface{}{
				"id":    id,
				"title": fmt.Sprintf("task %d", i),
			}))
			if err != nil {
				log.Fatalf("Failed to append event: %v", err)
			}
			if i%100 == 0 {
				fmt.Printf("📊 Appended %d/1000\n", i)
			}
		}

		fmt.Printf("✓ Finished appending 1000 events\n")
	} else if mode == "recover" {
		if err := el.RefreshAll(); err != nil {
			log.Fatalf("Failed to refresh views: %v", err)
		}
		state, err := eventlog.View[views.TodoState](el, "todo")
		if err != nil {
			log.Fatalf("Failed to read todo view: %v", err)
		}

		size, err := el.Reader().ActiveLogSize()
		if err != nil {
			log.Fatalf("Failed to stat active log: %v", err)
		}

		fmt.Printf("\n📊 Recovered state:\n")
		fmt.Printf("  Todo items:      %d\n", len(state.Items))
		fmt.Printf("  Active log size: %d bytes\n", size)

		if len(state.Items) > 0 {
			fmt.Printf("\n✓ Recovered %d todo items from the log — no replay or manual repair needed.\n", len(state.Items))
		}

		if size > 0 {
			result, err := el.Reader().WaitForEvents(size, 0)
			if err != nil {
				log.Fatalf("Failed to check for new events: %v", err)
			}
			if result.Outcome == wal.NewData {
				fmt.Println("  (more events arrived while recovering)")
			}
		}
	} else {
		fmt.Printf("Unknown mode %q (expected start or recover)\n", mode)
		os.Exit(1)
	}
}
