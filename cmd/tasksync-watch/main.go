// Command tasksync-watch subscribes to a tasksync server and prints the task
// list every time it changes. It demonstrates the synchronization agent:
// mutations made by any client appear here without polling.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/tasksync/tasksync/pkg/client"
	"github.com/tasksync/tasksync/pkg/logger"
	"github.com/tasksync/tasksync/pkg/models"
	"github.com/tasksync/tasksync/pkg/sync"
)

func main() {
	var (
		serverURL = flag.String("url", "http://localhost:8080", "server base URL")
		email     = flag.String("email", "", "account email")
		password  = flag.String("password", "", "account password")
		register  = flag.Bool("register", false, "create the account before logging in")
	)
	flag.Parse()

	if *email == "" || *password == "" {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *serverURL, *email, *password, *register); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, serverURL, email, password string, register bool) error {
	api := client.NewClient(serverURL)

	if register {
		if _, err := api.Register(ctx, email, password); err != nil {
			return fmt.Errorf("registration failed: %w", err)
		}
	}

	if _, err := api.Login(ctx, email, password); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	agent, err := sync.New(api, serverURL, logger.Default(), sync.WithOnChange(printTasks))
	if err != nil {
		return err
	}

	if err := agent.Connect(ctx); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	<-ctx.Done()

	return agent.Close(context.Background())
}

func printTasks(tasks []*models.Task) {
	fmt.Printf("--- %d task(s) ---\n", len(tasks))
	for _, t := range tasks {
		status := " "
		if t.IsComplete {
			status = "x"
		}
		due := ""
		if t.DueDate != nil {
			due = " (due " + t.DueDate.Format("2006-01-02") + ")"
		}
		fmt.Printf("[%s] %s%s\n", status, t.Title, due)
	}
}
