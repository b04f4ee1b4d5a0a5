package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"bcos/internal/session"
)

// sessionsCmd lists past analysis sessions
var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List past analysis sessions",
	RunE:  runSessionsList,
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	store, err := session.Open(sessionRoot, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	sessions, err := store.List(context.Background())
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Println("No sessions found.")
		return nil
	}

	fmt.Println(strings.Repeat("-", 78))
	fmt.Printf("%-10s %-24s %-18s %-10s %s\n", "ID", "COMPANY", "MODE", "STATUS", "CREATED")
	fmt.Println(strings.Repeat("-", 78))
	for _, s := range sessions {
		fmt.Printf("%-10s %-24s %-18s %-10s %s\n",
			s.ID[:8], clip(s.Company, 24), s.Mode, s.Status, s.CreatedAt.Format("2006-01-02 15:04"))
	}
	fmt.Println(strings.Repeat("-", 78))
	fmt.Printf("Total: %d sessions\n", len(sessions))
	return nil
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
