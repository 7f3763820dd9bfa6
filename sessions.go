package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/bluebeam-community/studio-go/internal/studio"
)

func newSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage Studio Sessions",
	}

	cmd.AddCommand(newSessionsListCmd())
	cmd.AddCommand(newSessionsCreateCmd())
	cmd.AddCommand(newSessionsShowCmd())
	cmd.AddCommand(newSessionsRmCmd())

	return cmd
}

func newSessionsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions visible to the authenticated user",
		Args:  cobra.NoArgs,
		RunE:  runSessionsList,
	}

	cmd.Flags().Int("page", 1, "page number (1-based)")
	cmd.Flags().Int("page-size", 50, "sessions per page")

	return cmd
}

func newSessionsCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a new session",
		Args:  cobra.ExactArgs(1),
		RunE:  runSessionsCreate,
	}

	cmd.Flags().String("description", "", "session description")
	cmd.Flags().Bool("restricted", false, "restrict the session to invited users")

	return cmd
}

func newSessionsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <session-id>",
		Short: "Display session details",
		Args:  cobra.ExactArgs(1),
		RunE:  runSessionsShow,
	}
}

func newSessionsRmCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rm <session-id>",
		Short: "Delete a session",
		Long: `Delete a Studio Session. This removes the session for every collaborator,
along with its files and markups. There is no undo.`,
		Args: cobra.ExactArgs(1),
		RunE: runSessionsRm,
	}

	cmd.Flags().Bool("force", false, "delete without confirmation")

	return cmd
}

// sessionJSON is the JSON output schema for a session.
type sessionJSON struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status,omitempty"`
	Restricted  bool   `json:"restricted"`
	Created     string `json:"created,omitempty"`
	EndDate     string `json:"end_date,omitempty"`
	InviteURL   string `json:"invite_url,omitempty"`
	Version     int    `json:"version,omitempty"`
}

func sessionToJSON(s *studio.Session) sessionJSON {
	out := sessionJSON{
		ID:          s.ID,
		Name:        s.Name,
		Description: s.Description,
		Status:      s.Status,
		Restricted:  s.Restricted,
		InviteURL:   s.InviteURL,
		Version:     s.Version,
	}

	if !s.Created.IsZero() {
		out.Created = s.Created.Format(time.RFC3339)
	}

	if !s.EndDate.IsZero() {
		out.EndDate = s.EndDate.Format(time.RFC3339)
	}

	return out
}

func runSessionsList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	page, err := cmd.Flags().GetInt("page")
	if err != nil {
		return err
	}

	pageSize, err := cmd.Flags().GetInt("page-size")
	if err != nil {
		return err
	}

	client, logger, err := apiClient()
	if err != nil {
		return err
	}

	logger.Debug("listing sessions", "page", page, "page_size", pageSize)

	result, err := client.ListSessions(ctx, page, pageSize)
	if err != nil {
		return fmt.Errorf("listing sessions: %w", err)
	}

	if flagJSON {
		return printSessionsJSON(result)
	}

	printSessionsTable(result)

	return nil
}

// sessionListJSON is the JSON output schema for sessions list.
type sessionListJSON struct {
	Sessions   []sessionJSON `json:"sessions"`
	TotalCount int           `json:"total_count"`
	Page       int           `json:"page"`
	PageSize   int           `json:"page_size"`
}

func printSessionsJSON(page *studio.SessionPage) error {
	out := sessionListJSON{
		Sessions:   make([]sessionJSON, 0, len(page.Sessions)),
		TotalCount: page.TotalCount,
		Page:       page.Page,
		PageSize:   page.PageSize,
	}

	for i := range page.Sessions {
		out.Sessions = append(out.Sessions, sessionToJSON(&page.Sessions[i]))
	}

	return encodeJSON(out)
}

func printSessionsTable(page *studio.SessionPage) {
	headers := []string{"ID", "NAME", "STATUS", "CREATED"}
	rows := make([][]string, 0, len(page.Sessions))

	for i := range page.Sessions {
		s := &page.Sessions[i]
		rows = append(rows, []string{s.ID, s.Name, s.Status, formatTime(s.Created)})
	}

	printTable(os.Stdout, headers, rows)

	if page.TotalCount > len(page.Sessions) {
		statusf(flagQuiet, "Showing %d of %d sessions (use --page to see more).\n",
			len(page.Sessions), page.TotalCount)
	}
}

func runSessionsCreate(cmd *cobra.Command, args []string) error {
	name := args[0]
	ctx := cmd.Context()

	opts := studio.CreateSessionOptions{}

	description, err := cmd.Flags().GetString("description")
	if err != nil {
		return err
	}

	opts.Description = description

	// Only send Restricted when the user asked for it, so the server
	// default stays in charge otherwise.
	if cmd.Flags().Changed("restricted") {
		restricted, flagErr := cmd.Flags().GetBool("restricted")
		if flagErr != nil {
			return flagErr
		}

		opts.Restricted = &restricted
	}

	client, logger, err := apiClient()
	if err != nil {
		return err
	}

	logger.Debug("creating session", "name", name)

	session, err := client.CreateSession(ctx, name, opts)
	if err != nil {
		return fmt.Errorf("creating session %q: %w", name, err)
	}

	if flagJSON {
		return encodeJSON(sessionToJSON(session))
	}

	statusf(flagQuiet, "Created session %s (%s)\n", session.ID, session.Name)

	if session.InviteURL != "" {
		statusf(flagQuiet, "Invite URL: %s\n", session.InviteURL)
	}

	return nil
}

func runSessionsShow(cmd *cobra.Command, args []string) error {
	sessionID := args[0]
	ctx := cmd.Context()

	client, logger, err := apiClient()
	if err != nil {
		return err
	}

	logger.Debug("fetching session", "session_id", sessionID)

	session, err := client.GetSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("fetching session %s: %w", sessionID, err)
	}

	if flagJSON {
		return encodeJSON(sessionToJSON(session))
	}

	printSessionText(session)

	return nil
}

func printSessionText(s *studio.Session) {
	fmt.Printf("ID:          %s\n", s.ID)
	fmt.Printf("Name:        %s\n", s.Name)

	if s.Description != "" {
		fmt.Printf("Description: %s\n", s.Description)
	}

	fmt.Printf("Status:      %s\n", s.Status)
	fmt.Printf("Restricted:  %t\n", s.Restricted)

	if !s.Created.IsZero() {
		fmt.Printf("Created:     %s\n", s.Created.Format("2006-01-02 15:04:05 UTC"))
	}

	if !s.EndDate.IsZero() {
		fmt.Printf("Ends:        %s\n", s.EndDate.Format("2006-01-02 15:04:05 UTC"))
	}

	if s.InviteURL != "" {
		fmt.Printf("Invite URL:  %s\n", s.InviteURL)
	}

	if s.Version != 0 {
		fmt.Printf("Version:     %d\n", s.Version)
	}
}

// rmJSONOutput is the JSON output schema for the rm commands.
type rmJSONOutput struct {
	Deleted string `json:"deleted"`
}

func runSessionsRm(cmd *cobra.Command, args []string) error {
	sessionID := args[0]
	ctx := cmd.Context()

	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	// Deleting a session destroys a shared workspace, so demand explicit
	// intent instead of an interactive prompt that breaks scripting.
	if !force {
		return fmt.Errorf("deleting session %s removes it for every collaborator; re-run with --force to confirm", sessionID)
	}

	client, logger, err := apiClient()
	if err != nil {
		return err
	}

	if err := client.DeleteSession(ctx, sessionID); err != nil {
		return fmt.Errorf("deleting session %s: %w", sessionID, err)
	}

	logger.Debug("session deleted", "session_id", sessionID)

	if flagJSON {
		return encodeJSON(rmJSONOutput{Deleted: sessionID})
	}

	statusf(flagQuiet, "Deleted session %s\n", sessionID)

	return nil
}
