package main

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/bluebeam-community/studio-go/internal/studio"
)

func newFilesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "files",
		Short: "Manage documents in a session",
	}

	cmd.AddCommand(newFilesLsCmd())
	cmd.AddCommand(newFilesStatCmd())
	cmd.AddCommand(newFilesRmCmd())

	return cmd
}

func newFilesLsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls <session-id>",
		Short: "List documents in a session",
		Args:  cobra.ExactArgs(1),
		RunE:  runFilesLs,
	}
}

func newFilesStatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stat <session-id> <file-id>",
		Short: "Display document metadata",
		Args:  cobra.ExactArgs(2),
		RunE:  runFilesStat,
	}
}

func newFilesRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <session-id> <file-id>",
		Short: "Delete a document from a session (not supported by the API)",
		Args:  cobra.ExactArgs(2),
		RunE:  runFilesRm,
	}
}

// parseFileID parses a numeric file ID argument. File IDs are numeric on
// the wire, unlike the string session IDs.
func parseFileID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid file ID %q (expected a number)", arg)
	}

	return id, nil
}

// fileJSON is the JSON output schema for a session document.
type fileJSON struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Source  string `json:"source,omitempty"`
	Size    int64  `json:"size"`
	Rev     int    `json:"rev"`
	Created string `json:"created,omitempty"`
}

func fileToJSON(f *studio.SessionFile) fileJSON {
	out := fileJSON{
		ID:     f.ID,
		Name:   f.Name,
		Source: f.Source,
		Size:   f.Size,
		Rev:    f.Rev,
	}

	if !f.Created.IsZero() {
		out.Created = f.Created.Format(time.RFC3339)
	}

	return out
}

func runFilesLs(cmd *cobra.Command, args []string) error {
	sessionID := args[0]
	ctx := cmd.Context()

	client, logger, err := apiClient()
	if err != nil {
		return err
	}

	logger.Debug("listing session files", "session_id", sessionID)

	files, err := client.ListFiles(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("listing files in session %s: %w", sessionID, err)
	}

	if flagJSON {
		out := make([]fileJSON, 0, len(files))
		for i := range files {
			out = append(out, fileToJSON(&files[i]))
		}

		return encodeJSON(out)
	}

	printFilesTable(files)

	return nil
}

func printFilesTable(files []studio.SessionFile) {
	sort.Slice(files, func(i, j int) bool {
		return files[i].Name < files[j].Name
	})

	headers := []string{"ID", "NAME", "SIZE", "REV", "CREATED"}
	rows := make([][]string, 0, len(files))

	for i := range files {
		f := &files[i]
		rows = append(rows, []string{
			strconv.FormatInt(f.ID, 10),
			f.Name,
			formatSize(f.Size),
			strconv.Itoa(f.Rev),
			formatTime(f.Created),
		})
	}

	printTable(os.Stdout, headers, rows)
}

func runFilesStat(cmd *cobra.Command, args []string) error {
	sessionID := args[0]

	fileID, err := parseFileID(args[1])
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	client, logger, err := apiClient()
	if err != nil {
		return err
	}

	logger.Debug("fetching file metadata", "session_id", sessionID, "file_id", fileID)

	file, err := client.GetFile(ctx, sessionID, fileID)
	if err != nil {
		return fmt.Errorf("fetching file %d in session %s: %w", fileID, sessionID, err)
	}

	if flagJSON {
		return encodeJSON(fileToJSON(file))
	}

	printFileText(file)

	return nil
}

func printFileText(f *studio.SessionFile) {
	fmt.Printf("ID:      %d\n", f.ID)
	fmt.Printf("Name:    %s\n", f.Name)
	fmt.Printf("Size:    %s (%d bytes)\n", formatSize(f.Size), f.Size)
	fmt.Printf("Rev:     %d\n", f.Rev)

	if f.Source != "" {
		fmt.Printf("Source:  %s\n", f.Source)
	}

	if !f.Created.IsZero() {
		fmt.Printf("Created: %s\n", f.Created.Format("2006-01-02 15:04:05 UTC"))
	}
}

func runFilesRm(cmd *cobra.Command, args []string) error {
	sessionID := args[0]

	fileID, err := parseFileID(args[1])
	if err != nil {
		return err
	}

	client, _, err := apiClient()
	if err != nil {
		return err
	}

	// Always fails with the documented API gap. The command exists so the
	// gap is discoverable instead of being a silently missing feature.
	return client.DeleteFile(cmd.Context(), sessionID, fileID)
}
