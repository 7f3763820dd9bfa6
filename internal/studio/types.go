package studio

import (
	"strings"
	"time"
)

// Session is a Studio collaboration container holding files and markups.
// Fields are normalized from the API response, so callers never see the raw
// PascalCase JSON.
type Session struct {
	ID          string
	Name        string
	Description string
	Status      string
	Restricted  bool
	Created     time.Time
	EndDate     time.Time
	InviteURL   string
	Version     int
}

// SessionPage is one page of the session listing.
type SessionPage struct {
	Sessions   []Session
	TotalCount int
	Page       int
	PageSize   int
}

// SessionFile is a document inside a Session. File IDs are numeric on the
// wire; Session IDs are strings.
type SessionFile struct {
	ID      int64
	Name    string
	Source  string
	Size    int64
	Rev     int
	Created time.Time
}

// FileUpload is the result of a completed upload: the confirmed file ID and
// the name derived from the local path. Full metadata comes from GetFile.
type FileUpload struct {
	FileID int64
	Name   string
}

// Snapshot is the state of an asynchronous snapshot job: a server-generated
// merged PDF of a file plus its markups. DownloadURL is a short-lived
// pre-signed URL, present only once the job has finished; never log it.
type Snapshot struct {
	Status      string
	DownloadURL string
}

// Ready reports whether the snapshot has finished and can be downloaded.
// The API spells the terminal status inconsistently, so the comparison is
// case-insensitive.
func (s *Snapshot) Ready() bool {
	return strings.EqualFold(s.Status, "complete") && s.DownloadURL != ""
}

// parseAPITime parses the API's ISO 8601 timestamps. Missing or malformed
// values come back as the zero time rather than failing the whole decode.
func parseAPITime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}

	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}
	}

	return t
}
