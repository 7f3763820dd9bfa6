// Mints a Studio token file from a long-lived refresh token, so CI can run
// the integration and live e2e suites without the interactive login flow.
// The refresh token itself comes from a one-time 'studio-go login' on a
// developer machine.
//
// Usage: STUDIO_TEST_REFRESH_TOKEN=... go run ./cmd/mint-test-token --region US --out token.json
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/bluebeam-community/studio-go/internal/studio"
	"github.com/bluebeam-community/studio-go/internal/tokenfile"
)

func main() {
	region := flag.String("region", "US", "Studio region the refresh token was issued in")
	out := flag.String("out", "token.json", "path to write the minted token file")
	flag.Parse()

	clientID := os.Getenv("STUDIO_TEST_CLIENT_ID")
	clientSecret := os.Getenv("STUDIO_TEST_CLIENT_SECRET")
	refreshToken := os.Getenv("STUDIO_TEST_REFRESH_TOKEN")

	if clientID == "" || clientSecret == "" || refreshToken == "" {
		fmt.Fprintln(os.Stderr, "STUDIO_TEST_CLIENT_ID, STUDIO_TEST_CLIENT_SECRET and STUDIO_TEST_REFRESH_TOKEN must be set")
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	client, err := studio.NewClientForRegion(*region, studio.Credentials{
		ClientID:     clientID,
		ClientSecret: clientSecret,
	}, nil, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "building client: %v\n", err)
		os.Exit(1)
	}

	tokens := client.Tokens()
	tokens.SetToken(&studio.Token{RefreshToken: refreshToken, ObtainedAt: time.Now()})

	tok, err := tokens.Refresh(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "refreshing token: %v\n", err)
		os.Exit(1)
	}

	meta := map[string]string{
		tokenfile.MetaRegion: *region,
		tokenfile.MetaScope:  tok.Scope,
	}

	if err := tokenfile.Save(*out, tok.OAuth2Token(), meta); err != nil {
		fmt.Fprintf(os.Stderr, "saving token file: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Token minted. Saved to %s\n", *out)
}
