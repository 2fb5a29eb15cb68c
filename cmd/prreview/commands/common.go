package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/roasbeef/prreview/internal/hosting"
)

// resolveToken returns tokenFlag, falling back to $GITHUB_TOKEN.
func resolveToken() (string, error) {
	if tokenFlag != "" {
		return tokenFlag, nil
	}
	if tok := os.Getenv("GITHUB_TOKEN"); tok != "" {
		return tok, nil
	}
	return "", fmt.Errorf("no API token; set --token or $GITHUB_TOKEN")
}

// parseRepo splits "owner/name" into its parts.
func parseRepo(repo string) (owner, name string, err error) {
	parts := strings.SplitN(repo, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid --repo %q; expected owner/name", repo)
	}
	return parts[0], parts[1], nil
}

// getHost builds a hosting.Client from the resolved flags.
func getHost() (hosting.Client, string, string, error) {
	if repoFlag == "" {
		return nil, "", "", fmt.Errorf("--repo is required")
	}
	owner, name, err := parseRepo(repoFlag)
	if err != nil {
		return nil, "", "", err
	}

	token, err := resolveToken()
	if err != nil {
		return nil, "", "", err
	}

	return hosting.NewGitHubClient(token), owner, name, nil
}

// outputJSON prints v as indented JSON.
func outputJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
