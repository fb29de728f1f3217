package main

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

func newConnectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "connect",
		Short: "Print the URL that connects the user's calendar",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := do(newClient(apiFlag).R(), http.MethodGet, userPath(userFlag, "/calendar/connect"))
			if err != nil {
				return err
			}
			var resp struct {
				AuthURL string `json:"auth_url"`
			}
			if err := json.Unmarshal(body, &resp); err != nil {
				return fmt.Errorf("decoding response: %w", err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Open this URL to connect your calendar:\n%s\n", resp.AuthURL)
			return err
		},
	}
}

func newDisconnectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disconnect",
		Short: "Disconnect the user's calendar",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := do(newClient(apiFlag).R(), http.MethodDelete, userPath(userFlag, "/calendar")); err != nil {
				return err
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "calendar disconnected")
			return err
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the user's calendar connection",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := do(newClient(apiFlag).R(), http.MethodGet, userPath(userFlag, "/calendar"))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), body)
		},
	}
}
