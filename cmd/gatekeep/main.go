// gatekeep is a small CLI client for the HTTP API: token lifecycle plus the
// admin role and user operations.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

type client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

func (c *client) do(method, path string, body []byte) (int, []byte, error) {
	url := strings.TrimRight(c.BaseURL, "/") + path
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, b, nil
}

func (c *client) run(method, path string, payload any) error {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return err
		}
	}
	status, respBody, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	if status/100 != 2 {
		return fmt.Errorf("status=%d body=%s", status, string(respBody))
	}
	printJSON(status, respBody)
	return nil
}

func printJSON(status int, body []byte) {
	var v any
	if json.Unmarshal(body, &v) == nil {
		p, _ := json.MarshalIndent(v, "", "  ")
		fmt.Println(string(p))
		return
	}
	if len(body) > 0 {
		fmt.Println(string(body))
	} else {
		fmt.Printf("status=%d\n", status)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	var (
		baseURL = envOr("GATEKEEP_URL", "http://localhost:8080")
		token   = envOr("GATEKEEP_TOKEN", "")
	)

	root := &cobra.Command{
		Use:   "gatekeep",
		Short: "Client for the gatekeep identity API",
	}
	root.PersistentFlags().StringVar(&baseURL, "url", baseURL, "API base URL (env GATEKEEP_URL)")
	root.PersistentFlags().StringVar(&token, "token", token, "Bearer token (env GATEKEEP_TOKEN)")

	cl := &client{HTTP: &http.Client{Timeout: 30 * time.Second}}
	root.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		cl.BaseURL = baseURL
		cl.Token = token
	}

	var email, password string
	loginCmd := &cobra.Command{
		Use:   "login",
		Short: "Exchange email and password for a token pair",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cl.run("POST", "/v1/tokens", map[string]string{
				"email":    email,
				"password": password,
			})
		},
	}
	loginCmd.Flags().StringVar(&email, "email", "", "account email")
	loginCmd.Flags().StringVar(&password, "password", "", "account password")
	_ = loginCmd.MarkFlagRequired("email")
	_ = loginCmd.MarkFlagRequired("password")

	whoamiCmd := &cobra.Command{
		Use:   "whoami",
		Short: "Resolve the bearer access token to its user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cl.run("POST", "/v1/tokens/me", nil)
		},
	}

	refreshCmd := &cobra.Command{
		Use:   "refresh",
		Short: "Mint a fresh access token from a bearer refresh token",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cl.run("POST", "/v1/tokens/refresh", nil)
		},
	}

	revokeCmd := &cobra.Command{
		Use:   "revoke",
		Short: "Revoke the bearer refresh token",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cl.run("DELETE", "/v1/tokens", nil)
		},
	}

	rolesCmd := &cobra.Command{
		Use:   "roles",
		Short: "Role administration",
	}
	rolesListCmd := &cobra.Command{
		Use:   "list",
		Short: "List roles",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cl.run("GET", "/v1/roles", nil)
		},
	}
	var roleName string
	var rolePerms []string
	rolesCreateCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a role",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cl.run("POST", "/v1/roles", map[string]any{
				"name":        roleName,
				"permissions": rolePerms,
			})
		},
	}
	rolesCreateCmd.Flags().StringVar(&roleName, "name", "", "role name")
	rolesCreateCmd.Flags().StringSliceVar(&rolePerms, "permission", nil, "permission full name, repeatable")
	_ = rolesCreateCmd.MarkFlagRequired("name")
	rolesDeleteCmd := &cobra.Command{
		Use:   "delete <role-id>",
		Short: "Delete a role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cl.run("DELETE", "/v1/roles/"+args[0], nil)
		},
	}
	rolesCmd.AddCommand(rolesListCmd, rolesCreateCmd, rolesDeleteCmd)

	usersCmd := &cobra.Command{
		Use:   "users",
		Short: "User administration",
	}
	var queryEmail string
	var queryLimit int
	usersListCmd := &cobra.Command{
		Use:   "list",
		Short: "List user profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := fmt.Sprintf("/v1/users?limit=%d", queryLimit)
			if queryEmail != "" {
				path += "&email=" + queryEmail
			}
			return cl.run("GET", path, nil)
		},
	}
	usersListCmd.Flags().StringVar(&queryEmail, "email", "", "filter by email substring")
	usersListCmd.Flags().IntVar(&queryLimit, "limit", 20, "page size")
	usersCmd.AddCommand(usersListCmd)

	root.AddCommand(loginCmd, whoamiCmd, refreshCmd, revokeCmd, rolesCmd, usersCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
