// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

const statusTimeout = 2 * time.Second

// ComponentStatus is the probe result for one running endpoint.
type ComponentStatus struct {
	Component string `json:"component"`
	URL       string `json:"url"`
	Reachable bool   `json:"reachable"`
	Status    int    `json:"status,omitempty"`
	Database  string `json:"database,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Healthy reports whether the endpoint answered 200.
func (s ComponentStatus) Healthy() bool {
	return s.Reachable && s.Status == http.StatusOK
}

type statusOptions struct {
	jsonOutput bool
	apiURL     string
	probeURL   string
	client     *http.Client
}

// NewStatusCmd creates the status command.
func NewStatusCmd() *cobra.Command {
	return newStatusCmd(nil)
}

func newStatusCmd(client *http.Client) *cobra.Command {
	opts := &statusOptions{client: client}
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Probe a running gatekeeper",
		Long: `Query the detailed health endpoint of the API and the readiness
probe of the metrics server. Exits non-zero when any endpoint is unhealthy.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "output status as JSON")
	cmd.Flags().StringVar(&opts.apiURL, "api-url", "", "API base URL (default derived from server.addr)")
	cmd.Flags().StringVar(&opts.probeURL, "probe-url", "", "metrics server base URL (default derived from metrics.addr)")
	return cmd
}

func runStatus(cmd *cobra.Command, opts *statusOptions) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	client := opts.client
	if client == nil {
		client = &http.Client{Timeout: statusTimeout}
	}

	apiURL := opts.apiURL
	if apiURL == "" {
		apiURL = baseURL(cfg.Server.Addr)
	}
	statuses := []ComponentStatus{queryAPI(client, apiURL)}

	probeURL := opts.probeURL
	if probeURL == "" && cfg.Metrics.Addr != "" {
		probeURL = baseURL(cfg.Metrics.Addr)
	}
	if probeURL != "" {
		statuses = append(statuses, queryProbe(client, probeURL))
	}

	if opts.jsonOutput {
		out, err := json.MarshalIndent(statuses, "", "  ")
		if err != nil {
			return oops.Code("STATUS_FORMAT_FAILED").Wrap(err)
		}
		cmd.Println(string(out))
	} else {
		cmd.Print(formatStatusTable(statuses))
	}

	for _, s := range statuses {
		if !s.Healthy() {
			return oops.Code("UNHEALTHY").With("component", s.Component).Errorf("%s is not healthy", s.Component)
		}
	}
	return nil
}

// baseURL turns a listen address into a loopback URL.
func baseURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port)
}

func queryAPI(client *http.Client, base string) ComponentStatus {
	s := ComponentStatus{Component: "api", URL: strings.TrimRight(base, "/") + "/api/health/detailed"}
	resp, err := client.Get(s.URL)
	if err != nil {
		s.Error = err.Error()
		return s
	}
	defer func() { _ = resp.Body.Close() }()
	s.Reachable = true
	s.Status = resp.StatusCode

	var body struct {
		Database string `json:"database"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		s.Error = fmt.Sprintf("decode health response: %v", err)
		return s
	}
	s.Database = body.Database
	return s
}

func queryProbe(client *http.Client, base string) ComponentStatus {
	s := ComponentStatus{Component: "probes", URL: strings.TrimRight(base, "/") + "/healthz/readiness"}
	resp, err := client.Get(s.URL)
	if err != nil {
		s.Error = err.Error()
		return s
	}
	_ = resp.Body.Close()
	s.Reachable = true
	s.Status = resp.StatusCode
	return s
}

func formatStatusTable(statuses []ComponentStatus) string {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "COMPONENT\tSTATE\tHTTP\tDATABASE\tURL")
	for _, s := range statuses {
		state := "healthy"
		switch {
		case !s.Reachable:
			state = "unreachable"
		case !s.Healthy():
			state = "unhealthy"
		}
		code, db := "-", "-"
		if s.Status != 0 {
			code = fmt.Sprint(s.Status)
		}
		if s.Database != "" {
			db = s.Database
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", s.Component, state, code, db, s.URL)
	}
	_ = w.Flush()
	return buf.String()
}
