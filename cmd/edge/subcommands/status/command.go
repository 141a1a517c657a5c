// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package status queries a running agent's health endpoint and renders it.
package status

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/geotunnel/edge-agent/cmd/edge/command"
	"github.com/geotunnel/edge-agent/pkg/config"
)

// Command builds the status subcommand.
func Command(globalParams *command.GlobalParams) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print the running agent's status",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Setup(globalParams.ConfFilePath); err != nil {
				return err
			}
			return printStatus(jsonOutput)
		},
	}
	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "print raw JSON")
	return cmd
}

func printStatus(jsonOutput bool) error {
	url := fmt.Sprintf("http://127.0.0.1:%d/api/v1/health", config.Edge.GetInt("api.port"))
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return errors.Wrap(err, "agent not reachable, is it running?")
	}
	defer resp.Body.Close()

	var health struct {
		Status  string `json:"status"`
		Version string `json:"version"`
		Uptime  string `json:"uptime"`
		Sources []struct {
			ID       string `json:"id"`
			DataType string `json:"data_type"`
			Healthy  bool   `json:"healthy"`
		} `json:"sources"`
		Buffer struct {
			Received    int64   `json:"received"`
			Written     int64   `json:"written"`
			Dropped     int64   `json:"dropped"`
			Utilization float64 `json:"utilization"`
		} `json:"buffer"`
		Quality struct {
			OverallGrade string `json:"overall_grade"`
		} `json:"quality"`
	}
	raw := json.RawMessage{}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return errors.Wrap(err, "decoding health response")
	}
	if jsonOutput {
		fmt.Println(string(raw))
		return nil
	}
	if err := json.Unmarshal(raw, &health); err != nil {
		return errors.Wrap(err, "parsing health response")
	}

	statusColor := color.GreenString
	if health.Status != "ok" {
		statusColor = color.YellowString
	}
	fmt.Printf("%s\n", color.New(color.Bold).Sprintf("Edge Agent %s", health.Version))
	fmt.Printf("  Status: %s   Uptime: %s\n", statusColor(health.Status), health.Uptime)
	fmt.Printf("  Quality grade: %s\n", health.Quality.OverallGrade)
	fmt.Printf("  Buffer: %d received / %d written / %d dropped (%.0f%% full)\n",
		health.Buffer.Received, health.Buffer.Written, health.Buffer.Dropped,
		health.Buffer.Utilization*100)
	fmt.Println("  Sources:")
	for _, src := range health.Sources {
		mark := color.GreenString("up")
		if !src.Healthy {
			mark = color.RedString("down")
		}
		fmt.Printf("    %-20s %-12s %s\n", src.ID, src.DataType, mark)
	}
	return nil
}
