package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/metaopt/internal/config"
	"github.com/cwbudde/metaopt/internal/search"
)

var (
	serverURL string
	cancelRun bool
)

var statusCmd = &cobra.Command{
	Use:   "status [run-id]",
	Short: "Query server status or a specific run",
	Long: `Queries the server for run status information.
If no run-id is provided, lists all runs of the server.
If run-id is provided, shows detailed status for that run.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return listServerRuns(cmd.OutOrStdout(), serverURL)
		}
		if cancelRun {
			return cancelServerRun(cmd.OutOrStdout(), serverURL, args[0])
		}
		return getRunStatus(cmd.OutOrStdout(), serverURL, args[0])
	},
}

func init() {
	statusCmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "Server URL")
	statusCmd.Flags().BoolVar(&cancelRun, "cancel", false, "Cancel the run instead of showing it")
	rootCmd.AddCommand(statusCmd)
}

// serverJob mirrors the job fields the CLI displays.
type serverJob struct {
	ID         string           `json:"id"`
	State      string           `json:"state"`
	Config     config.RunConfig `json:"config"`
	Iterations int              `json:"iterations"`
	Best       *search.State    `json:"best"`
}

func listServerRuns(w io.Writer, baseURL string) error {
	resp, err := http.Get(baseURL + "/api/v1/runs")
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned error: %s", string(body))
	}

	var list struct {
		Jobs []serverJob `json:"jobs"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if len(list.Jobs) == 0 {
		fmt.Fprintln(w, "No runs found")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN ID\tSTATE\tCONFIG\tITERATIONS\tBEST")
	for _, j := range list.Jobs {
		best := "-"
		if j.Best.Evaluated() {
			best = fmt.Sprint(j.Best.Fitness)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d/%d\t%s\n", j.ID, j.State, describe(j.Config), j.Iterations, j.Config.MaxIterations, best)
	}
	return tw.Flush()
}

func getRunStatus(w io.Writer, baseURL, runID string) error {
	resp, err := http.Get(fmt.Sprintf("%s/api/v1/runs/%s/status", baseURL, runID))
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("run not found: %s", runID)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned error: %s", string(body))
	}

	var status struct {
		serverJob
		Phase   string  `json:"phase"`
		Elapsed float64 `json:"elapsed"`
		Rate    float64 `json:"rate"`
		Error   string  `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	fmt.Fprintf(w, "Run: %s\n", status.ID)
	fmt.Fprintf(w, "State: %s", status.State)
	if status.Phase != "" {
		fmt.Fprintf(w, " (%s)", status.Phase)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Configuration:")
	fmt.Fprintf(w, "  Problem: %s (dimension %d)\n", status.Config.Problem.Name, status.Config.Problem.Dimension)
	fmt.Fprintf(w, "  Algorithm: %s\n", status.Config.Algorithm)
	if status.Config.Acceptance != "" {
		fmt.Fprintf(w, "  Acceptance: %s\n", status.Config.Acceptance)
	}
	fmt.Fprintf(w, "  Iterations: %d\n", status.Config.MaxIterations)
	if status.Config.ChangeInterval > 0 {
		fmt.Fprintf(w, "  Change interval: %d\n", status.Config.ChangeInterval)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Progress:")
	fmt.Fprintf(w, "  Iterations: %d\n", status.Iterations)
	if status.Best.Evaluated() {
		fmt.Fprintf(w, "  Best: %v (%s)\n", status.Best.Fitness, status.Best.Origin)
	}
	elapsed := time.Duration(status.Elapsed * float64(time.Second))
	fmt.Fprintf(w, "  Elapsed: %s\n", elapsed.Round(time.Millisecond))
	if status.Rate > 0 {
		fmt.Fprintf(w, "  Throughput: %.0f iterations/sec\n", status.Rate)
	}

	if status.Error != "" {
		fmt.Fprintf(w, "\nError: %s\n", status.Error)
	}
	return nil
}

func cancelServerRun(w io.Writer, baseURL, runID string) error {
	req, err := http.NewRequest(http.MethodDelete, fmt.Sprintf("%s/api/v1/runs/%s", baseURL, runID), nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned error: %s", string(body))
	}
	fmt.Fprintf(w, "Cancelling %s\n", runID)
	return nil
}
