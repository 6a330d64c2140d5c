package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/fentz26/stockwatch/internal/models"
	"github.com/spf13/cobra"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Inspect analysis tasks",
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent tasks held by the daemon",
	RunE:  runTaskList,
}

var taskShowCmd = &cobra.Command{
	Use:   "show [task-id]",
	Short: "Show task details",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskShow,
}

var taskHistoryCmd = &cobra.Command{
	Use:   "history [code]",
	Short: "List archived tasks, optionally for one code",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTaskHistory,
}

var taskLimit int

func init() {
	taskCmd.AddCommand(taskListCmd, taskShowCmd, taskHistoryCmd)

	taskListCmd.Flags().IntVar(&taskLimit, "limit", 20, "Maximum number of tasks")
	taskHistoryCmd.Flags().IntVar(&taskLimit, "limit", 20, "Maximum number of tasks")
}

func runTaskList(cmd *cobra.Command, args []string) error {
	return listTasks("/analysis?limit=" + strconv.Itoa(taskLimit))
}

func runTaskHistory(cmd *cobra.Command, args []string) error {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(taskLimit))
	if len(args) == 1 {
		q.Set("symbol", args[0])
	}
	return listTasks("/analysis/history?" + q.Encode())
}

func listTasks(path string) error {
	resp, err := apiGet(path)
	if err != nil {
		return err
	}

	var tasks []models.TaskRecord
	if err := json.Unmarshal(resp, &tasks); err != nil {
		return err
	}

	if len(tasks) == 0 {
		fmt.Println("No tasks found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCODE\tREPORT\tSTATUS\tSTARTED\tOUTCOME")
	for _, t := range tasks {
		outcome := ""
		if t.Result != nil {
			outcome = t.Result.OperationAdvice
		} else if t.Error != "" {
			outcome = truncate(t.Error, 40)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", t.ID, t.Symbol, t.ReportKind, t.Status, formatTime(t.StartedAt), outcome)
	}
	w.Flush()
	return nil
}

func runTaskShow(cmd *cobra.Command, args []string) error {
	task, err := fetchTask(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("ID:        %s\n", task.ID)
	fmt.Printf("Code:      %s\n", task.Symbol)
	fmt.Printf("Report:    %s\n", task.ReportKind)
	fmt.Printf("Status:    %s\n", task.Status)
	fmt.Printf("Submitted: %s\n", formatTime(&task.SubmittedAt))
	fmt.Printf("Started:   %s\n", formatTime(task.StartedAt))
	fmt.Printf("Finished:  %s\n", formatTime(task.FinishedAt))
	if task.Error != "" {
		fmt.Printf("Error:     %s\n", task.Error)
	}
	if r := task.Result; r != nil {
		fmt.Println("\n--- RESULT ---")
		fmt.Printf("Name:      %s\n", r.Name)
		fmt.Printf("Advice:    %s\n", r.OperationAdvice)
		fmt.Printf("Trend:     %s\n", r.TrendPrediction)
		fmt.Printf("Sentiment: %.2f\n", r.SentimentScore)
		if r.Summary != "" {
			fmt.Println()
			fmt.Println(r.Summary)
		}
	}
	return nil
}

// --- Helpers ---

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
