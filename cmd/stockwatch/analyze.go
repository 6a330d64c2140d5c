package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fentz26/stockwatch/internal/analysis"
	"github.com/fentz26/stockwatch/internal/models"
	"github.com/spf13/cobra"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [code...]",
	Short: "Submit analysis jobs to the daemon",
	Long:  `Submits one analysis job per code and prints the task ids. With --wait the command polls until every task has finished.`,
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAnalyze,
}

var (
	reportType   string
	waitForTasks bool
	pollInterval time.Duration
)

func init() {
	analyzeCmd.Flags().StringVar(&reportType, "report", string(models.ReportKindSimple), "Report type (simple, full)")
	analyzeCmd.Flags().BoolVar(&waitForTasks, "wait", false, "Wait for the tasks to finish")
	analyzeCmd.Flags().DurationVar(&pollInterval, "poll", 2*time.Second, "Polling interval with --wait")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	var ids []string
	for _, code := range args {
		body := map[string]string{
			"symbol":      code,
			"report_type": reportType,
		}
		resp, err := apiPost("/analysis", body)
		if err != nil {
			return err
		}

		var sub analysis.Submission
		if err := json.Unmarshal(resp, &sub); err != nil {
			return err
		}
		fmt.Printf("Submitted %s: %s\n", sub.Symbol, sub.TaskID)
		ids = append(ids, sub.TaskID)
	}

	if !waitForTasks {
		return nil
	}

	failed := 0
	for _, id := range ids {
		rec, err := waitForTask(id)
		if err != nil {
			return err
		}
		printTaskSummary(rec)
		if rec.Status == models.TaskStatusFailed {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d analyses failed", failed, len(ids))
	}
	return nil
}

func waitForTask(id string) (*models.TaskRecord, error) {
	for {
		rec, err := fetchTask(id)
		if err != nil {
			return nil, err
		}
		if rec.Status.IsTerminal() {
			return rec, nil
		}
		time.Sleep(pollInterval)
	}
}

func fetchTask(id string) (*models.TaskRecord, error) {
	resp, err := apiGet("/analysis/" + id)
	if err != nil {
		return nil, err
	}
	var rec models.TaskRecord
	if err := json.Unmarshal(resp, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func printTaskSummary(rec *models.TaskRecord) {
	switch {
	case rec.Result != nil:
		fmt.Printf("%s %s: %s (sentiment %.2f, trend %s)\n", rec.Symbol, rec.Status, rec.Result.OperationAdvice, rec.Result.SentimentScore, rec.Result.TrendPrediction)
	case rec.Error != "":
		fmt.Printf("%s %s: %s\n", rec.Symbol, rec.Status, rec.Error)
	default:
		fmt.Printf("%s %s\n", rec.Symbol, rec.Status)
	}
}
