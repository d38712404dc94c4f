package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"screener/internal/apiclient"
	"screener/internal/gateway"
)

// taskFile is the accepted shape of a submit input file when it is not a
// bare list of resumes.
type taskFile struct {
	JobTitle string `yaml:"job_title"`
	Resumes  []any  `yaml:"resumes"`
}

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var jobTitle string
	var taskID string
	var follow bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "submit <resumes.(json|yaml)|->",
		Short: "Submit resumes for screening and print the scheduled interviews",
		Long: "Submit reads either a list of resume records or a mapping with job_title and\n" +
			"resumes keys, in JSON or YAML. --job-title overrides the file's job title.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			title, resumes, err := parseTaskFile(data)
			if err != nil {
				return err
			}
			if strings.TrimSpace(jobTitle) != "" {
				title = jobTitle
			}
			if strings.TrimSpace(title) == "" {
				return errors.New("job title is required (set job_title in the file or pass --job-title)")
			}
			if taskID == "" {
				taskID = "workflow_" + strconv.FormatInt(time.Now().UnixMilli(), 10)
			}
			titleJSON, _ := json.Marshal(title)
			req := gateway.Request{
				TaskID: taskID,
				Data:   gateway.RequestData{Resumes: resumes, JobTitle: titleJSON},
			}

			return ctx.withClient(func(client *apiclient.Client) error {
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				runCtx := cmd.Context()
				if runCtx == nil {
					runCtx = context.Background()
				}

				stopFollow := func() {}
				if follow && !jsonOutput {
					done := make(chan struct{})
					streamCtx, cancel := context.WithCancel(runCtx)
					go func() {
						defer close(done)
						followRun(streamCtx, client, taskID, out, colorize)
					}()
					// The stream closes on its own once the run is terminal.
					stopFollow = func() {
						select {
						case <-done:
						case <-time.After(time.Second):
						}
						cancel()
						<-done
					}
				}

				resp, err := client.Submit(runCtx, req)
				stopFollow()
				if err != nil {
					var apiErr *apiclient.APIError
					if errors.As(err, &apiErr) && apiErr.Stage != "" {
						return fmt.Errorf("task %s failed at %s: %s", taskID, apiErr.Stage, apiErr.Message)
					}
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, resp)
				}
				fmt.Fprintf(out, "Task %s: %d interview(s) scheduled\n", resp.TaskID, len(resp.Result.Schedules))
				fmt.Fprintln(out, renderSchedules(resp.Result.Schedules, colorize))
				if len(resp.Warnings) > 0 {
					fmt.Fprintf(out, "\n%d warning(s):\n", len(resp.Warnings))
					fmt.Fprintln(out, renderWarnings(resp.Warnings, colorize))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&jobTitle, "job-title", "", "Job title to screen against")
	cmd.Flags().StringVar(&taskID, "task-id", "", "Task id (defaults to workflow_<unix ms>)")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Print status updates while the run progresses")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the raw JSON response")
	return cmd
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read resumes: %w", err)
	}
	return data, nil
}

// parseTaskFile accepts JSON or YAML, since JSON documents are valid YAML.
func parseTaskFile(data []byte) (string, json.RawMessage, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return "", nil, fmt.Errorf("parse resumes: %w", err)
	}
	var (
		title   string
		records []any
	)
	switch value := doc.(type) {
	case []any:
		records = value
	case map[string]any:
		var file taskFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return "", nil, fmt.Errorf("parse task file: %w", err)
		}
		if _, ok := value["resumes"]; !ok {
			return "", nil, errors.New("task file has no resumes list")
		}
		title, records = file.JobTitle, file.Resumes
		if records == nil {
			records = []any{}
		}
	default:
		return "", nil, errors.New("resumes file must contain a list or a mapping with a resumes key")
	}
	raw, err := json.Marshal(records)
	if err != nil {
		return "", nil, fmt.Errorf("encode resumes: %w", err)
	}
	return title, raw, nil
}
