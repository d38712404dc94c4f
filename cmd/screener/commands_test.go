package main

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"screener/internal/gateway"
	"screener/internal/testsupport"
)

func TestConfigInitValidateShow(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := env.run(t, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")

	target := filepath.Join(t.TempDir(), "config.toml")
	out, err = env.run(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}
	if _, err := env.run(t, "config", "init", "--path", target); err == nil {
		t.Fatal("init must refuse to overwrite without --overwrite")
	}

	out, err = env.run(t, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "[workers]")
	requireContains(t, out, env.cfg.Workers.MatchURL)
}

func TestSubmitYAMLTaskFile(t *testing.T) {
	env := setupCLITestEnv(t)
	path := writeFile(t, "task.yaml", `
job_title: Platform Engineer
resumes:
  - id: r1
    name: Ann
  - id: r2
    name: Bo
`)

	out, err := env.run(t, "submit", path, "--task-id", "cli_yaml")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	requireContains(t, out, "Task cli_yaml: 2 interview(s) scheduled")
	requireContains(t, out, "Ann")
	requireContains(t, out, "2026-03-02 09:00")

	reqs := env.pipeline.Match.Requests()
	if len(reqs) != 1 || !strings.Contains(string(reqs[0].Data["job_title"]), "Platform Engineer") {
		t.Fatalf("job title not forwarded to match worker: %+v", reqs)
	}
}

func TestSubmitJSONListWithFlagTitle(t *testing.T) {
	env := setupCLITestEnv(t)
	path := writeFile(t, "resumes.json", string(testsupport.Resumes("Ann", "Bo", "Cy")))

	out, err := env.run(t, "submit", path, "--job-title", "SRE", "--task-id", "cli_json", "--json")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	var resp gateway.Response
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if resp.TaskID != "cli_json" || len(resp.Result.Schedules) != 3 {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestSubmitRequiresJobTitle(t *testing.T) {
	env := setupCLITestEnv(t)
	path := writeFile(t, "resumes.json", string(testsupport.Resumes("Ann")))

	_, err := env.run(t, "submit", path)
	if err == nil || !strings.Contains(err.Error(), "job title is required") {
		t.Fatalf("expected job title error, got %v", err)
	}
	if env.pipeline.Parse.Calls() != 0 {
		t.Fatal("nothing should reach the workers")
	}
}

func TestSubmitReportsFailedStage(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithScheduleFunc(func(testsupport.Envelope) (int, any) {
		return http.StatusServiceUnavailable, testsupport.Failure("calendar offline")
	}))
	path := writeFile(t, "resumes.json", string(testsupport.Resumes("Ann")))

	_, err := env.run(t, "submit", path, "--job-title", "SRE", "--task-id", "cli_fail")
	if err == nil {
		t.Fatal("expected failure")
	}
	requireContains(t, err.Error(), "failed at schedule")

	out, err := env.run(t, "inspect", "cli_fail")
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	requireContains(t, out, "Workflow failed at schedule")
	requireContains(t, out, "Ranking:")
}

func TestInspectUnknownRun(t *testing.T) {
	env := setupCLITestEnv(t)
	_, err := env.run(t, "inspect", "nope")
	if err == nil || !strings.Contains(err.Error(), "not known") {
		t.Fatalf("expected unknown run error, got %v", err)
	}
}

func TestStatusCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	out, err := env.run(t, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "[OK] running at")
	requireContains(t, out, "match")
}

func TestParseTaskFile(t *testing.T) {
	cases := []struct {
		name    string
		input   string
		title   string
		records int
		wantErr bool
	}{
		{name: "json list", input: `[{"name":"Ann"},{"name":"Bo"}]`, records: 2},
		{name: "yaml list", input: "- name: Ann\n", records: 1},
		{name: "json object", input: `{"job_title":"SRE","resumes":[{"name":"Ann"}]}`, title: "SRE", records: 1},
		{name: "empty list", input: `{"job_title":"SRE","resumes":[]}`, title: "SRE"},
		{name: "mapping without resumes", input: "job_title: SRE\n", wantErr: true},
		{name: "scalar", input: "42", wantErr: true},
		{name: "broken", input: "[{", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			title, raw, err := parseTaskFile([]byte(tc.input))
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			var records []json.RawMessage
			if err := json.Unmarshal(raw, &records); err != nil {
				t.Fatalf("resumes not a JSON array: %v", err)
			}
			if title != tc.title || len(records) != tc.records {
				t.Fatalf("got title %q and %d records", title, len(records))
			}
		})
	}
}
