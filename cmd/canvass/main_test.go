package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const contactsCSV = `First Name,Last Name,Team,Tactic,Date,Attempts,Contacts,Not Home,Support,Oppose,Undecided
Jane,Doe,North,Phone,2025-01-03,10,4,0,2,1,1
Jane,Doe,North,Canvas,2025-01-04,6,0,0,0,0,0
Daniel,Kelly,South,SMS,2025-01-04,25,0,0,0,0,0
Daniel,Kelly,South,Phone,2025-01-03,8,0,3,0,0,0
`

// testEnv isolates a run from the caller's home directory, environment and
// API keys.
type testEnv struct {
	dir    string
	db     string
	config string
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	for _, k := range []string{
		"CANVASS_DB", "CANVASS_LLM", "CANVASS_GUARD_PHRASES", "CANVASS_ANSWER_TIMEOUT",
		"CANVASS_HISTORY_LIMIT", "OPENROUTER_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY",
	} {
		t.Setenv(k, "")
	}
	return testEnv{
		dir:    dir,
		db:     filepath.Join(dir, "canvass.db"),
		config: filepath.Join(dir, "missing.yaml"),
	}
}

func (e testEnv) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--db", e.db, "--config", e.config}, args...))
	err := root.Execute()
	return out.String(), err
}

func (e testEnv) seed(t *testing.T) {
	t.Helper()
	path := filepath.Join(e.dir, "contacts.csv")
	if err := os.WriteFile(path, []byte(contactsCSV), 0o600); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	out, err := e.run(t, "", "import", path)
	if err != nil {
		t.Fatalf("import: %v\n%s", err, out)
	}
	if !strings.Contains(out, "4 contact records") {
		t.Fatalf("import output missing record count:\n%s", out)
	}
}

func TestVersion(t *testing.T) {
	env := newTestEnv(t)
	out, err := env.run(t, "", "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if out != "canvass "+version+"\n" {
		t.Fatalf("version output = %q", out)
	}
}

func TestImport_DryRunWritesNothing(t *testing.T) {
	env := newTestEnv(t)
	path := filepath.Join(env.dir, "contacts.csv")
	if err := os.WriteFile(path, []byte(contactsCSV), 0o600); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	out, err := env.run(t, "", "import", "--dry-run", path)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if !strings.Contains(out, "Dry run mode") || !strings.Contains(out, "4 contact records") {
		t.Fatalf("unexpected output:\n%s", out)
	}

	out, err = env.run(t, "", "stats", "--json")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	var stats map[string]any
	if err := json.Unmarshal([]byte(out), &stats); err != nil {
		t.Fatalf("decode stats: %v\n%s", err, out)
	}
	if stats["contactCount"] != float64(0) {
		t.Fatalf("dry run wrote records: %v", stats)
	}
}

func TestImport_MissingPathFails(t *testing.T) {
	env := newTestEnv(t)
	out, err := env.run(t, "", "import", filepath.Join(env.dir, "nope.csv"))
	if err == nil {
		t.Fatalf("expected error, got output:\n%s", out)
	}
}

func TestAsk_Grounded(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)

	out, err := env.run(t, "", "ask", "--no-llm", "How many phone calls did Jane Doe make on 2025-01-03?")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if !strings.HasPrefix(out, "Based on the contact records") || !strings.Contains(out, "Total attempts: 10") {
		t.Fatalf("unexpected answer: %q", out)
	}
}

func TestAsk_JSONWithOverrides(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)

	out, err := env.run(t, "", "ask", "--json", "--tactic", "door knock", "--date", "2025-01-04",
		"How many did Jane Doe do?")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	var res struct {
		Answer       string `json:"answer"`
		FinishReason string `json:"finishReason"`
		Scalar       int    `json:"scalar"`
		Matched      int    `json:"matched"`
		Query        struct {
			Tactic string `json:"tactic"`
			Person string `json:"person"`
		} `json:"query"`
	}
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if res.Matched != 1 || res.Scalar != 6 || res.Query.Tactic != "Canvas" || res.Query.Person != "Jane Doe" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.FinishReason != "grounded" {
		t.Fatalf("finish reason = %q, want grounded", res.FinishReason)
	}
}

func TestAsk_EmptyStore(t *testing.T) {
	env := newTestEnv(t)
	out, err := env.run(t, "", "ask", "--no-llm", "How many texts were sent?")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if !strings.HasPrefix(out, "No matching records were found") {
		t.Fatalf("unexpected answer: %q", out)
	}
}

func TestChat_ReadsQuestionsUntilExit(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)

	stdin := "How many phone calls did Jane Doe make on 2025-01-03?\n\nHow many texts did Daniel Kelly send?\nexit\nHow many phone calls were made?\n"
	out, err := env.run(t, stdin, "chat", "--no-llm")
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if got := strings.Count(out, "> "); got != 2 {
		t.Fatalf("answered %d questions, want 2:\n%s", got, out)
	}
	if !strings.Contains(out, "Total attempts: 10") || !strings.Contains(out, "Total attempts: 25") {
		t.Fatalf("unexpected chat output:\n%s", out)
	}
}

func TestExtract(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)

	out, err := env.run(t, "", "extract", "how", "many", "doors", "did", "team", "south", "knock", "on", "2025-01-04")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	var res struct {
		Query struct {
			Tactic string `json:"tactic"`
			Team   string `json:"team"`
			Date   string `json:"date"`
		} `json:"query"`
	}
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if res.Query.Tactic != "Canvas" || res.Query.Team != "South" || res.Query.Date != "2025-01-04" {
		t.Fatalf("unexpected extraction: %+v", res.Query)
	}
}

func TestMetrics(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)

	tests := []struct {
		name   string
		args   []string
		scalar int
	}{
		{"all attempts", nil, 49},
		{"person", []string{"--person", "Daniel Kelly"}, 33},
		{"not home", []string{"--metric", "not home"}, 3},
		{"phone support", []string{"--tactic", "phone", "--metric", "support"}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"metrics", "--json"}, tt.args...)
			out, err := env.run(t, "", args...)
			if err != nil {
				t.Fatalf("metrics: %v", err)
			}
			var res struct {
				Scalar int `json:"scalar"`
			}
			if err := json.Unmarshal([]byte(out), &res); err != nil {
				t.Fatalf("decode: %v\n%s", err, out)
			}
			if res.Scalar != tt.scalar {
				t.Fatalf("scalar = %d, want %d", res.Scalar, tt.scalar)
			}
		})
	}

	t.Run("text", func(t *testing.T) {
		out, err := env.run(t, "", "metrics")
		if err != nil {
			t.Fatalf("metrics: %v", err)
		}
		for _, want := range []string{"Matched 4 records", "Total attempts:", "49", "Attempts by tactic", "Not reached"} {
			if !strings.Contains(out, want) {
				t.Errorf("output missing %q:\n%s", want, out)
			}
		}
	})

	t.Run("unknown metric", func(t *testing.T) {
		if _, err := env.run(t, "", "metrics", "--metric", "votes"); err == nil {
			t.Fatal("expected error for unknown metric")
		}
	})
}

func TestBatches_ListAndDelete(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "", "batches")
	if err != nil {
		t.Fatalf("batches: %v", err)
	}
	if !strings.Contains(out, "No batches imported yet") {
		t.Fatalf("unexpected output: %q", out)
	}

	env.seed(t)
	out, err = env.run(t, "", "batches", "--json")
	if err != nil {
		t.Fatalf("batches: %v", err)
	}
	var batches []struct {
		ID          string `json:"id"`
		RecordCount int    `json:"recordCount"`
	}
	if err := json.Unmarshal([]byte(out), &batches); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(batches) != 1 || batches[0].RecordCount != 4 {
		t.Fatalf("batches = %+v", batches)
	}

	out, err = env.run(t, "", "batches", "--delete", batches[0].ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !strings.Contains(out, "4 records") {
		t.Fatalf("unexpected delete output: %q", out)
	}

	out, err = env.run(t, "", "stats")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if !strings.Contains(out, "Records:  0") {
		t.Fatalf("records remain after delete:\n%s", out)
	}
}

func TestStats_Text(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)

	out, err := env.run(t, "", "stats")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	for _, want := range []string{"Records:  4", "People:   2", "Teams:    2", "Dates:    2025-01-03 to 2025-01-04"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestAudit(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)

	out, err := env.run(t, "", "audit")
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	if !strings.Contains(out, "No problems found") {
		t.Fatalf("clean import should pass the audit:\n%s", out)
	}

	// Importing the same file twice duplicates every row.
	env.seed(t)
	out, err = env.run(t, "", "audit", "--json")
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	var report struct {
		Conflicts []struct {
			Duplicate bool `json:"duplicate"`
		} `json:"conflicts"`
	}
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(report.Conflicts) != 4 {
		t.Fatalf("conflicts = %d, want 4", len(report.Conflicts))
	}
	for _, c := range report.Conflicts {
		if !c.Duplicate {
			t.Fatalf("expected exact duplicates: %+v", report.Conflicts)
		}
	}
}

func TestInvalidConfigFails(t *testing.T) {
	env := newTestEnv(t)
	t.Setenv("CANVASS_ANSWER_TIMEOUT", "soon")
	if _, err := env.run(t, "", "stats"); err == nil {
		t.Fatal("expected config error")
	}
}
