package reconcile

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/thoreinstein/cfgmerge/internal/backup"
	"github.com/thoreinstein/cfgmerge/internal/document"
	"github.com/thoreinstein/cfgmerge/internal/errors"
	"github.com/thoreinstein/cfgmerge/internal/logging"
	"github.com/thoreinstein/cfgmerge/internal/merge"
)

var testNow = time.Date(2026, 3, 14, 15, 9, 26, 0, time.Local)

func newTestReconciler(opts ...Option) *Reconciler {
	m := backup.NewManager(backup.WithClock(func() time.Time { return testNow }))
	return New(append([]Option{WithBackupManager(m)}, opts...)...)
}

func testContext(t *testing.T) context.Context {
	return logging.NewContext(context.Background(), logging.ForTest(t))
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	return string(data)
}

func backupsOf(t *testing.T, path string) []string {
	t.Helper()
	matches, err := filepath.Glob(path + backup.Infix + "*")
	if err != nil {
		t.Fatalf("globbing backups: %v", err)
	}
	return matches
}

func run(t *testing.T, r *Reconciler, tmpl, user string) *Result {
	t.Helper()
	res, err := r.Run(testContext(t), tmpl, user)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	return res
}

func TestRun_CreatesMissingUserFile(t *testing.T) {
	dir := t.TempDir()
	tmpl := filepath.Join(dir, "template.json")
	user := filepath.Join(dir, "nested", "settings.json")
	const content = "{\"permissions\":{\"allow\":[\"Bash\"]}}"
	writeFile(t, tmpl, content)

	res := run(t, newTestReconciler(), tmpl, user)

	if res.Outcome != OutcomeCreated {
		t.Errorf("Outcome = %q, want %q", res.Outcome, OutcomeCreated)
	}
	if res.Kind != "settings" {
		t.Errorf("Kind = %q, want settings", res.Kind)
	}
	if res.Backup != nil {
		t.Errorf("Backup = %+v, want nil", res.Backup)
	}
	if got := readFile(t, user); got != content {
		t.Errorf("user file = %q, want verbatim template %q", got, content)
	}
	if b := backupsOf(t, user); len(b) != 0 {
		t.Errorf("unexpected backups: %v", b)
	}
}

func TestRun_CreatesMissingUserFileFromMalformedTemplate(t *testing.T) {
	dir := t.TempDir()
	tmpl := filepath.Join(dir, "template.json")
	user := filepath.Join(dir, "user.json")
	const content = `{"permissions":{"allow":["Bash"]},}`
	writeFile(t, tmpl, content)

	res := run(t, newTestReconciler(), tmpl, user)

	if res.Outcome != OutcomeCreated {
		t.Errorf("Outcome = %q, want %q", res.Outcome, OutcomeCreated)
	}
	if res.Kind != "" {
		t.Errorf("Kind = %q, want empty for an unparsable template", res.Kind)
	}
	if got := readFile(t, user); got != content {
		t.Errorf("user file = %q, want verbatim template %q", got, content)
	}
}

func TestRun_Upgrade(t *testing.T) {
	tests := []struct {
		name        string
		template    string
		user        string
		want        string
		wantChanges []merge.Change
	}{
		{
			name:     "permission added",
			template: `{"permissions":{"allow":["Bash","Read"]}}`,
			user:     `{"permissions":{"allow":["Bash"]}}`,
			want:     "{\n  \"permissions\": {\n    \"allow\": [\n      \"Bash\",\n      \"Read\"\n    ]\n  }\n}\n",
			wantChanges: []merge.Change{
				{Label: "Added permissions.allow", Items: []string{"Read"}},
			},
		},
		{
			name:     "existing plugin kept",
			template: `{"enabledPlugins":{"a":{"x":1},"b":{}}}`,
			user:     `{"enabledPlugins":{"a":{}}}`,
			want:     "{\n  \"enabledPlugins\": {\n    \"a\": {},\n    \"b\": {}\n  }\n}\n",
			wantChanges: []merge.Change{
				{Label: "Added plugins", Items: []string{"b"}},
			},
		},
		{
			name:     "mcp server added after user keys",
			template: `{"mcpServers":{"fs":{"command":"npx","args":["-y","server-fs"]}}}`,
			user:     `{"mcpServers":{"gh":{"url":"https://example.com/mcp?a=1&b=<2>"}}}`,
			want: "{\n  \"mcpServers\": {\n    \"gh\": {\n      \"url\": \"https://example.com/mcp?a=1&b=<2>\"\n    },\n" +
				"    \"fs\": {\n      \"command\": \"npx\",\n      \"args\": [\n        \"-y\",\n        \"server-fs\"\n      ]\n    }\n  }\n}\n",
			wantChanges: []merge.Change{
				{Label: "Added MCP servers", Items: []string{"fs"}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			tmpl := filepath.Join(dir, "template.json")
			user := filepath.Join(dir, "user.json")
			writeFile(t, tmpl, tt.template)
			writeFile(t, user, tt.user)

			res := run(t, newTestReconciler(), tmpl, user)

			if res.Outcome != OutcomeUpgraded {
				t.Errorf("Outcome = %q, want %q", res.Outcome, OutcomeUpgraded)
			}
			if !reflect.DeepEqual(res.Changes, tt.wantChanges) {
				t.Errorf("Changes = %+v, want %+v", res.Changes, tt.wantChanges)
			}
			if got := readFile(t, user); got != tt.want {
				t.Errorf("user file =\n%s\nwant\n%s", got, tt.want)
			}

			// The backup holds the exact pre-merge bytes
			if res.Backup == nil {
				t.Fatal("Backup = nil")
			}
			if want := user + ".bak.20260314150926"; res.Backup.Path != want {
				t.Errorf("Backup.Path = %q, want %q", res.Backup.Path, want)
			}
			if got := readFile(t, res.Backup.Path); got != tt.user {
				t.Errorf("backup = %q, want %q", got, tt.user)
			}

			if got := readFile(t, tmpl); got != tt.template {
				t.Errorf("template was modified: %q", got)
			}
		})
	}
}

func TestRun_ReplacesMalformedUserFile(t *testing.T) {
	dir := t.TempDir()
	tmpl := filepath.Join(dir, "template.json")
	user := filepath.Join(dir, "user.json")
	const template = `{"hooks":{}}`
	const broken = `{"hooks": {` + "\n"
	writeFile(t, tmpl, template)
	writeFile(t, user, broken)

	res := run(t, newTestReconciler(), tmpl, user)

	if res.Outcome != OutcomeReplaced {
		t.Errorf("Outcome = %q, want %q", res.Outcome, OutcomeReplaced)
	}
	if res.UserError == "" {
		t.Error("UserError is empty")
	}
	if got := readFile(t, user); got != template {
		t.Errorf("user file = %q, want %q", got, template)
	}
	if res.Backup == nil {
		t.Fatal("Backup = nil")
	}
	if got := readFile(t, res.Backup.Path); got != broken {
		t.Errorf("backup = %q, want %q", got, broken)
	}
}

func TestRun_ReplaceHookRunsBeforeMutation(t *testing.T) {
	for _, dryRun := range []bool{false, true} {
		t.Run(map[bool]string{false: "write", true: "dry run"}[dryRun], func(t *testing.T) {
			dir := t.TempDir()
			tmpl := filepath.Join(dir, "template.json")
			user := filepath.Join(dir, "user.json")
			const broken = `{"hooks": `
			writeFile(t, tmpl, `{"hooks":{}}`)
			writeFile(t, user, broken)

			var calls int
			hook := func(res *Result) {
				calls++
				if res.UserError == "" {
					t.Error("hook saw an empty UserError")
				}
				if got := readFile(t, user); got != broken {
					t.Errorf("user file already rewritten when hook ran: %q", got)
				}
				if b := backupsOf(t, user); len(b) != 0 {
					t.Errorf("backup already taken when hook ran: %v", b)
				}
			}

			res := run(t, newTestReconciler(WithReplaceHook(hook), WithDryRun(dryRun)), tmpl, user)

			if calls != 1 {
				t.Errorf("hook called %d times, want 1", calls)
			}
			if res.Outcome != OutcomeReplaced {
				t.Errorf("Outcome = %q, want %q", res.Outcome, OutcomeReplaced)
			}
		})
	}
}

func TestRun_ReplaceHookNotCalledForValidUser(t *testing.T) {
	dir := t.TempDir()
	tmpl := filepath.Join(dir, "template.json")
	user := filepath.Join(dir, "user.json")
	writeFile(t, tmpl, `{"hooks":{"Stop":[]}}`)
	writeFile(t, user, `{}`)

	called := false
	run(t, newTestReconciler(WithReplaceHook(func(*Result) { called = true })), tmpl, user)

	if called {
		t.Error("hook called for a well-formed user file")
	}
}

func TestRun_ReplacesNonObjectUserFile(t *testing.T) {
	dir := t.TempDir()
	tmpl := filepath.Join(dir, "template.json")
	user := filepath.Join(dir, "user.json")
	writeFile(t, tmpl, `{"mcpServers":{}}`)
	writeFile(t, user, `["not", "an", "object"]`)

	res := run(t, newTestReconciler(), tmpl, user)

	if res.Outcome != OutcomeReplaced {
		t.Errorf("Outcome = %q, want %q", res.Outcome, OutcomeReplaced)
	}
	if !strings.Contains(res.UserError, "array") {
		t.Errorf("UserError = %q, want it to mention the array root", res.UserError)
	}
	if got := readFile(t, user); got != `{"mcpServers":{}}` {
		t.Errorf("user file = %q", got)
	}
}

func TestRun_IdenticalFilesUpToDate(t *testing.T) {
	dir := t.TempDir()
	tmpl := filepath.Join(dir, "template.json")
	user := filepath.Join(dir, "user.json")
	const content = `{"enabledPlugins":{"a":{}},"permissions":{"allow":["Bash"],"deny":["Read(.env)"]},"hooks":{"Stop":[]}}`
	writeFile(t, tmpl, content)
	writeFile(t, user, content)

	before, err := os.Stat(user)
	if err != nil {
		t.Fatal(err)
	}

	res := run(t, newTestReconciler(), tmpl, user)

	if res.Outcome != OutcomeUpToDate {
		t.Errorf("Outcome = %q, want %q", res.Outcome, OutcomeUpToDate)
	}
	if len(res.Changes) != 0 {
		t.Errorf("Changes = %+v, want none", res.Changes)
	}
	if res.Backup != nil {
		t.Errorf("Backup = %+v, want nil", res.Backup)
	}
	if b := backupsOf(t, user); len(b) != 0 {
		t.Errorf("unexpected backups: %v", b)
	}
	if got := readFile(t, user); got != content {
		t.Errorf("up-to-date file was reformatted: %q", got)
	}

	after, err := os.Stat(user)
	if err != nil {
		t.Fatal(err)
	}
	if !after.ModTime().Equal(before.ModTime()) {
		t.Errorf("mtime changed from %v to %v", before.ModTime(), after.ModTime())
	}
}

func TestRun_SecondRunIsNoOp(t *testing.T) {
	dir := t.TempDir()
	tmpl := filepath.Join(dir, "template.json")
	user := filepath.Join(dir, "user.json")
	writeFile(t, tmpl, `{"permissions":{"allow":["Bash","Read"]},"hooks":{"Stop":[]}}`)
	writeFile(t, user, `{"theme":"dark"}`)

	r := newTestReconciler()
	if first := run(t, r, tmpl, user); first.Outcome != OutcomeUpgraded {
		t.Fatalf("first Outcome = %q, want %q", first.Outcome, OutcomeUpgraded)
	}
	merged := readFile(t, user)

	second := run(t, r, tmpl, user)
	if second.Outcome != OutcomeUpToDate {
		t.Errorf("second Outcome = %q, want %q", second.Outcome, OutcomeUpToDate)
	}
	if got := readFile(t, user); got != merged {
		t.Errorf("second run changed the file:\n%s", got)
	}
	if b := backupsOf(t, user); len(b) != 1 {
		t.Errorf("backups = %v, want exactly one", b)
	}
}

func TestRun_PreservesFileMode(t *testing.T) {
	dir := t.TempDir()
	tmpl := filepath.Join(dir, "template.json")
	user := filepath.Join(dir, "user.json")
	writeFile(t, tmpl, `{"hooks":{"Stop":[]}}`)
	if err := os.WriteFile(user, []byte(`{}`), 0600); err != nil {
		t.Fatal(err)
	}

	run(t, newTestReconciler(), tmpl, user)

	info, err := os.Stat(user)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}
}

func TestRun_DryRun(t *testing.T) {
	tests := []struct {
		name        string
		user        string
		wantOutcome Outcome
	}{
		{name: "upgrade", user: `{}`, wantOutcome: OutcomeUpgraded},
		{name: "malformed", user: `{`, wantOutcome: OutcomeReplaced},
		{name: "missing", wantOutcome: OutcomeCreated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			tmpl := filepath.Join(dir, "template.json")
			user := filepath.Join(dir, "user.json")
			writeFile(t, tmpl, `{"enabledPlugins":{"a":true}}`)
			if tt.user != "" {
				writeFile(t, user, tt.user)
			}

			res := run(t, newTestReconciler(WithDryRun(true)), tmpl, user)

			if res.Outcome != tt.wantOutcome {
				t.Errorf("Outcome = %q, want %q", res.Outcome, tt.wantOutcome)
			}
			if !res.DryRun {
				t.Error("DryRun = false")
			}
			if res.Backup != nil {
				t.Errorf("Backup = %+v, want nil", res.Backup)
			}
			if b := backupsOf(t, user); len(b) != 0 {
				t.Errorf("unexpected backups: %v", b)
			}

			if tt.user == "" {
				if _, err := os.Stat(user); !os.IsNotExist(err) {
					t.Errorf("dry run created %s", user)
				}
				return
			}
			if got := readFile(t, user); got != tt.user {
				t.Errorf("dry run modified the user file: %q", got)
			}
		})
	}
}

func TestRun_TemplateErrors(t *testing.T) {
	dir := t.TempDir()
	user := filepath.Join(dir, "user.json")
	writeFile(t, user, `{}`)

	t.Run("missing", func(t *testing.T) {
		_, err := newTestReconciler().Run(testContext(t), filepath.Join(dir, "nope.json"), user)
		if !errors.Is(err, ErrTemplateNotFound) {
			t.Errorf("Run() error = %v, want ErrTemplateNotFound", err)
		}
	})

	t.Run("malformed", func(t *testing.T) {
		tmpl := filepath.Join(dir, "bad.json")
		writeFile(t, tmpl, "{\n  \"a\": ,\n}")

		_, err := newTestReconciler().Run(testContext(t), tmpl, user)
		if !errors.Is(err, ErrInvalidTemplate) {
			t.Fatalf("Run() error = %v, want ErrInvalidTemplate", err)
		}

		var se *document.SyntaxError
		if !errors.As(err, &se) {
			t.Fatalf("expected *document.SyntaxError in %v", err)
		}
		if se.Line != 2 {
			t.Errorf("Line = %d, want 2", se.Line)
		}
	})

	t.Run("not an object", func(t *testing.T) {
		tmpl := filepath.Join(dir, "array.json")
		writeFile(t, tmpl, `[]`)

		_, err := newTestReconciler().Run(testContext(t), tmpl, user)
		if !errors.Is(err, ErrInvalidTemplate) {
			t.Errorf("Run() error = %v, want ErrInvalidTemplate", err)
		}
	})

	// None of the failures may touch the user file
	if got := readFile(t, user); got != `{}` {
		t.Errorf("user file = %q, want {}", got)
	}
	if b := backupsOf(t, user); len(b) != 0 {
		t.Errorf("unexpected backups: %v", b)
	}
}

func TestRun_MissingTemplateWithMissingUser(t *testing.T) {
	dir := t.TempDir()
	user := filepath.Join(dir, "user.json")

	_, err := newTestReconciler().Run(testContext(t), filepath.Join(dir, "nope.json"), user)
	if !errors.Is(err, ErrTemplateNotFound) {
		t.Errorf("Run() error = %v, want ErrTemplateNotFound", err)
	}
	if _, err := os.Stat(user); !os.IsNotExist(err) {
		t.Errorf("user file created without a template")
	}
}

func TestRun_KeepBackups(t *testing.T) {
	dir := t.TempDir()
	tmpl := filepath.Join(dir, "template.json")
	user := filepath.Join(dir, "user.json")
	writeFile(t, tmpl, `{"permissions":{"allow":["Read"]}}`)

	// Two stale backups from earlier runs
	writeFile(t, user+".bak.20250101000000", "old")
	writeFile(t, user+".bak.20250601000000", "older")
	writeFile(t, user, `{}`)

	res := run(t, newTestReconciler(WithKeepBackups(2)), tmpl, user)

	if len(res.Pruned) != 1 {
		t.Fatalf("Pruned = %+v, want one backup", res.Pruned)
	}
	if res.Pruned[0].ID != "20250101000000" {
		t.Errorf("pruned ID = %q, want 20250101000000", res.Pruned[0].ID)
	}

	got := backupsOf(t, user)
	slices.Sort(got)
	want := []string{user + ".bak.20250601000000", user + ".bak.20260314150926"}
	if !slices.Equal(got, want) {
		t.Errorf("remaining backups = %v, want %v", got, want)
	}
}

func TestRun_WritesThroughSymlink(t *testing.T) {
	dir := t.TempDir()
	tmpl := filepath.Join(dir, "template.json")
	real := filepath.Join(dir, "dotfiles", "settings.json")
	link := filepath.Join(dir, "settings.json")
	if err := os.MkdirAll(filepath.Dir(real), 0755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, tmpl, `{"hooks":{"Stop":[]}}`)
	writeFile(t, real, `{}`)
	if err := os.Symlink(real, link); err != nil {
		t.Fatal(err)
	}

	run(t, newTestReconciler(), tmpl, link)

	info, err := os.Lstat(link)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode()&os.ModeSymlink == 0 {
		t.Error("symlink replaced by a regular file")
	}
	if got := readFile(t, real); !strings.Contains(got, `"Stop"`) {
		t.Errorf("link target not updated: %q", got)
	}
}
