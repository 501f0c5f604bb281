package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/thoreinstein/cfgmerge/internal/backup"
	"github.com/thoreinstein/cfgmerge/internal/errors"
	"github.com/thoreinstein/cfgmerge/internal/merge"
	"github.com/thoreinstein/cfgmerge/internal/reconcile"
)

func upgraded() *reconcile.Result {
	return &reconcile.Result{
		Outcome:      reconcile.OutcomeUpgraded,
		TemplatePath: "/opt/tpl/settings.json",
		UserPath:     "/home/me/.claude/settings.json",
		Kind:         "settings",
		Changes: []merge.Change{
			{Label: "Added plugins", Items: []string{"b"}},
			{Label: "Added permissions.allow", Items: []string{"Read", "Write"}},
		},
		Backup: &backup.Backup{
			ID:        "20260314150926",
			Path:      "/home/me/.claude/settings.json.bak.20260314150926",
			CreatedAt: time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC),
			Size:      42,
		},
	}
}

func TestReportText(t *testing.T) {
	tests := []struct {
		name    string
		res     *reconcile.Result
		wantOut string
		wantErr string
	}{
		{
			name: "created",
			res: &reconcile.Result{
				Outcome:  reconcile.OutcomeCreated,
				UserPath: "/home/me/.mcp.json",
			},
			wantOut: "  Created /home/me/.mcp.json (new)\n",
		},
		{
			name: "created dry run",
			res: &reconcile.Result{
				Outcome:  reconcile.OutcomeCreated,
				UserPath: "/home/me/.mcp.json",
				DryRun:   true,
			},
			wantOut: "  Would create /home/me/.mcp.json (new)\n",
		},
		{
			name: "up to date",
			res: &reconcile.Result{
				Outcome:  reconcile.OutcomeUpToDate,
				UserPath: "/home/me/.claude/settings.json",
			},
			wantOut: "  settings.json: already up to date\n",
		},
		{
			name: "upgraded",
			res:  upgraded(),
			wantOut: "  Upgraded settings.json (backup: settings.json.bak.20260314150926):\n" +
				"  Added plugins: b\n" +
				"  Added permissions.allow: Read, Write\n",
		},
		{
			name: "upgraded dry run",
			res: func() *reconcile.Result {
				r := upgraded()
				r.DryRun = true
				r.Backup = nil
				return r
			}(),
			wantOut: "  Would upgrade settings.json:\n" +
				"  Added plugins: b\n" +
				"  Added permissions.allow: Read, Write\n",
		},
		{
			name: "upgraded with pruning",
			res: func() *reconcile.Result {
				r := upgraded()
				r.Changes = r.Changes[:1]
				r.Pruned = []backup.Backup{{ID: "20250101000000", Path: "/home/me/.claude/settings.json.bak.20250101000000"}}
				return r
			}(),
			wantOut: "  Upgraded settings.json (backup: settings.json.bak.20260314150926):\n" +
				"  Added plugins: b\n" +
				"  Pruned backup: settings.json.bak.20250101000000\n",
		},
		{
			name: "replaced",
			res: &reconcile.Result{
				Outcome:   reconcile.OutcomeReplaced,
				UserPath:  "/home/me/.mcp.json",
				UserError: "unexpected end of JSON input",
				Backup:    &backup.Backup{Path: "/home/me/.mcp.json.bak.20260314150926"},
			},
			wantOut: "  Backup: /home/me/.mcp.json.bak.20260314150926\n",
			wantErr: "Invalid JSON in /home/me/.mcp.json: unexpected end of JSON input\n" +
				"  Backing up and replacing with template\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out, errOut bytes.Buffer
			r := NewReporter(&out, &errOut, FormatText)

			require.NoError(t, r.Report(tt.res))
			assert.Equal(t, tt.wantOut, out.String())
			assert.Equal(t, tt.wantErr, errOut.String())
		})
	}
}

func TestReportJSON(t *testing.T) {
	var out, errOut bytes.Buffer
	require.NoError(t, NewReporter(&out, &errOut, FormatJSON).Report(upgraded()))

	var got struct {
		Outcome string         `json:"outcome"`
		User    string         `json:"user"`
		Changes []merge.Change `json:"changes"`
		Backup  struct {
			ID string `json:"id"`
		} `json:"backup"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))

	assert.Equal(t, "upgraded", got.Outcome)
	assert.Equal(t, "/home/me/.claude/settings.json", got.User)
	assert.Len(t, got.Changes, 2)
	assert.Equal(t, "20260314150926", got.Backup.ID)
	assert.Empty(t, errOut.String())
}

func TestReportYAML(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, NewReporter(&out, &bytes.Buffer{}, FormatYAML).Report(upgraded()))

	var got map[string]any
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, "upgraded", got["outcome"])
	assert.Equal(t, "settings", got["kind"])
}

func TestReportTOML(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, NewReporter(&out, &bytes.Buffer{}, FormatTOML).Report(upgraded()))

	var got map[string]any
	require.NoError(t, toml.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, "upgraded", got["outcome"])
	assert.Equal(t, "/home/me/.claude/settings.json", got["user"])
}

func TestReport_StructuredReplaceNoticeOnStderr(t *testing.T) {
	var out, errOut bytes.Buffer
	res := &reconcile.Result{
		Outcome:   reconcile.OutcomeReplaced,
		UserPath:  "/tmp/u.json",
		UserError: "bad",
	}
	require.NoError(t, NewReporter(&out, &errOut, FormatJSON).Report(res))

	assert.Contains(t, errOut.String(), "Invalid JSON in /tmp/u.json: bad")
	assert.True(t, json.Valid(out.Bytes()), "stdout must stay parseable")
}

func TestReport_ReplaceNoticePrintedOnce(t *testing.T) {
	var out, errOut bytes.Buffer
	res := &reconcile.Result{
		Outcome:   reconcile.OutcomeReplaced,
		UserPath:  "/tmp/u.json",
		UserError: "bad",
	}
	r := NewReporter(&out, &errOut, FormatText)

	r.ReplaceNotice(res)
	assert.Equal(t, "Invalid JSON in /tmp/u.json: bad\n  Backing up and replacing with template\n", errOut.String())

	require.NoError(t, r.Report(res))
	assert.Equal(t, 1, strings.Count(errOut.String(), "Invalid JSON in"))
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatText, false},
		{"text", FormatText, false},
		{"JSON", FormatJSON, false},
		{"yaml", FormatYAML, false},
		{"toml", FormatTOML, false},
		{"xml", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrUnknownFormat))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
