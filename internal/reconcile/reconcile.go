package reconcile

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/thoreinstein/cfgmerge/internal/backup"
	"github.com/thoreinstein/cfgmerge/internal/document"
	"github.com/thoreinstein/cfgmerge/internal/errors"
	"github.com/thoreinstein/cfgmerge/internal/logging"
	"github.com/thoreinstein/cfgmerge/internal/merge"
	"github.com/thoreinstein/cfgmerge/internal/paths"
	"github.com/thoreinstein/cfgmerge/pkg/fileutil"
)

// Sentinel errors for fatal template problems.
var (
	// ErrTemplateNotFound indicates the template path does not exist.
	ErrTemplateNotFound = errors.New("template not found")

	// ErrInvalidTemplate indicates the template is not a well-formed JSON object.
	// The *document.SyntaxError with the parser diagnostic is in the chain.
	ErrInvalidTemplate = errors.New("invalid JSON in template")
)

// Outcome is the terminal state of a run.
type Outcome string

// Possible outcomes.
const (
	OutcomeCreated  Outcome = "created"
	OutcomeReplaced Outcome = "replaced"
	OutcomeUpToDate Outcome = "up_to_date"
	OutcomeUpgraded Outcome = "upgraded"
)

// Result describes what a run did, or in dry-run mode, would have done.
type Result struct {
	Outcome      Outcome         `json:"outcome" yaml:"outcome" toml:"outcome"`
	TemplatePath string          `json:"template" yaml:"template" toml:"template"`
	UserPath     string          `json:"user" yaml:"user" toml:"user"`
	Kind         string          `json:"kind" yaml:"kind" toml:"kind"`
	DryRun       bool            `json:"dry_run" yaml:"dry_run" toml:"dry_run"`
	Changes      []merge.Change  `json:"changes" yaml:"changes" toml:"changes"`
	Backup       *backup.Backup  `json:"backup,omitempty" yaml:"backup,omitempty" toml:"backup,omitempty"`
	Pruned       []backup.Backup `json:"pruned,omitempty" yaml:"pruned,omitempty" toml:"pruned,omitempty"`
	UserError    string          `json:"user_error,omitempty" yaml:"user_error,omitempty" toml:"user_error,omitempty"`
}

// Reconciler runs merges. The zero value is not usable; call New.
type Reconciler struct {
	backups     *backup.Manager
	dryRun      bool
	keepBackups int
	onReplace   func(*Result)
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithBackupManager sets the manager used to create and prune backups.
func WithBackupManager(m *backup.Manager) Option {
	return func(r *Reconciler) {
		if m != nil {
			r.backups = m
		}
	}
}

// WithDryRun makes Run report what it would do without touching any file.
func WithDryRun(dryRun bool) Option {
	return func(r *Reconciler) {
		r.dryRun = dryRun
	}
}

// WithKeepBackups prunes a file's backups to the newest n after each write.
// Zero or less keeps every backup.
func WithKeepBackups(n int) Option {
	return func(r *Reconciler) {
		r.keepBackups = n
	}
}

// WithReplaceHook registers fn to be called when a malformed user file is
// about to be backed up and replaced. fn sees the partial Result, with
// UserError set, before any file is touched. It is also called in dry-run mode.
func WithReplaceHook(fn func(*Result)) Option {
	return func(r *Reconciler) {
		r.onReplace = fn
	}
}

// New creates a Reconciler.
func New(opts ...Option) *Reconciler {
	r := &Reconciler{backups: backup.NewManager()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run reconciles the template at templatePath into the user file at userPath.
func (r *Reconciler) Run(ctx context.Context, templatePath, userPath string) (*Result, error) {
	logger := logging.FromContext(ctx).With("user", userPath)

	res := &Result{
		TemplatePath: templatePath,
		UserPath:     userPath,
		DryRun:       r.dryRun,
	}

	tmplData, err := readTemplate(templatePath)
	if err != nil {
		return nil, err
	}

	userData, err := fileutil.ReadFileWithLimit(userPath)
	if errors.Is(err, fs.ErrNotExist) {
		// A first install is a plain copy; the template is not parsed beyond
		// labeling the result.
		res.Outcome = OutcomeCreated
		if tmpl, perr := document.ParseTemplate(tmplData); perr == nil {
			res.Kind = tmpl.Kind.String()
		} else {
			logger.Warn("installing template that is not a JSON object", "template", templatePath, "error", perr)
		}
		if r.dryRun {
			return res, nil
		}
		if err := install(templatePath, userPath); err != nil {
			return nil, err
		}
		logger.Info("created from template")
		return res, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", userPath)
	}

	tmpl, err := parseTemplate(tmplData)
	if err != nil {
		return nil, err
	}
	res.Kind = tmpl.Kind.String()
	logger.Debug("loaded template", "template", templatePath, "kind", res.Kind, "members", document.Keys(tmpl.Root))

	user, err := document.Parse(userData)
	if err != nil {
		var se *document.SyntaxError
		if !errors.As(err, &se) {
			return nil, errors.Wrapf(err, "parsing %s", userPath)
		}
		res.Outcome = OutcomeReplaced
		res.UserError = se.Error()
		logger.Warn("user file is not a JSON object; replacing with template", "error", se.Error())
		if r.onReplace != nil {
			r.onReplace(res)
		}
		if r.dryRun {
			return res, nil
		}
		return r.write(ctx, res, userPath, userData, tmplData)
	}

	changes, err := merge.Apply(ctx, tmpl.Kind, tmpl.Root, user)
	if err != nil {
		return nil, errors.Wrapf(err, "merging %s", userPath)
	}
	res.Changes = changes

	if len(changes) == 0 {
		res.Outcome = OutcomeUpToDate
		logger.Debug("already up to date")
		return res, nil
	}

	res.Outcome = OutcomeUpgraded
	if r.dryRun {
		return res, nil
	}

	out, err := document.Marshal(user)
	if err != nil {
		return nil, errors.Wrapf(err, "encoding %s", userPath)
	}
	return r.write(ctx, res, userPath, userData, out)
}

// write backs up userPath, which must still hold userData, then replaces
// its content with data. No byte of the user file is touched unless the
// backup was verified.
func (r *Reconciler) write(ctx context.Context, res *Result, userPath string, userData, data []byte) (*Result, error) {
	logger := logging.FromContext(ctx).With("user", userPath)

	info, err := os.Stat(userPath)
	if err != nil {
		return nil, errors.Wrapf(err, "stat %s", userPath)
	}

	b, err := r.backups.Create(userPath, fileutil.HashBytes(userData))
	if err != nil {
		return nil, err
	}
	res.Backup = b
	logger.Info("created backup", "backup", b.Path)

	// Write through symlinks so dotfile managers keep their links
	target, err := filepath.EvalSymlinks(userPath)
	if err != nil {
		return nil, errors.Wrapf(err, "resolving %s", userPath)
	}
	if err := fileutil.AtomicWriteFile(target, data, info.Mode().Perm()); err != nil {
		return nil, errors.Wrapf(err, "writing %s (backup kept at %s)", userPath, b.Path)
	}
	logger.Info("wrote user file", "outcome", string(res.Outcome), "changes", len(res.Changes))

	if r.keepBackups > 0 {
		pruned, err := r.backups.Prune(userPath, r.keepBackups)
		if err != nil {
			// The merge itself succeeded; stale backups are not worth failing over
			logger.Warn("pruning backups failed", "error", err)
		}
		res.Pruned = pruned
	}

	return res, nil
}

// readTemplate reads the template bytes. A missing template is fatal.
func readTemplate(path string) ([]byte, error) {
	data, err := fileutil.ReadFileWithLimit(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errors.Wrapf(ErrTemplateNotFound, "%s", path)
		}
		return nil, errors.Wrapf(err, "reading template %s", path)
	}
	return data, nil
}

// parseTemplate classifies the template. Once a user file exists to merge
// into, a malformed template is fatal.
func parseTemplate(data []byte) (*document.Template, error) {
	tmpl, err := document.ParseTemplate(data)
	if err != nil {
		return nil, errors.Mark(err, ErrInvalidTemplate)
	}
	return tmpl, nil
}

// install copies the template to a user path that does not exist yet.
func install(templatePath, userPath string) error {
	if err := paths.EnsureDir(filepath.Dir(userPath), 0); err != nil {
		return errors.Wrapf(err, "creating directory for %s", userPath)
	}
	if _, err := fileutil.CopyFile(templatePath, userPath, true); err != nil {
		return errors.Wrapf(err, "creating %s", userPath)
	}
	return nil
}
