package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/toothbrush/confluence-markdown/confluence"
	"github.com/toothbrush/confluence-markdown/convert"
	"github.com/toothbrush/confluence-markdown/mapping"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/sync/errgroup"
)

// Client is the part of *confluence.API the publisher needs.
type Client interface {
	GetPageByTitle(ctx context.Context, spaceKey, title string) (*confluence.Page, error)
	CreatePage(ctx context.Context, req confluence.CreatePageRequest) (*confluence.Page, error)
	UpdatePage(ctx context.Context, req confluence.UpdatePageRequest) (*confluence.Page, error)
}

// Mappings is the part of *mapping.Store the publisher needs.
type Mappings interface {
	Get(path string) (mapping.Entry, bool, error)
	Add(path string, e mapping.Entry) (mapping.AddResult, error)
}

type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionDryRun  Action = "dry-run"
	ActionSkipped Action = "skipped"
)

// Outcome is the result of publishing one file.  Err is set exactly when Action is
// ActionSkipped.
type Outcome struct {
	Path   string
	Action Action

	// Target the file resolved to, from the mapping or derived.
	Target mapping.Entry

	// Page as written; nil for dry runs and failures.
	Page *confluence.Page

	Findings []convert.Finding
	Err      error

	// LabelErr is set when the page was written but its labels weren't.
	LabelErr error
}

type Publisher struct {
	Client   Client
	Mappings Mappings
	Logger   *slog.Logger

	// Root is the directory derived titles are relative to.
	Root string

	// DefaultSpace lets unmapped files publish to (DefaultSpace, TitleFromPath).  Without it an
	// unmapped file is skipped.
	DefaultSpace string

	// ParentID is the parent of created pages, unless the document names one.
	ParentID string

	// Labels go on every page written, along with the document's own.
	Labels []string

	DryRun bool

	// RecordMapping saves a page_id mapping for files that published through a derived target.
	RecordMapping bool

	// Workers bounds PublishAll's parallelism; below 1 means 1.
	Workers int

	// Progress receives a progress bar during PublishAll; nil for none.
	Progress io.Writer
}

// target is where a document goes.  derived marks a target that came from DefaultSpace rather
// than the mapping store.
type target struct {
	entry   mapping.Entry
	derived bool
}

// PublishFile loads the file at path and creates or updates its page.  Failures are reported on
// the Outcome, never by panicking or aborting.
func (p *Publisher) PublishFile(ctx context.Context, path string) Outcome {
	out := Outcome{Path: path, Action: ActionSkipped}
	logger := p.logger().With(slog.String("path", path))

	if err := ctx.Err(); err != nil {
		out.Err = fmt.Errorf("publish: %s: %w", path, err)
		return out
	}

	doc, err := LoadDocument(path)
	if err != nil {
		out.Err = err
		logger.Error("couldn't load document", slog.String("error", err.Error()))
		return out
	}
	out.Findings = doc.Findings
	for _, f := range doc.Findings {
		logger.Warn("unsupported Markdown left as text",
			slog.Int("line", f.Line),
			slog.String("construct", f.Construct),
			slog.String("detail", f.Detail))
	}

	tgt, err := p.resolve(path, doc)
	if err != nil {
		out.Err = err
		logger.Error("couldn't resolve target", slog.String("error", err.Error()))
		return out
	}
	out.Target = tgt.entry

	if p.DryRun {
		out.Action = ActionDryRun
		logger.Info("dry run, not publishing", slog.String("target", tgt.entry.String()))
		return out
	}

	if tgt.entry.ByID() {
		out.Page, err = p.Client.UpdatePage(ctx, confluence.UpdatePageRequest{
			PageID: tgt.entry.PageID,
			Body:   doc.Markup,
			Title:  doc.FrontMatter.Title,
			Labels: p.labels(doc),
		})
		out.Action = ActionUpdated
	} else {
		out.Page, out.Action, err = p.upsert(ctx, tgt.entry, doc)
	}
	if err != nil {
		out.Action = ActionSkipped
		out.Page = nil
		out.Err = fmt.Errorf("publish: %s: %w", path, err)
		logger.Error("couldn't publish",
			slog.String("target", tgt.entry.String()),
			slog.String("error", err.Error()))
		return out
	}

	out.LabelErr = out.Page.LabelErr
	logger.Info("published",
		slog.String("action", string(out.Action)),
		slog.String("page_id", out.Page.ID),
		slog.Int("version", out.Page.Version))

	if tgt.derived && p.RecordMapping && p.Mappings != nil {
		entry := mapping.Entry{PageID: out.Page.ID, SpaceKey: out.Page.SpaceKey}
		if _, err := p.Mappings.Add(path, entry); err != nil {
			logger.Warn("couldn't record mapping", slog.String("error", err.Error()))
		}
	}

	return out
}

// upsert publishes by (space, title): update the page if it exists, create it otherwise.
func (p *Publisher) upsert(ctx context.Context, entry mapping.Entry, doc *Document) (*confluence.Page, Action, error) {
	existing, err := p.Client.GetPageByTitle(ctx, entry.SpaceKey, entry.Title)
	if errors.Is(err, confluence.ErrNotFound) {
		parent := p.ParentID
		if doc.FrontMatter.Parent != "" {
			parent = doc.FrontMatter.Parent
		}
		page, err := p.Client.CreatePage(ctx, confluence.CreatePageRequest{
			SpaceKey: entry.SpaceKey,
			Title:    entry.Title,
			Body:     doc.Markup,
			ParentID: parent,
			Labels:   p.labels(doc),
		})
		return page, ActionCreated, err
	}
	if err != nil {
		return nil, ActionSkipped, err
	}

	version := existing.Version
	page, err := p.Client.UpdatePage(ctx, confluence.UpdatePageRequest{
		PageID:          existing.ID,
		Body:            doc.Markup,
		Title:           entry.Title,
		ExpectedVersion: &version,
		Labels:          p.labels(doc),
	})
	return page, ActionUpdated, err
}

func (p *Publisher) resolve(path string, doc *Document) (target, error) {
	if p.Mappings != nil {
		entry, ok, err := p.Mappings.Get(path)
		if err != nil {
			return target{}, fmt.Errorf("%w: couldn't read mappings: %v", ErrConfig, err)
		}
		if ok {
			if err := entry.Validate(); err != nil {
				return target{}, fmt.Errorf("%w: %v", ErrConfig, err)
			}
			return target{entry: entry}, nil
		}
	}

	if p.DefaultSpace == "" {
		return target{}, fmt.Errorf("%w: no mapping for %s and no default space", ErrConfig, path)
	}

	title := doc.FrontMatter.Title
	if title == "" {
		title = TitleFromPath(path, p.Root)
	}
	return target{
		entry:   mapping.Entry{SpaceKey: p.DefaultSpace, Title: title},
		derived: true,
	}, nil
}

// labels is the publisher's labels followed by the document's, without repeats.
func (p *Publisher) labels(doc *Document) []string {
	seen := map[string]bool{}
	var out []string
	for _, l := range append(append([]string(nil), p.Labels...), doc.FrontMatter.Labels...) {
		if l == "" || seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	return out
}

// PublishAll publishes paths with up to Workers files in flight.  Outcomes are in the order of
// paths.  Files not reached before ctx ends are skipped with ctx's error.
func (p *Publisher) PublishAll(ctx context.Context, paths []string) []Outcome {
	outcomes := make([]Outcome, len(paths))
	done := make([]bool, len(paths))

	var progress *mpb.Progress
	var bar *mpb.Bar
	if p.Progress != nil && len(paths) > 0 {
		progress = mpb.NewWithContext(ctx, mpb.WithWidth(64), mpb.WithOutput(p.Progress))
		bar = progress.AddBar(int64(len(paths)),
			mpb.PrependDecorators(
				decor.Name("push:", decor.WC{C: decor.DindentRight | decor.DextraSpace}),
			),
			mpb.AppendDecorators(
				decor.CountersNoUnit("(%d/%d) "),
				decor.NewPercentage("%d"),
			),
		)
	}

	jobs := make(chan int)
	grp, gctx := errgroup.WithContext(ctx)

	grp.Go(func() error {
		defer close(jobs)
		for i := range paths {
			if gctx.Err() != nil {
				return nil
			}
			select {
			case jobs <- i:
			case <-gctx.Done():
				return nil
			}
		}
		return nil
	})

	for w := 0; w < p.workers(); w++ {
		grp.Go(func() error {
			for i := range jobs {
				outcomes[i] = p.PublishFile(gctx, paths[i])
				done[i] = true
				if bar != nil {
					bar.Increment()
				}
			}
			return nil
		})
	}

	// nothing returns an error; failures live on the outcomes
	_ = grp.Wait()

	for i := range outcomes {
		if !done[i] {
			outcomes[i] = Outcome{Path: paths[i], Action: ActionSkipped, Err: fmt.Errorf("publish: %s: %w", paths[i], context.Cause(ctx))}
		}
	}

	if progress != nil {
		if !bar.Completed() {
			bar.Abort(false)
		}
		progress.Wait()
	}

	return outcomes
}

func (p *Publisher) workers() int {
	if p.Workers < 1 {
		return 1
	}
	return p.Workers
}

func (p *Publisher) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return p.Logger
}

// FirstError returns the first failed outcome's error, in input order.
func FirstError(outcomes []Outcome) error {
	for _, o := range outcomes {
		if o.Err != nil {
			return o.Err
		}
	}
	return nil
}
