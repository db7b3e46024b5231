package relay

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/edgard/channelpost/internal/caption"
	"github.com/edgard/channelpost/internal/database"
	"github.com/edgard/channelpost/internal/resilience"
)

// Outcome is the terminal state of one pipeline run.
type Outcome int

const (
	// OutcomeFiltered: the dedup filter rejected the event.
	OutcomeFiltered Outcome = iota + 1
	// OutcomeAlreadyPublished: the journal already holds the canonical message.
	OutcomeAlreadyPublished
	// OutcomeEmpty: nothing worth posting, the publisher was not called.
	OutcomeEmpty
	// OutcomePublished: the blog accepted the post.
	OutcomePublished
	// OutcomeFailed: aggregation, upload, or publishing failed.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFiltered:
		return "filtered"
	case OutcomeAlreadyPublished:
		return "already_published"
	case OutcomeEmpty:
		return "empty"
	case OutcomePublished:
		return "published"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Journal records published posts so they are not published twice.
type Journal interface {
	HasPublication(ctx context.Context, sourceKey string) (bool, error)
	SavePublication(ctx context.Context, p *database.Publication) error
}

// PipelineDeps holds the collaborators of a Pipeline. Journal may be nil.
type PipelineDeps struct {
	Logger        *slog.Logger
	Filter        Filter
	Source        Source
	Images        ImageHost
	Publisher     Publisher
	Journal       Journal
	Retrier       *resilience.Retrier
	BacklinkLabel string
	SkipPublished bool
	RunTimeout    time.Duration
}

// Pipeline turns one channel event into at most one blog post.
type Pipeline struct {
	filter        Filter
	aggregator    *Aggregator
	uploader      *Uploader
	publisher     Publisher
	journal       Journal
	label         string
	skipPublished bool
	runTimeout    time.Duration
	logger        *slog.Logger
}

// NewPipeline wires a Pipeline from deps.
func NewPipeline(deps PipelineDeps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	label := deps.BacklinkLabel
	if label == "" {
		label = DefaultBacklinkLabel
	}
	return &Pipeline{
		filter:        deps.Filter,
		aggregator:    NewAggregator(deps.Source),
		uploader:      NewUploader(deps.Source, deps.Images, deps.Retrier, logger),
		publisher:     deps.Publisher,
		journal:       deps.Journal,
		label:         label,
		skipPublished: deps.SkipPublished,
		runTimeout:    deps.RunTimeout,
		logger:        logger.With("component", "pipeline"),
	}
}

// Handle runs the pipeline for msg. A non-nil error is returned only with
// OutcomeFailed; callers log it and drop the post.
func (p *Pipeline) Handle(ctx context.Context, msg Message) (Outcome, error) {
	log := p.logger.With("run_id", uuid.NewString(), "message_id", msg.ID, "media_group_id", msg.GroupID)

	if !p.filter.Accept(msg.GroupID) {
		log.DebugContext(ctx, "Media group already handled, dropping event")
		return OutcomeFiltered, nil
	}

	if p.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.runTimeout)
		defer cancel()
	}

	group, err := p.aggregator.Aggregate(ctx, msg)
	if err != nil {
		return OutcomeFailed, err
	}
	canonical := group.Canonical()
	log = log.With("permalink", canonical.Permalink, "group_size", len(group))

	if p.skipPublished && p.journal != nil {
		published, err := p.journal.HasPublication(ctx, canonical.SourceKey())
		if err != nil {
			log.WarnContext(ctx, "Journal lookup failed, continuing", "error", err)
		} else if published {
			log.InfoContext(ctx, "Post already published, skipping")
			return OutcomeAlreadyPublished, nil
		}
	}

	captionHTML := caption.Render(canonical.RawText(), canonical.Spans)

	urls, err := p.uploader.Upload(ctx, group)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("failed to upload attachments: %w", err)
	}

	content := Compose(captionHTML, urls, canonical.ShowAboveText, canonical.Permalink, p.label)
	if content == "" {
		log.DebugContext(ctx, "Nothing to publish")
		return OutcomeEmpty, nil
	}

	if err := p.publisher.Publish(ctx, content); err != nil {
		return OutcomeFailed, fmt.Errorf("failed to publish: %w", err)
	}

	if p.journal != nil {
		sum := sha256.Sum256([]byte(content))
		err := p.journal.SavePublication(ctx, &database.Publication{
			SourceKey:   canonical.SourceKey(),
			Permalink:   canonical.Permalink,
			GroupID:     canonical.GroupID,
			ContentHash: hex.EncodeToString(sum[:]),
			ImageCount:  len(urls),
			PublishedAt: time.Now(),
		})
		if err != nil {
			log.ErrorContext(ctx, "Failed to journal publication", "error", err)
		}
	}

	log.InfoContext(ctx, "Published post", "images", len(urls))
	return OutcomePublished, nil
}
