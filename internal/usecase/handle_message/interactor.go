// Package handle_message
package handle_message

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"spoilerBot/internal/app/events"
	"spoilerBot/internal/domain"
	"spoilerBot/internal/infrastructure/telemetry"
	"spoilerBot/internal/usecase/spoiler"
)

const (
	DefaultTimeout  = 30 * time.Second
	DefaultMaxLines = 6

	uploadName = "spoiler.gif"
)

type Extractor interface {
	Extract(ctx context.Context, msg domain.Message) (spoiler.Result, error)
}

type Renderer interface {
	Render(ctx context.Context, sourceID, text string, maxLines int) (string, error)
}

type Publisher interface {
	Publish(topic string, payload any)
}

type Config struct {
	Transport domain.Transport
	// Out receives rejection and failure replies. Defaults to Transport.
	Out       domain.OutgoingMessagePort
	Extractor Extractor
	Renderer  Renderer
	// The zero Filter watches every channel.
	Filter spoiler.ChannelFilter

	MaxLines int
	Timeout  time.Duration

	Bus     Publisher
	Metrics *telemetry.Metrics
	Logger  zerolog.Logger
}

type Interactor struct {
	transport domain.Transport
	out       domain.OutgoingMessagePort
	extractor Extractor
	renderer  Renderer
	filter    spoiler.ChannelFilter
	maxLines  int
	timeout   time.Duration
	bus       Publisher
	metrics   *telemetry.Metrics
	log       zerolog.Logger

	wg sync.WaitGroup
}

func NewInteractor(cfg Config) (*Interactor, error) {
	switch {
	case cfg.Transport == nil:
		return nil, errors.New("handle_message: transport is required")
	case cfg.Extractor == nil:
		return nil, errors.New("handle_message: extractor is required")
	case cfg.Renderer == nil:
		return nil, errors.New("handle_message: renderer is required")
	}

	uc := &Interactor{
		transport: cfg.Transport,
		out:       cfg.Out,
		extractor: cfg.Extractor,
		renderer:  cfg.Renderer,
		filter:    cfg.Filter,
		maxLines:  cfg.MaxLines,
		timeout:   cfg.Timeout,
		bus:       cfg.Bus,
		metrics:   cfg.Metrics,
		log:       cfg.Logger.With().Str("component", "handle_message").Logger(),
	}
	if uc.out == nil {
		uc.out = cfg.Transport
	}
	if uc.maxLines < 1 {
		uc.maxLines = DefaultMaxLines
	}
	if uc.timeout <= 0 {
		uc.timeout = DefaultTimeout
	}
	return uc, nil
}

// Handle starts the pipeline for msg in its own goroutine and returns
// immediately. The pipeline outlives ctx cancellation until its own timeout,
// so shutdown can drain it with Wait.
func (uc *Interactor) Handle(ctx context.Context, msg domain.Message) error {
	uc.wg.Add(1)
	go func() {
		defer uc.wg.Done()
		defer uc.recoverPipeline(msg)

		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), uc.timeout)
		defer cancel()
		if err := uc.Process(pctx, msg); err != nil {
			uc.log.Error().Err(err).
				Str("message_id", msg.ID).
				Str("channel_id", msg.ChannelID).
				Msg("pipeline aborted")
		}
	}()
	return nil
}

// Wait blocks until every pipeline started by Handle has finished.
func (uc *Interactor) Wait() {
	uc.wg.Wait()
}

func (uc *Interactor) recoverPipeline(msg domain.Message) {
	if r := recover(); r != nil {
		uc.log.Error().
			Interface("panic", r).
			Str("message_id", msg.ID).
			Msg("pipeline panic")
		uc.countFailure(telemetry.StagePanic)
	}
}

// Process runs the whole pipeline for msg synchronously.
func (uc *Interactor) Process(ctx context.Context, msg domain.Message) error {
	if uc.metrics != nil {
		uc.metrics.Messages.Inc()
	}

	if !uc.filter.Allows(msg.ChannelID) {
		return nil
	}
	if botID := uc.transport.BotID(); botID != "" && msg.AuthorID == botID {
		return nil
	}

	res, err := uc.extractor.Extract(ctx, msg)
	if err != nil {
		return uc.fail(ctx, msg, telemetry.StageExtract, err)
	}

	switch res.Outcome {
	case spoiler.OutcomeIgnored:
		return nil
	case spoiler.OutcomeRejected:
		return uc.reject(ctx, msg, res)
	}
	if res.Candidate == nil {
		return nil
	}
	return uc.post(ctx, msg, res)
}

func (uc *Interactor) reject(ctx context.Context, msg domain.Message, res spoiler.Result) error {
	if uc.metrics != nil {
		uc.metrics.SpoilersRejected.Inc()
	}
	dto := events.NewSpoilerEventDTO(events.TopicSpoilerRejected, res.Outcome.String(), msg)
	if res.Err != nil {
		dto.Error = res.Err.Error()
	}
	uc.publish(events.TopicSpoilerRejected, dto)

	reply := uc.transport.Mention(msg.AuthorID, msg.AuthorDisplayName) + " " + res.Reason
	if err := uc.out.SendMessage(ctx, msg.ChannelID, reply); err != nil {
		uc.countFailure(telemetry.StageReply)
		return fmt.Errorf("send rejection: %w", err)
	}
	return nil
}

func (uc *Interactor) post(ctx context.Context, trigger domain.Message, res spoiler.Result) error {
	c := res.Candidate
	log := uc.log.With().
		Str("outcome", res.Outcome.String()).
		Str("message_id", trigger.ID).
		Str("source_id", c.Source.ID).
		Logger()

	if err := uc.transport.DeleteMessage(ctx, trigger); err != nil {
		return uc.fail(ctx, trigger, telemetry.StageDelete, fmt.Errorf("delete trigger: %w", err))
	}
	if c.Source.ID != "" && c.Source.ID != trigger.ID {
		if err := uc.transport.DeleteMessage(ctx, c.Source); err != nil {
			return uc.fail(ctx, trigger, telemetry.StageDelete, fmt.Errorf("delete source: %w", err))
		}
	}

	start := time.Now()
	path, err := uc.renderer.Render(ctx, c.Source.ID, c.Content, uc.maxLines)
	if err != nil {
		return uc.fail(ctx, trigger, telemetry.StageRender, fmt.Errorf("render: %w", err))
	}
	if uc.metrics != nil {
		telemetry.ObserveSince(uc.metrics.RenderDuration, start)
	}
	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn().Err(err).Str("path", path).Msg("temp file not removed")
		}
	}()

	author := c.Source
	if author.AuthorID == "" {
		author = trigger
	}
	mention := uc.transport.Mention(author.AuthorID, author.AuthorDisplayName)
	if err := uc.transport.SendFile(ctx, trigger.ChannelID, path, uploadName, Caption(c.Topic, mention)); err != nil {
		return uc.fail(ctx, trigger, telemetry.StageUpload, fmt.Errorf("upload: %w", err))
	}

	if uc.metrics != nil {
		uc.metrics.SpoilersPosted.WithLabelValues(res.Outcome.String()).Inc()
	}
	dto := events.NewSpoilerEventDTO(events.TopicSpoilerPosted, res.Outcome.String(), trigger)
	dto.SourceID = c.Source.ID
	dto.Subject = c.Topic
	uc.publish(events.TopicSpoilerPosted, dto)

	log.Info().Str("channel_id", trigger.ChannelID).Msg("spoiler posted")
	return nil
}

// fail records the failure, tells the author their spoiler was not hidden
// and returns err.
func (uc *Interactor) fail(ctx context.Context, msg domain.Message, stage string, err error) error {
	uc.countFailure(stage)

	dto := events.NewSpoilerEventDTO(events.TopicSpoilerFailed, "failed", msg)
	dto.Stage = stage
	dto.Error = err.Error()
	uc.publish(events.TopicSpoilerFailed, dto)

	reply := uc.transport.Mention(msg.AuthorID, msg.AuthorDisplayName) + " " + failureReason(err)
	if sendErr := uc.out.SendMessage(ctx, msg.ChannelID, reply); sendErr != nil {
		uc.log.Warn().Err(sendErr).Str("message_id", msg.ID).Msg("failure notice not sent")
	}
	return err
}

func (uc *Interactor) countFailure(stage string) {
	if uc.metrics != nil {
		uc.metrics.PipelineFailures.WithLabelValues(stage).Inc()
	}
}

func (uc *Interactor) publish(topic string, dto events.SpoilerEventDTO) {
	if uc.bus != nil {
		uc.bus.Publish(topic, dto)
	}
}

// Caption is the text posted along with the placeholder.
func Caption(topic, mention string) string {
	if topic == "" {
		return "Spoiler from " + mention
	}
	return "**" + topic + "** spoiler from " + mention
}

func failureReason(err error) string {
	if errors.Is(err, domain.ErrNotFound) {
		return "I couldn't hide that spoiler: the message was not found or I can't access it."
	}
	return "I couldn't hide that spoiler, something went wrong."
}
