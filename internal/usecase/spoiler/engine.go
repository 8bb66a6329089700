// Package spoiler recognises spoiler tags in chat messages and decides what
// the bot should hide.
package spoiler

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"spoilerBot/internal/domain"
)

var ErrPermissionDenied = errors.New("permission denied")

const deniedReason = "You don't have permission to mark other messages as spoilers."

type Outcome int

const (
	OutcomeIgnored Outcome = iota
	OutcomeSelf
	OutcomeMarked
	OutcomeRejected
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSelf:
		return "self-spoiler"
	case OutcomeMarked:
		return "marked-spoiler"
	case OutcomeRejected:
		return "rejected"
	default:
		return "ignored"
	}
}

// Candidate is a piece of text to hide. Source is the message that carried
// the text, which differs from the trigger for marked spoilers.
type Candidate struct {
	Source  domain.Message
	Topic   string
	Content string
}

type Result struct {
	Outcome   Outcome
	Candidate *Candidate
	// Reason is a user-facing explanation, set for OutcomeRejected.
	Reason string
	Err    error
}

// ExtractFunc replaces the built-in syntaxes. It returns nil for messages
// that are not spoilers.
type ExtractFunc func(ctx context.Context, msg domain.Message) (*Candidate, error)

type EngineConfig struct {
	Extract    ExtractFunc
	Authorizer *Authorizer
	Fetcher    domain.MessageFetcher
	Logger     zerolog.Logger
}

type Engine struct {
	custom  ExtractFunc
	auth    *Authorizer
	fetcher domain.MessageFetcher
	log     zerolog.Logger
}

func NewEngine(cfg EngineConfig) *Engine {
	return &Engine{
		custom:  cfg.Extract,
		auth:    cfg.Authorizer,
		fetcher: cfg.Fetcher,
		log:     cfg.Logger.With().Str("component", "spoiler").Logger(),
	}
}

// Extract classifies msg. A non-nil error means a backend call failed
// (permission lookup or fetching the marked message).
func (e *Engine) Extract(ctx context.Context, msg domain.Message) (Result, error) {
	if e.custom != nil {
		return e.extractCustom(ctx, msg)
	}

	tok := Parse(msg.Content)
	switch tok.Kind {
	case TokenSelf:
		return Result{
			Outcome: OutcomeSelf,
			Candidate: &Candidate{
				Source:  msg,
				Topic:   tok.Topic,
				Content: tok.Content,
			},
		}, nil
	case TokenMark:
		return e.extractMarked(ctx, msg, tok)
	default:
		return Result{Outcome: OutcomeIgnored}, nil
	}
}

func (e *Engine) extractCustom(ctx context.Context, msg domain.Message) (Result, error) {
	c, err := e.custom(ctx, msg)
	if err != nil {
		return Result{}, fmt.Errorf("custom extractor: %w", err)
	}
	if c == nil {
		return Result{Outcome: OutcomeIgnored}, nil
	}
	if c.Source.ID == "" {
		c.Source = msg
	}
	outcome := OutcomeSelf
	if c.Source.ID != msg.ID {
		outcome = OutcomeMarked
	}
	return Result{Outcome: outcome, Candidate: c}, nil
}

func (e *Engine) extractMarked(ctx context.Context, msg domain.Message, tok Token) (Result, error) {
	allowed := false
	if e.auth != nil {
		var err error
		allowed, err = e.auth.Authorize(ctx, msg.ChannelID, msg.AuthorID)
		if err != nil {
			return Result{}, fmt.Errorf("check mark permission: %w", err)
		}
	}
	if !allowed {
		e.log.Info().
			Str("user_id", msg.AuthorID).
			Str("channel_id", msg.ChannelID).
			Str("target_id", tok.MessageID).
			Msg("spoiler: mark rejected")
		return Result{
			Outcome: OutcomeRejected,
			Reason:  deniedReason,
			Err:     ErrPermissionDenied,
		}, nil
	}

	if e.fetcher == nil {
		return Result{}, errors.New("no message fetcher configured")
	}
	source, err := e.fetcher.FetchMessage(ctx, msg.ChannelID, tok.MessageID)
	if err != nil {
		return Result{}, fmt.Errorf("fetch marked message %s: %w", tok.MessageID, err)
	}

	return Result{
		Outcome: OutcomeMarked,
		Candidate: &Candidate{
			Source:  source,
			Topic:   tok.Topic,
			Content: source.Content,
		},
	}, nil
}
