package service

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/profile"
)

const defaultLookupConcurrency = 8

type ConversationService struct {
	repo        MessageRepository
	profiles    profile.Directory
	log         *slog.Logger
	concurrency int
}

func NewConversationService(repo MessageRepository, profiles profile.Directory, log *slog.Logger) *ConversationService {
	if log == nil {
		log = slog.Default()
	}
	return &ConversationService{
		repo:        repo,
		profiles:    profiles,
		log:         log,
		concurrency: defaultLookupConcurrency,
	}
}

type group struct {
	counterpart string
	last        domain.Message
	unread      int
}

// Summarize returns one entry per counterpart of userID, most recent first.
// Conversations whose counterpart profile cannot be resolved are left out.
//
// The result is recomputed from every message of the user on each call; an
// index keyed by (userID, counterpart) maintained alongside Append/MarkRead
// would be the next step if per-user volume grows.
func (s *ConversationService) Summarize(ctx context.Context, userID string) ([]domain.ConversationSummary, error) {
	msgs, err := s.repo.ListByParticipant(ctx, userID)
	if err != nil {
		return nil, err
	}

	byCounterpart := make(map[string]*group)
	for _, m := range msgs {
		other := m.Other(userID)
		g, ok := byCounterpart[other]
		if !ok {
			g = &group{counterpart: other, last: m}
			byCounterpart[other] = g
		} else if g.last.Before(m) {
			g.last = m
		}
		if m.ReceiverID == userID && !m.IsRead {
			g.unread++
		}
	}

	groups := make([]*group, 0, len(byCounterpart))
	for _, g := range byCounterpart {
		groups = append(groups, g)
	}

	resolved := make([]*domain.Profile, len(groups))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(s.concurrency)
	for i, g := range groups {
		eg.Go(func() error {
			p, err := s.profiles.Lookup(egCtx, g.counterpart)
			if err != nil {
				if ctxErr := egCtx.Err(); ctxErr != nil {
					return ctxErr
				}
				lvl := slog.LevelWarn
				if errors.Is(err, domain.ErrProfileNotFound) {
					lvl = slog.LevelInfo
				}
				s.log.Log(egCtx, lvl, "conversations: dropping counterpart without profile",
					"user", userID, "counterpart", g.counterpart, "err", err)
				return nil
			}
			resolved[i] = &p
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	out := make([]domain.ConversationSummary, 0, len(groups))
	for i, g := range groups {
		if resolved[i] == nil {
			continue
		}
		out = append(out, domain.ConversationSummary{
			Participant: *resolved[i],
			LastMessage: g.last,
			UnreadCount: g.unread,
		})
	}
	slices.SortFunc(out, func(a, b domain.ConversationSummary) int {
		switch {
		case b.LastMessage.Before(a.LastMessage):
			return -1
		case a.LastMessage.Before(b.LastMessage):
			return 1
		}
		return 0
	})
	return out, nil
}
