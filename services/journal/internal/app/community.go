package app

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"selah/internal/util"
	"selah/pkg/domain"
	"selah/pkg/events"
	"selah/pkg/sanitize"
)

const (
	defaultFeedLimit = 20
	maxFeedLimit     = 100
	publishTimeout   = 3 * time.Second
)

// ShareInput is a post shared to the community feed.
type ShareInput struct {
	Mood           domain.Mood
	Gratitude      []string
	Content        string
	Prayer         string
	ShareType      domain.ShareType
	IsAnonymous    bool
	JournalEntryID string
}

// Share publishes a post. Markup is stripped from every text field. A
// prayer share with a prayer also lands on the prayer wall.
func (a *App) Share(ctx context.Context, user domain.User, in ShareInput) (domain.CommunityPost, error) {
	shareType := in.ShareType
	if shareType == "" {
		shareType = domain.SharePost
	}
	if !shareType.Valid() {
		return domain.CommunityPost{}, ErrInvalidShareType
	}
	if !in.Mood.Valid() {
		return domain.CommunityPost{}, ErrInvalidMood
	}
	content := strings.TrimSpace(sanitize.Text(in.Content))
	prayer := strings.TrimSpace(sanitize.Text(in.Prayer))
	gratitude := sanitize.Lines(in.Gratitude)
	if content == "" && prayer == "" && len(gratitude) == 0 {
		return domain.CommunityPost{}, ErrEmptyPost
	}
	if utf8.RuneCountInString(content) > maxEntryRunes || utf8.RuneCountInString(prayer) > maxEntryRunes {
		return domain.CommunityPost{}, ErrEntryTooLong
	}
	if id := strings.TrimSpace(in.JournalEntryID); id != "" {
		if _, err := a.GetEntry(user.ID, id); err != nil {
			return domain.CommunityPost{}, err
		}
	}

	var userName *string
	if !in.IsAnonymous {
		name := user.DisplayName()
		userName = &name
	}
	now := a.now().UTC()
	post := domain.CommunityPost{
		ID:             uuid.NewString(),
		UserID:         user.ID,
		UserName:       userName,
		Mood:           in.Mood,
		Gratitude:      gratitude,
		Content:        content,
		Prayer:         prayer,
		ShareType:      shareType,
		IsAnonymous:    in.IsAnonymous,
		JournalEntryID: strings.TrimSpace(in.JournalEntryID),
		CreatedAt:      now,
	}
	var wall *domain.PrayerWallItem
	if shareType == domain.SharePrayer && prayer != "" {
		wall = &domain.PrayerWallItem{
			ID:            uuid.NewString(),
			PostID:        post.ID,
			UserID:        user.ID,
			PrayerRequest: prayer,
			Anonymous:     in.IsAnonymous,
			CreatedAt:     now,
		}
	}
	if err := a.store.SharePost(post, wall); err != nil {
		return domain.CommunityPost{}, fmt.Errorf("share post: %w", err)
	}
	a.publishShared(ctx, post, wall != nil)
	return post, nil
}

// ListPosts returns the newest community posts.
func (a *App) ListPosts(limit int) ([]domain.CommunityPost, error) {
	posts, err := a.store.ListPosts(feedLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return posts, nil
}

// ListPrayerWall returns the newest prayer wall items.
func (a *App) ListPrayerWall(limit int) ([]domain.PrayerWallItem, error) {
	items, err := a.store.ListPrayerWall(feedLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list prayer wall: %w", err)
	}
	return items, nil
}

func (a *App) publishShared(ctx context.Context, post domain.CommunityPost, hasPrayer bool) {
	if a.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	err := a.publisher.Publish(ctx, events.Event{
		ID:         uuid.NewString(),
		Type:       events.RoutingCommunityShared,
		OccurredAt: post.CreatedAt,
		Data: events.CommunityShared{
			PostID:      post.ID,
			ShareType:   string(post.ShareType),
			IsAnonymous: post.IsAnonymous,
			HasPrayer:   hasPrayer,
		},
	})
	if err != nil {
		util.LoggerFromContext(ctx).Warn("publish community event failed", "post_id", post.ID, "err", err)
	}
}

func feedLimit(limit int) int {
	if limit <= 0 {
		return defaultFeedLimit
	}
	return min(limit, maxFeedLimit)
}
