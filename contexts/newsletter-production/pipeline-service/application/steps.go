package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"herald/contexts/newsletter-production/pipeline-service/domain/entities"
	domainerrors "herald/contexts/newsletter-production/pipeline-service/domain/errors"
	"herald/contexts/newsletter-production/pipeline-service/ports"
)

const heroImageTag = "newsletter-hero"

// setup is the idempotency anchor of the pipeline: one campaign per date,
// created if absent, reused and moved back to `processing` if present.
// A lost create race (unique constraint on date) is resolved by re-reading.
func (r Runner) setup(ctx context.Context, state *runState) error {
	campaign, err := r.Campaigns.FindCampaignByDate(ctx, state.date)
	if errIsNotFound(err) {
		campaignID, idErr := r.IDGen.NewID(ctx)
		if idErr != nil {
			return idErr
		}
		now := r.now()
		createErr := r.Campaigns.CreateCampaign(ctx, entities.Campaign{
			CampaignID: campaignID,
			Date:       state.date,
			Status:     entities.CampaignStatusProcessing,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
		if createErr != nil && !errors.Is(createErr, domainerrors.ErrCampaignDateTaken) {
			return createErr
		}
		campaign, err = r.Campaigns.FindCampaignByDate(ctx, state.date)
	}
	if err != nil {
		return err
	}

	if campaign.Delivered() {
		return domainerrors.ErrCampaignAlreadySent
	}
	if campaign.Status != entities.CampaignStatusProcessing {
		if err := r.Campaigns.UpdateCampaignStatus(ctx, campaign.CampaignID, entities.CampaignStatusProcessing); err != nil {
			return err
		}
	}
	state.campaignID = campaign.CampaignID
	return nil
}

// ingestCandidates pulls the eligible pool: already-scored posts not held by
// any campaign, freshest scoring window, best score first, capped. Scoring is
// a precondition of ingestion (the intake service scores continuously), so
// re-running this step never pays for re-scoring.
func (r Runner) ingestCandidates(ctx context.Context, cfg Config, state *runState) error {
	cutoff := r.now().Add(-cfg.IngestLookback)
	candidates, err := r.Posts.ListScoredUnattached(ctx, cutoff, cfg.CandidateCap)
	if err != nil {
		return err
	}
	state.candidates = candidates
	return nil
}

// dedupeCandidates recomputes the dedup index from stored state on every
// run and drops candidates whose external_id already shipped in a sent
// campaign inside the lookback window. Pure read; safe to retry.
// Source identity is the key, not content similarity: independently-sourced
// stories about the same event are not caught here.
func (r Runner) dedupeCandidates(ctx context.Context, cfg Config, state *runState) error {
	sinceDate := entities.AddDays(state.date, -cfg.DedupLookbackDays)
	sent, err := r.Campaigns.ListSentCampaigns(ctx, sinceDate)
	if err != nil {
		return err
	}

	campaignIDs := make([]string, 0, len(sent))
	for _, campaign := range sent {
		campaignIDs = append(campaignIDs, campaign.CampaignID)
	}

	delivered := make(map[string]struct{})
	if len(campaignIDs) > 0 {
		externalIDs, err := r.Posts.ListExternalIDsByCampaigns(ctx, campaignIDs)
		if err != nil {
			return err
		}
		for _, externalID := range externalIDs {
			delivered[externalID] = struct{}{}
		}
	}

	survivors := make([]entities.Post, 0, len(state.candidates))
	for _, candidate := range state.candidates {
		if _, dup := delivered[candidate.ExternalID]; dup {
			continue
		}
		survivors = append(survivors, candidate)
	}
	state.survivors = survivors
	return nil
}

// assignPosts attaches the deduplicated survivors to the campaign. Assignment
// happens strictly after deduplication so a post never transiently belongs to
// two campaigns.
func (r Runner) assignPosts(ctx context.Context, state *runState) error {
	if len(state.survivors) == 0 {
		return nil
	}
	postIDs := make([]string, 0, len(state.survivors))
	for _, post := range state.survivors {
		postIDs = append(postIDs, post.PostID)
	}
	return r.Posts.AssignPostsToCampaign(ctx, state.campaignID, postIDs)
}

// generateArticles produces article copy for every assigned post that does
// not already have one. It reads assignment from the store, not runState, so
// a resumed run picks up posts attached by an earlier attempt. Individual
// post failures are logged and skipped; the step only fails when posts exist
// and nothing at all could be generated.
func (r Runner) generateArticles(ctx context.Context, state *runState) error {
	logger := ResolveLogger(r.Logger)

	assigned, err := r.Posts.ListPostsByCampaign(ctx, state.campaignID)
	if err != nil {
		return err
	}
	existing, err := r.Articles.ListArticlesByCampaign(ctx, state.campaignID)
	if err != nil {
		return err
	}
	covered := make(map[string]struct{}, len(existing))
	for _, article := range existing {
		covered[article.PostID] = struct{}{}
	}

	generated := len(existing)
	for _, post := range assigned {
		if _, done := covered[post.PostID]; done {
			continue
		}
		body, genErr := r.Generator.GenerateArticle(ctx, post)
		if genErr != nil {
			logger.Warn("article generation failed for post",
				"event", "pipeline_generation_post_failed",
				"module", "newsletter-production/pipeline-service",
				"layer", "application",
				"campaign_id", state.campaignID,
				"post_id", post.PostID,
				"external_id", post.ExternalID,
				"error", genErr.Error(),
			)
			continue
		}
		articleID, idErr := r.IDGen.NewID(ctx)
		if idErr != nil {
			return idErr
		}
		now := r.now()
		if err := r.Articles.CreateArticle(ctx, entities.Article{
			ArticleID:  articleID,
			CampaignID: state.campaignID,
			PostID:     post.PostID,
			Body:       body,
			IsActive:   false,
			Rank:       0,
			CreatedAt:  now,
			UpdatedAt:  now,
		}); err != nil {
			return err
		}
		generated++
	}

	if generated == 0 && len(assigned) > 0 {
		return domainerrors.ErrNothingGenerated
	}
	return nil
}

// selectTopArticles activates the top N articles by source post score and
// assigns contiguous ranks 1..count. Ties break on earlier scored_at, then
// external_id, so selection is deterministic.
func (r Runner) selectTopArticles(ctx context.Context, cfg Config, state *runState) error {
	articles, err := r.Articles.ListArticlesByCampaign(ctx, state.campaignID)
	if err != nil {
		return err
	}
	posts, err := r.Posts.ListPostsByCampaign(ctx, state.campaignID)
	if err != nil {
		return err
	}
	postByID := make(map[string]entities.Post, len(posts))
	for _, post := range posts {
		postByID[post.PostID] = post
	}

	ranked := make([]entities.Article, 0, len(articles))
	for _, article := range articles {
		if _, ok := postByID[article.PostID]; !ok {
			// Source post was released by an earlier finalize; leave inactive.
			continue
		}
		ranked = append(ranked, article)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		left, right := postByID[ranked[i].PostID], postByID[ranked[j].PostID]
		if left.Score != right.Score {
			return left.Score > right.Score
		}
		if !left.ScoredAt.Equal(right.ScoredAt) {
			return left.ScoredAt.Before(right.ScoredAt)
		}
		return left.ExternalID < right.ExternalID
	})

	count := cfg.MaxActiveArticles
	if count > len(ranked) {
		count = len(ranked)
	}
	ranks := make(map[string]int, count)
	for i := 0; i < count; i++ {
		ranks[ranked[i].ArticleID] = i + 1
	}

	if err := r.Articles.ApplyArticleSelection(ctx, state.campaignID, ranks); err != nil {
		return err
	}
	state.active = count
	return nil
}

func (r Runner) populateEvents(ctx context.Context, state *runState) error {
	events, err := r.Auxiliary.ListEventsOnDate(ctx, state.date)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}
	eventIDs := make([]string, 0, len(events))
	for _, event := range events {
		eventIDs = append(eventIDs, event.EventID)
	}
	return r.Auxiliary.LinkCampaignEvents(ctx, state.campaignID, eventIDs)
}

func (r Runner) populateHeroImage(ctx context.Context, state *runState) error {
	image, err := r.Auxiliary.PickImage(ctx, heroImageTag)
	if errors.Is(err, domainerrors.ErrImageNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return r.Campaigns.SetCampaignHeroImage(ctx, state.campaignID, image.URL)
}

// generateSubject asks the generator for a subject line over the active
// article titles in rank order. Critical because automated delivery depends
// on it. A campaign with no active articles keeps an empty subject.
func (r Runner) generateSubject(ctx context.Context, state *runState) error {
	titles, err := r.activeTitles(ctx, state.campaignID)
	if err != nil {
		return err
	}
	if len(titles) == 0 {
		return nil
	}
	subject, err := r.Generator.SubjectLine(ctx, titles)
	if err != nil {
		return err
	}
	return r.Campaigns.SetCampaignSubject(ctx, state.campaignID, subject)
}

func (r Runner) populateSections(ctx context.Context, state *runState) error {
	deals, err := r.Auxiliary.ListDealsForWeekday(ctx, entities.WeekdayOf(state.date))
	if err != nil {
		return err
	}
	if len(deals) == 0 {
		return nil
	}
	sections := make([]entities.Section, 0, len(deals))
	for _, deal := range deals {
		sections = append(sections, entities.Section{
			Title: deal.Title,
			Body:  deal.Venue,
		})
	}
	return r.Campaigns.SetCampaignSections(ctx, state.campaignID, sections)
}

// finalize reconciles leftovers and hands the campaign to review. Every post
// still attached without a corresponding article is released back to the
// pool. Re-running an already-finalized campaign finds nothing to release
// and re-asserts `draft`, so the step is re-entrant.
func (r Runner) finalize(ctx context.Context, state *runState) error {
	posts, err := r.Posts.ListPostsByCampaign(ctx, state.campaignID)
	if err != nil {
		return err
	}
	articles, err := r.Articles.ListArticlesByCampaign(ctx, state.campaignID)
	if err != nil {
		return err
	}
	covered := make(map[string]struct{}, len(articles))
	for _, article := range articles {
		covered[article.PostID] = struct{}{}
	}

	var leftovers []string
	for _, post := range posts {
		if _, ok := covered[post.PostID]; !ok {
			leftovers = append(leftovers, post.PostID)
		}
	}
	if len(leftovers) > 0 {
		if err := r.Posts.ReleasePosts(ctx, leftovers); err != nil {
			return err
		}
	}
	return r.Campaigns.UpdateCampaignStatus(ctx, state.campaignID, entities.CampaignStatusDraft)
}

func (r Runner) notifyComplete(ctx context.Context, state *runState) error {
	if r.Outbox == nil {
		return nil
	}
	eventID, err := r.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(map[string]any{
		"campaign_id":   state.campaignID,
		"date":          state.date,
		"article_count": state.active,
		"trigger":       state.trigger,
	})
	if err != nil {
		return err
	}
	return r.Outbox.AppendOutbox(ctx, ports.EventEnvelope{
		EventID:          eventID,
		EventType:        "campaign.finalized",
		OccurredAt:       r.now(),
		SourceService:    "pipeline-service",
		SchemaVersion:    1,
		PartitionKeyPath: "campaign_id",
		PartitionKey:     state.campaignID,
		Data:             payload,
	})
}

func (r Runner) activeTitles(ctx context.Context, campaignID string) ([]string, error) {
	articles, err := r.Articles.ListArticlesByCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	posts, err := r.Posts.ListPostsByCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	titleByPost := make(map[string]string, len(posts))
	for _, post := range posts {
		titleByPost[post.PostID] = post.Title
	}

	active := make([]entities.Article, 0, len(articles))
	for _, article := range articles {
		if article.IsActive {
			active = append(active, article)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].Rank < active[j].Rank })

	titles := make([]string, 0, len(active))
	for _, article := range active {
		title, ok := titleByPost[article.PostID]
		if !ok {
			return nil, fmt.Errorf("active article %s has no source post: %w",
				article.ArticleID, domainerrors.ErrPostNotFound)
		}
		titles = append(titles, title)
	}
	return titles, nil
}
