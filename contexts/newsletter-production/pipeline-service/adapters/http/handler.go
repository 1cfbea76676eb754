package httpadapter

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"herald/contexts/newsletter-production/pipeline-service/application"
	"herald/contexts/newsletter-production/pipeline-service/ports"
	httptransport "herald/contexts/newsletter-production/pipeline-service/transport/http"
)

type Handler struct {
	Runner    application.Runner
	Campaigns ports.CampaignRepository
	Posts     ports.PostRepository
	Articles  ports.ArticleRepository
	Logger    *slog.Logger
}

// TriggerRunHandler starts a manual pipeline run for the requested date.
// Repeat triggers for the same date resume the existing campaign.
func (h Handler) TriggerRunHandler(
	ctx context.Context,
	req httptransport.TriggerRunRequest,
) (httptransport.TriggerRunResponse, error) {
	result, err := h.Runner.Run(ctx, "manual", req.Date)
	if err != nil {
		return httptransport.TriggerRunResponse{}, err
	}

	resp := httptransport.TriggerRunResponse{
		Status:    "success",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	resp.Data.CampaignID = result.CampaignID
	resp.Data.Date = strings.TrimSpace(req.Date)
	resp.Data.Success = result.Success
	return resp, nil
}

// GetCampaignHandler returns a campaign with its active article slate in
// rank order.
func (h Handler) GetCampaignHandler(
	ctx context.Context,
	date string,
) (httptransport.CampaignResponse, error) {
	campaign, err := h.Campaigns.FindCampaignByDate(ctx, strings.TrimSpace(date))
	if err != nil {
		return httptransport.CampaignResponse{}, err
	}
	articles, err := h.Articles.ListArticlesByCampaign(ctx, campaign.CampaignID)
	if err != nil {
		return httptransport.CampaignResponse{}, err
	}
	posts, err := h.Posts.ListPostsByCampaign(ctx, campaign.CampaignID)
	if err != nil {
		return httptransport.CampaignResponse{}, err
	}
	postByID := make(map[string]struct {
		title string
		link  string
		score float64
	}, len(posts))
	for _, post := range posts {
		postByID[post.PostID] = struct {
			title string
			link  string
			score float64
		}{post.Title, post.Link, post.Score}
	}

	resp := httptransport.CampaignResponse{
		Status:    "success",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	resp.Data.CampaignID = campaign.CampaignID
	resp.Data.Date = campaign.Date
	resp.Data.Status = string(campaign.Status)
	resp.Data.Subject = campaign.Subject
	resp.Data.HeroImageURL = campaign.HeroImageURL
	for _, section := range campaign.Sections {
		resp.Data.Sections = append(resp.Data.Sections, httptransport.SectionDTO{
			Title: section.Title,
			Body:  section.Body,
		})
	}

	resp.Data.Articles = make([]httptransport.ArticleDTO, 0, len(articles))
	for _, article := range articles {
		if !article.IsActive {
			continue
		}
		source := postByID[article.PostID]
		resp.Data.Articles = append(resp.Data.Articles, httptransport.ArticleDTO{
			ArticleID: article.ArticleID,
			PostID:    article.PostID,
			Title:     source.title,
			Link:      source.link,
			Body:      article.Body,
			Score:     source.score,
			Rank:      article.Rank,
		})
	}
	sort.Slice(resp.Data.Articles, func(i, j int) bool {
		return resp.Data.Articles[i].Rank < resp.Data.Articles[j].Rank
	})
	return resp, nil
}
