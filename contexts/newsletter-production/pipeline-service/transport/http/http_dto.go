package http

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ErrorEnvelope struct {
	Status    string    `json:"status"`
	Error     ErrorBody `json:"error"`
	Timestamp string    `json:"timestamp"`
}

type TriggerRunRequest struct {
	Date string `json:"date"`
}

type TriggerRunResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Data      struct {
		CampaignID string `json:"campaign_id"`
		Date       string `json:"date"`
		Success    bool   `json:"success"`
	} `json:"data"`
}

type ArticleDTO struct {
	ArticleID string  `json:"article_id"`
	PostID    string  `json:"post_id"`
	Title     string  `json:"title"`
	Link      string  `json:"link"`
	Body      string  `json:"body"`
	Score     float64 `json:"score"`
	Rank      int     `json:"rank"`
}

type SectionDTO struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type CampaignResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Data      struct {
		CampaignID   string       `json:"campaign_id"`
		Date         string       `json:"date"`
		Status       string       `json:"status"`
		Subject      string       `json:"subject,omitempty"`
		HeroImageURL string       `json:"hero_image_url,omitempty"`
		Sections     []SectionDTO `json:"sections,omitempty"`
		Articles     []ArticleDTO `json:"articles"`
	} `json:"data"`
}
