package review

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"asset-lifecycle-service/internal/config"
	"asset-lifecycle-service/internal/core/domain"
	"asset-lifecycle-service/internal/core/ports/output"
)

type reviewRequest struct {
	ModelURL        string   `json:"model_url"`
	ReferenceImages []string `json:"reference_images"`
}

type reviewResponse struct {
	Approved bool   `json:"approved"`
	Summary  string `json:"summary"`
}

type client struct {
	baseURL string
	token   string
	http    *http.Client
	enabled bool
}

// NewClient returns a ReviewEngine backed by the QA review HTTP service.
func NewClient(cfg *config.ReviewConfig) ports.ReviewEngine {
	if !cfg.Enabled {
		return &client{enabled: false}
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Minute
	}

	return &client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		token:   cfg.Token,
		enabled: true,
		http: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *client) RunReview(ctx context.Context, modelLocator string, referenceImages []string) (bool, error) {
	if !c.enabled {
		return false, domain.ErrReviewUnavailable
	}
	if referenceImages == nil {
		referenceImages = []string{}
	}

	body, err := json.Marshal(reviewRequest{ModelURL: modelLocator, ReferenceImages: referenceImages})
	if err != nil {
		return false, fmt.Errorf("encode review request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/reviews", bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("create review request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	log.WithFields(log.Fields{
		"model_locator": modelLocator,
		"references":    len(referenceImages),
	}).Debug("requesting qa review")

	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: %v", domain.ErrReviewUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return false, fmt.Errorf("%w: status %d", domain.ErrReviewUnavailable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("review request rejected: status %d", resp.StatusCode)
	}

	var out reviewResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, fmt.Errorf("decode review response: %w", err)
	}
	log.WithFields(log.Fields{
		"model_locator": modelLocator,
		"approved":      out.Approved,
		"summary":       out.Summary,
	}).Info("qa review returned")
	return out.Approved, nil
}
