package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/miradorstack/mirador-investigator/internal/config"
	"github.com/miradorstack/mirador-investigator/internal/models"
)

// StatusClient reads current entity state from the live status API.
type StatusClient struct {
	http jsonClient
	path string
}

// NewStatusClient builds a live-status client.
func NewStatusClient(cfg config.StatusConfig) *StatusClient {
	return &StatusClient{
		http: newJSONClient("status", cfg.BaseURL, cfg.Timeout),
		path: firstNonEmpty(cfg.Path, "/api/v1/entities"),
	}
}

// EntityStatus returns the live state for id, or nil when the API does not know the entity.
func (c *StatusClient) EntityStatus(ctx context.Context, id string) (*models.EntityState, error) {
	if c == nil || !c.http.configured() {
		return nil, fmt.Errorf("status base URL not configured")
	}
	var response struct {
		EntityID   string            `json:"entity_id"`
		State      string            `json:"state"`
		UpdatedAt  time.Time         `json:"updated_at"`
		Attributes map[string]string `json:"attributes"`
	}
	err := c.http.getJSON(ctx, c.http.resolvePath(c.path+"/"+id), &response)
	if errors.Is(err, errNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if response.State == "" {
		return nil, nil
	}
	return &models.EntityState{
		EntityID:   firstNonEmpty(response.EntityID, id),
		State:      response.State,
		Source:     models.StateFromLive,
		ObservedAt: response.UpdatedAt.UTC(),
		Attributes: response.Attributes,
	}, nil
}
