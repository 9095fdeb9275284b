package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"restaurant-pos/models"

	"go.uber.org/zap"
)

type bootstrapResponse struct {
	Success    bool                 `json:"success"`
	Products   []models.Product     `json:"products"`
	Categories []models.Category    `json:"categories"`
	Tables     []models.DiningTable `json:"tables"`
	Settings   []models.Setting     `json:"settings"`
}

// PullBootstrap refreshes the terminal's reference-data cache from the
// server. This is a snapshot pull: the cached catalog, categories, tables
// and settings are replaced wholesale. Orders are never touched by it.
func (d *Dispatcher) PullBootstrap(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		d.baseURL+"/api/bootstrap", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+d.token)

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("pull bootstrap: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bootstrap endpoint returned %d", resp.StatusCode)
	}

	var out bootstrapResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("decode bootstrap response: %w", err)
	}

	if err := d.store.SaveProductsBulk(out.Products); err != nil {
		return fmt.Errorf("cache products: %w", err)
	}
	if err := d.store.SaveCategoriesBulk(out.Categories); err != nil {
		return fmt.Errorf("cache categories: %w", err)
	}
	if err := d.store.SaveTablesBulk(out.Tables); err != nil {
		return fmt.Errorf("cache tables: %w", err)
	}
	if err := d.store.SaveSettingsBulk(out.Settings); err != nil {
		return fmt.Errorf("cache settings: %w", err)
	}

	d.log.Info("bootstrap cache refreshed",
		zap.Int("products", len(out.Products)),
		zap.Int("categories", len(out.Categories)),
		zap.Int("tables", len(out.Tables)),
		zap.Int("settings", len(out.Settings)))
	return nil
}
