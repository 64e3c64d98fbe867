// Package recipes loads the trainer-curated recipe catalog from its
// published sheet.
package recipes

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/DanielRv555/op-calorie-vision/internal/sheet"
)

// Recipe sheet column layout.
const (
	colName = iota
	colIngredients
	colPreparation
	colCalories
	colProtein
	colCarbs
	colFat
	colPhotoURL
	colVideoURL

	columnCount
)

// Recipe is one catalog entry. Ingredients and preparation steps are
// newline-separated blocks the frontend splits for display.
type Recipe struct {
	Name        string  `json:"name"`
	Ingredients string  `json:"ingredients"`
	Preparation string  `json:"preparation"`
	Calories    float64 `json:"calories"`
	Protein     float64 `json:"protein"`
	Carbs       float64 `json:"carbs"`
	Fat         float64 `json:"fat"`
	PhotoURL    string  `json:"photo_url"`
	VideoURL    string  `json:"video_url"`
}

// Service loads the recipe catalog
type Service struct {
	sheets sheet.Fetcher
	url    string
	logger *slog.Logger
}

// NewService creates a recipe catalog service backed by the given sheet
func NewService(sheets sheet.Fetcher, url string, logger *slog.Logger) *Service {
	return &Service{
		sheets: sheets,
		url:    url,
		logger: logger,
	}
}

// Catalog fetches and parses the recipe sheet. A sheet whose header does not
// start with the literal "nombre" cell yields an empty catalog rather than
// an error, since it means the published layout changed under us. Rows that
// are too short or lack a name are dropped; malformed numbers coerce to
// zero.
func (s *Service) Catalog(ctx context.Context) ([]Recipe, error) {
	table, err := s.sheets.Fetch(ctx, s.url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch recipe sheet: %w", err)
	}

	if len(table) == 0 || sheet.Cell(table[0], colName) != "nombre" {
		s.logger.Error("recipe sheet has an unexpected header, returning empty catalog")
		return []Recipe{}, nil
	}

	recipes := make([]Recipe, 0, len(table)-1)
	for _, row := range table[1:] {
		if len(row) < columnCount {
			continue
		}
		name := sheet.Cell(row, colName)
		if name == "" {
			continue
		}

		recipes = append(recipes, Recipe{
			Name:        name,
			Ingredients: strings.TrimSpace(row[colIngredients]),
			Preparation: strings.TrimSpace(row[colPreparation]),
			Calories:    parseFloat(row[colCalories]),
			Protein:     parseFloat(row[colProtein]),
			Carbs:       parseFloat(row[colCarbs]),
			Fat:         parseFloat(row[colFat]),
			PhotoURL:    sheet.Cell(row, colPhotoURL),
			VideoURL:    sheet.Cell(row, colVideoURL),
		})
	}

	return recipes, nil
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}
