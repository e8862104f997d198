package handler

import (
	"net/http"

	"github.com/daap14/loyalty/internal/api/middleware"
	"github.com/daap14/loyalty/internal/api/response"
	"github.com/daap14/loyalty/internal/tier"
)

// tierResponse is the API representation of a tier table row.
type tierResponse struct {
	Level              int    `json:"level"`
	Code               string `json:"code"`
	Name               string `json:"name"`
	MinPoints          int64  `json:"minPoints"`
	PointsMultiplier   string `json:"pointsMultiplier"`
	DiscountPercentage string `json:"discountPercentage"`
}

func toTierResponse(t tier.Tier) tierResponse {
	return tierResponse{
		Level:              int(t.Level),
		Code:               t.Level.Code(),
		Name:               t.Name,
		MinPoints:          t.MinPoints,
		PointsMultiplier:   t.PointsMultiplier.String(),
		DiscountPercentage: t.DiscountPercentage.String(),
	}
}

// TierHandler serves the fixed tier table.
type TierHandler struct{}

// NewTierHandler creates a new TierHandler.
func NewTierHandler() *TierHandler {
	return &TierHandler{}
}

// List handles GET /tiers.
func (h *TierHandler) List(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	table := tier.Table()
	items := make([]tierResponse, 0, len(table))
	for _, t := range table {
		items = append(items, toTierResponse(t))
	}

	response.SuccessList(w, items, len(items), requestID)
}
