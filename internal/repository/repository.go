package repository

import (
	"context"

	"github.com/ivanoskov/ibadah_bot/internal/model"
)

// Repository is the remote ibadah resource.
type Repository interface {
	ListIbadah(ctx context.Context) ([]model.Ibadah, error)
	CreateIbadah(ctx context.Context, draft model.Draft) error
	UpdateIbadah(ctx context.Context, id int64, draft model.Draft) error
	DeleteIbadah(ctx context.Context, id int64) error
}

// listEnvelope is the GET /ibadah response body.
type listEnvelope struct {
	Data []model.Ibadah `json:"data"`
}
