package service

import (
	"context"
	"strings"

	"github.com/avvvet/certify-services/internal/certsvc/models"
	"github.com/ethereum/go-ethereum/common"
)

const (
	maxActivity     = 200
	defaultActivity = 50
)

type ActivityService struct {
	activity ActivityRecorder
}

func NewActivityService(activity ActivityRecorder) *ActivityService {
	return &ActivityService{activity: activity}
}

func (s *ActivityService) Recent(ctx context.Context, actor string, limit int64) ([]models.Activity, error) {
	if s.activity == nil {
		return []models.Activity{}, nil
	}
	if limit <= 0 || limit > maxActivity {
		limit = defaultActivity
	}
	return s.activity.Recent(ctx, normalizeActor(actor), limit)
}

// normalizeActor matches the checksummed form actors are recorded with.
func normalizeActor(actor string) string {
	actor = strings.TrimSpace(actor)
	if common.IsHexAddress(actor) {
		return common.HexToAddress(actor).Hex()
	}
	return actor
}
