package publisher

import (
	"context"

	"github.com/nandanugg/carrier-geo/module/core/domain"
)

type PositionPublisher interface {
	PublishPosition(ctx context.Context, evt *domain.PositionEvent) error
}
