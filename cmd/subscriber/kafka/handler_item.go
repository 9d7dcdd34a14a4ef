package kafka

import (
	"context"
	"encoding/json"

	"github.com/naughtygopher/errors"
	"go.uber.org/zap"

	"github.com/prashantkr001/inventory-api/internal/item"
	"github.com/prashantkr001/inventory-api/internal/pkg/logger"
)

// ItemAdd consumes an item JSON payload. Malformed payloads and duplicates are acknowledged
// so they are not redelivered. Any other error is retried, and if retries run out the
// partition is rewound to this record.
func (kfk *Kafka) ItemAdd(ctx context.Context, payload []byte) error {
	newItem := new(item.Item)
	err := json.Unmarshal(payload, newItem)
	if err != nil {
		logger.WarnCtx(
			ctx,
			"discarding malformed item payload",
			zap.ByteString("payload", payload),
			zap.Error(err),
		)
		return nil
	}

	_, err = kfk.apiSvc.ItemAdd(ctx, *newItem)
	if errors.Is(err, item.ErrDuplicateItem) {
		logger.InfoCtx(ctx, "item already exists", zap.Int("code", newItem.Code))
		return nil
	}

	return err
}
