package repo

import (
	"context"
	"time"

	"github.com/schubergphilis/azureenergylabelerlib/internal/domain/entity"
)

//go:generate mockgen -source=interfaces.go -package=mock -destination=./mock/mock_repo.go

// ReportWriter persists a report to one destination.
type ReportWriter interface {
	WriteReport(ctx context.Context, report entity.Report) error
}

// QueryRecordStore is a remote store for provider results, shared between
// cycles and replicas. GetRecords also returns how long the records remain
// valid.
type QueryRecordStore interface {
	GetRecords(ctx context.Context, key entity.QueryKey) ([]entity.RawRecord, time.Duration, error)
	WriteRecords(ctx context.Context, key entity.QueryKey, records []entity.RawRecord, ttl time.Duration) error
}
