package engine

import (
	"github.com/schubergphilis/azureenergylabelerlib/internal/domain/entity"
	"github.com/schubergphilis/azureenergylabelerlib/internal/labeling"
)

// Summarize counts results. Labels are only computed when labeler is set.
func Summarize(results []entity.SubscriptionResult, dropped int, labeler *labeling.Labeler) entity.Summary {
	ret := entity.Summary{
		Subscriptions:  len(results),
		DroppedRecords: dropped,
		FailuresByKind: make(map[entity.ErrorKind]int),
	}

	for _, r := range results {
		switch {
		case r.Success != nil:
			ret.Succeeded++
			ret.Records += len(r.Success.Records)
		case r.Failure != nil:
			ret.Failed++
			ret.FailuresByKind[r.Failure.ErrorKind]++
		}
	}

	if labeler != nil {
		labels := labeler.Label(results)
		ret.Labels = &labels
	}

	return ret
}
