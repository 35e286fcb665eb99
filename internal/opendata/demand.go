package opendata

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/jgoulah/gridheadroom/internal/demand"
	"github.com/jgoulah/gridheadroom/pkg/models"
)

// ErrNoDemandDataset is returned when no demand dataset is configured
var ErrNoDemandDataset = errors.New("no demand dataset configured")

// FetchDemand returns the raw demand samples recorded for id. Fields that are
// missing or unparseable come back as invalid samples rather than errors.
func (c *Client) FetchDemand(ctx context.Context, id string) ([]models.DemandSample, error) {
	if !c.demand.Configured() {
		return nil, ErrNoDemandDataset
	}

	timeField := c.demand.GetTimeField()
	valueField := c.demand.GetValueField()

	params := url.Values{}
	params.Set("dataset", c.demand.Dataset)
	params.Set("rows", strconv.Itoa(c.rows))
	params.Set("sort", timeField)
	params.Set("refine."+c.demand.IDField, id)

	result, err := c.search(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("fetching demand for %s: %w", id, err)
	}

	samples := make([]models.DemandSample, 0, len(result.Records))
	for _, rec := range result.Records {
		var sample models.DemandSample
		if s, ok := rec.Properties[timeField].(string); ok {
			if ts, err := demand.ParseTimestamp(s, c.loc); err == nil {
				sample.Timestamp = ts.In(c.loc)
			}
		}
		sample.CurrentAmps = numeric(rec.Properties[valueField])
		samples = append(samples, sample)
	}

	return samples, nil
}

func numeric(v any) *float64 {
	switch val := v.(type) {
	case float64:
		return &val
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return nil
		}
		return &f
	default:
		return nil
	}
}
