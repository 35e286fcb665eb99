package opendata

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/jgoulah/gridheadroom/internal/zones"
	"github.com/jgoulah/gridheadroom/pkg/models"
)

// FetchZones returns the raw zone records within radiusMeters of loc
func (c *Client) FetchZones(ctx context.Context, loc models.Location, radiusMeters int) ([]zones.RawRecord, error) {
	params := url.Values{}
	params.Set("dataset", c.zoneDataset)
	params.Set("rows", strconv.Itoa(c.rows))
	params.Set("start", "0")
	params.Set("geofilter.distance", fmt.Sprintf("%s,%s,%d",
		strconv.FormatFloat(loc.Lat, 'f', -1, 64), strconv.FormatFloat(loc.Lon, 'f', -1, 64), radiusMeters))

	result, err := c.search(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("fetching zones: %w", err)
	}

	if result.NHits == 0 {
		return []zones.RawRecord{}, nil
	}
	return result.Records, nil
}
