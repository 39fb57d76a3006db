package dataset

import (
	"context"

	"github.com/pkg/errors"

	"framefeed/internal/record"
	"framefeed/internal/storage"
	"framefeed/internal/util"
)

// readEpisode fetches and parses one serialized episode record. Object
// store reads are retried a few times; a parse failure is permanent and
// belongs to the caller's per-item error handling.
func readEpisode(ctx context.Context, bucket storage.Bucket, key string, cfg Config) (*record.Episode, error) {
	data, err := util.Fetch(ctx, bucket, key)

	if err != nil {
		return nil, errors.Wrapf(err, "unable to fetch record '%s'", key)
	}

	episode, err := record.Unmarshal(data)

	if err != nil {
		return nil, errors.Wrapf(err, "unable to parse record '%s'", key)
	}

	if episode.Height != cfg.ImageH || episode.Width != cfg.ImageW || episode.Channels != cfg.ImageC {
		return nil, errors.Errorf("record '%s' is %dx%dx%d, loader expects %dx%dx%d",
			key, episode.Height, episode.Width, episode.Channels, cfg.ImageH, cfg.ImageW, cfg.ImageC)
	}

	return episode, nil
}
