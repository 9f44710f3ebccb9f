package geocoding

import (
	"context"
	"errors"
	"log/slog"

	"route-planner/internal/domain"
	"route-planner/internal/ports"
)

// ChainGeocoder resolves through cache, then the online geocoder, then the
// offline gazetteer. Online results are written back to the cache; gazetteer
// answers are not, so a later online success can replace them.
type ChainGeocoder struct {
	cache     ports.LocalityCache
	online    ports.ReverseGeocoder
	gazetteer ports.ReverseGeocoder
	logger    *slog.Logger
}

// Any collaborator may be nil.
func NewChainGeocoder(
	cache ports.LocalityCache,
	online ports.ReverseGeocoder,
	gazetteer ports.ReverseGeocoder,
	logger *slog.Logger,
) *ChainGeocoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChainGeocoder{cache: cache, online: online, gazetteer: gazetteer, logger: logger}
}

func (c *ChainGeocoder) Reverse(ctx context.Context, coords domain.Coordinates) (domain.Locality, error) {
	if c.cache != nil {
		loc, ok, err := c.cache.Get(ctx, coords)
		if err != nil {
			c.logger.WarnContext(ctx, "locality cache read failed", "coords", coords.Key(), "err", err)
		} else if ok {
			return loc, nil
		}
	}

	var errs []error

	if c.online != nil {
		loc, err := c.online.Reverse(ctx, coords)
		if err == nil {
			if c.cache != nil {
				if err := c.cache.Put(ctx, coords, loc); err != nil {
					c.logger.WarnContext(ctx, "locality cache write failed", "coords", coords.Key(), "err", err)
				}
			}
			return loc, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.Locality{}, ctxErr
		}
		errs = append(errs, err)
	}

	if c.gazetteer != nil {
		loc, err := c.gazetteer.Reverse(ctx, coords)
		if err == nil {
			return loc, nil
		}
		errs = append(errs, err)
	}

	if len(errs) == 0 {
		return domain.Locality{}, errors.New("reverse geocode: no geocoder configured")
	}
	return domain.Locality{}, errors.Join(errs...)
}
