package scraper

import (
	"context"

	"github.com/masahif/falconeye/internal/asset"
	"github.com/masahif/falconeye/internal/fetch"
)

// PageFetcher retrieves page markup
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (*fetch.Response, error)
}

// AssetDownloader saves discovered assets
type AssetDownloader interface {
	Download(ctx context.Context, urls []string, dir string) ([]asset.Outcome, error)
}

// Journal handles run history persistence
type Journal interface {
	SaveRun(run *RunRecord) error
	SaveAssets(assets []*AssetRecord) error
	SaveError(rec *ErrorRecord) error
}
