package probe

import (
	"context"
	"errors"

	"github.com/nao1215/streamscout/internal/crawler"
)

// PageStrategy loads a provider's embed page, and the same-site frames it
// nests, and gathers everything a player may reference: element attributes
// and inline scripts. The raw bodies are kept too, so that URLs assembled
// in script text are still visible to the extraction rule.
type PageStrategy struct {
	spider *crawler.Spider
}

// NewPageStrategy creates a PageStrategy on top of a configured spider.
func NewPageStrategy(spider *crawler.Spider) *PageStrategy {
	return &PageStrategy{spider: spider}
}

// Fetch implements FetchStrategy.
func (s *PageStrategy) Fetch(ctx context.Context, endpoint string) (*Content, error) {
	pages, err := s.spider.Crawl(ctx, endpoint)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, TransportError(err)
	}
	if len(pages) == 0 {
		return nil, TransportError(errors.New("embed page returned nothing"))
	}

	first := pages[0]
	content := &Content{
		Endpoint:    endpoint,
		StatusCode:  first.StatusCode,
		ContentType: first.ContentType,
		Body:        first.Body,
	}

	for i, page := range pages {
		if i > 0 {
			content.Fragments = append(content.Fragments, string(page.Body))
		}
		if page.Parsed == nil {
			continue
		}
		content.Fragments = append(content.Fragments, page.Parsed.Sources...)
		content.Fragments = append(content.Fragments, page.Parsed.Scripts...)
	}

	return content, nil
}
