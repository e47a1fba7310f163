// Package crawler walks provider embed pages for the page fetch strategy.
//
// # Architecture
//
// The package is designed around the Spider type, which fetches an embed
// page, parses it and follows nested <iframe> embeds on the same site up to
// a configured depth. It uses a work queue to manage frames to visit and a
// per-crawl visited set, so one Spider can be shared by concurrent probes.
//
// # Components
//
//   - Spider: Fetches the start page and its nested frames
//   - Parser: HTML parser that collects media source candidates, frame
//     URLs and inline script text
//
// # Usage
//
//	spider := crawler.NewSpider(httpClient, crawler.WithMaxDepth(1))
//	pages, err := spider.Crawl(ctx, "https://embed.example/movie/550")
//
// # Limits
//
//   - Only frames on the same registrable domain are followed
//   - Response bodies are capped (WithSpiderMaxBodySize)
//   - The total number of pages per crawl is capped (WithMaxPages)
//   - Cancellation of the context stops the crawl between requests
package crawler
