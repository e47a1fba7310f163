// Package probe runs one resolution attempt against one provider.
//
// A Probe composes a FetchStrategy, which retrieves raw content for a
// rendered endpoint, with an ExtractionRule, which turns that content into
// candidate manifest URLs. Whatever happens inside, Run returns exactly one
// model.Outcome:
//
//   - success: at least one distinct manifest URL was extracted
//   - not_found: the fetch completed cleanly but nothing matched
//   - error: timeout, transport, extraction, cancelled or internal failure,
//     with a "<kind>: <diagnostic>" message
//
// Three strategies are provided: APIStrategy (provider JSON API),
// PageStrategy (embed page and nested frames) and RenderStrategy (external
// headless renderer). A Set routes each provider to the probe of its
// configured strategy.
package probe
