// Package dispatch fans one identifier out to every provider and collects
// exactly one outcome per provider.
//
// The Dispatcher bounds concurrency with errgroup.SetLimit, gives every
// probe an independent deadline starting at its own launch, never cancels
// siblings when one probe fails, and returns outcomes in registry order.
// Invalid input (empty identifier, empty registry) is rejected with a
// *ConfigurationError before any probe launches.
package dispatch
