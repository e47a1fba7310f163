// Package main provides the entry point for the streamscout CLI.
//
// streamscout resolves a media identifier into playable stream manifest
// URLs by probing every configured provider concurrently and merging
// whichever answer.
//
// Usage:
//
//	streamscout resolve <id>...
//	streamscout serve --listen 0.0.0.0:8080
//
// See --help for all available options.
package main

// main is the entry point for streamscout.
func main() {
	Execute()
}
