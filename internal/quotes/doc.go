// Package quotes defines the record model and collaborator interfaces shared
// by the crawl orchestrator, the detail workers and the export writer.
package quotes
