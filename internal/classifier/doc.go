// Package classifier decides whether a fetched page belongs to the corpus and
// feeds its outgoing links back into the frontier.
package classifier
