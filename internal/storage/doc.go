// Package storage persists the bot's subscriptions and user preferences.
//
// Drivers:
//   - file: one JSON document, rewritten in full (temp file + rename) on every save
//   - sqlite: the same document spread over three tables, replaced in one transaction
package storage
