package main

import (
	"strings"

	"github.com/bobarin/vibecast/internal/db"
	"github.com/bobarin/vibecast/internal/queue"
)

// openHistory connects the job history store, or returns nil when no DSN is set.
func openHistory(dsn string) (*db.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, nil
	}
	return db.New(dsn)
}

// openQueue connects the Redis render queue, or returns nil when no URL is set.
func openQueue(redisURL string) (*queue.Queue, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, nil
	}
	return queue.New(redisURL)
}
