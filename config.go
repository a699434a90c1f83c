package main

import (
	"os"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"stageboard-api/storage"
)

type config struct {
	ConnStr         string
	Tables          storage.Tables
	ChangeFeedQueue string

	RedisConn     string
	BoardCacheTTL time.Duration

	ChangelogStrict bool
	Debug           bool
}

func loadConfig() config {
	cfg := config{
		ConnStr: os.Getenv("STORAGE_CONNECTION_STRING"),
		Tables: storage.Tables{
			Tasks:       envString("TASKS_TABLE", "boardtasks"),
			People:      envString("PEOPLE_TABLE", "boardpeople"),
			Assignments: envString("ASSIGNMENTS_TABLE", "boardassignments"),
			Jira:        envString("JIRA_TABLE", "boardjira"),
			Changes:     envString("CHANGES_TABLE", "boardchanges"),
		},
		ChangeFeedQueue: os.Getenv("CHANGE_FEED_QUEUE"),
		RedisConn:       os.Getenv("REDIS_CONNECTION_STRING"),
		BoardCacheTTL:   envDuration("BOARD_CACHE_TTL", 30*time.Second),
		ChangelogStrict: envBool("CHANGELOG_STRICT", false),
		Debug:           envBool("DEBUG", false),
	}
	if cfg.ConnStr == "" {
		log.Fatal("missing storage config")
	}
	return cfg
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Fatalf("invalid %s: %v", key, err)
	}
	return b
}

func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		log.Fatalf("invalid %s: %v", key, err)
	}
	return d
}
