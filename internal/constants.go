package internal

const (
	DotEnvPath        = "./.env"
	ConfigJSONPath    = "config.json"
	MigrationsDir     = "migrations"
	SessionCookie     = "session"
	DBTimestampLayout = "2006-01-02 15:04:05"
	ETagHeader        = "ETag"
	IfMatchHeader     = "If-Match"
	IfNoneMatchHeader = "If-None-Match"
)
