package migrations

import "embed"

// FS embeds the schema of click sessions, clicks, conversions and their
// rules, audit trail, attribution records and fraud assessments. Migrate
// reads it through the golang-migrate iofs driver.
//
//go:embed *.sql
var FS embed.FS

// Version is the schema version Migrate brings the database to.
const Version = 1
