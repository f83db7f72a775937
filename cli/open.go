package cli

import (
	"fmt"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/syssam/uow/dialect"
	"github.com/syssam/uow/dialect/sql"
	"github.com/syssam/uow/session"
)

// driverNames maps dialects to the database/sql drivers registered for them.
var driverNames = map[string]string{
	dialect.MySQL:    "mysql",
	dialect.Postgres: "postgres",
	dialect.SQLite:   "sqlite",
}

// open opens the configured database. Connections are established
// lazily, so commands that only plan never reach the database.
func (o *RootOptions) open() (*sql.Driver, error) {
	name, ok := driverNames[o.Config.Dialect]
	if !ok {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("unsupported dialect %q", o.Config.Dialect))
	}
	drv, err := sql.Open(name, o.Config.DSN)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open database", err)
	}
	if o.Config.Dialect == dialect.SQLite {
		// In-memory databases are per connection.
		drv.DB().SetMaxOpenConns(1)
	}
	o.Logger.Debug("database opened", "dialect", o.Config.Dialect)
	return drv, nil
}

func (o *RootOptions) sessionOptions() []session.Option {
	return append([]session.Option{session.WithLogger(o.Logger)}, o.Config.Session.Options()...)
}
