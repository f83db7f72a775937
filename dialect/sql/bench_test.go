package sql

import (
	"testing"

	"github.com/syssam/uow/dialect"
)

func BenchmarkInsertBuilder(b *testing.B) {
	for _, d := range []string{dialect.SQLite, dialect.MySQL, dialect.Postgres} {
		b.Run(d, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				Dialect(d).Insert("users").
					Columns("id", "age", "first_name", "last_name", "nickname", "spouse_id", "created_at", "updated_at").
					Values(1, 30, "Ariel", "Mashraki", "a8m", 2, "2009-11-10 23:00:00", "2009-11-10 23:00:00").
					Query()
			}
		})
	}
}

func BenchmarkUpdateBuilder(b *testing.B) {
	for _, d := range []string{dialect.SQLite, dialect.MySQL, dialect.Postgres} {
		b.Run(d, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				Dialect(d).Update("users").
					Set("name", "foo").
					Set("age", 10).
					Where(EQ("id", 1)).
					Query()
			}
		})
	}
}

func BenchmarkDeleteBuilder_Composite(b *testing.B) {
	keys := make([][]any, 100)
	for i := range keys {
		keys[i] = []any{i, i + 1}
	}
	for _, d := range []string{dialect.SQLite, dialect.MySQL, dialect.Postgres} {
		b.Run(d, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				Dialect(d).Delete("user_groups").
					Where(KeysIn([]string{"user_id", "group_id"}, keys)).
					Query()
			}
		})
	}
}
