package core

import (
	"context"
	"strings"
)

// Pinger is implemented by anything holding a database connection pool.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// ParseOrdering turns "-created_at,name" into orderings, dropping fields not in allowed.
func ParseOrdering(s string, allowed ...string) []DBOrdering {
	var res []DBOrdering
	for _, f := range strings.Split(s, ",") {
		f = strings.TrimSpace(f)
		asc := true
		if strings.HasPrefix(f, "-") {
			asc = false
			f = f[1:]
		}
		for _, a := range allowed {
			if f == a {
				res = append(res, DBOrdering{Field: f, Ascending: asc})
				break
			}
		}
	}
	return res
}
