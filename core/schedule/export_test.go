package schedule

import "time"

// SetNowFunc overrides the clock of a Service returned by NewService.
func SetNowFunc(svc Service, now func() time.Time) {
	svc.(*service).nowFunc = now
}
