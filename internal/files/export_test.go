package files

import "time"

func (uc *ReconcileThumbnails) SetClock(now func() time.Time) {
	uc.now = now
}
