package license

import (
	"log"
	"time"

	"omni-license-server/internal/model"

	"gorm.io/gorm"
)

// Sweeper periodically removes refresh tokens that have not been used
// within the retention window. It issues the same delete any caller
// could; a token revoked while the sweep runs just means zero rows for
// that jti, which is fine.
type Sweeper struct {
	db        *gorm.DB
	interval  time.Duration
	retention time.Duration
	stop      chan struct{}
	done      chan struct{}
}

func NewSweeper(db *gorm.DB, interval, retention time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	return &Sweeper{
		db:        db,
		interval:  interval,
		retention: retention,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start launches the background loop. Call Stop to end it.
func (s *Sweeper) Start() {
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				removed, err := s.Sweep()
				if err != nil {
					log.Println("refresh token sweep failed:", err)
				} else if removed > 0 {
					log.Printf("refresh token sweep removed %d stale entries", removed)
				}
			case <-s.stop:
				return
			}
		}
	}()
}

// Stop ends the loop and waits for it to exit.
func (s *Sweeper) Stop() {
	close(s.stop)
	<-s.done
}

// Sweep deletes refresh tokens whose last use predates the retention
// window and returns how many were removed.
func (s *Sweeper) Sweep() (int64, error) {
	cutoff := time.Now().Add(-s.retention)
	res := s.db.Where("last_used < ?", cutoff).Delete(&model.RefreshToken{})
	return res.RowsAffected, res.Error
}
