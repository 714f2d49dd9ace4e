package camera

import (
	"fmt"
	"path/filepath"
	"time"
)

// Filename builds the artifact path for a capture: the prefix plus a
// timestamp suffix with microsecond resolution, so two captures in the
// same second on one node never collide.
func Filename(dir, prefix string, t time.Time) string {
	name := fmt.Sprintf("%s_%s_%06d.jpg", prefix, t.Format("20060102_150405"), t.Nanosecond()/1000)
	return filepath.Join(dir, name)
}
