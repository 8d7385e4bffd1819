package ambient

import (
	"context"
	"math"
	"time"
)

// FadeStep is the interval between gain writes during a fade.
const FadeStep = 50 * time.Millisecond

// Fade moves a gain linearly from one value to another over d, calling set
// every FadeStep. The last call is exactly to. If ctx ends first, ctx.Err()
// is returned and to is never written.
func Fade(ctx context.Context, from, to float64, d time.Duration, set func(float64)) error {
	steps := int(math.Ceil(float64(d) / float64(FadeStep)))
	if steps <= 0 || from == to {
		set(to)
		return nil
	}

	t := time.NewTicker(d / time.Duration(steps))
	defer t.Stop()
	for i := 1; i <= steps; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
		if i == steps {
			set(to)
			break
		}
		set(from + (to-from)*float64(i)/float64(steps))
	}
	return nil
}
