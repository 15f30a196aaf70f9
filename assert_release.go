//go:build !collidedebug

package collide

const debugAssertions = false

// queryOnUnbuilt is a no-op in release builds; callers degrade to a blocked
// or empty result.
func queryOnUnbuilt(op string) {}
