//go:build collidedebug

package collide

const debugAssertions = true

func queryOnUnbuilt(op string) {
	panic("collide: " + op + " called on an unbuilt or disposed index")
}
