package engine

// binding is one name→Value pair inside a symbol frame.
type binding struct {
	name  string
	value Value
}

// SymbolTable is a scoped stack of binding frames, generalized from the
// teacher's copy-on-spawn chtml.Scope into an explicit LIFO frame stack:
// spec.md §4.2/§8 require exact pop-on-release depth invariants ("for every
// guard created, exactly one frame is popped on its release") that a
// copy-spawning scope does not expose directly.
//
// Lookup walks frames top to bottom; Set always writes into the current top
// frame, overriding any shadowed binding of the same name in that frame.
type SymbolTable struct {
	frames [][]binding
}

// NewSymbolTable returns a table with a single empty frame.
func NewSymbolTable() *SymbolTable {
	st := &SymbolTable{}
	st.frames = [][]binding{nil}
	return st
}

// Set writes name into the top frame, overriding any existing binding of
// the same name in that frame.
func (st *SymbolTable) Set(name string, v Value) {
	top := len(st.frames) - 1
	frame := st.frames[top]
	for i, b := range frame {
		if b.name == name {
			frame[i].value = v
			return
		}
	}
	st.frames[top] = append(frame, binding{name: name, value: v})
}

// Resolve looks up name from the top frame down. It returns the value and
// true if found, or the zero Value and false if no frame defines it.
func (st *SymbolTable) Resolve(name string) (Value, bool) {
	for i := len(st.frames) - 1; i >= 0; i-- {
		frame := st.frames[i]
		for j := len(frame) - 1; j >= 0; j-- {
			if frame[j].name == name {
				return frame[j].value, true
			}
		}
	}
	return Value{}, false
}

// Guard pushes a fresh top frame and returns a release function. Calling
// release pops exactly that frame and discards every binding made in it;
// calling it more than once has no further effect. The interpreter calls it
// at the end of each loop iteration that opened the frame, mirroring the original's RAII frame_guard and the teacher's bindVar
// restore-on-defer pattern (chtml/render.go's bindVar).
func (st *SymbolTable) Guard() (release func()) {
	st.frames = append(st.frames, nil)
	depth := len(st.frames)
	released := false
	return func() {
		if released {
			return
		}
		released = true
		if len(st.frames) != depth {
			// A caller released frames out of order; trim back to the
			// expected depth defensively rather than leaving the stack
			// unbalanced for the remainder of Parse.
			if len(st.frames) > depth {
				st.frames = st.frames[:depth]
			} else {
				return
			}
		}
		st.frames = st.frames[:depth-1]
	}
}

// Depth returns the current number of frames, for invariant assertions in
// tests.
func (st *SymbolTable) Depth() int { return len(st.frames) }

// Reset discards every frame and reinstates a single empty frame.
func (st *SymbolTable) Reset() {
	st.frames = [][]binding{nil}
}
