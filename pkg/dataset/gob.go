package dataset

import (
	"encoding/gob"

	"github.com/Sumatoshi-tech/lazygrain/pkg/value"
)

// init registers State's possible leaf types with the default gob codec
// so pkg/persist.GobCodec can round-trip a State through its map[string]any
// leaves without each caller registering types itself. Packers and
// prefetch iterators stash rendered Element/Array values directly inside
// a State (pkg/packing's "bin_frozen"/"bins" entries), so those concrete
// types need registration too.
func init() {
	gob.Register(State{})
	gob.Register([]State{})
	gob.Register(int(0))
	gob.Register(int64(0))
	gob.Register(float64(0))
	gob.Register(string(""))
	gob.Register(false)
	gob.Register([]int{})
	gob.Register([]string{})
	gob.Register(value.Array{})
	gob.Register(Element{})
	gob.Register([]Element{})
}
