package modules

import (
	"fmt"
	"hash/fnv"
)

// ContentHash is a short stable hash used to name inline modules.
func ContentHash(content []byte) string {
	h := fnv.New64a()
	_, _ = h.Write(content)
	return fmt.Sprintf("%016x", h.Sum64())
}
