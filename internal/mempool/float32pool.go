// Package mempool recycles the float32 plane buffers used while building image
// pyramids, so scoring a long image list does not allocate a fresh level per scale.
package mempool

import (
	"sync"
)

const classStep = 4096

var float32Pools sync.Map // key: size class (int), value: *sync.Pool

// sizeClass rounds n up to the next multiple of classStep, minimum one step.
func sizeClass(n int) int {
	if n <= classStep {
		return classStep
	}
	return ((n + classStep - 1) / classStep) * classStep
}

func poolFor(cls int) *sync.Pool {
	p, _ := float32Pools.LoadOrStore(cls, &sync.Pool{New: func() any { return make([]float32, cls) }})
	return p.(*sync.Pool) //nolint:forcetypeassert // only *sync.Pool is ever stored
}

// GetFloat32 returns a buffer of length n. Contents are not zeroed; callers
// overwrite every element they read. Return it with PutFloat32.
func GetFloat32(n int) []float32 {
	if n < 0 {
		n = 0
	}
	cls := sizeClass(n)
	buf, ok := poolFor(cls).Get().([]float32)
	if !ok || cap(buf) < cls {
		buf = make([]float32, cls)
	}
	return buf[:n]
}

// PutFloat32 hands a buffer back to its size class. Nil is ignored, as are
// buffers too small to have come from GetFloat32.
func PutFloat32(buf []float32) {
	if buf == nil || cap(buf) < classStep {
		return
	}
	cls := sizeClass(cap(buf))
	if cls != cap(buf) {
		cls -= classStep
	}
	poolFor(cls).Put(buf[:cap(buf)]) //nolint:staticcheck
}
