package boson

import (
	vk "github.com/goki/vulkan"
)

// Resource declares one resource a task touches and how. The handle is not
// stored; an accessor resolves it from the application's own state every
// frame, which lets a graph built at startup reference resources that are
// recreated later (resized swapchain images, reallocated buffers).
type Resource[T any] struct {
	buffer       func(*T) Buffer
	bufferAccess BufferAccess

	image       func(*T) Image
	imageAccess ImageAccess
	aspect      vk.ImageAspectFlags
}

// BufferUse declares a buffer dependency with the given access intent.
func BufferUse[T any](accessor func(*T) Buffer, access BufferAccess) Resource[T] {
	return Resource[T]{buffer: accessor, bufferAccess: access}
}

// ImageUse declares an image dependency with the given access intent and
// subresource aspect.
func ImageUse[T any](accessor func(*T) Image, access ImageAccess, aspect vk.ImageAspectFlags) Resource[T] {
	return Resource[T]{image: accessor, imageAccess: access, aspect: aspect}
}

// resolve evaluates the accessor against the live application state,
// producing the concrete handle + access pair for this frame.
func (r *Resource[T]) resolve(t *T) Qualifier {
	if r.buffer != nil {
		return Qualifier{
			kind:         qualifierBuffer,
			buffer:       r.buffer(t),
			bufferAccess: r.bufferAccess,
		}
	}
	return Qualifier{
		kind:        qualifierImage,
		image:       r.image(t),
		imageAccess: r.imageAccess,
		aspect:      r.aspect,
	}
}

type qualifierKind int

const (
	qualifierBuffer qualifierKind = iota
	qualifierImage
)

// Qualifier is a resolved resource declaration: the concrete handle and the
// access a task requested for it this frame.
type Qualifier struct {
	kind qualifierKind

	buffer       Buffer
	bufferAccess BufferAccess

	image       Image
	imageAccess ImageAccess
	aspect      vk.ImageAspectFlags
}

// Task is one unit of GPU work: the ordered list of resources it touches
// and a body that records commands. Declaration order of both tasks and
// resources is execution order; the graph never reorders.
type Task[T any] struct {
	Resources []Resource[T]
	Run       func(*T, *Commands) error
}
