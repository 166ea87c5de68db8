package boson

import (
	vk "github.com/goki/vulkan"
)

// Opaque handles into the device's resource table. Handles are small dense
// integers so GPU-side tables (the bindless address book) can be indexed by
// them directly.
type (
	Buffer          uint32
	Image           uint32
	Swapchain       uint32
	BinarySemaphore uint32
)

type internalBuffer struct {
	buffer     vk.Buffer
	size       uint64
	memory     *DeviceMemory
	allocation *Allocation
	pool       *BufferPool
}

type internalImage struct {
	image           vk.Image
	view            vk.ImageView
	format          vk.Format
	extent          vk.Extent2D
	memory          *DeviceMemory
	swapchainBacked bool
}

func (i *internalImage) isDepthOrStencil() bool {
	switch i.format {
	case vk.FormatD16Unorm, vk.FormatX8D24UnormPack32, vk.FormatD32Sfloat,
		vk.FormatS8Uint, vk.FormatD16UnormS8Uint, vk.FormatD24UnormS8Uint,
		vk.FormatD32SfloatS8Uint:
		return true
	}
	return false
}

type internalSwapchain struct {
	handle vk.Swapchain
	format vk.Format
	extent vk.Extent2D
	images []Image

	currentFrame     int
	lastAcquired     uint32
	acquired         bool
	allowAcquisition bool
}

type internalSemaphore struct {
	// One semaphore per frame slot so a handle can be waited on and
	// re-signaled while older frames are still in flight.
	semaphores []vk.Semaphore
}

// resourceTable maps handles to live GPU objects. Freed slots stay in place
// as nils and are reused, keeping handles dense for the bindless snapshot.
// Callers hold Device.resourceMu.
type resourceTable struct {
	buffers    []*internalBuffer
	images     []*internalImage
	swapchains []*internalSwapchain
	semaphores []*internalSemaphore
}

func (t *resourceTable) addBuffer(b *internalBuffer) Buffer {
	for i, slot := range t.buffers {
		if slot == nil {
			t.buffers[i] = b
			return Buffer(i)
		}
	}
	t.buffers = append(t.buffers, b)
	return Buffer(len(t.buffers) - 1)
}

func (t *resourceTable) buffer(h Buffer) *internalBuffer {
	if int(h) >= len(t.buffers) {
		return nil
	}
	return t.buffers[h]
}

func (t *resourceTable) addImage(img *internalImage) Image {
	for i, slot := range t.images {
		if slot == nil {
			t.images[i] = img
			return Image(i)
		}
	}
	t.images = append(t.images, img)
	return Image(len(t.images) - 1)
}

func (t *resourceTable) image(h Image) *internalImage {
	if int(h) >= len(t.images) {
		return nil
	}
	return t.images[h]
}

func (t *resourceTable) addSwapchain(s *internalSwapchain) Swapchain {
	for i, slot := range t.swapchains {
		if slot == nil {
			t.swapchains[i] = s
			return Swapchain(i)
		}
	}
	t.swapchains = append(t.swapchains, s)
	return Swapchain(len(t.swapchains) - 1)
}

func (t *resourceTable) swapchain(h Swapchain) *internalSwapchain {
	if int(h) >= len(t.swapchains) {
		return nil
	}
	return t.swapchains[h]
}

func (t *resourceTable) addSemaphore(s *internalSemaphore) BinarySemaphore {
	for i, slot := range t.semaphores {
		if slot == nil {
			t.semaphores[i] = s
			return BinarySemaphore(i)
		}
	}
	t.semaphores = append(t.semaphores, s)
	return BinarySemaphore(len(t.semaphores) - 1)
}

func (t *resourceTable) semaphore(h BinarySemaphore) *internalSemaphore {
	if int(h) >= len(t.semaphores) {
		return nil
	}
	return t.semaphores[h]
}
