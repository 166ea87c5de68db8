package boson

import (
	"fmt"

	vk "github.com/goki/vulkan"
)

// VKCreateSemaphore creates a native vulkan semaphore object
func (d *Device) VKCreateSemaphore() (vk.Semaphore, error) {
	semaphoreCreateInfo := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}

	var sema vk.Semaphore
	err := vk.Error(vk.CreateSemaphore(d.VKDevice, &semaphoreCreateInfo, nil, &sema))
	return sema, err
}

func (d *Device) VKDestroySemaphore(s vk.Semaphore) {
	vk.DestroySemaphore(d.VKDevice, s, nil)
}

// CreateBinarySemaphore creates one semaphore per frame slot under a single
// handle. Graph submissions pick the slot for the frame being recorded, so
// the handle can be signaled again while older frames still wait on it.
func (d *Device) CreateBinarySemaphore() (BinarySemaphore, error) {
	semaphores := make([]vk.Semaphore, 0, FrameLag)
	for i := 0; i < FrameLag; i++ {
		sema, err := d.VKCreateSemaphore()
		if err != nil {
			for _, s := range semaphores {
				d.VKDestroySemaphore(s)
			}
			return 0, err
		}
		semaphores = append(semaphores, sema)
	}

	d.resourceMu.Lock()
	handle := d.resources.addSemaphore(&internalSemaphore{semaphores: semaphores})
	d.resourceMu.Unlock()

	return handle, nil
}

func (d *Device) DestroyBinarySemaphore(h BinarySemaphore) {
	d.resourceMu.Lock()
	sem := d.resources.semaphore(h)
	if sem != nil {
		d.resources.semaphores[h] = nil
	}
	d.resourceMu.Unlock()

	if sem == nil {
		return
	}
	for _, s := range sem.semaphores {
		d.VKDestroySemaphore(s)
	}
}

// frameSemaphore resolves a semaphore handle to the native semaphore for
// the given frame slot.
func (d *Device) frameSemaphore(h BinarySemaphore, frame int) (vk.Semaphore, error) {
	d.resourceMu.Lock()
	defer d.resourceMu.Unlock()

	sem := d.resources.semaphore(h)
	if sem == nil {
		return nil, fmt.Errorf("unknown semaphore handle %d", h)
	}
	return sem.semaphores[frame%len(sem.semaphores)], nil
}
