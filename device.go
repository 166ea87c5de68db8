package boson

import (
	"fmt"
	"sync"
	"unsafe"

	vk "github.com/goki/vulkan"
)

// FrameLag is the frame pipelining depth: the number of frames that may be
// in flight on the GPU while the CPU records the next one.
const FrameLag = 2

// Device wraps a Vulkan logical device together with the state the render
// graph consumes: a command pool for per-frame buffers, the handle table of
// live resources, and the optional bindless address table.
type Device struct {
	PhysicalDevice *PhysicalDevice
	VKDevice       vk.Device

	CommandPool        *CommandPool
	QueueFamilyIndices []int

	resourceMu  sync.Mutex
	resources   resourceTable
	bufferPools map[string]*BufferPool

	// headlessFrame cycles the frame slot for graphs built without a
	// swapchain; presenting graphs track it on the swapchain instead.
	headlessFrame int

	bindless *bindlessTable
}

func (d *Device) Destroy() {
	if d.bindless != nil {
		d.bindless.destroy(d)
	}
	if d.CommandPool != nil {
		d.CommandPool.Destroy()
	}
	vk.DestroyDevice(d.VKDevice, nil)
}

func (d *Device) String() string {
	return fmt.Sprintf("{ PhysicalDevice: %s }", d.PhysicalDevice)
}

func (d *Device) WaitIdle() {
	vk.DeviceWaitIdle(d.VKDevice)
}

func (d *Device) GetQueue(qf *QueueFamily) *Queue {
	var vkq vk.Queue
	vk.GetDeviceQueue(d.VKDevice, uint32(qf.Index), 0, &vkq)

	return &Queue{
		QueueFamily: qf,
		Device:      d,
		VKQueue:     vkq,
	}
}

// graphicsQueue returns the queue the graph submits and presents on: queue
// zero of the first queue family the device was created with.
func (d *Device) graphicsQueue() vk.Queue {
	var vkq vk.Queue
	vk.GetDeviceQueue(d.VKDevice, uint32(d.QueueFamilyIndices[0]), 0, &vkq)
	return vkq
}

func (d *Device) bindlessEnabled() bool {
	return d.bindless != nil
}

// allocateFrameCommandBuffers allocates the per-frame primary command
// buffers a render graph records into.
func (d *Device) allocateFrameCommandBuffers(count int) ([]*CommandBuffer, error) {
	return d.CommandPool.AllocateBuffers(count)
}

// createFrameFences creates the per-frame fences, signaled so the first
// use of every frame slot passes its fence gate.
func (d *Device) createFrameFences(count int) ([]vk.Fence, error) {
	fences := make([]vk.Fence, 0, count)
	for i := 0; i < count; i++ {
		fence, err := d.VKCreateFence(true)
		if err != nil {
			for _, f := range fences {
				d.VKDestroyFence(f)
			}
			return nil, err
		}
		fences = append(fences, fence)
	}
	return fences, nil
}

type AllocationRequirements struct {
	Size           int
	MemoryTypeBits uint32
}

// Allocate allocates device memory of the requested size from a memory type
// matching the given properties.
func (d *Device) Allocate(sizeInBytes int, memoryTypeBits uint32, memoryProperties vk.MemoryPropertyFlags) (*DeviceMemory, error) {
	return d.allocate(sizeInBytes, memoryTypeBits, memoryProperties, false)
}

func (d *Device) allocate(sizeInBytes int, memoryTypeBits uint32, memoryProperties vk.MemoryPropertyFlags, deviceAddress bool) (*DeviceMemory, error) {
	var allocateInfo = vk.MemoryAllocateInfo{}
	allocateInfo.SType = vk.StructureTypeMemoryAllocateInfo
	allocateInfo.AllocationSize = vk.DeviceSize(sizeInBytes)

	var err error
	allocateInfo.MemoryTypeIndex, err = d.PhysicalDevice.FindMemoryType(
		memoryTypeBits,
		vk.MemoryPropertyFlagBits(memoryProperties))
	if err != nil {
		return nil, err
	}

	// Memory backing buffers whose address shaders consume must itself be
	// allocated with the device address flag.
	var flagsInfo vk.MemoryAllocateFlagsInfo
	if deviceAddress {
		flagsInfo = vk.MemoryAllocateFlagsInfo{
			SType: vk.StructureTypeMemoryAllocateFlagsInfo,
			Flags: vk.MemoryAllocateFlags(vk.MemoryAllocateDeviceAddressBit),
		}
		allocateInfo.PNext = unsafe.Pointer(&flagsInfo)
	}

	var deviceMemory vk.DeviceMemory
	err = vk.Error(vk.AllocateMemory(d.VKDevice, &allocateInfo, nil, &deviceMemory))
	if err != nil {
		return nil, err
	}

	return &DeviceMemory{
		Size:           uint64(sizeInBytes),
		Device:         d,
		VKDeviceMemory: deviceMemory,
	}, nil
}
