package boson

import (
	"fmt"

	vk "github.com/goki/vulkan"
)

// BufferInfo describes a buffer to create. Zero-value usage and memory
// properties default to a device-local storage buffer.
type BufferInfo struct {
	Size             uint64
	Usage            vk.BufferUsageFlags
	MemoryProperties vk.MemoryPropertyFlags

	// Pool names a buffer pool to suballocate from. Empty means a
	// dedicated device memory allocation.
	Pool string
}

// CreateBuffer creates a buffer, binds memory for it and registers it in
// the device's resource table, returning its handle.
func (d *Device) CreateBuffer(info BufferInfo) (Buffer, error) {
	usage := info.Usage
	if usage == 0 {
		usage = vk.BufferUsageFlags(vk.BufferUsageStorageBufferBit)
	}
	if d.bindlessEnabled() {
		usage |= vk.BufferUsageFlags(vk.BufferUsageShaderDeviceAddressBit)
	}

	mprops := info.MemoryProperties
	if mprops == 0 {
		mprops = vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit)
	}

	buffer, err := d.createVKBuffer(info.Size, usage)
	if err != nil {
		return 0, err
	}

	var memoryRequirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(d.VKDevice, buffer, &memoryRequirements)
	memoryRequirements.Deref()

	ib := &internalBuffer{
		buffer: buffer,
		size:   info.Size,
	}

	if info.Pool != "" {
		pool := d.bufferPool(info.Pool)
		if pool == nil {
			vk.DestroyBuffer(d.VKDevice, buffer, nil)
			return 0, fmt.Errorf("no buffer pool named %q", info.Pool)
		}

		allocation := pool.Allocator.Allocate(uint64(memoryRequirements.Size), uint64(memoryRequirements.Alignment))
		if allocation == nil {
			vk.DestroyBuffer(d.VKDevice, buffer, nil)
			return 0, insufficientPoolSpaceError
		}

		err = vk.Error(vk.BindBufferMemory(d.VKDevice, buffer, pool.Memory.VKDeviceMemory, vk.DeviceSize(allocation.Offset)))
		if err != nil {
			pool.Allocator.Free(allocation)
			vk.DestroyBuffer(d.VKDevice, buffer, nil)
			return 0, err
		}

		ib.allocation = allocation
		ib.pool = pool
	} else {
		memory, err := d.allocate(int(memoryRequirements.Size), memoryRequirements.MemoryTypeBits, mprops, d.bindlessEnabled())
		if err != nil {
			vk.DestroyBuffer(d.VKDevice, buffer, nil)
			return 0, err
		}

		err = vk.Error(vk.BindBufferMemory(d.VKDevice, buffer, memory.VKDeviceMemory, 0))
		if err != nil {
			memory.Destroy()
			vk.DestroyBuffer(d.VKDevice, buffer, nil)
			return 0, err
		}

		ib.memory = memory
	}

	d.resourceMu.Lock()
	handle := d.resources.addBuffer(ib)
	d.resourceMu.Unlock()

	return handle, nil
}

func (d *Device) createVKBuffer(size uint64, usage vk.BufferUsageFlags) (vk.Buffer, error) {
	bufferCreateInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       usage,
		SharingMode: vk.SharingModeExclusive,
	}

	var buffer vk.Buffer
	err := vk.Error(vk.CreateBuffer(d.VKDevice, &bufferCreateInfo, nil, &buffer))
	if err != nil {
		return nil, err
	}
	return buffer, nil
}

// DestroyBuffer destroys the buffer and frees its table slot. The caller is
// responsible for ensuring the GPU is done with it.
func (d *Device) DestroyBuffer(h Buffer) {
	d.resourceMu.Lock()
	ib := d.resources.buffer(h)
	if ib != nil {
		d.resources.buffers[h] = nil
	}
	d.resourceMu.Unlock()

	if ib == nil {
		return
	}

	vk.DestroyBuffer(d.VKDevice, ib.buffer, nil)
	if ib.pool != nil {
		ib.pool.Allocator.Free(ib.allocation)
	} else if ib.memory != nil {
		ib.memory.Destroy()
	}
}

// bufferRange resolves a buffer handle to its native object and byte size.
func (d *Device) bufferRange(h Buffer) (vk.Buffer, uint64, error) {
	d.resourceMu.Lock()
	defer d.resourceMu.Unlock()

	ib := d.resources.buffer(h)
	if ib == nil {
		return nil, 0, fmt.Errorf("unknown buffer handle %d", h)
	}
	return ib.buffer, ib.size, nil
}

// MapBuffer maps the buffer's backing memory for host access. Only valid
// for dedicated, host-visible buffers.
func (d *Device) MapBuffer(h Buffer) (*DeviceMemory, error) {
	d.resourceMu.Lock()
	ib := d.resources.buffer(h)
	d.resourceMu.Unlock()

	if ib == nil {
		return nil, fmt.Errorf("unknown buffer handle %d", h)
	}
	if ib.memory == nil {
		return nil, fmt.Errorf("buffer %d is pool-backed and cannot be mapped directly", h)
	}
	return ib.memory, nil
}

// BufferPool suballocates buffers from one device memory block using a
// linear allocator, avoiding one vkAllocateMemory per buffer.
type BufferPool struct {
	Device           *Device
	Name             string
	Usage            vk.BufferUsageFlags
	MemoryProperties vk.MemoryPropertyFlags
	Size             uint64
	Allocator        IAllocator
	Memory           *DeviceMemory
}

// CreateBufferPool creates a named pool of the given size. Buffers created
// with BufferInfo.Pool set to the name suballocate from it.
func (d *Device) CreateBufferPool(name string, size uint64, usage vk.BufferUsageFlags, mprops vk.MemoryPropertyFlags) (*BufferPool, error) {
	// A throwaway buffer of the pool's usage determines which memory
	// types the pool must come from.
	probe, err := d.createVKBuffer(size, usage)
	if err != nil {
		return nil, err
	}
	defer vk.DestroyBuffer(d.VKDevice, probe, nil)

	var memoryRequirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(d.VKDevice, probe, &memoryRequirements)
	memoryRequirements.Deref()

	memory, err := d.allocate(int(size), memoryRequirements.MemoryTypeBits, mprops, d.bindlessEnabled())
	if err != nil {
		return nil, err
	}

	p := &BufferPool{
		Device:           d,
		Name:             name,
		Usage:            usage,
		MemoryProperties: mprops,
		Size:             size,
		Allocator:        &LinearAllocator{Size: size},
		Memory:           memory,
	}

	d.resourceMu.Lock()
	if d.bufferPools == nil {
		d.bufferPools = make(map[string]*BufferPool)
	}
	d.bufferPools[name] = p
	d.resourceMu.Unlock()

	return p, nil
}

func (d *Device) bufferPool(name string) *BufferPool {
	d.resourceMu.Lock()
	defer d.resourceMu.Unlock()
	return d.bufferPools[name]
}

func (p *BufferPool) Destroy() {
	p.Device.resourceMu.Lock()
	delete(p.Device.bufferPools, p.Name)
	p.Device.resourceMu.Unlock()

	if p.Memory != nil {
		p.Memory.Destroy()
		p.Memory = nil
	}
}
