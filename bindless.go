package boson

import (
	"unsafe"

	vk "github.com/goki/vulkan"
)

// Descriptor set bindings of the global table. Shaders hard-code these.
const (
	deviceAddressBufferBinding = 0
	specialBufferBinding       = 1
	specialImageBinding        = 2
)

// bindlessTable is the GPU-side mirror of the resource table: a storage
// buffer of buffer device addresses plus descriptor arrays of every live
// buffer and image, indexed by their handles. It is rewritten at the start
// of each rendered frame.
type bindlessTable struct {
	descriptorCount uint32

	pool   *DescriptorPool
	layout *DescriptorSetLayout
	set    *DescriptorSet

	addressBuffer vk.Buffer
	addressMemory *DeviceMemory
	stagingBuffer vk.Buffer
	stagingMemory *DeviceMemory
}

// GlobalDescriptorSetLayout exposes the table's layout for building
// pipeline layouts against it.
func (d *Device) GlobalDescriptorSetLayout() *DescriptorSetLayout {
	if d.bindless == nil {
		return nil
	}
	return d.bindless.layout
}

// GlobalDescriptorSet exposes the table's descriptor set for binding.
func (d *Device) GlobalDescriptorSet() *DescriptorSet {
	if d.bindless == nil {
		return nil
	}
	return d.bindless.set
}

func (d *Device) setupBindless(descriptorCount uint32) error {
	t := &bindlessTable{descriptorCount: descriptorCount}

	layout := d.NewDescriptorSetLayout()
	layout.AddBinding(vk.DescriptorSetLayoutBinding{
		Binding:         deviceAddressBufferBinding,
		DescriptorType:  vk.DescriptorTypeStorageBuffer,
		DescriptorCount: 1,
		StageFlags:      vk.ShaderStageFlags(vk.ShaderStageAll),
	})
	layout.AddBinding(vk.DescriptorSetLayoutBinding{
		Binding:         specialBufferBinding,
		DescriptorType:  vk.DescriptorTypeStorageBuffer,
		DescriptorCount: descriptorCount,
		StageFlags:      vk.ShaderStageFlags(vk.ShaderStageAll),
	})
	layout.AddBinding(vk.DescriptorSetLayoutBinding{
		Binding:         specialImageBinding,
		DescriptorType:  vk.DescriptorTypeStorageImage,
		DescriptorCount: descriptorCount,
		StageFlags:      vk.ShaderStageFlags(vk.ShaderStageAll),
	})

	var err error
	t.layout, err = d.CreateDescriptorSetLayout(layout)
	if err != nil {
		return err
	}

	pool := d.NewDescriptorPool()
	pool.AddPoolSize(vk.DescriptorTypeStorageBuffer, int(descriptorCount)+1)
	pool.AddPoolSize(vk.DescriptorTypeStorageImage, int(descriptorCount))
	t.pool, err = d.CreateDescriptorPool(pool, 1)
	if err != nil {
		t.layout.Destroy()
		return err
	}

	t.set, err = t.pool.Allocate(t.layout)
	if err != nil {
		t.pool.Destroy()
		t.layout.Destroy()
		return err
	}

	size := uint64(descriptorCount) * uint64(unsafe.Sizeof(uint64(0)))

	t.addressBuffer, t.addressMemory, err = d.createBoundVKBuffer(size,
		vk.BufferUsageFlags(vk.BufferUsageStorageBufferBit|vk.BufferUsageTransferDstBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if err != nil {
		t.pool.Destroy()
		t.layout.Destroy()
		return err
	}

	t.stagingBuffer, t.stagingMemory, err = d.createBoundVKBuffer(size,
		vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if err != nil {
		vk.DestroyBuffer(d.VKDevice, t.addressBuffer, nil)
		t.addressMemory.Destroy()
		t.pool.Destroy()
		t.layout.Destroy()
		return err
	}

	d.bindless = t
	return nil
}

// createBoundVKBuffer creates a raw buffer with freshly bound memory,
// outside the handle table. The bindless table's own buffers must not
// appear in the table they describe.
func (d *Device) createBoundVKBuffer(size uint64, usage vk.BufferUsageFlags, mprops vk.MemoryPropertyFlags) (vk.Buffer, *DeviceMemory, error) {
	buffer, err := d.createVKBuffer(size, usage)
	if err != nil {
		return nil, nil, err
	}

	var memoryRequirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(d.VKDevice, buffer, &memoryRequirements)
	memoryRequirements.Deref()

	memory, err := d.allocate(int(memoryRequirements.Size), memoryRequirements.MemoryTypeBits, mprops, false)
	if err != nil {
		vk.DestroyBuffer(d.VKDevice, buffer, nil)
		return nil, nil, err
	}

	err = vk.Error(vk.BindBufferMemory(d.VKDevice, buffer, memory.VKDeviceMemory, 0))
	if err != nil {
		memory.Destroy()
		vk.DestroyBuffer(d.VKDevice, buffer, nil)
		return nil, nil, err
	}

	return buffer, memory, nil
}

func (t *bindlessTable) destroy(d *Device) {
	vk.DestroyBuffer(d.VKDevice, t.stagingBuffer, nil)
	t.stagingMemory.Destroy()
	vk.DestroyBuffer(d.VKDevice, t.addressBuffer, nil)
	t.addressMemory.Destroy()
	t.pool.Destroy()
	t.layout.Destroy()
}

// refreshAddressTable snapshots the resource table into the GPU-side
// address book and descriptor arrays. Depth images and swapchain images
// have no storage-image use and keep empty descriptor slots.
func (d *Device) refreshAddressTable(cb *CommandBuffer) error {
	t := d.bindless
	if t == nil {
		return nil
	}

	addresses := make([]uint64, t.descriptorCount)
	bufferInfos := make([]vk.DescriptorBufferInfo, 0)
	imageInfos := make([]vk.DescriptorImageInfo, 0)

	d.resourceMu.Lock()

	for i, ib := range d.resources.buffers {
		if uint32(i) >= t.descriptorCount {
			break
		}
		if ib == nil {
			bufferInfos = append(bufferInfos, vk.DescriptorBufferInfo{
				Range: vk.DeviceSize(vk.WholeSize),
			})
			continue
		}

		addressInfo := vk.BufferDeviceAddressInfo{
			SType:  vk.StructureTypeBufferDeviceAddressInfo,
			Buffer: ib.buffer,
		}
		addresses[i] = uint64(vk.GetBufferDeviceAddress(d.VKDevice, &addressInfo))

		bufferInfos = append(bufferInfos, vk.DescriptorBufferInfo{
			Buffer: ib.buffer,
			Range:  vk.DeviceSize(ib.size),
		})
	}

	for i, img := range d.resources.images {
		if uint32(i) >= t.descriptorCount {
			break
		}
		if img == nil || img.swapchainBacked || img.isDepthOrStencil() {
			imageInfos = append(imageInfos, vk.DescriptorImageInfo{})
			continue
		}
		imageInfos = append(imageInfos, vk.DescriptorImageInfo{
			ImageView:   img.view,
			ImageLayout: vk.ImageLayoutGeneral,
		})
	}

	d.resourceMu.Unlock()

	size := len(addresses) * int(unsafe.Sizeof(uint64(0)))
	bytes := unsafe.Slice((*byte)(unsafe.Pointer(&addresses[0])), size)
	if err := t.stagingMemory.MapCopyUnmap(bytes); err != nil {
		return err
	}

	vk.CmdCopyBuffer(cb.VKCommandBuffer, t.stagingBuffer, t.addressBuffer, 1, []vk.BufferCopy{
		{Size: vk.DeviceSize(size)},
	})

	writes := []vk.WriteDescriptorSet{{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          t.set.VKDescriptorSet,
		DstBinding:      deviceAddressBufferBinding,
		DescriptorCount: 1,
		DescriptorType:  vk.DescriptorTypeStorageBuffer,
		PBufferInfo: []vk.DescriptorBufferInfo{{
			Buffer: t.addressBuffer,
			Range:  vk.DeviceSize(size),
		}},
	}}

	if len(bufferInfos) != 0 {
		writes = append(writes, vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          t.set.VKDescriptorSet,
			DstBinding:      specialBufferBinding,
			DescriptorCount: uint32(len(bufferInfos)),
			DescriptorType:  vk.DescriptorTypeStorageBuffer,
			PBufferInfo:     bufferInfos,
		})
	}

	if len(imageInfos) != 0 {
		writes = append(writes, vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          t.set.VKDescriptorSet,
			DstBinding:      specialImageBinding,
			DescriptorCount: uint32(len(imageInfos)),
			DescriptorType:  vk.DescriptorTypeStorageImage,
			PImageInfo:      imageInfos,
		})
	}

	vk.UpdateDescriptorSets(d.VKDevice, uint32(len(writes)), writes, 0, nil)

	return nil
}
