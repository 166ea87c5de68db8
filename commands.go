package boson

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
)

// Commands is the recording surface handed to a task's body. It wraps the
// frame's command buffer and the task's resolved resource declarations, and
// collects the frame's submit and present requests.
type Commands struct {
	device        graphDevice
	qualifiers    []Qualifier
	commandBuffer *CommandBuffer

	submit  *Submit
	present *Present
}

// PipelineBarrier records one pipeline barrier. Buffer and image indices in
// the barrier refer to the current task's declared resources, in order.
func (c *Commands) PipelineBarrier(b PipelineBarrier) error {
	bufferBarriers := make([]vk.BufferMemoryBarrier, 0, len(b.Buffers))
	for _, bb := range b.Buffers {
		if bb.Buffer < 0 || bb.Buffer >= len(c.qualifiers) {
			return fmt.Errorf("buffer barrier index %d out of range", bb.Buffer)
		}
		q := c.qualifiers[bb.Buffer]
		if q.kind != qualifierBuffer {
			return fmt.Errorf("buffer barrier index %d does not name a buffer", bb.Buffer)
		}

		buffer, _, err := c.device.bufferRange(q.buffer)
		if err != nil {
			return err
		}

		bufferBarriers = append(bufferBarriers, vk.BufferMemoryBarrier{
			SType:               vk.StructureTypeBufferMemoryBarrier,
			SrcAccessMask:       bb.SrcAccess,
			DstAccessMask:       bb.DstAccess,
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Buffer:              buffer,
			Offset:              vk.DeviceSize(bb.Offset),
			Size:                vk.DeviceSize(bb.Size),
		})
	}

	imageBarriers := make([]vk.ImageMemoryBarrier, 0, len(b.Images))
	for _, ib := range b.Images {
		if ib.Image < 0 || ib.Image >= len(c.qualifiers) {
			return fmt.Errorf("image barrier index %d out of range", ib.Image)
		}
		q := c.qualifiers[ib.Image]
		if q.kind != qualifierImage {
			return fmt.Errorf("image barrier index %d does not name an image", ib.Image)
		}

		image, err := c.device.imageHandle(q.image)
		if err != nil {
			return err
		}

		imageBarriers = append(imageBarriers, vk.ImageMemoryBarrier{
			SType:               vk.StructureTypeImageMemoryBarrier,
			SrcAccessMask:       ib.SrcAccess,
			DstAccessMask:       ib.DstAccess,
			OldLayout:           ib.OldLayout,
			NewLayout:           ib.NewLayout,
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Image:               image,
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask: ib.Aspect,
				LevelCount: 1,
				LayerCount: 1,
			},
		})
	}

	return c.device.emitPipelineBarrier(c.commandBuffer, b.SrcStage, b.DstStage, bufferBarriers, imageBarriers)
}

// Submit requests that this frame's command buffer be submitted with the
// given semaphores. The last Submit recorded in a frame wins.
func (c *Commands) Submit(s Submit) {
	c.submit = &s
}

// Present requests a present of the acquired swapchain image after this
// frame's submission. The last Present recorded in a frame wins.
func (c *Commands) Present(p Present) {
	c.present = &p
}

func (c *Commands) BindComputePipeline(p *ComputePipeline) {
	c.commandBuffer.CmdBindComputePipeline(p)
}

func (c *Commands) BindDescriptorSets(bindPoint vk.PipelineBindPoint, layout *PipelineLayout, firstSet int, sets ...*DescriptorSet) {
	c.commandBuffer.CmdBindDescriptorSets(bindPoint, layout, firstSet, sets...)
}

func (c *Commands) Dispatch(x, y, z int) {
	c.commandBuffer.CmdDispatch(x, y, z)
}

func (c *Commands) PushConstants(layout *PipelineLayout, stages vk.ShaderStageFlags, offset int, data []byte) {
	if len(data) == 0 {
		return
	}
	vk.CmdPushConstants(c.commandBuffer.VKCommandBuffer, layout.VKPipelineLayout,
		stages, uint32(offset), uint32(len(data)), unsafe.Pointer(&data[0]))
}

// CopyBuffer records a full copy between two declared buffers, addressed by
// their resource indices.
func (c *Commands) CopyBuffer(src, dst int, size uint64) error {
	if src < 0 || src >= len(c.qualifiers) || dst < 0 || dst >= len(c.qualifiers) {
		return fmt.Errorf("copy indices (%d, %d) out of range", src, dst)
	}

	srcBuffer, _, err := c.device.bufferRange(c.qualifiers[src].buffer)
	if err != nil {
		return err
	}
	dstBuffer, _, err := c.device.bufferRange(c.qualifiers[dst].buffer)
	if err != nil {
		return err
	}

	vk.CmdCopyBuffer(c.commandBuffer.VKCommandBuffer, srcBuffer, dstBuffer, 1, []vk.BufferCopy{
		{Size: vk.DeviceSize(size)},
	})
	return nil
}

// CopyBufferToImage records a copy of a declared buffer into a declared
// image, which must be in the transfer destination layout.
func (c *Commands) CopyBufferToImage(src, dst int, extent vk.Extent2D) error {
	if src < 0 || src >= len(c.qualifiers) || dst < 0 || dst >= len(c.qualifiers) {
		return fmt.Errorf("copy indices (%d, %d) out of range", src, dst)
	}

	srcBuffer, _, err := c.device.bufferRange(c.qualifiers[src].buffer)
	if err != nil {
		return err
	}
	dstImage, err := c.device.imageHandle(c.qualifiers[dst].image)
	if err != nil {
		return err
	}

	vk.CmdCopyBufferToImage(c.commandBuffer.VKCommandBuffer, srcBuffer, dstImage,
		vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{
			{
				ImageSubresource: vk.ImageSubresourceLayers{
					AspectMask: c.qualifiers[dst].aspect,
					LayerCount: 1,
				},
				ImageExtent: vk.Extent3D{
					Width:  extent.Width,
					Height: extent.Height,
					Depth:  1,
				},
			},
		})
	return nil
}

// ClearColorImage clears a declared image, which must be in the transfer
// destination layout.
func (c *Commands) ClearColorImage(image int, color []float32) error {
	if image < 0 || image >= len(c.qualifiers) {
		return fmt.Errorf("clear index %d out of range", image)
	}
	q := c.qualifiers[image]
	if q.kind != qualifierImage {
		return fmt.Errorf("clear index %d does not name an image", image)
	}

	handle, err := c.device.imageHandle(q.image)
	if err != nil {
		return err
	}

	// ClearValue and ClearColorValue are the same union; the color floats
	// sit at the front of both.
	clear := vk.NewClearValue(color)

	vk.CmdClearColorImage(c.commandBuffer.VKCommandBuffer, handle,
		vk.ImageLayoutTransferDstOptimal, (*vk.ClearColorValue)(unsafe.Pointer(&clear)), 1, []vk.ImageSubresourceRange{
			{
				AspectMask: q.aspect,
				LevelCount: 1,
				LayerCount: 1,
			},
		})
	return nil
}

func (c *Commands) Draw(vertexCount, instanceCount, firstVertex, firstInstance int) {
	vk.CmdDraw(c.commandBuffer.VKCommandBuffer, uint32(vertexCount), uint32(instanceCount),
		uint32(firstVertex), uint32(firstInstance))
}

// VK exposes the native command buffer for commands this package does not
// wrap.
func (c *Commands) VK() vk.CommandBuffer {
	return c.commandBuffer.VKCommandBuffer
}
