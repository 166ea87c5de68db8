package boson

import (
	"fmt"

	vk "github.com/goki/vulkan"
)

type Queue struct {
	Device      *Device
	QueueFamily *QueueFamily
	VKQueue     vk.Queue
}

func (q *Queue) WaitIdle() error {
	return vk.Error(vk.QueueWaitIdle(q.VKQueue))
}

func (q *Queue) SubmitWaitIdle(buffers ...*CommandBuffer) error {
	var submitInfo = vk.SubmitInfo{}
	submitInfo.SType = vk.StructureTypeSubmitInfo
	submitInfo.CommandBufferCount = uint32(len(buffers))

	b := make([]vk.CommandBuffer, len(buffers))
	for i := range buffers {
		b[i] = buffers[i].VKCommandBuffer
	}
	submitInfo.PCommandBuffers = b

	err := vk.Error(vk.QueueSubmit(q.VKQueue, 1, []vk.SubmitInfo{submitInfo}, nil))
	if err != nil {
		return err
	}

	vk.QueueWaitIdle(q.VKQueue)

	return nil
}

func (q *Queue) SubmitWithFence(fence vk.Fence, buffers ...*CommandBuffer) error {
	var submitInfo = vk.SubmitInfo{}
	submitInfo.SType = vk.StructureTypeSubmitInfo
	submitInfo.CommandBufferCount = uint32(len(buffers))

	b := make([]vk.CommandBuffer, len(buffers))
	for i := range buffers {
		b[i] = buffers[i].VKCommandBuffer
	}
	submitInfo.PCommandBuffers = b

	return vk.Error(vk.QueueSubmit(q.VKQueue, 1, []vk.SubmitInfo{submitInfo}, fence))
}

func (q *Queue) String() string {
	return fmt.Sprintf("{Device: %s QueueFamily: %s}", q.Device.String(), q.QueueFamily.String())
}

func (d *Device) queueSubmit(queue vk.Queue, info vk.SubmitInfo, fence vk.Fence) error {
	return vk.Error(vk.QueueSubmit(queue, 1, []vk.SubmitInfo{info}, fence))
}

func (d *Device) queuePresent(queue vk.Queue, info *vk.PresentInfo) error {
	return vk.Error(vk.QueuePresent(queue, info))
}
