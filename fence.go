package boson

import (
	"time"

	vk "github.com/goki/vulkan"
)

func (d *Device) VKCreateFence(signaled bool) (vk.Fence, error) {
	var fence vk.Fence
	var fenceCreateInfo = vk.FenceCreateInfo{}
	fenceCreateInfo.SType = vk.StructureTypeFenceCreateInfo
	if signaled {
		fenceCreateInfo.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	err := vk.Error(vk.CreateFence(d.VKDevice, &fenceCreateInfo, nil, &fence))
	if err != nil {
		return nil, err
	}
	return fence, nil
}

func (d *Device) VKDestroyFence(f vk.Fence) {
	vk.DestroyFence(d.VKDevice, f, nil)
}

// fenceReady polls the fence with a zero timeout. A pending fence returns
// false without blocking.
func (d *Device) fenceReady(f vk.Fence) (bool, error) {
	res := vk.WaitForFences(d.VKDevice, 1, []vk.Fence{f}, vk.True, 0)
	switch res {
	case vk.Success:
		return true, nil
	case vk.Timeout:
		return false, nil
	}
	return false, vk.Error(res)
}

func (d *Device) resetFence(f vk.Fence) error {
	return vk.Error(vk.ResetFences(d.VKDevice, 1, []vk.Fence{f}))
}

// WaitForFences blocks until the fences are signaled or the timeout expires.
func (d *Device) WaitForFences(waitForAll bool, ts time.Duration, fences ...vk.Fence) error {
	var wait vk.Bool32
	if waitForAll {
		wait = vk.True
	} else {
		wait = vk.False
	}
	return vk.Error(vk.WaitForFences(d.VKDevice, uint32(len(fences)), fences, wait, uint64(ts.Nanoseconds())))
}
