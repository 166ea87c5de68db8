package boson

import (
	"fmt"
	"math"

	vk "github.com/goki/vulkan"
)

// NullSwapchain marks a render graph that never presents. Headless graphs
// cycle their frame slot on the device instead of a swapchain.
const NullSwapchain Swapchain = math.MaxUint32

type CreateSwapchainOptions struct {
	OldSwapchain              Swapchain
	ActualSize                vk.Extent2D
	DesiredNumSwapchainImages int
}

func (d *Device) DefaultNumSwapchainImages(surface vk.Surface) (int, error) {
	caps, err := d.PhysicalDevice.GetSurfaceCapabilities(surface)
	if err != nil {
		return 0, err
	}
	caps.Deref()

	return int(caps.MinImageCount) + 1, nil
}

// CreateSwapchain creates a swapchain for the surface and registers it and
// its images in the device's resource table. Mailbox presentation is
// preferred when the surface offers it, with FIFO as the fallback.
func (d *Device) CreateSwapchain(surface vk.Surface, graphicsQueue, presentQueue *Queue, options *CreateSwapchainOptions) (Swapchain, error) {
	modes, err := d.PhysicalDevice.GetSurfacePresentModes(surface)
	if err != nil {
		return 0, err
	}

	presentMode := vk.PresentModeFifo
	m := modes.Filter(vk.PresentModeMailbox)
	if len(m) > 0 {
		presentMode = m[0]
	}

	formats, err := d.PhysicalDevice.GetSurfaceFormats(surface)
	if err != nil {
		return 0, err
	}

	var format vk.SurfaceFormat
	formats.Filter(func(f vk.SurfaceFormat) bool {
		f.Deref()
		if f.Format == vk.FormatB8g8r8a8Unorm {
			format = f
			return true
		}
		return false
	})

	caps, err := d.PhysicalDevice.GetSurfaceCapabilities(surface)
	if err != nil {
		return 0, err
	}
	caps.Deref()

	var swapchainSize vk.Extent2D

	caps.CurrentExtent.Deref()
	if caps.CurrentExtent.Width == vk.MaxUint32 {
		if options != nil {
			swapchainSize = options.ActualSize
		} else {
			swapchainSize = caps.MinImageExtent
		}
	} else {
		swapchainSize = caps.CurrentExtent
	}

	desiredSwapChainImages := 0
	if options != nil {
		desiredSwapChainImages = options.DesiredNumSwapchainImages
	}
	if desiredSwapChainImages == 0 {
		desiredSwapChainImages, err = d.DefaultNumSwapchainImages(surface)
		if err != nil {
			return 0, err
		}
	}

	createInfo := &vk.SwapchainCreateInfo{
		SType:           vk.StructureTypeSwapchainCreateInfo,
		Surface:         surface,
		MinImageCount:   uint32(desiredSwapChainImages),
		ImageFormat:     format.Format,
		ImageColorSpace: format.ColorSpace,
		ImageExtent: vk.Extent2D{
			Width:  swapchainSize.Width,
			Height: swapchainSize.Height,
		},
		PresentMode:      presentMode,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit | vk.ImageUsageTransferDstBit),
		ImageArrayLayers: 1,
		Clipped:          vk.True,
		PreTransform:     caps.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		OldSwapchain:     vk.NullSwapchain,
	}

	if options != nil && options.OldSwapchain != NullSwapchain {
		d.resourceMu.Lock()
		old := d.resources.swapchain(options.OldSwapchain)
		d.resourceMu.Unlock()
		if old != nil {
			createInfo.OldSwapchain = old.handle
		}
	}

	if graphicsQueue.QueueFamily.Index != presentQueue.QueueFamily.Index {
		createInfo.QueueFamilyIndexCount = 2
		createInfo.PQueueFamilyIndices = []uint32{uint32(graphicsQueue.QueueFamily.Index), uint32(presentQueue.QueueFamily.Index)}
		createInfo.ImageSharingMode = vk.SharingModeConcurrent
	} else {
		createInfo.QueueFamilyIndexCount = 0
		createInfo.PQueueFamilyIndices = nil
		createInfo.ImageSharingMode = vk.SharingModeExclusive
	}

	var swapchain vk.Swapchain
	err = vk.Error(vk.CreateSwapchain(d.VKDevice, createInfo, nil, &swapchain))
	if err != nil {
		return 0, err
	}

	images, err := d.registerSwapchainImages(swapchain, format.Format, swapchainSize)
	if err != nil {
		vk.DestroySwapchain(d.VKDevice, swapchain, nil)
		return 0, err
	}

	d.resourceMu.Lock()
	handle := d.resources.addSwapchain(&internalSwapchain{
		handle:           swapchain,
		format:           format.Format,
		extent:           swapchainSize,
		images:           images,
		allowAcquisition: true,
	})
	d.resourceMu.Unlock()

	return handle, nil
}

// registerSwapchainImages pulls the swapchain's images and enters them in
// the resource table so tasks can declare accesses against them.
func (d *Device) registerSwapchainImages(swapchain vk.Swapchain, format vk.Format, extent vk.Extent2D) ([]Image, error) {
	var imageCount uint32
	err := vk.Error(vk.GetSwapchainImages(d.VKDevice, swapchain, &imageCount, nil))
	if err != nil {
		return nil, err
	}

	swapchainImages := make([]vk.Image, imageCount)
	err = vk.Error(vk.GetSwapchainImages(d.VKDevice, swapchain, &imageCount, swapchainImages))
	if err != nil {
		return nil, err
	}

	handles := make([]Image, 0, imageCount)
	for _, img := range swapchainImages {
		view, err := d.createImageView(img, format, vk.ImageAspectFlags(vk.ImageAspectColorBit))
		if err != nil {
			return nil, err
		}

		d.resourceMu.Lock()
		h := d.resources.addImage(&internalImage{
			image:           img,
			view:            view,
			format:          format,
			extent:          extent,
			swapchainBacked: true,
		})
		d.resourceMu.Unlock()

		handles = append(handles, h)
	}

	return handles, nil
}

func (d *Device) DestroySwapchain(h Swapchain) {
	d.resourceMu.Lock()
	sc := d.resources.swapchain(h)
	if sc != nil {
		d.resources.swapchains[h] = nil
	}
	d.resourceMu.Unlock()

	if sc == nil {
		return
	}

	for _, img := range sc.images {
		d.DestroyImage(img)
	}
	vk.DestroySwapchain(d.VKDevice, sc.handle, nil)
}

// SwapchainExtent reports the swapchain's image size.
func (d *Device) SwapchainExtent(h Swapchain) (vk.Extent2D, error) {
	d.resourceMu.Lock()
	defer d.resourceMu.Unlock()

	sc := d.resources.swapchain(h)
	if sc == nil {
		return vk.Extent2D{}, fmt.Errorf("unknown swapchain handle %d", h)
	}
	return sc.extent, nil
}

// SwapchainFormat reports the swapchain's image format.
func (d *Device) SwapchainFormat(h Swapchain) (vk.Format, error) {
	d.resourceMu.Lock()
	defer d.resourceMu.Unlock()

	sc := d.resources.swapchain(h)
	if sc == nil {
		return vk.FormatUndefined, fmt.Errorf("unknown swapchain handle %d", h)
	}
	return sc.format, nil
}

// AcquireNextImage acquires the swapchain image the next present will show,
// signaling the current frame's slot of the given semaphore when it is
// ready. At most one acquisition is allowed per rendered frame.
func (d *Device) AcquireNextImage(h Swapchain, sem BinarySemaphore) (uint32, error) {
	d.resourceMu.Lock()
	sc := d.resources.swapchain(h)
	d.resourceMu.Unlock()

	if sc == nil {
		return 0, fmt.Errorf("unknown swapchain handle %d", h)
	}
	if !sc.allowAcquisition {
		return sc.lastAcquired, nil
	}

	vkSem, err := d.frameSemaphore(sem, sc.currentFrame)
	if err != nil {
		return 0, err
	}

	var index uint32
	err = vk.Error(vk.AcquireNextImage(d.VKDevice, sc.handle, vk.MaxUint64, vkSem, vk.NullFence, &index))
	if err != nil {
		return 0, err
	}

	sc.lastAcquired = index
	sc.acquired = true
	sc.allowAcquisition = false

	return index, nil
}

// AcquiredImage returns the handle of the most recently acquired swapchain
// image. Resource accessors for presenting tasks typically resolve to this.
func (d *Device) AcquiredImage(h Swapchain) Image {
	d.resourceMu.Lock()
	defer d.resourceMu.Unlock()

	sc := d.resources.swapchain(h)
	if sc == nil || len(sc.images) == 0 {
		return 0
	}
	return sc.images[sc.lastAcquired]
}

// frameIndex reports the frame slot the next Render call records into.
func (d *Device) frameIndex(h Swapchain) int {
	if h == NullSwapchain {
		return d.headlessFrame
	}

	d.resourceMu.Lock()
	defer d.resourceMu.Unlock()

	sc := d.resources.swapchain(h)
	if sc == nil {
		return 0
	}
	return sc.currentFrame
}

// rotateFrame advances the frame slot after a frame's work is handed to the
// GPU, re-arming acquisition for the next frame.
func (d *Device) rotateFrame(h Swapchain) {
	if h == NullSwapchain {
		d.headlessFrame = (d.headlessFrame + 1) % FrameLag
		return
	}

	d.resourceMu.Lock()
	defer d.resourceMu.Unlock()

	sc := d.resources.swapchain(h)
	if sc == nil {
		return
	}
	sc.currentFrame = (sc.currentFrame + 1) % FrameLag
	sc.acquired = false
	sc.allowAcquisition = true
}

// presentSwapchain queues a present of the last acquired image, waiting on
// the given semaphore.
func (d *Device) presentSwapchain(h Swapchain, wait vk.Semaphore) error {
	d.resourceMu.Lock()
	sc := d.resources.swapchain(h)
	d.resourceMu.Unlock()

	if sc == nil {
		return fmt.Errorf("unknown swapchain handle %d", h)
	}
	if !sc.acquired {
		return fmt.Errorf("no swapchain image acquired this frame")
	}

	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{wait},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{sc.handle},
		PImageIndices:      []uint32{sc.lastAcquired},
	}

	return d.queuePresent(d.graphicsQueue(), &presentInfo)
}
