package boson

import (
	"fmt"

	vk "github.com/goki/vulkan"
)

// ImageInfo describes a 2D image to create. Zero-value usage defaults to a
// sampled transfer destination; zero-value aspect defaults to color.
type ImageInfo struct {
	Extent vk.Extent2D
	Format vk.Format
	Usage  vk.ImageUsageFlags
	Aspect vk.ImageAspectFlags
	Tiling vk.ImageTiling
}

// CreateImage creates an image with bound device-local memory and a full
// 2D view, and registers it in the device's resource table.
func (d *Device) CreateImage(info ImageInfo) (Image, error) {
	usage := info.Usage
	if usage == 0 {
		usage = vk.ImageUsageFlags(vk.ImageUsageTransferDstBit | vk.ImageUsageSampledBit)
	}
	aspect := info.Aspect
	if aspect == 0 {
		aspect = vk.ImageAspectFlags(vk.ImageAspectColorBit)
	}

	var imageInfo = vk.ImageCreateInfo{}
	imageInfo.SType = vk.StructureTypeImageCreateInfo
	imageInfo.ImageType = vk.ImageType2d
	imageInfo.Extent.Width = info.Extent.Width
	imageInfo.Extent.Height = info.Extent.Height
	imageInfo.Extent.Depth = 1
	imageInfo.MipLevels = 1
	imageInfo.ArrayLayers = 1
	imageInfo.Format = info.Format
	imageInfo.Tiling = info.Tiling
	imageInfo.InitialLayout = vk.ImageLayoutUndefined
	imageInfo.Usage = usage
	imageInfo.Samples = vk.SampleCount1Bit
	imageInfo.SharingMode = vk.SharingModeExclusive

	var image vk.Image
	err := vk.Error(vk.CreateImage(d.VKDevice, &imageInfo, nil, &image))
	if err != nil {
		return 0, err
	}

	var memoryRequirements vk.MemoryRequirements
	vk.GetImageMemoryRequirements(d.VKDevice, image, &memoryRequirements)
	memoryRequirements.Deref()

	memory, err := d.allocate(int(memoryRequirements.Size), memoryRequirements.MemoryTypeBits,
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit), false)
	if err != nil {
		vk.DestroyImage(d.VKDevice, image, nil)
		return 0, err
	}

	err = vk.Error(vk.BindImageMemory(d.VKDevice, image, memory.VKDeviceMemory, 0))
	if err != nil {
		memory.Destroy()
		vk.DestroyImage(d.VKDevice, image, nil)
		return 0, err
	}

	view, err := d.createImageView(image, info.Format, aspect)
	if err != nil {
		memory.Destroy()
		vk.DestroyImage(d.VKDevice, image, nil)
		return 0, err
	}

	d.resourceMu.Lock()
	handle := d.resources.addImage(&internalImage{
		image:  image,
		view:   view,
		format: info.Format,
		extent: info.Extent,
		memory: memory,
	})
	d.resourceMu.Unlock()

	return handle, nil
}

func (d *Device) createImageView(image vk.Image, format vk.Format, aspect vk.ImageAspectFlags) (vk.ImageView, error) {
	createInfo := &vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    image,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleR,
			G: vk.ComponentSwizzleG,
			B: vk.ComponentSwizzleB,
			A: vk.ComponentSwizzleA,
		},
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: aspect,
			LevelCount: 1,
			LayerCount: 1,
		},
	}

	var view vk.ImageView
	err := vk.Error(vk.CreateImageView(d.VKDevice, createInfo, nil, &view))
	if err != nil {
		return nil, err
	}
	return view, nil
}

// DestroyImage destroys the image and frees its table slot. Images owned by
// a swapchain are destroyed with the swapchain, not here.
func (d *Device) DestroyImage(h Image) {
	d.resourceMu.Lock()
	img := d.resources.image(h)
	if img != nil {
		d.resources.images[h] = nil
	}
	d.resourceMu.Unlock()

	if img == nil {
		return
	}

	if img.view != nil {
		vk.DestroyImageView(d.VKDevice, img.view, nil)
	}
	if !img.swapchainBacked {
		vk.DestroyImage(d.VKDevice, img.image, nil)
	}
	if img.memory != nil {
		img.memory.Destroy()
	}
}

// imageHandle resolves an image handle to its native object.
func (d *Device) imageHandle(h Image) (vk.Image, error) {
	d.resourceMu.Lock()
	defer d.resourceMu.Unlock()

	img := d.resources.image(h)
	if img == nil {
		return nil, fmt.Errorf("unknown image handle %d", h)
	}
	return img.image, nil
}
