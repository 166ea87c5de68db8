package boson

import (
	vk "github.com/goki/vulkan"
)

// Permission classifies an access by direction. It determines the memory
// access mask a barrier uses for that side of the dependency.
type Permission int

const (
	PermissionNone Permission = iota
	PermissionRead
	PermissionWrite
	PermissionReadWrite
)

func (p Permission) AccessMask() vk.AccessFlags {
	switch p {
	case PermissionRead:
		return vk.AccessFlags(vk.AccessMemoryReadBit)
	case PermissionWrite:
		return vk.AccessFlags(vk.AccessMemoryWriteBit)
	case PermissionReadWrite:
		return vk.AccessFlags(vk.AccessMemoryReadBit | vk.AccessMemoryWriteBit)
	}
	return 0
}

// ImageAccess names how a task intends to touch an image. Each value maps
// to exactly one pipeline stage mask, permission and image layout. The zero
// value None is the implicit state of any image not yet touched this frame.
type ImageAccess int

const (
	ImageAccessNone ImageAccess = iota
	ImageAccessShaderReadOnly
	ImageAccessVertexShaderReadOnly
	ImageAccessFragmentShaderReadOnly
	ImageAccessComputeShaderReadOnly
	ImageAccessShaderWriteOnly
	ImageAccessVertexShaderWriteOnly
	ImageAccessFragmentShaderWriteOnly
	ImageAccessComputeShaderWriteOnly
	ImageAccessShaderReadWrite
	ImageAccessVertexShaderReadWrite
	ImageAccessFragmentShaderReadWrite
	ImageAccessComputeShaderReadWrite
	ImageAccessTransferRead
	ImageAccessTransferWrite
	ImageAccessColorAttachment
	ImageAccessDepthAttachment
	ImageAccessDepthAttachmentReadOnly
	ImageAccessDepthStencilAttachment
	ImageAccessPresent
)

func (a ImageAccess) PipelineStages() vk.PipelineStageFlags {
	switch a {
	case ImageAccessPresent:
		return vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit)
	case ImageAccessTransferRead, ImageAccessTransferWrite:
		return vk.PipelineStageFlags(vk.PipelineStageTransferBit)
	case ImageAccessDepthAttachment, ImageAccessDepthAttachmentReadOnly, ImageAccessDepthStencilAttachment:
		return vk.PipelineStageFlags(vk.PipelineStageEarlyFragmentTestsBit | vk.PipelineStageLateFragmentTestsBit)
	case ImageAccessShaderReadOnly, ImageAccessShaderWriteOnly, ImageAccessShaderReadWrite:
		return vk.PipelineStageFlags(vk.PipelineStageAllGraphicsBit | vk.PipelineStageComputeShaderBit)
	case ImageAccessVertexShaderReadOnly, ImageAccessVertexShaderWriteOnly, ImageAccessVertexShaderReadWrite:
		return vk.PipelineStageFlags(vk.PipelineStageVertexShaderBit)
	case ImageAccessFragmentShaderReadOnly, ImageAccessFragmentShaderWriteOnly, ImageAccessFragmentShaderReadWrite:
		return vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit)
	case ImageAccessComputeShaderReadOnly, ImageAccessComputeShaderWriteOnly, ImageAccessComputeShaderReadWrite:
		return vk.PipelineStageFlags(vk.PipelineStageComputeShaderBit)
	case ImageAccessColorAttachment:
		return vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)
	}
	return 0
}

// Layout returns the image layout this access requires the image to be in.
func (a ImageAccess) Layout() vk.ImageLayout {
	switch a {
	case ImageAccessPresent:
		return vk.ImageLayoutPresentSrc
	case ImageAccessTransferRead:
		return vk.ImageLayoutTransferSrcOptimal
	case ImageAccessTransferWrite:
		return vk.ImageLayoutTransferDstOptimal
	case ImageAccessColorAttachment:
		return vk.ImageLayoutColorAttachmentOptimal
	case ImageAccessDepthAttachment, ImageAccessDepthStencilAttachment:
		return vk.ImageLayoutDepthStencilAttachmentOptimal
	case ImageAccessDepthAttachmentReadOnly:
		return vk.ImageLayoutDepthStencilReadOnlyOptimal
	case ImageAccessShaderReadOnly, ImageAccessVertexShaderReadOnly,
		ImageAccessFragmentShaderReadOnly, ImageAccessComputeShaderReadOnly:
		return vk.ImageLayoutShaderReadOnlyOptimal
	case ImageAccessShaderWriteOnly, ImageAccessVertexShaderWriteOnly,
		ImageAccessFragmentShaderWriteOnly, ImageAccessComputeShaderWriteOnly,
		ImageAccessShaderReadWrite, ImageAccessVertexShaderReadWrite,
		ImageAccessFragmentShaderReadWrite, ImageAccessComputeShaderReadWrite:
		return vk.ImageLayoutGeneral
	}
	return vk.ImageLayoutUndefined
}

func (a ImageAccess) Permission() Permission {
	switch a {
	case ImageAccessPresent, ImageAccessTransferRead, ImageAccessDepthAttachmentReadOnly,
		ImageAccessShaderReadOnly, ImageAccessVertexShaderReadOnly,
		ImageAccessFragmentShaderReadOnly, ImageAccessComputeShaderReadOnly:
		return PermissionRead
	case ImageAccessTransferWrite, ImageAccessShaderWriteOnly,
		ImageAccessVertexShaderWriteOnly, ImageAccessFragmentShaderWriteOnly,
		ImageAccessComputeShaderWriteOnly:
		return PermissionWrite
	case ImageAccessColorAttachment, ImageAccessDepthAttachment,
		ImageAccessDepthStencilAttachment, ImageAccessShaderReadWrite,
		ImageAccessVertexShaderReadWrite, ImageAccessFragmentShaderReadWrite,
		ImageAccessComputeShaderReadWrite:
		return PermissionReadWrite
	}
	return PermissionNone
}

// BufferAccess names how a task intends to touch a buffer. Like ImageAccess
// the mapping to stages and permissions is pure and total; the zero value
// None is the implicit state of an untouched buffer.
type BufferAccess int

const (
	BufferAccessNone BufferAccess = iota
	BufferAccessShaderReadOnly
	BufferAccessVertexShaderReadOnly
	BufferAccessFragmentShaderReadOnly
	BufferAccessComputeShaderReadOnly
	BufferAccessShaderWriteOnly
	BufferAccessVertexShaderWriteOnly
	BufferAccessFragmentShaderWriteOnly
	BufferAccessComputeShaderWriteOnly
	BufferAccessShaderReadWrite
	BufferAccessVertexShaderReadWrite
	BufferAccessFragmentShaderReadWrite
	BufferAccessComputeShaderReadWrite
	BufferAccessTransferRead
	BufferAccessTransferWrite
	BufferAccessHostTransferRead
	BufferAccessHostTransferWrite
)

func (a BufferAccess) PipelineStages() vk.PipelineStageFlags {
	switch a {
	case BufferAccessShaderReadOnly, BufferAccessShaderWriteOnly, BufferAccessShaderReadWrite:
		return vk.PipelineStageFlags(vk.PipelineStageAllGraphicsBit | vk.PipelineStageComputeShaderBit)
	case BufferAccessVertexShaderReadOnly, BufferAccessVertexShaderWriteOnly, BufferAccessVertexShaderReadWrite:
		return vk.PipelineStageFlags(vk.PipelineStageVertexShaderBit)
	case BufferAccessFragmentShaderReadOnly, BufferAccessFragmentShaderWriteOnly, BufferAccessFragmentShaderReadWrite:
		return vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit)
	case BufferAccessComputeShaderReadOnly, BufferAccessComputeShaderWriteOnly, BufferAccessComputeShaderReadWrite:
		return vk.PipelineStageFlags(vk.PipelineStageComputeShaderBit)
	case BufferAccessTransferRead, BufferAccessTransferWrite:
		return vk.PipelineStageFlags(vk.PipelineStageTransferBit)
	case BufferAccessHostTransferRead, BufferAccessHostTransferWrite:
		return vk.PipelineStageFlags(vk.PipelineStageHostBit)
	}
	return 0
}

func (a BufferAccess) Permission() Permission {
	switch a {
	case BufferAccessHostTransferRead, BufferAccessTransferRead,
		BufferAccessShaderReadOnly, BufferAccessVertexShaderReadOnly,
		BufferAccessFragmentShaderReadOnly, BufferAccessComputeShaderReadOnly:
		return PermissionRead
	case BufferAccessHostTransferWrite, BufferAccessTransferWrite,
		BufferAccessShaderWriteOnly, BufferAccessVertexShaderWriteOnly,
		BufferAccessFragmentShaderWriteOnly, BufferAccessComputeShaderWriteOnly:
		return PermissionWrite
	case BufferAccessShaderReadWrite, BufferAccessVertexShaderReadWrite,
		BufferAccessFragmentShaderReadWrite, BufferAccessComputeShaderReadWrite:
		return PermissionReadWrite
	}
	return PermissionNone
}
