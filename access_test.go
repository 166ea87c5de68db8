package boson

import (
	"testing"

	vk "github.com/goki/vulkan"
)

func TestImageAccessZeroValue(t *testing.T) {
	var a ImageAccess

	if a != ImageAccessNone {
		t.Error("zero value should be ImageAccessNone")
	}
	if a.PipelineStages() != 0 {
		t.Error("None should map to no pipeline stages")
	}
	if a.Layout() != vk.ImageLayoutUndefined {
		t.Error("None should map to the undefined layout")
	}
	if a.Permission() != PermissionNone {
		t.Error("None should carry no permission")
	}
}

func TestBufferAccessZeroValue(t *testing.T) {
	var a BufferAccess

	if a != BufferAccessNone {
		t.Error("zero value should be BufferAccessNone")
	}
	if a.PipelineStages() != 0 {
		t.Error("None should map to no pipeline stages")
	}
	if a.Permission() != PermissionNone {
		t.Error("None should carry no permission")
	}
}

func TestImageAccessMappingsTotal(t *testing.T) {
	for a := ImageAccessShaderReadOnly; a <= ImageAccessPresent; a++ {
		if a.PipelineStages() == 0 {
			t.Errorf("image access %d has no pipeline stages", a)
		}
		if a.Layout() == vk.ImageLayoutUndefined {
			t.Errorf("image access %d has no layout", a)
		}
		if a.Permission() == PermissionNone {
			t.Errorf("image access %d has no permission", a)
		}
	}
}

func TestBufferAccessMappingsTotal(t *testing.T) {
	for a := BufferAccessShaderReadOnly; a <= BufferAccessHostTransferWrite; a++ {
		if a.PipelineStages() == 0 {
			t.Errorf("buffer access %d has no pipeline stages", a)
		}
		if a.Permission() == PermissionNone {
			t.Errorf("buffer access %d has no permission", a)
		}
	}
}

func TestImageAccessSpotChecks(t *testing.T) {
	if ImageAccessColorAttachment.Layout() != vk.ImageLayoutColorAttachmentOptimal {
		t.Error("color attachment layout mismatch")
	}
	if ImageAccessColorAttachment.Permission() != PermissionReadWrite {
		t.Error("color attachments are read-write")
	}
	if ImageAccessPresent.Layout() != vk.ImageLayoutPresentSrc {
		t.Error("present layout mismatch")
	}
	if ImageAccessPresent.PipelineStages() != vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit) {
		t.Error("present should cover all commands")
	}
	if ImageAccessComputeShaderWriteOnly.Layout() != vk.ImageLayoutGeneral {
		t.Error("shader-writable images use the general layout")
	}
	if ImageAccessTransferRead.Layout() != vk.ImageLayoutTransferSrcOptimal {
		t.Error("transfer read layout mismatch")
	}
	if ImageAccessDepthAttachmentReadOnly.Permission() != PermissionRead {
		t.Error("read-only depth should be a read")
	}
}

func TestBufferAccessSpotChecks(t *testing.T) {
	if BufferAccessHostTransferWrite.PipelineStages() != vk.PipelineStageFlags(vk.PipelineStageHostBit) {
		t.Error("host transfers happen at the host stage")
	}
	if BufferAccessComputeShaderReadWrite.Permission() != PermissionReadWrite {
		t.Error("compute read-write permission mismatch")
	}
	if BufferAccessTransferWrite.PipelineStages() != vk.PipelineStageFlags(vk.PipelineStageTransferBit) {
		t.Error("transfer write stage mismatch")
	}
}

func TestPermissionAccessMask(t *testing.T) {
	if PermissionNone.AccessMask() != 0 {
		t.Error("no permission should have an empty access mask")
	}
	if PermissionRead.AccessMask() != vk.AccessFlags(vk.AccessMemoryReadBit) {
		t.Error("read access mask mismatch")
	}
	if PermissionWrite.AccessMask() != vk.AccessFlags(vk.AccessMemoryWriteBit) {
		t.Error("write access mask mismatch")
	}
	if PermissionReadWrite.AccessMask() != vk.AccessFlags(vk.AccessMemoryReadBit|vk.AccessMemoryWriteBit) {
		t.Error("read-write access mask mismatch")
	}
}
