package boson

import (
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/require"
)

func fixedBufferSize(size uint64) func(Buffer) (uint64, error) {
	return func(Buffer) (uint64, error) { return size, nil }
}

func TestDeriveBarriersFirstUse(t *testing.T) {
	qualifiers := []Qualifier{
		{kind: qualifierBuffer, buffer: 0, bufferAccess: BufferAccessComputeShaderWriteOnly},
		{kind: qualifierImage, image: 0, imageAccess: ImageAccessComputeShaderWriteOnly,
			aspect: vk.ImageAspectFlags(vk.ImageAspectColorBit)},
	}

	lastBuffer := make(map[Buffer]BufferAccess)
	lastImage := make(map[Image]ImageAccess)

	naive, err := deriveBarriers(qualifiers, fixedBufferSize(256), lastBuffer, lastImage)
	require.NoError(t, err)
	require.Len(t, naive, 2)

	// Untouched resources transition from the zero access.
	require.Equal(t, vk.PipelineStageFlags(0), naive[0].SrcStage)
	require.Equal(t, vk.PipelineStageFlags(vk.PipelineStageComputeShaderBit), naive[0].DstStage)
	require.Len(t, naive[0].Buffers, 1)
	require.Equal(t, vk.AccessFlags(0), naive[0].Buffers[0].SrcAccess)
	require.Equal(t, vk.AccessFlags(vk.AccessMemoryWriteBit), naive[0].Buffers[0].DstAccess)
	require.Equal(t, uint64(256), naive[0].Buffers[0].Size)
	require.Equal(t, uint64(0), naive[0].Buffers[0].Offset)

	require.Len(t, naive[1].Images, 1)
	require.Equal(t, vk.ImageLayoutUndefined, naive[1].Images[0].OldLayout)
	require.Equal(t, vk.ImageLayoutGeneral, naive[1].Images[0].NewLayout)

	require.Equal(t, BufferAccessComputeShaderWriteOnly, lastBuffer[0])
	require.Equal(t, ImageAccessComputeShaderWriteOnly, lastImage[0])
}

func TestDeriveBarriersTracksHazardsAcrossCalls(t *testing.T) {
	lastBuffer := make(map[Buffer]BufferAccess)
	lastImage := make(map[Image]ImageAccess)

	write := []Qualifier{
		{kind: qualifierBuffer, buffer: 7, bufferAccess: BufferAccessComputeShaderWriteOnly},
	}
	read := []Qualifier{
		{kind: qualifierBuffer, buffer: 7, bufferAccess: BufferAccessComputeShaderReadOnly},
	}

	_, err := deriveBarriers(write, fixedBufferSize(64), lastBuffer, lastImage)
	require.NoError(t, err)

	naive, err := deriveBarriers(read, fixedBufferSize(64), lastBuffer, lastImage)
	require.NoError(t, err)
	require.Len(t, naive, 1)

	// The read barrier waits on the previous task's write.
	require.Equal(t, vk.PipelineStageFlags(vk.PipelineStageComputeShaderBit), naive[0].SrcStage)
	require.Equal(t, vk.AccessFlags(vk.AccessMemoryWriteBit), naive[0].Buffers[0].SrcAccess)
	require.Equal(t, vk.AccessFlags(vk.AccessMemoryReadBit), naive[0].Buffers[0].DstAccess)
}

func TestDeriveBarriersIntraTaskOrdering(t *testing.T) {
	// The same buffer declared twice in one task: the second declaration
	// must see the access the first one left behind.
	qualifiers := []Qualifier{
		{kind: qualifierBuffer, buffer: 3, bufferAccess: BufferAccessTransferWrite},
		{kind: qualifierBuffer, buffer: 3, bufferAccess: BufferAccessComputeShaderReadOnly},
	}

	naive, err := deriveBarriers(qualifiers, fixedBufferSize(32),
		make(map[Buffer]BufferAccess), make(map[Image]ImageAccess))
	require.NoError(t, err)
	require.Len(t, naive, 2)

	require.Equal(t, vk.PipelineStageFlags(vk.PipelineStageTransferBit), naive[1].SrcStage)
	require.Equal(t, vk.AccessFlags(vk.AccessMemoryWriteBit), naive[1].Buffers[0].SrcAccess)
}

func TestDeriveBarriersIndexesQualifiers(t *testing.T) {
	qualifiers := []Qualifier{
		{kind: qualifierImage, image: 9, imageAccess: ImageAccessTransferWrite,
			aspect: vk.ImageAspectFlags(vk.ImageAspectColorBit)},
		{kind: qualifierBuffer, buffer: 4, bufferAccess: BufferAccessTransferRead},
	}

	naive, err := deriveBarriers(qualifiers, fixedBufferSize(16),
		make(map[Buffer]BufferAccess), make(map[Image]ImageAccess))
	require.NoError(t, err)

	// Barrier targets index the task's declarations, not device handles.
	require.Equal(t, 0, naive[0].Images[0].Image)
	require.Equal(t, 1, naive[1].Buffers[0].Buffer)
}

func TestMergeBarriersGroupsExactStagePairs(t *testing.T) {
	compute := vk.PipelineStageFlags(vk.PipelineStageComputeShaderBit)
	transfer := vk.PipelineStageFlags(vk.PipelineStageTransferBit)

	naive := []PipelineBarrier{
		{SrcStage: 0, DstStage: compute, Buffers: []BufferBarrier{{Buffer: 0}}},
		{SrcStage: 0, DstStage: compute, Buffers: []BufferBarrier{{Buffer: 1}}},
		{SrcStage: 0, DstStage: compute, Images: []ImageBarrier{{Image: 2}}},
		{SrcStage: compute, DstStage: transfer, Buffers: []BufferBarrier{{Buffer: 3}}},
	}

	merged := mergeBarriers(naive)
	require.Len(t, merged, 2)

	for _, b := range merged {
		switch {
		case b.SrcStage == 0 && b.DstStage == compute:
			require.Len(t, b.Buffers, 2)
			require.Len(t, b.Images, 1)
		case b.SrcStage == compute && b.DstStage == transfer:
			require.Len(t, b.Buffers, 1)
			require.Empty(t, b.Images)
		default:
			t.Fatalf("unexpected stage pair (%v, %v)", b.SrcStage, b.DstStage)
		}
	}
}

func TestMergeBarriersKeepsSupersetPairsApart(t *testing.T) {
	compute := vk.PipelineStageFlags(vk.PipelineStageComputeShaderBit)
	all := vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit)

	// A pair whose stages contain another pair's stages still merges only
	// on exact equality.
	naive := []PipelineBarrier{
		{SrcStage: compute, DstStage: compute, Buffers: []BufferBarrier{{Buffer: 0}}},
		{SrcStage: compute, DstStage: all, Buffers: []BufferBarrier{{Buffer: 1}}},
	}

	merged := mergeBarriers(naive)
	require.Len(t, merged, 2)
}

func TestMergeBarriersEmpty(t *testing.T) {
	require.Empty(t, mergeBarriers(nil))
}
