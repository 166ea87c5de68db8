package boson

import (
	"testing"
)

func TestAlign(t *testing.T) {
	if makeAlignUp(12, 3) != 12 {
		t.Fail()
	}

	if makeAlignUp(10, 3) != 12 {
		t.Fail()
	}

}

func TestLinearAllocator(t *testing.T) {

	a := LinearAllocator{Size: 1024}

	ra := a.Allocate(2048, 1)
	if ra != nil {
		t.Error("Oversized allocation should fail")
	}

	ra = a.Allocate(512, 1)
	fa := ra
	if ra == nil {
		t.Error("Failed 2nd allocation")
	}
	if ra.Offset != 0 {
		t.Error("First allocation should start at 0")
	}

	ra = a.Allocate(768, 1)
	if ra != nil {
		t.Error("Allocation past the end should fail")
	}

	ra = a.Allocate(500, 1)
	k := ra
	if ra == nil {
		t.Error("Failed 4th allocation")
	}
	if ra.Offset != 512 {
		t.Error("Tail allocation should follow the previous block")
	}

	ra = a.Allocate(50, 1)
	if ra != nil {
		t.Error("Allocation should fail with only 12 bytes left")
	}

	ra = a.Allocate(5, 1)
	if ra == nil {
		t.Error("Failed 6th allocation")
	}

	a.Free(k)
	ra = a.Allocate(500, 1)
	if ra == nil {
		t.Error("Freed space should be reusable")
	}

	a.Free(fa)
	ra = a.Allocate(20, 1)
	if ra == nil {
		t.Error("Failed allocation at head of pool")
	}
	if ra.Offset != 0 {
		t.Error("Head allocation should start at 0")
	}
}

func TestLinearAllocatorAlignment(t *testing.T) {
	a := LinearAllocator{Size: 256}

	first := a.Allocate(10, 1)
	if first == nil {
		t.Fatal("Failed first allocation")
	}

	second := a.Allocate(10, 64)
	if second == nil {
		t.Fatal("Failed aligned allocation")
	}
	if second.Offset%64 != 0 {
		t.Errorf("Allocation offset %d not aligned to 64", second.Offset)
	}
}
