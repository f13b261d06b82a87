package gpucmd

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"testing"
)

func pattern(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i*7 + 3)
	}
	return b
}

func TestBufferRoundTrip(t *testing.T) {
	d := newTestDevice(t)
	for _, size := range []uint32{4, 64, 1000, 4096} {
		t.Run(fmt.Sprint(size), func(t *testing.T) {
			buf := newBuffer(t, d, BufferUniform, size)
			up := newTransferBuffer(t, d, TransferUpload, size)
			down := newTransferBuffer(t, d, TransferDownload, size)

			want := pattern(int(size))
			if err := up.WriteBuffer(buf, want); err != nil {
				t.Fatalf("WriteBuffer: %v", err)
			}
			got, err := down.ReadBuffer(buf)
			if err != nil {
				t.Fatalf("ReadBuffer: %v", err)
			}
			if !bytes.Equal(got, want) {
				t.Errorf("read back %d bytes that differ from the upload", len(got))
			}
		})
	}
}

func TestWriteBufferPartial(t *testing.T) {
	d := newTestDevice(t)
	buf := newBuffer(t, d, BufferVertex, 16)
	up := newTransferBuffer(t, d, TransferUpload, 16)
	down := newTransferBuffer(t, d, TransferDownload, 16)

	if err := up.WriteBuffer(buf, bytes.Repeat([]byte{0xAA}, 16)); err != nil {
		t.Fatalf("WriteBuffer full: %v", err)
	}
	if err := up.WriteBuffer(buf, []byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("WriteBuffer partial: %v", err)
	}
	got, err := down.ReadBuffer(buf)
	if err != nil {
		t.Fatalf("ReadBuffer: %v", err)
	}
	want := append([]byte{1, 2, 3, 4}, bytes.Repeat([]byte{0xAA}, 12)...)
	if !bytes.Equal(got, want) {
		t.Errorf("ReadBuffer = % x, want % x", got, want)
	}
}

func TestWriteBufferErrors(t *testing.T) {
	d := newTestDevice(t)
	buf := newBuffer(t, d, BufferVertex, 8)
	up := newTransferBuffer(t, d, TransferUpload, 64)
	small := newTransferBuffer(t, d, TransferUpload, 4)
	down := newTransferBuffer(t, d, TransferDownload, 64)

	tests := []struct {
		name string
		tb   *TransferBuffer
		data []byte
		want error
	}{
		{"larger than buffer", up, make([]byte, 9), ErrSizeMismatch},
		{"larger than transfer buffer", small, make([]byte, 8), ErrCapacityExceeded},
		{"download buffer", down, make([]byte, 4), ErrWrongDirection},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.tb.WriteBuffer(buf, tt.data); !errors.Is(err, tt.want) {
				t.Errorf("WriteBuffer = %v, want %v", err, tt.want)
			}
			if tt.tb.mapped {
				t.Error("transfer buffer left mapped after a rejected write")
			}
		})
	}

	if err := up.WriteBuffer(nil, []byte{1}); !errors.Is(err, ErrNilResource) {
		t.Errorf("WriteBuffer(nil) = %v, want ErrNilResource", err)
	}
}

func TestRejectedWriteLeavesBufferUntouched(t *testing.T) {
	d := newTestDevice(t)
	buf := newBuffer(t, d, BufferVertex, 8)
	up := newTransferBuffer(t, d, TransferUpload, 64)
	down := newTransferBuffer(t, d, TransferDownload, 64)

	want := pattern(8)
	if err := up.WriteBuffer(buf, want); err != nil {
		t.Fatalf("WriteBuffer: %v", err)
	}
	if err := up.WriteBuffer(buf, make([]byte, 9)); !errors.Is(err, ErrSizeMismatch) {
		t.Fatalf("oversized WriteBuffer = %v, want ErrSizeMismatch", err)
	}
	got, err := down.ReadBuffer(buf)
	if err != nil {
		t.Fatalf("ReadBuffer: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("buffer changed by a rejected write: % x, want % x", got, want)
	}
}

func TestReadBufferErrors(t *testing.T) {
	d := newTestDevice(t)
	buf := newBuffer(t, d, BufferVertex, 32)
	small := newTransferBuffer(t, d, TransferDownload, 16)
	up := newTransferBuffer(t, d, TransferUpload, 64)

	if _, err := small.ReadBuffer(buf); !errors.Is(err, ErrCapacityExceeded) {
		t.Errorf("ReadBuffer into small buffer = %v, want ErrCapacityExceeded", err)
	}
	if _, err := up.ReadBuffer(buf); !errors.Is(err, ErrWrongDirection) {
		t.Errorf("ReadBuffer through upload buffer = %v, want ErrWrongDirection", err)
	}
	if up.mapped || small.mapped {
		t.Error("transfer buffer left mapped after a rejected read")
	}
}

func TestWriteSlice(t *testing.T) {
	d := newTestDevice(t)
	values := []uint32{1, 0xDEADBEEF, 42, 7}
	buf := newBuffer(t, d, BufferIndex, 16)
	up := newTransferBuffer(t, d, TransferUpload, 16)
	down := newTransferBuffer(t, d, TransferDownload, 16)

	if err := WriteSlice(up, buf, values); err != nil {
		t.Fatalf("WriteSlice: %v", err)
	}
	got, err := down.ReadBuffer(buf)
	if err != nil {
		t.Fatalf("ReadBuffer: %v", err)
	}
	for i, want := range values {
		if v := binary.NativeEndian.Uint32(got[4*i:]); v != want {
			t.Errorf("value %d = %#x, want %#x", i, v, want)
		}
	}
}

func TestBatchedUploadsCycleStaging(t *testing.T) {
	d := newTestDevice(t)
	a := newBuffer(t, d, BufferVertex, 8)
	b := newBuffer(t, d, BufferVertex, 8)
	up := newTransferBuffer(t, d, TransferUpload, 8)
	down := newTransferBuffer(t, d, TransferDownload, 8)

	cb, err := d.AcquireCommandBuffer()
	if err != nil {
		t.Fatalf("AcquireCommandBuffer: %v", err)
	}
	wantA, wantB := pattern(8), bytes.Repeat([]byte{9}, 8)
	if err := up.WriteBufferCmd(cb, a, wantA); err != nil {
		t.Fatalf("WriteBufferCmd a: %v", err)
	}
	first := up.raw
	if err := up.WriteBufferCmd(cb, b, wantB); err != nil {
		t.Fatalf("WriteBufferCmd b: %v", err)
	}
	if up.raw == first {
		t.Error("staging memory not cycled while the command buffer still records it")
	}
	if err := cb.Submit(); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	for name, tc := range map[string]struct {
		buf  *Buffer
		want []byte
	}{"a": {a, wantA}, "b": {b, wantB}} {
		got, err := down.ReadBuffer(tc.buf)
		if err != nil {
			t.Fatalf("ReadBuffer %s: %v", name, err)
		}
		if !bytes.Equal(got, tc.want) {
			t.Errorf("buffer %s = % x, want % x", name, got, tc.want)
		}
	}
}

func TestConcurrentTransfersShareStaging(t *testing.T) {
	d := newTestDevice(t)
	const size = 64 << 10
	const rounds = 50
	up := newTransferBuffer(t, d, TransferUpload, size)
	down := newTransferBuffer(t, d, TransferDownload, size)
	bufs := []*Buffer{newBuffer(t, d, BufferVertex, size), newBuffer(t, d, BufferVertex, size)}
	fills := [][]byte{bytes.Repeat([]byte{0xAA}, size), bytes.Repeat([]byte{0xBB}, size)}

	for round := range rounds {
		var wg sync.WaitGroup
		errs := make([]error, len(bufs))
		for i := range bufs {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs[i] = up.WriteBuffer(bufs[i], fills[i])
			}()
		}
		wg.Wait()
		if err := errors.Join(errs...); err != nil {
			t.Fatalf("round %d: WriteBuffer: %v", round, err)
		}

		got := make([][]byte, len(bufs))
		for i := range bufs {
			wg.Add(1)
			go func() {
				defer wg.Done()
				got[i], errs[i] = down.ReadBuffer(bufs[i])
			}()
		}
		wg.Wait()
		if err := errors.Join(errs...); err != nil {
			t.Fatalf("round %d: ReadBuffer: %v", round, err)
		}
		for i := range bufs {
			if !bytes.Equal(got[i], fills[i]) {
				t.Fatalf("round %d: buffer %d does not hold its own upload", round, i)
			}
		}
	}
}

func TestTextureRoundTrip(t *testing.T) {
	d := newTestDevice(t)
	sizes := []struct{ w, h uint32 }{{1, 1}, {2, 3}, {17, 5}, {64, 64}}
	for _, sz := range sizes {
		t.Run(fmt.Sprintf("%dx%d", sz.w, sz.h), func(t *testing.T) {
			n := sz.w * sz.h * 4
			tex := newTexture(t, d, sz.w, sz.h)
			up := newTransferBuffer(t, d, TransferUpload, n)
			down := newTransferBuffer(t, d, TransferDownload, n)

			want := pattern(int(n))
			if err := up.WriteTexture(tex, want); err != nil {
				t.Fatalf("WriteTexture: %v", err)
			}
			got, err := down.ReadTexture(tex)
			if err != nil {
				t.Fatalf("ReadTexture: %v", err)
			}
			if !bytes.Equal(got, want) {
				t.Errorf("read back %d bytes that differ from the upload", len(got))
			}
		})
	}
}

func TestTextureTransferErrors(t *testing.T) {
	d := newTestDevice(t)
	tex := newTexture(t, d, 4, 4)
	up := newTransferBuffer(t, d, TransferUpload, 64)
	smallUp := newTransferBuffer(t, d, TransferUpload, 32)
	smallDown := newTransferBuffer(t, d, TransferDownload, 32)

	if err := up.WriteTexture(tex, make([]byte, 63)); !errors.Is(err, ErrSizeMismatch) {
		t.Errorf("WriteTexture short data = %v, want ErrSizeMismatch", err)
	}
	if err := up.WriteTexture(tex, make([]byte, 65)); !errors.Is(err, ErrSizeMismatch) {
		t.Errorf("WriteTexture long data = %v, want ErrSizeMismatch", err)
	}
	if err := smallUp.WriteTexture(tex, make([]byte, 64)); !errors.Is(err, ErrCapacityExceeded) {
		t.Errorf("WriteTexture through small buffer = %v, want ErrCapacityExceeded", err)
	}
	if _, err := smallDown.ReadTexture(tex); !errors.Is(err, ErrCapacityExceeded) {
		t.Errorf("ReadTexture into small buffer = %v, want ErrCapacityExceeded", err)
	}
	if _, err := up.ReadTexture(tex); !errors.Is(err, ErrWrongDirection) {
		t.Errorf("ReadTexture through upload buffer = %v, want ErrWrongDirection", err)
	}
}

func TestTransferBufferMap(t *testing.T) {
	d := newTestDevice(t)
	tb := newTransferBuffer(t, d, TransferUpload, 32)

	m, err := tb.Map(false)
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	if len(m) != 32 {
		t.Errorf("len(Map()) = %d, want 32", len(m))
	}
	if _, err := tb.Map(false); !errors.Is(err, ErrMapFailed) {
		t.Errorf("second Map = %v, want ErrMapFailed", err)
	}
	if err := tb.Unmap(); err != nil {
		t.Fatalf("Unmap: %v", err)
	}
	if err := tb.Unmap(); err != nil {
		t.Errorf("Unmap of unmapped buffer = %v, want nil", err)
	}
}

func TestMapCyclesBusyUploadBuffer(t *testing.T) {
	d := newTestDevice(t)
	buf := newBuffer(t, d, BufferVertex, 16)
	tb := newTransferBuffer(t, d, TransferUpload, 16)

	cb, err := d.AcquireCommandBuffer()
	if err != nil {
		t.Fatalf("AcquireCommandBuffer: %v", err)
	}
	defer cb.Close()
	if err := tb.WriteBufferCmd(cb, buf, pattern(16)); err != nil {
		t.Fatalf("WriteBufferCmd: %v", err)
	}

	before := tb.raw
	if _, err := tb.Map(false); err != nil {
		t.Fatalf("Map(false): %v", err)
	}
	if err := tb.Unmap(); err != nil {
		t.Fatalf("Unmap: %v", err)
	}
	if tb.raw != before {
		t.Error("Map(false) cycled the buffer")
	}

	if _, err := tb.Map(true); err != nil {
		t.Fatalf("Map(true): %v", err)
	}
	if err := tb.Unmap(); err != nil {
		t.Fatalf("Unmap: %v", err)
	}
	if tb.raw == before {
		t.Error("Map(true) did not cycle a buffer recorded by an open command buffer")
	}
}

func TestReleasedTransferBuffer(t *testing.T) {
	d := newTestDevice(t)
	tb, err := d.CreateTransferBuffer(TransferUpload, 16)
	if err != nil {
		t.Fatalf("CreateTransferBuffer: %v", err)
	}
	tb.Release()
	if _, err := tb.Map(false); !errors.Is(err, ErrReleased) {
		t.Errorf("Map after Release = %v, want ErrReleased", err)
	}
	if err := tb.Retain(); !errors.Is(err, ErrReleased) {
		t.Errorf("Retain after Release = %v, want ErrReleased", err)
	}
	tb.Release() // extra releases are ignored
}
