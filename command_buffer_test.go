package gpucmd

import (
	"errors"
	"testing"

	"github.com/gogpu/gpucmd/backend"
)

func TestCommandBufferFinalizeOnce(t *testing.T) {
	d := newTestDevice(t)

	finalizers := map[string]func(*CommandBuffer) error{
		"Submit": func(cb *CommandBuffer) error { return cb.Submit() },
		"Cancel": func(cb *CommandBuffer) error { return cb.Cancel() },
		"SubmitAndAcquireFence": func(cb *CommandBuffer) error {
			f, err := cb.SubmitAndAcquireFence()
			if f != nil {
				f.Release()
			}
			return err
		},
	}
	wantState := map[string]CommandBufferState{
		"Submit":                CommandBufferSubmitted,
		"Cancel":                CommandBufferCancelled,
		"SubmitAndAcquireFence": CommandBufferSubmitted,
	}

	for first, finalize := range finalizers {
		for second, again := range finalizers {
			t.Run(first+"/"+second, func(t *testing.T) {
				cb, err := d.AcquireCommandBuffer()
				if err != nil {
					t.Fatalf("AcquireCommandBuffer: %v", err)
				}
				if err := finalize(cb); err != nil {
					t.Fatalf("%s: %v", first, err)
				}
				if err := again(cb); !errors.Is(err, ErrAlreadyUsed) {
					t.Errorf("%s after %s = %v, want ErrAlreadyUsed", second, first, err)
				}
				if got := cb.State(); got != wantState[first] {
					t.Errorf("State() = %v, want %v", got, wantState[first])
				}
			})
		}
	}
}

func TestCommandBufferCloseCancels(t *testing.T) {
	d := newTestDevice(t)
	cb, err := d.AcquireCommandBuffer()
	if err != nil {
		t.Fatalf("AcquireCommandBuffer: %v", err)
	}
	cb.Close()
	if got := cb.State(); got != CommandBufferCancelled {
		t.Errorf("State() after Close = %v, want Cancelled", got)
	}

	// Close on a finalized buffer is a no-op.
	cb.Close()
	if got := cb.State(); got != CommandBufferCancelled {
		t.Errorf("State() after second Close = %v, want Cancelled", got)
	}
}

func TestSubmitEndsOpenPass(t *testing.T) {
	d := newTestDevice(t)
	cb, err := d.AcquireCommandBuffer()
	if err != nil {
		t.Fatalf("AcquireCommandBuffer: %v", err)
	}
	pass, err := cb.BeginCopyPass()
	if err != nil {
		t.Fatalf("BeginCopyPass: %v", err)
	}
	if err := cb.Submit(); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !pass.Ended() {
		t.Error("pass still open after Submit")
	}
	if err := pass.End(); !errors.Is(err, ErrAlreadyEnded) {
		t.Errorf("End after Submit = %v, want ErrAlreadyEnded", err)
	}
}

func TestSubmitOnClosedDevice(t *testing.T) {
	d, err := Open(nil, WithBackend(backend.Noop))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	cb, err := d.AcquireCommandBuffer()
	if err != nil {
		t.Fatalf("AcquireCommandBuffer: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	err = cb.Submit()
	if !errors.Is(err, ErrSubmitFailed) || !errors.Is(err, ErrDeviceClosed) {
		t.Errorf("Submit = %v, want ErrSubmitFailed wrapping ErrDeviceClosed", err)
	}
	if got := cb.State(); got != CommandBufferFailed {
		t.Errorf("State() = %v, want Failed", got)
	}
	if err := cb.Cancel(); !errors.Is(err, ErrAlreadyUsed) {
		t.Errorf("Cancel after failure = %v, want ErrAlreadyUsed", err)
	}
}

func TestCommandBufferReleasesTrackedResources(t *testing.T) {
	d := newTestDevice(t)
	buf, err := d.CreateBuffer(BufferVertex, 64)
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}
	tb, err := d.CreateTransferBuffer(TransferUpload, 64)
	if err != nil {
		t.Fatalf("CreateTransferBuffer: %v", err)
	}

	cb, err := d.AcquireCommandBuffer()
	if err != nil {
		t.Fatalf("AcquireCommandBuffer: %v", err)
	}
	if err := tb.WriteBufferCmd(cb, buf, make([]byte, 32)); err != nil {
		t.Fatalf("WriteBufferCmd: %v", err)
	}

	// The command buffer keeps both alive after the creator lets go.
	buf.Release()
	tb.Release()
	if !buf.alive() || !tb.alive() {
		t.Fatal("tracked resources destroyed before submission")
	}

	if err := cb.Submit(); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if buf.alive() || tb.alive() {
		t.Error("resources still referenced after submission")
	}
	if n := d.destroyQueue.len(); n != 0 {
		t.Errorf("destroy queue holds %d entries on a synchronous backend, want 0", n)
	}
}

func TestCommandBufferStateString(t *testing.T) {
	tests := []struct {
		state CommandBufferState
		want  string
	}{
		{CommandBufferAcquired, "Acquired"},
		{CommandBufferSubmitted, "Submitted"},
		{CommandBufferCancelled, "Cancelled"},
		{CommandBufferFailed, "Failed"},
		{CommandBufferState(42), "Unknown(42)"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.state.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}
