package shader

import (
	"errors"
	"testing"
)

func TestWords(t *testing.T) {
	tests := []struct {
		name    string
		code    []byte
		want    []uint32
		wantErr bool
	}{
		{"magic", []byte{0x03, 0x02, 0x23, 0x07}, []uint32{0x07230203}, false},
		{"two words", []byte{1, 0, 0, 0, 0, 0, 0, 0x80}, []uint32{1, 0x80000000}, false},
		{"empty", nil, nil, true},
		{"misaligned", []byte{1, 2, 3}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Words(tt.code)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Words() error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Words() len = %d, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("word %d = %#x, want %#x", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestWordsMisalignedSentinel(t *testing.T) {
	_, err := Words(make([]byte, 6))
	if !errors.Is(err, ErrMisaligned) {
		t.Errorf("error = %v, want ErrMisaligned", err)
	}
}

func TestCompileWGSL(t *testing.T) {
	const src = `
@vertex
fn main(@location(0) pos: vec2<f32>) -> @builtin(position) vec4<f32> {
    return vec4<f32>(pos, 0.0, 1.0);
}
`
	words, err := CompileWGSL(src)
	if err != nil {
		t.Fatalf("CompileWGSL: %v", err)
	}
	if len(words) == 0 || words[0] != 0x07230203 {
		t.Fatalf("missing SPIR-V magic number, got %d words", len(words))
	}
}

func TestCompileWGSLError(t *testing.T) {
	if _, err := CompileWGSL("fn main( {"); err == nil {
		t.Fatal("expected a compile error")
	}
}

func TestPipelineResourcesDestroyNilDevice(t *testing.T) {
	r := &PipelineResources{}
	r.Destroy()
}
