package buffer

import (
	"bytes"
	"testing"
)

func TestRing(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		r := NewRing(4)
		if r.Len() != 0 {
			t.Errorf("len=%d", r.Len())
		}
		if got := r.Snapshot(); len(got) != 0 {
			t.Errorf("snapshot=%v", got)
		}
	})

	t.Run("partial fill", func(t *testing.T) {
		r := NewRing(4)
		r.Append([]byte{1, 2})
		if r.Len() != 2 {
			t.Errorf("len=%d", r.Len())
		}
		if got := r.Snapshot(); !bytes.Equal(got, []byte{1, 2}) {
			t.Errorf("got=%v", got)
		}
	})

	t.Run("evicts oldest", func(t *testing.T) {
		r := NewRing(4)
		r.Append([]byte{1, 2, 3})
		r.Append([]byte{4, 5, 6})
		if r.Len() != 4 {
			t.Errorf("len=%d", r.Len())
		}
		if got := r.Snapshot(); !bytes.Equal(got, []byte{3, 4, 5, 6}) {
			t.Errorf("got=%v", got)
		}
	})

	t.Run("write larger than capacity", func(t *testing.T) {
		r := NewRing(3)
		r.Append([]byte{1, 2, 3, 4, 5, 6, 7})
		if got := r.Snapshot(); !bytes.Equal(got, []byte{5, 6, 7}) {
			t.Errorf("got=%v", got)
		}
	})

	t.Run("many small appends wrap around", func(t *testing.T) {
		r := NewRing(4)
		for i := byte(0); i < 100; i++ {
			r.Append([]byte{i})
		}
		if got := r.Snapshot(); !bytes.Equal(got, []byte{96, 97, 98, 99}) {
			t.Errorf("got=%v", got)
		}
	})

	t.Run("snapshot is a copy", func(t *testing.T) {
		r := NewRing(4)
		r.Append([]byte{1, 2, 3, 4})
		snap := r.Snapshot()
		r.Append([]byte{9, 9, 9, 9})
		if !bytes.Equal(snap, []byte{1, 2, 3, 4}) {
			t.Errorf("snapshot mutated: %v", snap)
		}
	})

	t.Run("reset", func(t *testing.T) {
		r := NewRing(4)
		r.Append([]byte{1, 2, 3})
		r.Reset()
		if r.Len() != 0 {
			t.Errorf("len=%d", r.Len())
		}
		r.Append([]byte{7})
		if got := r.Snapshot(); !bytes.Equal(got, []byte{7}) {
			t.Errorf("got=%v", got)
		}
	})

	t.Run("len never exceeds capacity", func(t *testing.T) {
		r := NewRing(8)
		for i := 0; i < 50; i++ {
			r.Append([]byte{1, 2, 3, 4, 5})
			if r.Len() > r.Cap() {
				t.Fatalf("len %d > cap %d", r.Len(), r.Cap())
			}
		}
	})
}

func TestRingTail(t *testing.T) {
	r := NewRing(8)
	r.Append([]byte{1, 2, 3, 4, 5, 6})

	if got := r.Tail(4); !bytes.Equal(got, []byte{3, 4, 5, 6}) {
		t.Errorf("Tail(4)=%v", got)
	}
	if got := r.Tail(10); !bytes.Equal(got, []byte{1, 2, 3, 4, 5, 6}) {
		t.Errorf("Tail(10)=%v", got)
	}
	if got := r.Tail(0); len(got) != 0 {
		t.Errorf("Tail(0)=%v", got)
	}
}
