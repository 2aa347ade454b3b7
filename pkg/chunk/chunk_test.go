// SPDX-FileCopyrightText: 2026 The quicbench Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package chunk

import (
	"bytes"
	"io"
	"math/rand"
	"testing"
)

func drain(t *testing.T, s *Source) []*Chunk {
	var chunks []*Chunk
	for {
		c, err := s.Next()
		if err == io.EOF {
			return chunks
		} else if err != nil {
			t.Fatal(err)
		}

		chunks = append(chunks, c)
	}
}

func TestSourceSequence(t *testing.T) {
	tests := []struct {
		inputLen  int
		chunkSize int
		chunks    int
		lastLen   int
	}{
		{inputLen: 60000, chunkSize: 1200, chunks: 50, lastLen: 1200},
		{inputLen: 61, chunkSize: 12, chunks: 6, lastLen: 1},
		{inputLen: 12, chunkSize: 12, chunks: 1, lastLen: 12},
		{inputLen: 11, chunkSize: 12, chunks: 1, lastLen: 11},
		{inputLen: 0, chunkSize: 12, chunks: 0},
	}

	for _, test := range tests {
		input := make([]byte, test.inputLen)
		rand.Read(input)

		source, err := NewSource(bytes.NewReader(input), test.chunkSize)
		if err != nil {
			t.Fatal(err)
		}

		chunks := drain(t, source)
		if len(chunks) != test.chunks {
			t.Fatalf("%d byte input, chunk size %d: expected %d chunks, got %d",
				test.inputLen, test.chunkSize, test.chunks, len(chunks))
		}

		var total int
		for i, c := range chunks {
			if c.SequenceNumber != uint64(i) {
				t.Fatalf("chunk %d carries sequence number %d", i, c.SequenceNumber)
			}

			expectedLen := test.chunkSize
			if i == len(chunks)-1 {
				expectedLen = test.lastLen
			}
			if len(c.Payload) != expectedLen {
				t.Fatalf("chunk %d: expected %d bytes, got %d", i, expectedLen, len(c.Payload))
			}

			total += len(c.Payload)
		}

		if total != test.inputLen {
			t.Fatalf("chunks cover %d bytes, input was %d", total, test.inputLen)
		}

		// exhausted Sources stay exhausted
		if _, err := source.Next(); err != io.EOF {
			t.Fatalf("expected io.EOF after exhaustion, got %v", err)
		}
	}
}

func TestSourcePayloadBytes(t *testing.T) {
	input := make([]byte, 5000)
	rand.Read(input)

	source, err := NewSource(bytes.NewReader(input), 1200)
	if err != nil {
		t.Fatal(err)
	}

	var joined []byte
	for _, c := range drain(t, source) {
		joined = append(joined, c.Payload...)
	}

	if !bytes.Equal(joined, input) {
		t.Fatal("concatenated chunk payloads differ from input")
	}
}

func TestSourceIdempotence(t *testing.T) {
	input := make([]byte, 12345)
	rand.Read(input)

	lengths := func() map[uint64]int {
		source, err := NewSource(bytes.NewReader(input), 1000)
		if err != nil {
			t.Fatal(err)
		}

		m := make(map[uint64]int)
		for _, c := range drain(t, source) {
			m[c.SequenceNumber] = len(c.Payload)
		}
		return m
	}

	first := lengths()
	second := lengths()
	if len(first) != len(second) {
		t.Fatalf("runs produced %d and %d chunks", len(first), len(second))
	}
	for seq, l := range first {
		if second[seq] != l {
			t.Fatalf("sequence %d: %d bytes in first run, %d in second", seq, l, second[seq])
		}
	}
}

func TestSourceInvalidChunkSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		if _, err := NewSource(bytes.NewReader(nil), size); err == nil {
			t.Fatalf("expected error for chunk size %d", size)
		}
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, io.ErrClosedPipe
}

func TestSourceReadError(t *testing.T) {
	source, err := NewSource(failingReader{}, 16)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := source.Next(); err != io.ErrClosedPipe {
		t.Fatalf("expected the reader's error, got %v", err)
	}
}
