// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package logbuf

import (
	"bytes"
	"errors"
	"sync"
	"testing"

	"github.com/moslevin/mark3-logger/lib/tlv"
)

// recordingTransport captures every Write call. If called is non-nil
// it is signaled after each call so tests can synchronize without
// polling.
type recordingTransport struct {
	mu     sync.Mutex
	writes [][]byte
	err    error
	called chan struct{}
}

func (r *recordingTransport) Write(p []byte) (int, error) {
	r.mu.Lock()
	r.writes = append(r.writes, bytes.Clone(p))
	err := r.err
	r.mu.Unlock()

	if r.called != nil {
		r.called <- struct{}{}
	}
	if err != nil {
		return 0, err
	}
	return len(p), nil
}

func (r *recordingTransport) bytes() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return bytes.Join(r.writes, nil)
}

func (r *recordingTransport) writeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.writes)
}

func (r *recordingTransport) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes = nil
}

// frame builds the bytes BeginWrite/Write/EndWrite produce for payload
// in little-endian order.
func frame(payload ...byte) []byte {
	out := []byte{0xfe, 0xca}
	out = append(out, payload...)
	return append(out, 0x0d, 0xf0)
}

// writeFrame writes payload as one record.
func writeFrame(buffer *Buffer, payload []byte) {
	cursor := buffer.BeginWrite(len(payload))
	cursor = buffer.Write(cursor, payload)
	buffer.EndWrite(cursor)
}

// payloadOf returns n copies of value.
func payloadOf(value byte, n int) []byte {
	return bytes.Repeat([]byte{value}, n)
}

func TestFlushEmitsExactBytes(t *testing.T) {
	t.Parallel()

	transport := &recordingTransport{}
	buffer := New(64, WithTransport(transport))

	writeFrame(buffer, []byte{1, 2, 3})
	writeFrame(buffer, []byte{4})

	if err := buffer.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	want := append(frame(1, 2, 3), frame(4)...)
	if got := transport.bytes(); !bytes.Equal(got, want) {
		t.Errorf("flushed % x, want % x", got, want)
	}
	if transport.writeCount() != 1 {
		t.Errorf("got %d transport writes, want 1", transport.writeCount())
	}

	// Nothing new: the second flush is a no-op.
	transport.reset()
	if err := buffer.Flush(); err != nil {
		t.Fatalf("second Flush: %v", err)
	}
	if transport.writeCount() != 0 {
		t.Errorf("empty flush made %d transport writes", transport.writeCount())
	}
}

func TestFlushExactlyCapacity(t *testing.T) {
	t.Parallel()

	transport := &recordingTransport{}
	buffer := New(24, WithTransport(transport))

	var want []byte
	for value := byte(1); value <= 3; value++ {
		writeFrame(buffer, payloadOf(value, 4))
		want = append(want, frame(payloadOf(value, 4)...)...)
	}

	if err := buffer.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if got := transport.bytes(); !bytes.Equal(got, want) {
		t.Errorf("flushed % x, want % x", got, want)
	}
	if stats := buffer.Stats(); stats.Overruns != 0 || stats.BytesLost != 0 {
		t.Errorf("full-capacity window reported loss: %+v", stats)
	}
}

func TestFlushWrappedWindowUsesTwoTransfers(t *testing.T) {
	t.Parallel()

	transport := &recordingTransport{}
	buffer := New(20, WithTransport(transport))

	writeFrame(buffer, payloadOf(1, 4)) // [0,8)
	if err := buffer.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	transport.reset()

	writeFrame(buffer, payloadOf(2, 4)) // [8,16)
	writeFrame(buffer, payloadOf(3, 4)) // [16,24) wraps to [0,4)

	if err := buffer.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if transport.writeCount() != 2 {
		t.Fatalf("got %d transport writes, want 2", transport.writeCount())
	}
	if got := len(transport.writes[0]); got != 12 {
		t.Errorf("first transfer is %d bytes, want 12 (tail of storage)", got)
	}
	want := append(frame(payloadOf(2, 4)...), frame(payloadOf(3, 4)...)...)
	if got := transport.bytes(); !bytes.Equal(got, want) {
		t.Errorf("flushed % x, want % x", got, want)
	}
}

func TestNotifyOncePerCrossing(t *testing.T) {
	t.Parallel()

	notifications := 0
	transport := &recordingTransport{}
	buffer := New(100, WithTransport(transport), WithNotify(func() { notifications++ }))

	// Ten-byte frames: the fifth reaches the half mark, the tenth the
	// end of storage, the fifteenth the half mark of the second lap.
	expected := map[int]int{5: 1, 10: 2, 15: 3}
	for record := 1; record <= 15; record++ {
		writeFrame(buffer, payloadOf(byte(record), 6))
		if want, ok := expected[record]; ok {
			if notifications != want {
				t.Fatalf("after record %d: %d notifications, want %d", record, notifications, want)
			}
			if err := buffer.Flush(); err != nil {
				t.Fatalf("Flush: %v", err)
			}
		} else if record < 5 && notifications != 0 {
			t.Fatalf("record %d notified before any crossing", record)
		}
	}
	if notifications != 3 {
		t.Errorf("got %d notifications, want 3", notifications)
	}
	if got := buffer.Stats().Notifications; got != 3 {
		t.Errorf("Stats.Notifications = %d, want 3", got)
	}
}

func TestNotifyWaitsForQuiescence(t *testing.T) {
	t.Parallel()

	notifications := 0
	transport := &recordingTransport{}
	buffer := New(20, WithTransport(transport), WithNotify(func() { notifications++ }))

	first := buffer.BeginWrite(6)  // [0,10), reaches the half mark
	second := buffer.BeginWrite(6) // [10,20), reaches the end
	if got := buffer.InFlight(); got != 2 {
		t.Fatalf("InFlight = %d, want 2", got)
	}

	second = buffer.Write(second, payloadOf(2, 6))
	buffer.EndWrite(second)
	if notifications != 0 {
		t.Fatal("notified while a writer was still in flight")
	}
	if buffer.Pending() {
		t.Fatal("data marked ready while a writer was still in flight")
	}
	if err := buffer.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if transport.writeCount() != 0 {
		t.Fatalf("flush emitted % x while a writer was in flight", transport.bytes())
	}

	first = buffer.Write(first, payloadOf(1, 6))
	buffer.EndWrite(first)
	if got := buffer.InFlight(); got != 0 {
		t.Fatalf("InFlight = %d after all writers ended", got)
	}
	if notifications != 1 {
		t.Fatalf("got %d notifications, want 1", notifications)
	}
	if !buffer.Pending() {
		t.Fatal("data not pending after quiescence")
	}

	if err := buffer.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	want := append(frame(payloadOf(1, 6)...), frame(payloadOf(2, 6)...)...)
	if got := transport.bytes(); !bytes.Equal(got, want) {
		t.Errorf("flushed % x, want % x", got, want)
	}
}

func TestOverrunKeepsSurvivingWindow(t *testing.T) {
	t.Parallel()

	notifications := 0
	transport := &recordingTransport{}
	buffer := New(32, WithTransport(transport), WithNotify(func() { notifications++ }))

	// Five ten-byte frames, 50 bytes into a 32-byte ring: the first
	// record and most of the second are overwritten.
	for record := byte(1); record <= 5; record++ {
		writeFrame(buffer, payloadOf(record, 6))
	}
	if notifications != 1 {
		t.Errorf("got %d notifications, want exactly 1", notifications)
	}

	if err := buffer.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	flushed := transport.bytes()
	if len(flushed) != 32 {
		t.Fatalf("flushed %d bytes, want the 32 surviving", len(flushed))
	}

	// The window opens on the end marker of record 2; everything from
	// the next begin marker on is intact.
	start := bytes.Index(flushed, []byte{0xfe, 0xca})
	if start != 2 {
		t.Fatalf("first begin marker at %d, want 2", start)
	}
	var want []byte
	for record := byte(3); record <= 5; record++ {
		want = append(want, frame(payloadOf(record, 6)...)...)
	}
	if got := flushed[start:]; !bytes.Equal(got, want) {
		t.Errorf("resynchronized window % x, want % x", got, want)
	}

	stats := buffer.Stats()
	if stats.Overruns != 1 || stats.BytesLost != 18 {
		t.Errorf("Overruns = %d, BytesLost = %d; want 1, 18", stats.Overruns, stats.BytesLost)
	}

	// The buffer is healthy afterwards.
	transport.reset()
	writeFrame(buffer, payloadOf(6, 6))
	if err := buffer.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if got := transport.bytes(); !bytes.Equal(got, frame(payloadOf(6, 6)...)) {
		t.Errorf("post-overrun flush % x, want % x", got, frame(payloadOf(6, 6)...))
	}
}

func TestReservationsAreDisjoint(t *testing.T) {
	t.Parallel()

	buffer := New(32)
	first := buffer.BeginWrite(10)
	second := buffer.BeginWrite(14)

	firstStart, firstEnd := uint64(first)-MarkerSize, uint64(first)+10+MarkerSize
	secondStart := uint64(second) - MarkerSize
	if secondStart < firstEnd {
		t.Errorf("second reservation starts at %d inside first [%d,%d)", secondStart, firstStart, firstEnd)
	}
	buffer.EndWrite(buffer.Write(first, payloadOf(1, 10)))
	buffer.EndWrite(buffer.Write(second, payloadOf(2, 14)))
	if got := buffer.InFlight(); got != 0 {
		t.Errorf("InFlight = %d, want 0", got)
	}
}

func TestConcurrentProducers(t *testing.T) {
	t.Parallel()

	const (
		producers  = 8
		perProduce = 200
		payloadLen = 8
	)
	transport := &recordingTransport{}
	buffer := New(producers*perProduce*(payloadLen+FrameOverhead), WithTransport(transport))

	var group sync.WaitGroup
	for producer := 1; producer <= producers; producer++ {
		group.Add(1)
		go func(value byte) {
			defer group.Done()
			payload := payloadOf(value, payloadLen)
			for range perProduce {
				writeFrame(buffer, payload)
			}
		}(byte(producer))
	}
	group.Wait()

	if got := buffer.InFlight(); got != 0 {
		t.Fatalf("InFlight = %d after all producers finished", got)
	}
	if err := buffer.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	flushed := transport.bytes()
	frameLen := payloadLen + FrameOverhead
	if len(flushed) != producers*perProduce*frameLen {
		t.Fatalf("flushed %d bytes, want %d", len(flushed), producers*perProduce*frameLen)
	}
	counts := make(map[byte]int)
	for offset := 0; offset < len(flushed); offset += frameLen {
		got := flushed[offset : offset+frameLen]
		want := frame(payloadOf(got[2], payloadLen)...)
		if !bytes.Equal(got, want) {
			t.Fatalf("frame at %d is torn: % x", offset, got)
		}
		counts[got[2]]++
	}
	for producer := 1; producer <= producers; producer++ {
		if counts[byte(producer)] != perProduce {
			t.Errorf("producer %d: %d frames, want %d", producer, counts[byte(producer)], perProduce)
		}
	}
}

func TestUnmatchedEndWriteIgnored(t *testing.T) {
	t.Parallel()

	buffer := New(16)
	buffer.EndWrite(0)
	if got := buffer.InFlight(); got != 0 {
		t.Errorf("InFlight = %d, want 0", got)
	}
	if got := buffer.Stats().Records; got != 0 {
		t.Errorf("Records = %d, want 0", got)
	}
}

func TestFlushWithoutTransportKeepsData(t *testing.T) {
	t.Parallel()

	buffer := New(32)
	writeFrame(buffer, []byte{9})
	if err := buffer.Flush(); err != nil {
		t.Fatalf("Flush without transport: %v", err)
	}
	if !buffer.Pending() {
		t.Fatal("Flush without transport discarded pending data")
	}

	transport := &recordingTransport{}
	buffer.SetTransport(transport)
	if err := buffer.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if got := transport.bytes(); !bytes.Equal(got, frame(9)) {
		t.Errorf("flushed % x, want % x", got, frame(9))
	}
}

func TestFlushTransportErrorDropsData(t *testing.T) {
	t.Parallel()

	transport := &recordingTransport{err: errors.New("link down")}
	buffer := New(32, WithTransport(transport))
	writeFrame(buffer, []byte{1})

	err := buffer.Flush()
	if err == nil || !errors.Is(err, transport.err) {
		t.Fatalf("Flush error = %v, want wrapped %v", err, transport.err)
	}

	transport.mu.Lock()
	transport.err = nil
	transport.writes = nil
	transport.mu.Unlock()
	if err := buffer.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if transport.writeCount() != 0 {
		t.Errorf("failed data was retried: % x", transport.bytes())
	}
}

func TestWriteRecordFraming(t *testing.T) {
	t.Parallel()

	transport := &recordingTransport{}
	buffer := New(128, WithTransport(transport))
	record := tlv.NewRecord(0x11223344, 7, 42, tlv.I16(-1))
	buffer.WriteRecord(tlv.DefaultLayout, record)

	if err := buffer.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	want := frame(
		0x44, 0x33, 0x22, 0x11, // file id
		0x07, 0x00, 0x00, 0x00, // timestamp
		0x2a, 0x00, // line
		0x01,             // arg count
		0x25, 0xff, 0xff, // int16 -1
	)
	if got := transport.bytes(); !bytes.Equal(got, want) {
		t.Errorf("flushed % x, want % x", got, want)
	}
}

func TestWriteRecordDropsUnencodable(t *testing.T) {
	t.Parallel()

	buffer := New(4096)
	args := make([]tlv.Arg, 256)
	buffer.WriteRecord(tlv.DefaultLayout, tlv.NewRecord(1, 0, 1, args...))

	stats := buffer.Stats()
	if stats.Dropped != 1 {
		t.Errorf("Dropped = %d, want 1", stats.Dropped)
	}
	if stats.BytesReserved != 0 {
		t.Errorf("BytesReserved = %d for a dropped record", stats.BytesReserved)
	}
}

func TestNewPanicsOnBadCapacity(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Error("New(0) did not panic")
		}
	}()
	New(0)
}
