package relay

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect() (*[]string, Sink) {
	var got []string
	return &got, func(text string) { got = append(got, text) }
}

func TestRelayForwardsWritesInOrder(t *testing.T) {
	var original bytes.Buffer
	out := NewChannel(&original)
	r := New(out)

	got, sink := collect()
	r.Activate(sink)
	require.True(t, r.Active())

	fmt.Fprint(out, "first")
	fmt.Fprintf(out, "second %d\n", 2)
	_, _ = out.Write(nil)

	r.Deactivate()

	assert.Equal(t, []string{"first", "second 2\n"}, *got)
	assert.Empty(t, original.String())
}

func TestRelayRestoresOriginalDestination(t *testing.T) {
	var stdout, stderr bytes.Buffer
	outCh := NewChannel(&stdout)
	errCh := NewChannel(&stderr)
	r := New(outCh, errCh)

	got, sink := collect()
	r.Activate(sink)
	fmt.Fprint(outCh, "to sink ")
	fmt.Fprint(errCh, "also to sink")
	r.Deactivate()
	r.Deactivate()

	fmt.Fprint(outCh, "out")
	fmt.Fprint(errCh, "err")

	assert.False(t, r.Active())
	assert.Equal(t, []string{"to sink ", "also to sink"}, *got)
	assert.Equal(t, "out", stdout.String())
	assert.Equal(t, "err", stderr.String())
}

func TestRelayDoRestoresAfterPanic(t *testing.T) {
	var original bytes.Buffer
	out := NewChannel(&original)
	r := New(out)

	got, sink := collect()
	assert.Panics(t, func() {
		r.Do(sink, func() {
			fmt.Fprint(out, "before failure")
			panic("evaluator blew up")
		})
	})

	fmt.Fprint(out, "after")
	assert.False(t, r.Active())
	assert.Equal(t, []string{"before failure"}, *got)
	assert.Equal(t, "after", original.String())
}

func TestRelayReactivateKeepsOriginal(t *testing.T) {
	var original bytes.Buffer
	out := NewChannel(&original)
	r := New(out)

	first, sinkA := collect()
	second, sinkB := collect()

	r.Activate(sinkA)
	fmt.Fprint(out, "a")
	r.Activate(sinkB)
	fmt.Fprint(out, "b")
	r.Deactivate()
	fmt.Fprint(out, "c")

	assert.Equal(t, []string{"a"}, *first)
	assert.Equal(t, []string{"b"}, *second)
	assert.Equal(t, "c", original.String())
}

func TestNilChannelDiscards(t *testing.T) {
	ch := NewChannel(nil)
	n, err := ch.Write([]byte("dropped"))
	require.NoError(t, err)
	assert.Equal(t, 7, n)
}

func TestDeactivateWaitsForWriteInProgress(t *testing.T) {
	var original bytes.Buffer
	out := NewChannel(&original)
	r := New(out)

	entered := make(chan struct{})
	release := make(chan struct{})
	r.Activate(func(string) {
		close(entered)
		<-release
	})

	go func() { _, _ = out.Write([]byte("slow")) }()
	<-entered

	deactivated := make(chan struct{})
	go func() {
		r.Deactivate()
		close(deactivated)
	}()

	select {
	case <-deactivated:
		t.Fatal("deactivate returned while a write was still reaching the sink")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-deactivated:
	case <-time.After(5 * time.Second):
		t.Fatal("deactivate did not return")
	}

	fmt.Fprint(out, "after")
	assert.Equal(t, "after", original.String())
}
