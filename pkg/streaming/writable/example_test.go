package writable_test

import (
	"context"
	"fmt"
	"strings"

	"github.com/vnykmshr/sinkflow/pkg/streaming/writable"
)

func Example() {
	var out strings.Builder
	sink := writable.SinkFuncs[string]{
		WriteFunc: func(_ context.Context, chunk string, _ *writable.Controller[string]) error {
			out.WriteString(chunk)
			return nil
		},
	}

	stream, err := writable.New[string](sink)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	w, _ := stream.GetWriter()

	ctx := context.Background()
	for _, chunk := range []string{"hello", ", ", "world"} {
		if err := w.Ready().Wait(ctx); err != nil {
			fmt.Println("error:", err)
			return
		}
		w.Write(chunk)
	}
	if err := w.Close().Wait(ctx); err != nil {
		fmt.Println("error:", err)
		return
	}

	fmt.Println(out.String())
	fmt.Println(stream.State())
	// Output:
	// hello, world
	// closed
}

func ExampleWriter_DesiredSize() {
	release := make(chan struct{})
	sink := writable.SinkFuncs[[]byte]{
		WriteFunc: func(context.Context, []byte, *writable.Controller[[]byte]) error {
			<-release
			return nil
		},
	}

	config := writable.DefaultConfig[[]byte]()
	config.Strategy = writable.ByteLengthStrategy(16)
	stream, _ := writable.NewWithConfig[[]byte](sink, config)
	w, _ := stream.GetWriter()

	w.Write([]byte("0123456789"))
	size, _, _ := w.DesiredSize()
	fmt.Println(size, stream.Backpressure())

	done := w.Write([]byte("abcdefgh"))
	size, _, _ = w.DesiredSize()
	fmt.Println(size, stream.Backpressure())

	close(release)
	_ = done.Wait(context.Background())
	size, _, _ = w.DesiredSize()
	fmt.Println(size, stream.Backpressure())
	// Output:
	// 6 false
	// -2 true
	// 16 false
}

func ExampleWriter_Abort() {
	sink := writable.SinkFuncs[string]{
		AbortFunc: func(_ context.Context, reason error) error {
			fmt.Println("sink aborted:", reason)
			return nil
		},
	}
	stream, _ := writable.New[string](sink)
	w, _ := stream.GetWriter()

	_ = w.Abort(fmt.Errorf("user canceled")).Wait(context.Background())
	err := w.Closed().Wait(context.Background())
	fmt.Println(err)
	// Output:
	// sink aborted: user canceled
	// stream aborted: user canceled
}
