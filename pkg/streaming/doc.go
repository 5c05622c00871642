/*
Package streaming groups the sinkflow stream packages.

  - promise: three-state completion handle returned by stream operations
  - queue: size-tracking FIFO used by the stream controller
  - writable: backpressure-aware writable streams
  - sink: ready-made sinks and sink decorators
  - writer: asynchronous buffered writer over a byte stream

Basic usage:

	w, err := writer.NewWithConfig(file, writer.DefaultConfig())
	if err != nil {
		return err
	}
	defer w.Close()

	w.Write(data)

Lower level, a stream over any sink:

	stream, _ := writable.NewWithConfig[Event](eventSink, writable.Config[Event]{
		Strategy: writable.CountStrategy[Event](100),
	})
	events, _ := stream.GetWriter()
	events.Write(evt)
*/
package streaming
