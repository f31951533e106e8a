package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/sharedlog/corfu-go/pkg/address"
	"github.com/sharedlog/corfu-go/pkg/global"
	"github.com/sharedlog/corfu-go/pkg/logunit"
	"github.com/sharedlog/corfu-go/pkg/runtimeconfig"
	"github.com/sharedlog/corfu-go/pkg/sequencer"
	"github.com/sharedlog/corfu-go/pkg/streamview"
	"github.com/sharedlog/corfu-go/pkg/transaction"
	"github.com/sharedlog/corfu-go/pkg/util"
)

// heartbeatStreamID is the well-known stream the demo appends a
// heartbeat entry to on every run, distinct from the caller-chosen
// streams passed on the command line. The literal must always parse;
// a failure here would mean the literal itself was mistyped, not that
// bad input was supplied.
var heartbeatStreamID = util.Must(uuid.Parse("00000000-0000-0000-0000-000000000001"))

// corfu_client_demo exercises the client-side runtime end to end
// against in-process log-unit and sequencer implementations: it opens
// a transaction, writes to two streams plus the heartbeat stream and
// any -extra-stream streams, commits, and then walks the first stream
// with a queued stream view to show the write it just made.
func main() {
	var configPath string
	var extraStreams util.StringList
	flag.StringVar(&configPath, "config", "", "path to a runtime configuration overlay")
	flag.Var(&extraStreams, "extra-stream", "additional stream UUID to write to (repeatable)")
	flag.Parse()

	config := runtimeconfig.Default()
	if configPath != "" {
		if err := util.UnmarshalConfigurationFromFile(configPath, &config); err != nil {
			log.Fatalf("Failed to read configuration from %s: %s", configPath, err)
		}
	}
	log.Printf("Starting client %s", config.ClientID)

	extra := make([]uuid.UUID, 0, len(extraStreams))
	for _, s := range extraStreams {
		id, err := uuid.Parse(s)
		if err != nil {
			log.Fatalf("Invalid -extra-stream %q: %s", s, err)
		}
		extra = append(extra, id)
	}

	ctx, terminationGroup := global.InstallGracefulTerminationHandler()

	logClient := logunit.NewMemoryClient()
	seqClient := sequencer.NewMemorySequencer()

	streamA := uuid.New()
	streamB := uuid.New()

	terminationGroup.Go(func() error {
		return runDemo(ctx, logClient, seqClient, streamA, streamB, extra)
	})

	if err := terminationGroup.Wait(); err != nil {
		log.Fatal("Demo failed: ", err)
	}
}

func runDemo(ctx context.Context, logClient logunit.Client, seqClient sequencer.Client, streamA, streamB uuid.UUID, extraStreams []uuid.UUID) error {
	txCtx, handle, err := transaction.Begin(ctx, seqClient, logClient, transaction.Optimistic)
	if err != nil {
		return util.StatusWrap(err, "Failed to begin transaction")
	}
	handle.RecordRead(streamA)
	if err := handle.RecordWrite(streamA, []byte("hello from A")); err != nil {
		return err
	}
	if err := handle.RecordWrite(streamB, []byte("hello from B")); err != nil {
		return err
	}
	if err := handle.RecordWrite(heartbeatStreamID, []byte("heartbeat")); err != nil {
		return err
	}
	for _, id := range extraStreams {
		if err := handle.RecordWrite(id, []byte("hello from extra stream")); err != nil {
			return err
		}
	}
	if err := handle.Commit(txCtx); err != nil {
		return util.StatusWrap(err, "Commit failed")
	}

	const farFuture = address.GlobalAddress(1 << 32)
	view := streamview.NewView(streamA, logClient, seqClient)
	for {
		entry, ok, err := view.Next(ctx, farFuture)
		if err != nil {
			return util.StatusWrap(err, "Failed to read next entry")
		}
		if !ok {
			break
		}
		fmt.Printf("stream A entry at %d: %q\n", entry.Address, entry.Payload)
	}
	return nil
}
