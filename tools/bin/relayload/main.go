package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/relayr/relayr/relay/relayclient"
	"github.com/relayr/relayr/utils/randutil"

	"github.com/alecthomas/kingpin"
	"github.com/montanaflynn/stats"
	"golang.org/x/sync/errgroup"
)

// simulateTransfer drives one sender/recipient pair through a full transfer:
// register both peers, pair them, optionally announce file metadata, push
// chunks binary frames of chunkSize bytes, then finish with a fileEnd and a
// transfer-completed close. Per-chunk round trip latencies in seconds are
// pushed to results.
func simulateTransfer(
	client *relayclient.Client, chunks, chunkSize int, meta bool, results chan float64) error {

	sender, err := client.Connect("")
	if err != nil {
		return fmt.Errorf("connect sender: %s", err)
	}
	if _, err := sender.RecvEnvelope(); err != nil {
		return fmt.Errorf("sender register: %s", err)
	}
	recipient, err := client.Connect("")
	if err != nil {
		return fmt.Errorf("connect recipient: %s", err)
	}
	if _, err := recipient.RecvEnvelope(); err != nil {
		return fmt.Errorf("recipient register: %s", err)
	}

	if err := recipient.Send(map[string]interface{}{
		"type":        "recipientReady",
		"senderId":    sender.PeerID(),
		"recipientId": recipient.PeerID(),
	}); err != nil {
		return fmt.Errorf("send recipientReady: %s", err)
	}
	e, err := sender.RecvEnvelope()
	if err != nil {
		return fmt.Errorf("pairing ack: %s", err)
	}
	if !e.Success {
		return fmt.Errorf("pairing rejected: %s", e.Message)
	}

	size := uint64(chunks) * uint64(chunkSize)
	if meta {
		if err := sender.Send(map[string]interface{}{
			"type":     "fileMeta",
			"name":     "relayload.bin",
			"size":     size,
			"mimeType": "application/octet-stream",
		}); err != nil {
			return fmt.Errorf("send fileMeta: %s", err)
		}
	}

	payload := randutil.Text(chunkSize)
	for i := 0; i < chunks; i++ {
		start := time.Now()
		if err := sender.SendBinary(payload); err != nil {
			return fmt.Errorf("send chunk %d: %s", i, err)
		}
		if _, _, err := recipient.Recv(); err != nil {
			return fmt.Errorf("recv chunk %d: %s", i, err)
		}
		results <- time.Since(start).Seconds()
	}

	if err := sender.Send(map[string]interface{}{
		"type":           "fileEnd",
		"fileName":       "relayload.bin",
		"totalSize":      size,
		"totalChunks":    chunks,
		"uploadedSize":   size,
		"lastChunkIndex": chunks - 1,
	}); err != nil {
		return fmt.Errorf("send fileEnd: %s", err)
	}
	if _, err := recipient.RecvEnvelope(); err != nil {
		return fmt.Errorf("recv fileEnd: %s", err)
	}

	if meta {
		// The chunks arrived after the announcement on the same socket, so
		// the metadata must be visible by now.
		md, err := client.FileMetadata(sender.PeerID())
		if err != nil {
			return fmt.Errorf("fetch file metadata: %s", err)
		}
		if md.Size != size {
			return fmt.Errorf("file metadata size mismatch: expected %d, got %d", size, md.Size)
		}
	}

	if err := recipient.CloseTransferCompleted(); err != nil {
		return fmt.Errorf("close recipient: %s", err)
	}
	return sender.Close("")
}

func main() {
	app := kingpin.New("relayload", "Relay server load testing tool")

	addr := app.Flag("addr", "Relay server address").Required().String()
	pairs := app.Flag("pairs", "Number of sender/recipient pairs to simulate").Short('n').Required().Int()
	chunks := app.Flag("chunks", "Binary chunks per transfer").Short('c').Default("64").Int()
	chunkSize := app.Flag("chunk_size", "Chunk payload size in bytes").Short('b').Default("16384").Int()
	meta := app.Flag("meta", "Announce and verify file metadata per transfer").Bool()

	kingpin.MustParse(app.Parse(os.Args[1:]))

	client := relayclient.New(*addr)
	if err := client.Ping(); err != nil {
		log.Fatalf("Error pinging relay server: %s", err)
	}

	results := make(chan float64)
	var g errgroup.Group
	start := time.Now()
	for i := 0; i < *pairs; i++ {
		g.Go(func() error {
			return simulateTransfer(client, *chunks, *chunkSize, *meta, results)
		})
	}
	go func() {
		g.Wait()
		close(results)
	}()

	var times stats.Float64Data
	for latency := range results {
		times = append(times, latency)
	}
	elapsed := time.Since(start)

	if err := g.Wait(); err != nil {
		log.Fatalf("Error running transfers: %s", err)
	}

	totalChunks := *pairs * *chunks
	totalBytes := int64(totalChunks) * int64(*chunkSize)
	log.Printf("completed %d transfers, %d chunks in %s (%.2f MB/s)",
		*pairs, totalChunks, elapsed, float64(totalBytes)/elapsed.Seconds()/1024/1024)

	p50, _ := stats.Median(times)
	p95, _ := stats.Percentile(times, 95)
	p99, _ := stats.Percentile(times, 99)
	log.Printf("chunk round trip p50: %.2fms\n", p50*1000)
	log.Printf("chunk round trip p95: %.2fms\n", p95*1000)
	log.Printf("chunk round trip p99: %.2fms\n", p99*1000)
}
