// feedclient publishes a scripted sequence of transcript updates to the
// Kafka updates topic, exercising the reconciler's merge and staleness
// handling end to end. Run the service with SOURCE_PROVIDER=kafka (or
// KAFKA_SOURCE_ENABLED=true) and watch the display while this runs.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"live-transcript-reconciler/internal/models"
)

func seq(n int64) *int64 { return &n }

func final(b bool) *bool { return &b }

func main() {
	brokers := flag.String("brokers", "localhost:9092", "Kafka brokers (comma-separated)")
	topic := flag.String("topic", "transcript.updates", "Updates topic")
	speaker := flag.String("speaker", "demo-speaker", "Speaker ID")
	name := flag.String("name", "Demo Speaker", "Speaker display name")
	interval := flag.Duration("interval", 300*time.Millisecond, "Delay between updates")
	flag.Parse()

	writer := &kafka.Writer{
		Addr:         kafka.TCP(strings.Split(*brokers, ",")...),
		Topic:        *topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
	}
	defer writer.Close()

	updates := []models.Update{
		{
			SpeakerID: *speaker, SpeakerName: *name, Sequence: seq(0),
			Segments: []models.Segment{
				{Start: 0, End: 1.2, Text: "I want", Completed: false},
			},
		},
		{
			SpeakerID: *speaker, SpeakerName: *name, Sequence: seq(1),
			Segments: []models.Segment{
				{Start: 0, End: 1.9, Text: "I want to cancel", Completed: false},
			},
		},
		{
			SpeakerID: *speaker, SpeakerName: *name, Sequence: seq(2),
			Segments: []models.Segment{
				{Start: 0, End: 2.4, Text: "I want to cancel", Completed: true},
				{Start: 2.4, End: 3.4, Text: "my sub", Completed: false},
			},
		},
		// A late replay of an older revision; the service must ignore it.
		{
			SpeakerID: *speaker, SpeakerName: *name, Sequence: seq(1),
			Segments: []models.Segment{
				{Start: 0, End: 1.9, Text: "I want to cancel", Completed: false},
			},
		},
		{
			SpeakerID: *speaker, SpeakerName: *name, Sequence: seq(3), IsFinal: final(true),
			Segments: []models.Segment{
				{Start: 0, End: 2.4, Text: "I want to cancel", Completed: true},
				{Start: 2.4, End: 4.1, Text: "my subscription", Completed: true},
			},
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	log.Printf("Publishing %d updates to %s for speaker %s", len(updates), *topic, *speaker)

	for i, u := range updates {
		u.Timestamp = time.Now().UnixMilli()
		payload, err := json.Marshal(u)
		if err != nil {
			log.Fatalf("failed to marshal update %d: %v", i, err)
		}

		err = writer.WriteMessages(ctx, kafka.Message{
			Key:   []byte(u.SpeakerID),
			Value: payload,
		})
		if err != nil {
			log.Fatalf("failed to publish update %d: %v", i, err)
		}

		log.Printf("Published update %d: sequence=%d segments=%d", i, *u.Sequence, len(u.Segments))
		time.Sleep(*interval)
	}

	log.Println("Done")
}
