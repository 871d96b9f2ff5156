package googlestt

import (
	"context"
	"errors"
	"io"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// openStream starts a streaming recognition session and sends the
// configuration frame that must precede any audio.
func openStream(ctx context.Context, client *speech.Client, cfg Config) (speechpb.Speech_StreamingRecognizeClient, error) {
	stream, err := client.StreamingRecognize(ctx)
	if err != nil {
		return nil, err
	}

	err = stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:        speechpb.RecognitionConfig_LINEAR16,
					SampleRateHertz: int32(cfg.SampleRateHz),
					LanguageCode:    cfg.LanguageCode,
				},
				InterimResults: cfg.InterimResults,
			},
		},
	})
	if err != nil {
		return nil, err
	}
	return stream, nil
}

// sendAudio forwards one frame of PCM audio to the open stream.
func sendAudio(stream speechpb.Speech_StreamingRecognizeClient, frame []byte) error {
	return stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: frame,
		},
	})
}

// isRotation reports whether a stream ended for a routine reason: the API
// caps stream duration and returns OUT_OF_RANGE when it is reached, and a
// clean server-side close surfaces as EOF. Both just mean "open a new one".
func isRotation(err error) bool {
	if errors.Is(err, io.EOF) {
		return true
	}
	return status.Code(err) == codes.OutOfRange
}
