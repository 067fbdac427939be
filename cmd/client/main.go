// Command client streams a WAV file to a running server and prints the
// transcript, mirroring what a voice satellite does over the wire.
package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/tboby/wyoming-onnx-asr/internal/audio"
	"github.com/tboby/wyoming-onnx-asr/internal/protocol"
	"github.com/tboby/wyoming-onnx-asr/internal/server"
)

const chunkFrames = 1024

func main() {
	uri := flag.String("uri", "tcp://127.0.0.1:10300", "Server URI (tcp://host:port or unix:///path)")
	language := flag.String("language", "", "Requested transcription language")
	model := flag.String("model", "", "Requested model name")
	describe := flag.Bool("describe", false, "Print the server's capability descriptor and exit")
	flag.Parse()

	if err := run(*uri, *language, *model, *describe, flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(uri, language, model string, describe bool, files []string) error {
	endpoint, err := server.ParseURI(uri)
	if err != nil {
		return err
	}
	if endpoint.Scheme == "stdio" {
		return fmt.Errorf("stdio uri is for serving, not connecting")
	}

	conn, err := net.Dial(endpoint.Scheme, endpoint.Address)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", uri, err)
	}
	defer conn.Close()

	writer := protocol.NewWriter(conn)
	reader := protocol.NewReader(conn)

	if describe {
		return printDescriptor(writer, reader)
	}

	if len(files) != 1 {
		return fmt.Errorf("expected exactly one WAV file argument, got %d", len(files))
	}

	text, err := transcribeFile(writer, reader, files[0], language, model)
	if err != nil {
		return err
	}
	fmt.Println(text)

	if strings.HasPrefix(text, "ERROR: ") {
		os.Exit(2)
	}
	return nil
}

func printDescriptor(writer *protocol.Writer, reader *protocol.Reader) error {
	if err := writer.WriteEvent(protocol.Describe{}.Event()); err != nil {
		return fmt.Errorf("failed to send describe: %w", err)
	}
	event, err := reader.ReadEvent()
	if err != nil {
		return fmt.Errorf("failed to read descriptor: %w", err)
	}
	info, err := protocol.InfoFromEvent(event)
	if err != nil {
		return fmt.Errorf("failed to decode descriptor: %w", err)
	}

	for _, program := range info.Asr {
		fmt.Printf("%s %s (%s)\n", program.Name, program.Version, program.Description)
		for _, m := range program.Models {
			fmt.Printf("  %s languages=%v version=%s\n", m.Name, m.Languages, m.Version)
		}
	}
	return nil
}

func transcribeFile(writer *protocol.Writer, reader *protocol.Reader, path, language, model string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	format, frames, err := audio.ParseWAV(data)
	if err != nil {
		return "", fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if language != "" || model != "" {
		transcribe := protocol.Transcribe{Name: model, Language: language}
		if err := writer.WriteEvent(transcribe.Event()); err != nil {
			return "", fmt.Errorf("failed to send transcribe request: %w", err)
		}
	}

	start := protocol.AudioStart{Rate: format.Rate, Width: format.Width, Channels: format.Channels}
	if err := writer.WriteEvent(start.Event()); err != nil {
		return "", fmt.Errorf("failed to send audio start: %w", err)
	}

	for _, frame := range audio.SplitFrames(frames, format, chunkFrames) {
		chunk := protocol.AudioChunk{
			Rate:     format.Rate,
			Width:    format.Width,
			Channels: format.Channels,
			Audio:    frame,
		}
		if err := writer.WriteEvent(chunk.Event()); err != nil {
			return "", fmt.Errorf("failed to send audio chunk: %w", err)
		}
	}

	if err := writer.WriteEvent(protocol.AudioStop{}.Event()); err != nil {
		return "", fmt.Errorf("failed to send audio stop: %w", err)
	}

	for {
		event, err := reader.ReadEvent()
		if err != nil {
			return "", fmt.Errorf("failed to read response: %w", err)
		}
		if event.Type != protocol.TypeTranscript {
			continue
		}
		transcript, err := protocol.TranscriptFromEvent(event)
		if err != nil {
			return "", fmt.Errorf("failed to decode transcript: %w", err)
		}
		return transcript.Text, nil
	}
}
