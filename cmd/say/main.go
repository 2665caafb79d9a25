package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/satriahrh/suara/adapters/tts"
	"github.com/satriahrh/suara/domain/entities"
)

// Speaks a line of text through ElevenLabs, the same way the server echoes a
// transcript, and saves the raw PCM output.
func main() {
	text := flag.String("text", "Hello! This is the voice echo server speaking.", "text to speak")
	voiceName := flag.String("voice", "", "voice name, first catalog voice when empty")
	output := flag.String("out", "say_output.pcm", "output file")
	list := flag.Bool("list", false, "list available voices and exit")
	play := flag.Bool("play", true, "play the output with a local audio player")
	model := flag.String("model", "", "ElevenLabs model ID, ELEVEN_LABS_MODEL_ID when empty")
	format := flag.String("format", "", "ElevenLabs output format, ELEVEN_LABS_OUTPUT_FORMAT when empty")
	stability := flag.Float64("stability", 0, "voice stability between 0 and 1, ELEVEN_LABS_STABILITY when zero")
	clarity := flag.Float64("clarity", 0, "voice clarity between 0 and 1, ELEVEN_LABS_CLARITY when zero")
	flag.Parse()

	godotenv.Load()

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	config := tts.NewElevenLabsConfigFromEnv()
	if *model != "" {
		config.ModelID = *model
	}
	if *format != "" {
		config.OutputFormat = *format
	}
	if *stability != 0 {
		config.Stability = *stability
	}
	if *clarity != 0 {
		config.Clarity = *clarity
	}
	if config.OutputFormat == "" {
		config.OutputFormat = "pcm_24000"
	}

	ttsService, err := tts.NewElevenLabsTTS(config, logger)
	if err != nil {
		logger.Fatal("Failed to create TTS service", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	voices, err := ttsService.ListVoices(ctx)
	if err != nil {
		logger.Fatal("Failed to list voices", zap.Error(err))
	}

	if *list {
		for _, v := range voices {
			fmt.Printf("  - %s (ID: %s)\n", v.Label(), v.ID)
		}
		return
	}

	voice, err := pickVoice(voices, *voiceName)
	if err != nil {
		logger.Fatal("No usable voice", zap.Error(err))
	}

	logger.Info("Converting text to speech",
		zap.String("text", *text),
		zap.String("voice", voice.Label()))

	audioChan, err := ttsService.ConvertTextToSpeech(ctx, *text, voice)
	if err != nil {
		logger.Fatal("Failed to convert text to speech", zap.Error(err))
	}

	file, err := os.Create(*output)
	if err != nil {
		logger.Fatal("Failed to create output file", zap.Error(err))
	}

	totalBytes := 0
	for chunk := range audioChan {
		if chunk.Err != nil {
			file.Close()
			logger.Fatal("Speech synthesis failed", zap.Error(chunk.Err))
		}
		n, err := file.Write(chunk.Data)
		if err != nil {
			logger.Error("Failed to write audio chunk", zap.Error(err))
			break
		}
		totalBytes += n
	}
	file.Close()

	logger.Info("Audio saved", zap.String("file", *output), zap.Int("totalBytes", totalBytes))

	if *play {
		rate, ok := pcmSampleRate(config.OutputFormat)
		if !ok {
			logger.Info("Output is not raw PCM, skipping playback", zap.String("format", config.OutputFormat))
			return
		}
		if err := playPCM(*output, rate, logger); err != nil {
			logger.Warn("Could not play audio", zap.Error(err))
			fmt.Printf("Play it manually with: play -t raw -r %d -e signed -b 16 -c 1 %s\n", rate, *output)
		}
	}
}

func pickVoice(voices []entities.Voice, name string) (entities.Voice, error) {
	if len(voices) == 0 {
		return entities.Voice{}, fmt.Errorf("voice catalog is empty")
	}
	if name == "" {
		return voices[0], nil
	}
	for _, v := range voices {
		if v.Name == name {
			return v, nil
		}
	}
	return entities.Voice{}, fmt.Errorf("voice %q not found", name)
}

// pcmSampleRate reads the sample rate of an ElevenLabs pcm_<rate> format
func pcmSampleRate(format string) (int, bool) {
	rate, ok := strings.CutPrefix(format, "pcm_")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rate)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// playPCM tries the usual players for signed 16-bit mono PCM
func playPCM(filename string, rate int, logger *zap.Logger) error {
	r := strconv.Itoa(rate)
	players := []struct {
		command string
		args    []string
	}{
		{"play", []string{"-t", "raw", "-r", r, "-e", "signed", "-b", "16", "-c", "1"}},
		{"ffplay", []string{"-f", "s16le", "-ar", r, "-ac", "1", "-nodisp", "-autoexit"}},
		{"aplay", []string{"-f", "S16_LE", "-r", r, "-c", "1"}},
	}

	for _, player := range players {
		if _, err := exec.LookPath(player.command); err != nil {
			continue
		}
		args := append(player.args, filename)
		if err := exec.Command(player.command, args...).Run(); err != nil {
			logger.Debug("Player failed", zap.String("player", player.command), zap.Error(err))
			continue
		}
		return nil
	}
	return fmt.Errorf("no suitable audio player found")
}
