// Package voice runs a voice-control session for the G1.
//
// A Session wires three stages together:
//
//	microphone (audioio.Source) -> transcriber -> command.Interpreter
//
// Partial transcripts are echoed on one line as the user speaks; each final
// transcript is printed and dispatched through the phrase table. The session
// runs until its context is cancelled or the transcription session ends.
//
// # Usage
//
//	cfg := voice.DefaultConfig().WithAPIKey(os.Getenv("ASSEMBLYAI_API_KEY"))
//
//	src, err := audioio.NewSource(cfg.Audio, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	session, err := voice.NewSession(cfg, interp, src)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = session.Run(ctx)
//
// # Providers
//
// Only AssemblyAI realtime transcription is bundled. Tests and alternative
// backends plug in through WithTranscriber.
package voice
