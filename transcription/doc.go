// Package transcription selects a working speech-to-text backend for an
// audio input, runs it, and falls back to the next backend on failure.
//
// The moving parts:
//
//   - Transcriber is the capability every backend adapter implements.
//   - Registry (a provider.Registry[Transcriber]) holds adapters by name.
//   - Plan lists the requested backends in preference order together with
//     the retry budget, per-attempt timeout and per-backend options.
//   - Policy resolves a Plan's names into the candidates to try.
//   - Executor drives one Job through the candidates: every candidate gets
//     Plan.Attempts() tries before the next one is considered.
//
// Adapters live in subpackages: whisper (a faster-whisper HTTP server),
// openai (the OpenAI transcription API), command (a local binary) and
// transcriptiontest (scripted, for tests and offline configs). Each exposes
// a Factory for config-driven registration through RegisterProviders.
//
// A Job records each attempt and ends completed with a transcript or failed
// with an error kind and an aggregated message:
//
//	reg := transcription.NewRegistry()
//	_ = reg.Register(whisper.New(whisper.Config{URL: "http://localhost:8387"}))
//
//	audio, _ := transcription.NewAudioReference("call.wav", "")
//	plan, _ := transcription.FallbackPlan("whisper", []string{"openai"})
//
//	job, _ := transcription.NewExecutor(reg).Execute(ctx, transcription.NewJob(audio, plan))
//	if job.Status() == transcription.StatusFailed {
//	    log.Print(job.ErrorKind(), job.ErrorMessage())
//	}
package transcription
